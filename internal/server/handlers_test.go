package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/report-retriever/internal/automation"
	"github.com/jonathan/report-retriever/internal/config"
	"github.com/jonathan/report-retriever/internal/jobs"
	"github.com/jonathan/report-retriever/internal/steps"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.FromEnv()
	cfg.DownloadsDir = filepath.Join(t.TempDir(), "downloads")
	cfg.ArtifactsDir = filepath.Join(t.TempDir(), "artifacts")

	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.rateLimiter.Stop)
	return s
}

// stubTask replaces the browser automation with a canned outcome.
func stubTask(result *jobs.Result, err error, transitions ...stepEvent) func(automation.Payload) jobs.Task {
	return func(automation.Payload) jobs.Task {
		return func(ctx context.Context, report jobs.StepReporter) (*jobs.Result, error) {
			for _, tr := range transitions {
				report(tr.StepID, tr.State)
			}
			return result, err
		}
	}
}

func validBody() string {
	return `{"username":"rdoe","password":"x","start_date":"01/01/2026","end_date":"01/31/2026"}`
}

func postRun(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handleRun(w, req)
	return w
}

func awaitDone(t *testing.T, s *Server, id uuid.UUID) jobs.Record {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, ok := s.store.Get(id)
		return ok && rec.Done
	}, time.Second, 5*time.Millisecond)
	rec, _ := s.store.Get(id)
	return rec
}

func TestHandleRun_InvalidJSON(t *testing.T) {
	s := setupTestServer(t)

	w := postRun(s, "not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRun_SchemaViolation(t *testing.T) {
	s := setupTestServer(t)

	w := postRun(s, `{"username":42}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["errors"])
}

func TestHandleRun_ValidationFailure(t *testing.T) {
	s := setupTestServer(t)

	w := postRun(s, `{"username":"rdoe","start_date":"bad","end_date":"01/31/2026"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["errors"], "Password is required.")
	assert.Contains(t, resp["errors"], "Start date must be in MM/DD/YYYY format.")
}

func TestHandleRun_StartsJob(t *testing.T) {
	s := setupTestServer(t)
	s.newTask = stubTask(&jobs.Result{FileName: "r.xls", FilePath: "/tmp/r.xls"}, nil,
		stepEvent{1, jobs.StepActive}, stepEvent{1, jobs.StepDone})

	w := postRun(s, validBody())
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id, err := uuid.Parse(resp.JobID)
	require.NoError(t, err)

	rec := awaitDone(t, s, id)
	assert.True(t, rec.ResultReady)
}

func getStatus(s *Server, id string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/status/"+id, nil)
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	s.handleStatus(w, req)
	return w
}

func TestHandleStatus_UnknownJob(t *testing.T) {
	s := setupTestServer(t)

	w := getStatus(s, uuid.New().String())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleStatus_InvalidID(t *testing.T) {
	s := setupTestServer(t)

	w := getStatus(s, "not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleStatus_ReturnsSnapshot(t *testing.T) {
	s := setupTestServer(t)
	s.newTask = stubTask(nil, testError("network error"),
		stepEvent{1, jobs.StepDone}, stepEvent{2, jobs.StepActive})

	w := postRun(s, validBody())
	var resp RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id := uuid.MustParse(resp.JobID)
	awaitDone(t, s, id)

	sw := getStatus(s, resp.JobID)
	require.Equal(t, http.StatusOK, sw.Code)

	var rec jobs.Record
	require.NoError(t, json.Unmarshal(sw.Body.Bytes(), &rec))
	assert.True(t, rec.Done)
	assert.False(t, rec.ResultReady)
	assert.Equal(t, "Report retrieval failed: network error", rec.Error)
	require.Len(t, rec.Steps, steps.Count())
	assert.Equal(t, jobs.StepDone, rec.Steps[0].State)
	assert.Equal(t, jobs.StepError, rec.Steps[1].State)
}

func getDownload(s *Server, id string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/download/"+id, nil)
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	s.handleDownload(w, req)
	return w
}

func TestHandleDownload_UnknownJob(t *testing.T) {
	s := setupTestServer(t)

	w := getDownload(s, uuid.New().String())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleDownload_NotReady(t *testing.T) {
	s := setupTestServer(t)

	// A record that never progresses: job created directly in the store.
	id := s.store.Create()

	w := getDownload(s, id.String())
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleDownload_FailedJob(t *testing.T) {
	s := setupTestServer(t)
	s.newTask = stubTask(nil, testError("boom"))

	w := postRun(s, validBody())
	var resp RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id := uuid.MustParse(resp.JobID)
	awaitDone(t, s, id)

	dw := getDownload(s, resp.JobID)
	assert.Equal(t, http.StatusGone, dw.Code)
}

func TestHandleDownload_MissingFile(t *testing.T) {
	s := setupTestServer(t)
	s.newTask = stubTask(&jobs.Result{FileName: "r.xls", FilePath: "/nonexistent/r.xls"}, nil)

	w := postRun(s, validBody())
	var resp RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id := uuid.MustParse(resp.JobID)
	awaitDone(t, s, id)

	dw := getDownload(s, resp.JobID)
	assert.Equal(t, http.StatusNotFound, dw.Code)
}

func TestHandleDownload_ServesFile(t *testing.T) {
	s := setupTestServer(t)

	path := filepath.Join(t.TempDir(), "report.xls")
	require.NoError(t, os.WriteFile(path, []byte("xls-bytes"), 0o644))
	s.newTask = stubTask(&jobs.Result{FileName: "report.xls", FilePath: path}, nil)

	w := postRun(s, validBody())
	var resp RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id := uuid.MustParse(resp.JobID)
	awaitDone(t, s, id)

	dw := getDownload(s, resp.JobID)
	require.Equal(t, http.StatusOK, dw.Code)
	assert.Equal(t, "xls-bytes", dw.Body.String())
	assert.Contains(t, dw.Header().Get("Content-Disposition"), "report.xls")
}

func TestHandleSteps(t *testing.T) {
	s := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/steps", nil)
	w := httptest.NewRecorder()
	s.handleSteps(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var defs []steps.Definition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &defs))
	assert.Len(t, defs, steps.Count())
}

func TestHandleHealth(t *testing.T) {
	s := setupTestServer(t)

	w := httptest.NewRecorder()
	s.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

// testError builds a plain error without pulling in another import.
type testError string

func (e testError) Error() string { return string(e) }
