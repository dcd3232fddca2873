package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/jonathan/report-retriever/internal/automation"
	"github.com/jonathan/report-retriever/internal/schemas"
	"github.com/jonathan/report-retriever/internal/steps"
	"github.com/jonathan/report-retriever/internal/validation"
)

// RunResponse represents the response for /run.
type RunResponse struct {
	JobID string `json:"job_id"`
}

// decodeRunRequest reads, schema-checks and decodes a run request body. On
// failure it writes the error response and returns false.
func (s *Server) decodeRunRequest(w http.ResponseWriter, r *http.Request) (validation.RunRequest, bool) {
	var req validation.RunRequest

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Failed to read request body")
		return req, false
	}

	// Structural check first so type errors surface with field paths.
	if err := schemas.ValidateRunRequest(body); err != nil {
		var ve *schemas.ValidationError
		if errors.As(err, &ve) {
			s.errorsResponse(w, http.StatusBadRequest, ve.Reasons())
		} else {
			s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		}
		return req, false
	}

	if err := json.Unmarshal(body, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return req, false
	}

	req.Normalize()
	if reasons := req.Validate(); len(reasons) > 0 {
		s.errorsResponse(w, http.StatusBadRequest, reasons)
		return req, false
	}
	return req, true
}

// handleRun validates the payload, starts a job and returns its id. The job
// executes asynchronously; progress is observed via /status/{id}.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRunRequest(w, r)
	if !ok {
		return
	}

	id := s.runner.Start(s.newTask(payloadFrom(req)))
	s.jsonResponse(w, http.StatusAccepted, RunResponse{JobID: id.String()})
}

// handleStatus returns the current job record snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	rec, found := s.store.Get(id)
	if !found {
		err := &ErrJobNotFound{JobID: id}
		s.errorResponse(w, HTTPStatus(err), "Job not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, rec)
}

// handleDownload serves the finished report file. Not-found, not-ready,
// failed and missing-file conditions are all distinct.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	rec, found := s.store.Get(id)
	if !found {
		err := &ErrJobNotFound{JobID: id}
		s.errorResponse(w, HTTPStatus(err), "Job not found")
		return
	}
	if rec.Error != "" {
		err := &ErrJobFailed{JobID: id}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if !rec.ResultReady || rec.Result == nil {
		err := &ErrResultNotReady{JobID: id}
		s.errorResponse(w, HTTPStatus(err), "File is not ready")
		return
	}

	if _, statErr := os.Stat(rec.Result.FilePath); statErr != nil {
		err := &ErrFileMissing{Path: rec.Result.FilePath}
		s.errorResponse(w, HTTPStatus(err), "Downloaded file is missing")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+rec.Result.FileName+`"`)
	http.ServeFile(w, r, rec.Result.FilePath)
}

// handleSteps returns the step catalog so clients can render the progress
// list before starting a job.
func (s *Server) handleSteps(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, steps.Catalog())
}

// payloadFrom converts a validated request into the automation payload.
func payloadFrom(req validation.RunRequest) automation.Payload {
	return automation.Payload{
		Username:  req.Username,
		Password:  req.Password,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Debug:     req.Debug,
	}
}

// parseJobID extracts and parses the {id} path value.
func (s *Server) parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := r.PathValue("id")
	if idStr == "" {
		s.errorResponse(w, http.StatusBadRequest, "Job ID is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID format")
		return uuid.Nil, false
	}
	return id, true
}
