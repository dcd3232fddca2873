package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonathan/report-retriever/internal/jobs"
)

// SSEWriter helps write Server-Sent Events. Writes are serialized because
// step events arrive from the job's worker goroutine.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event.
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends an error event.
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent("error", map[string]string{"error": message}) //nolint:errcheck
}

// WriteComplete sends a completion event.
func (s *SSEWriter) WriteComplete(jobID string, result *jobs.Result) {
	data := map[string]string{"job_id": jobID, "status": "completed"}
	if result != nil {
		data["file_name"] = result.FileName
	}
	s.WriteEvent("complete", data) //nolint:errcheck
}

// stepEvent is the payload of a streamed step transition.
type stepEvent struct {
	StepID int            `json:"step_id"`
	State  jobs.StepState `json:"state"`
}

// handleRunStream starts a job and streams its step transitions via SSE
// until the job terminates or the client goes away.
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRunRequest(w, r)
	if !ok {
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	task := s.newTask(payloadFrom(req))
	id := s.runner.StartObserved(task, func(stepID int, state jobs.StepState) {
		if err := sse.WriteEvent("step", stepEvent{StepID: stepID, State: state}); err != nil {
			// The client disconnected; the job keeps running and stays
			// observable through /status/{id}.
			return
		}
	})

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			rec, found := s.store.Get(id)
			if !found {
				sse.WriteError("Job not found")
				return
			}
			if !rec.Done {
				continue
			}
			if rec.Error != "" {
				sse.WriteError(rec.Error)
			} else {
				sse.WriteComplete(id.String(), rec.Result)
			}
			return
		}
	}
}
