// Package server provides the HTTP REST API for the report retriever.
package server

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrJobNotFound indicates the job id is unknown.
type ErrJobNotFound struct {
	JobID uuid.UUID
}

func (e *ErrJobNotFound) Error() string {
	return fmt.Sprintf("job not found: %s", e.JobID)
}

// ErrResultNotReady indicates the job has not produced its report yet.
type ErrResultNotReady struct {
	JobID uuid.UUID
}

func (e *ErrResultNotReady) Error() string {
	return fmt.Sprintf("report not ready for job %s", e.JobID)
}

// ErrJobFailed indicates the job terminated with an error and produced no report.
type ErrJobFailed struct {
	JobID uuid.UUID
}

func (e *ErrJobFailed) Error() string {
	return fmt.Sprintf("job %s failed; no report was produced", e.JobID)
}

// ErrFileMissing indicates the report was produced but its file is gone.
type ErrFileMissing struct {
	Path string
}

func (e *ErrFileMissing) Error() string {
	return fmt.Sprintf("downloaded file is missing: %s", e.Path)
}

// HTTPStatus returns the appropriate HTTP status code for an error.
func HTTPStatus(err error) int {
	switch err.(type) {
	case *ErrJobNotFound, *ErrFileMissing:
		return http.StatusNotFound
	case *ErrResultNotReady:
		return http.StatusConflict
	case *ErrJobFailed:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
