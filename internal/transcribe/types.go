// Package transcribe turns recorded audio into text, either through a remote
// upload/submit/poll API or a local whisper.cpp model.
package transcribe

import (
	"context"
	"errors"
	"fmt"
)

// DefaultFailureMessage is used when a failed job carries no message.
const DefaultFailureMessage = "Transcription failed. Please try again."

// Transcriber converts the audio file at path into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Status is the lifecycle state of a remote transcription job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusError      Status = "error"
)

// Terminal reports whether polling should stop.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusError:
		return true
	}
	return false
}

// Job is the status payload returned for a transcription.
type Job struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

var (
	// ErrPollExhausted means the job never reached a terminal state.
	ErrPollExhausted = errors.New("transcription did not finish in time")
	ErrNoAPIKey      = errors.New("transcription api key not set")
)

// APIError is a non-2xx answer from the transcription API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("transcription api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("transcription api: status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the same request could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// JobFailedError is a job that ended in failed or error.
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	return e.Message
}
