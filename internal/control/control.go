package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Control socket operations.
const (
	OpStatus  = "status"
	OpHealth  = "health"
	OpAnalyze = "analyze"
	OpReload  = "reload"
)

// Job states reported by the daemon.
const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

type Request struct {
	Op    string `json:"op"`
	ID    string `json:"id,omitempty"`
	Force bool   `json:"force,omitempty"`
}

type Status struct {
	Running    bool        `json:"running"`
	UptimeSec  float64     `json:"uptime_sec"`
	QueueDepth int         `json:"queue_depth"`
	Jobs       []JobStatus `json:"jobs"`
}

type JobStatus struct {
	JobID       string    `json:"job_id"`
	RecordingID string    `json:"recording_id"`
	State       string    `json:"state"`
	Emotion     string    `json:"emotion,omitempty"`
	Error       string    `json:"error,omitempty"`
	Updated     time.Time `json:"updated"`
}

type SimpleResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// AnalyzeResponse answers an analyze request. JobID is empty when nothing
// was queued.
type AnalyzeResponse struct {
	OK      bool   `json:"ok"`
	JobID   string `json:"job_id,omitempty"`
	Message string `json:"message"`
}

// Call sends one request line to the daemon socket and decodes one response.
func Call(ctx context.Context, socketPath string, req Request, resp any) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return err
	}
	if err := json.NewDecoder(conn).Decode(resp); err != nil {
		return fmt.Errorf("read daemon response: %w", err)
	}
	return nil
}
