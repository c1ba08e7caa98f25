package run

import (
	"errors"
	"testing"

	"speechinsight/internal/control"
)

func TestJobQueueDedupesAndBounds(t *testing.T) {
	q := newJobQueue(1, 10)
	id, err := q.push("recording-1", false)
	if err != nil || id == "" {
		t.Fatalf("push: %q %v", id, err)
	}
	again, err := q.push("recording-1", true)
	if !errors.Is(err, errAlreadyQueued) || again != id {
		t.Fatalf("dedupe: %q %v", again, err)
	}
	if _, err := q.push("recording-2", false); !errors.Is(err, errQueueFull) {
		t.Fatalf("expected full, got %v", err)
	}
	j := <-q.ch
	q.start(j)
	if s := q.snapshot(); s[0].State != control.JobRunning {
		t.Fatalf("state=%s", s[0].State)
	}
	q.finish(j, "Joy", nil)
	if s := q.snapshot(); s[0].State != control.JobDone || s[0].Emotion != "Joy" {
		t.Fatalf("snapshot=%+v", s)
	}
	if _, err := q.push("recording-1", false); err != nil {
		t.Fatalf("finished recording should be queueable: %v", err)
	}
}

func TestJobQueueKeepsRecent(t *testing.T) {
	q := newJobQueue(8, 2)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := q.push(id, false); err != nil {
			t.Fatalf("push %s: %v", id, err)
		}
	}
	s := q.snapshot()
	if len(s) != 2 || s[0].RecordingID != "b" || s[1].RecordingID != "c" {
		t.Fatalf("snapshot=%+v", s)
	}
	if q.depth() != 3 {
		t.Fatalf("depth=%d", q.depth())
	}
}
