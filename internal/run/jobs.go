package run

import (
	"errors"
	"sync"
	"time"

	"speechinsight/internal/control"

	"github.com/google/uuid"
)

var (
	errQueueFull     = errors.New("analysis queue full")
	errAlreadyQueued = errors.New("recording already queued")
)

type job struct {
	id          string
	recordingID string
	force       bool
}

// jobQueue is a bounded FIFO of analysis jobs. A recording has at most one
// queued or running job at a time. The last keep job states are retained for
// status replies.
type jobQueue struct {
	ch     chan job
	mu     sync.Mutex
	active map[string]string // recording id -> job id
	recent []control.JobStatus
	keep   int
	now    func() time.Time
}

func newJobQueue(size, keep int) *jobQueue {
	return &jobQueue{
		ch:     make(chan job, max(1, size)),
		active: map[string]string{},
		keep:   max(1, keep),
		now:    time.Now,
	}
}

// push queues recordingID and returns the new job id. When the recording is
// already in flight the existing job id is returned with errAlreadyQueued.
func (q *jobQueue) push(recordingID string, force bool) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if id, ok := q.active[recordingID]; ok {
		return id, errAlreadyQueued
	}
	j := job{id: uuid.NewString(), recordingID: recordingID, force: force}
	select {
	case q.ch <- j:
	default:
		return "", errQueueFull
	}
	q.active[recordingID] = j.id
	q.record(control.JobStatus{JobID: j.id, RecordingID: recordingID, State: control.JobQueued})
	return j.id, nil
}

func (q *jobQueue) start(j job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.record(control.JobStatus{JobID: j.id, RecordingID: j.recordingID, State: control.JobRunning})
}

func (q *jobQueue) finish(j job, emotion string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.active, j.recordingID)
	st := control.JobStatus{JobID: j.id, RecordingID: j.recordingID, State: control.JobDone, Emotion: emotion}
	if err != nil {
		st.State = control.JobFailed
		st.Error = err.Error()
	}
	q.record(st)
}

// record replaces the entry for st.JobID or appends it. Caller holds mu.
func (q *jobQueue) record(st control.JobStatus) {
	st.Updated = q.now()
	for i := range q.recent {
		if q.recent[i].JobID == st.JobID {
			q.recent[i] = st
			return
		}
	}
	q.recent = append(q.recent, st)
	if len(q.recent) > q.keep {
		q.recent = q.recent[len(q.recent)-q.keep:]
	}
}

func (q *jobQueue) snapshot() []control.JobStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]control.JobStatus, len(q.recent))
	copy(out, q.recent)
	return out
}

func (q *jobQueue) depth() int { return len(q.ch) }
