package run

import (
	"context"
	"errors"
	"time"

	"speechinsight/internal/recording"
)

// scanLoop queues recordings that have no emotion summary yet. Each
// recording is queued automatically at most once per daemon run; failed
// ones are retried with an explicit analyze request.
func (s *Server) scanLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	seen := map[string]struct{}{}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.scanOnce(ctx, seen)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) scanOnce(ctx context.Context, seen map[string]struct{}) int {
	recs, err := s.store.List(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warnf("scan: %v", err)
		}
		return 0
	}
	recording.SortNewestFirst(recs)
	queued := 0
	// Oldest first so the backlog drains in recording order.
	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		if rec.Analyzed() {
			continue
		}
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		_, err := s.queue.push(rec.ID, false)
		if errors.Is(err, errQueueFull) {
			s.logger.Debug("scan: queue full, will retry next tick")
			break
		}
		seen[rec.ID] = struct{}{}
		if err == nil {
			queued++
		}
	}
	if queued > 0 {
		s.logger.Infof("scan: queued %d unanalyzed recordings", queued)
	}
	return queued
}
