package run

import (
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
)

type metrics struct {
	analyzed atomic.Int64
	failed   atomic.Int64
	fallback atomic.Int64
	dropped  atomic.Int64
	sent     atomic.Int64
	skipped  atomic.Int64
	hookErrs atomic.Int64
}

func (m *metrics) incAnalyzed() { m.analyzed.Add(1) }
func (m *metrics) incFailed()   { m.failed.Add(1) }
func (m *metrics) incFallback() { m.fallback.Add(1) }
func (m *metrics) incDropped()  { m.dropped.Add(1) }
func (m *metrics) incSent()     { m.sent.Add(1) }
func (m *metrics) incSkipped()  { m.skipped.Add(1) }
func (m *metrics) incHookErr()  { m.hookErrs.Add(1) }

func (s *Server) writeMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "speechinsight_analyses_total %d\n", s.metrics.analyzed.Load())
	fmt.Fprintf(w, "speechinsight_analyses_failed_total %d\n", s.metrics.failed.Load())
	fmt.Fprintf(w, "speechinsight_analyses_fallback_total %d\n", s.metrics.fallback.Load())
	fmt.Fprintf(w, "speechinsight_queue_dropped_total %d\n", s.metrics.dropped.Load())
	fmt.Fprintf(w, "speechinsight_queue_depth %d\n", s.queue.depth())
	fmt.Fprintf(w, "speechinsight_hooks_sent_total %d\n", s.metrics.sent.Load())
	fmt.Fprintf(w, "speechinsight_hooks_skipped_total %d\n", s.metrics.skipped.Load())
	fmt.Fprintf(w, "speechinsight_hooks_failed_total %d\n", s.metrics.hookErrs.Load())
}

func (s *Server) metricsServe(ctxDone <-chan struct{}, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.writeMetrics)
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		<-ctxDone
		_ = server.Close()
	}()
	s.logger.Infof("metrics listening on http://%s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warnf("metrics server: %v", err)
	}
}
