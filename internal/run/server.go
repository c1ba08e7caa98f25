package run

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"speechinsight/internal/config"
	"speechinsight/internal/control"
	"speechinsight/internal/hook"
	"speechinsight/internal/pipeline"
	"speechinsight/internal/recording"

	"github.com/sirupsen/logrus"
)

// Processor analyzes one stored recording.
type Processor interface {
	Process(ctx context.Context, id string, opts pipeline.Options) (pipeline.Result, error)
}

// Builder constructs the processor for cfg. It runs at startup and on reload.
type Builder func(ctx context.Context, cfg *config.Config, logger *logrus.Logger, store *recording.Store) (Processor, error)

func buildPipeline(ctx context.Context, cfg *config.Config, logger *logrus.Logger, store *recording.Store) (Processor, error) {
	return pipeline.FromConfig(ctx, cfg, logger, store)
}

// Server owns the analysis queue, hook dispatch, metrics, and the control
// socket.
type Server struct {
	logger    *logrus.Logger
	store     *recording.Store
	build     Builder
	startedAt time.Time

	mu   sync.RWMutex
	cfg  *config.Config
	proc Processor
	hook *hook.Runner

	queue   *jobQueue
	hookCh  chan hookTask
	metrics metrics

	wg sync.WaitGroup
}

// NewServer builds the processor and hook runner for cfg. A nil build uses
// the configured providers.
func NewServer(ctx context.Context, cfg *config.Config, logger *logrus.Logger, store *recording.Store, build Builder) (*Server, error) {
	if build == nil {
		build = buildPipeline
	}
	proc, err := build(ctx, cfg, logger, store)
	if err != nil {
		return nil, err
	}
	return &Server{
		logger:    logger,
		store:     store,
		build:     build,
		startedAt: time.Now(),
		cfg:       cfg,
		proc:      proc,
		hook:      hook.NewRunner(cfg, logger),
		queue:     newJobQueue(cfg.Daemon.QueueSize, max(cfg.UI.StatusTail, 1)),
		hookCh:    make(chan hookTask, max(1, cfg.Daemon.QueueSize)),
	}, nil
}

// Serve runs the daemon until interrupted. SIGHUP reloads the config file.
func Serve(cfg *config.Config, logger *logrus.Logger) error {
	if err := config.MustStatePaths(cfg); err != nil {
		return err
	}
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(cfg.Paths.PidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("remove pid file: %v", err)
		}
	}()
	if err := os.Remove(cfg.Paths.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Debugf("remove stale socket: %v", err)
	}

	store, err := recording.Open(cfg.Storage.AudioDir, cfg.Storage.MetadataDir, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := NewServer(ctx, cfg, logger, store, nil)
	if err != nil {
		return err
	}
	ln, err := net.Listen("unix", cfg.Paths.SocketPath)
	if err != nil {
		return fmt.Errorf("control listen: %w", err)
	}
	srv.Start(ctx, ln)
	logger.Infof("daemon started (pid %d, socket %s)", os.Getpid(), cfg.Paths.SocketPath)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	for {
		s := <-sigCh
		if s == syscall.SIGHUP {
			if msg, err := srv.reload(ctx); err != nil {
				logger.Errorf("reload: %v", err)
			} else {
				logger.Info(msg)
			}
			continue
		}
		logger.Infof("received signal %s, shutting down", s)
		cancel()
		break
	}
	srv.Wait()
	return nil
}

// Start launches the control loop, workers, and optional scanner and
// metrics endpoint. They stop when ctx is canceled.
func (s *Server) Start(ctx context.Context, ln net.Listener) {
	cfg := s.config()
	go s.controlLoop(ctx, ln)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.worker(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.hookWorker(ctx)
	}()

	if cfg.Daemon.AutoAnalyze {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.scanLoop(ctx, cfg.ScanInterval())
		}()
	}
	if cfg.Metrics.Enabled {
		go s.metricsServe(ctx.Done(), cfg.Metrics.Addr)
	}
}

// Wait blocks until the workers have exited.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Server) components() (Processor, *hook.Runner, *config.Config) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.proc, s.hook, s.cfg
}

// reload re-reads the config file and swaps in a new processor and hook
// runner. Paths and storage directories stay as they were at startup.
func (s *Server) reload(ctx context.Context) (string, error) {
	cur := s.config()
	next, err := config.Load(cur.Paths.ConfigPath)
	if err != nil {
		return "", err
	}
	next.Paths = cur.Paths
	next.Storage = cur.Storage
	proc, err := s.build(ctx, next, s.logger, s.store)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.cfg = next
	s.proc = proc
	s.hook = hook.NewRunner(next, s.logger)
	s.mu.Unlock()
	return fmt.Sprintf("reloaded %s (%d hooks, analysis=%s)", next.Paths.ConfigPath, len(next.Hooks), next.Analysis.Provider), nil
}

// enqueue validates id and queues it for analysis.
func (s *Server) enqueue(id string, force bool) control.AnalyzeResponse {
	if id == "" {
		return control.AnalyzeResponse{Message: "missing recording id"}
	}
	rec, ok := s.store.GetByID(id)
	if !ok {
		return control.AnalyzeResponse{Message: fmt.Sprintf("recording not found: %s", id)}
	}
	jobID, err := s.queue.push(rec.ID, force)
	switch {
	case errors.Is(err, errAlreadyQueued):
		return control.AnalyzeResponse{OK: true, JobID: jobID, Message: "already queued"}
	case errors.Is(err, errQueueFull):
		s.metrics.incDropped()
		s.logger.Warnf("analysis queue full, dropping %s", rec.ID)
		return control.AnalyzeResponse{Message: err.Error()}
	case err != nil:
		return control.AnalyzeResponse{Message: err.Error()}
	}
	s.logger.Infof("queued %s as job %s", rec.ID, jobID)
	return control.AnalyzeResponse{OK: true, JobID: jobID, Message: "queued"}
}

func (s *Server) status() control.Status {
	return control.Status{
		Running:    true,
		UptimeSec:  time.Since(s.startedAt).Seconds(),
		QueueDepth: s.queue.depth(),
		Jobs:       s.queue.snapshot(),
	}
}

func (s *Server) controlLoop(ctx context.Context, ln net.Listener) {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Errorf("control accept: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil && ctx.Err() == nil {
			s.logger.Warnf("control connection close: %v", err)
		}
	}()
	sc := bufio.NewScanner(conn)
	if !sc.Scan() {
		return
	}
	var req control.Request
	if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
		_ = json.NewEncoder(conn).Encode(control.SimpleResponse{Message: "bad request"})
		return
	}
	var resp any
	switch req.Op {
	case control.OpStatus:
		resp = s.status()
	case control.OpHealth:
		resp = control.SimpleResponse{OK: true, Message: "ok"}
	case control.OpAnalyze:
		resp = s.enqueue(req.ID, req.Force)
	case control.OpReload:
		msg, err := s.reload(ctx)
		if err != nil {
			resp = control.SimpleResponse{Message: err.Error()}
		} else {
			s.logger.Info(msg)
			resp = control.SimpleResponse{OK: true, Message: msg}
		}
	default:
		resp = control.SimpleResponse{Message: fmt.Sprintf("unknown op %q", req.Op)}
	}
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Debugf("control write: %v", err)
	}
}
