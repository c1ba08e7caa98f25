// Package logging configures the process logger: a rotated log file, plus an
// optional console echo for interactive commands.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"speechinsight/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Option adjusts Configure.
type Option func(*logrus.Logger)

// WithConsole echoes entries at min or more severe to w, in plain text,
// regardless of the file formatter.
func WithConsole(w io.Writer, min logrus.Level) Option {
	return func(l *logrus.Logger) {
		l.AddHook(&consoleHook{w: w, min: min, fmt: &logrus.TextFormatter{DisableTimestamp: true}})
	}
}

// Configure logs to cfg.Paths.LogPath through lumberjack, in text or JSON.
func Configure(cfg *config.Config, opts ...Option) (*logrus.Logger, error) {
	if err := config.MustStatePaths(cfg); err != nil {
		return nil, err
	}
	logger := logrus.New()
	switch strings.ToLower(cfg.Logging.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", cfg.Logging.Format)
	}
	level := logrus.InfoLevel
	if s := strings.TrimSpace(cfg.Logging.Level); s != "" {
		lvl, err := logrus.ParseLevel(strings.ToLower(s))
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = lvl
	}
	logger.SetLevel(level)

	rotator := &lumberjack.Logger{
		Filename:   cfg.Paths.LogPath,
		MaxSize:    20, // megabytes
		MaxBackups: 3,
		MaxAge:     30,
	}
	if cfg.Logging.Stdout {
		logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	} else {
		logger.SetOutput(rotator)
	}
	for _, opt := range opts {
		opt(logger)
	}
	return logger, nil
}

type consoleHook struct {
	w   io.Writer
	min logrus.Level
	fmt logrus.Formatter
}

func (h *consoleHook) Levels() []logrus.Level {
	var out []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= h.min {
			out = append(out, l)
		}
	}
	return out
}

func (h *consoleHook) Fire(e *logrus.Entry) error {
	b, err := h.fmt.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(b)
	return err
}

// NewTestLogger returns a logger that discards output.
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	return logger
}
