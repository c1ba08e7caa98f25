package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"

	"speechinsight/internal/config"

	"github.com/sirupsen/logrus"
)

// Remote uploads audio, submits a job and polls it to completion.
type Remote struct {
	client *Client
	poller *Poller
	apiKey string
	logger *logrus.Logger
}

// NewRemote builds a Remote from the transcription section of cfg.
func NewRemote(cfg *config.Config, logger *logrus.Logger) *Remote {
	c := NewClient(cfg.Transcription.BaseURL, cfg.Transcription.APIKey)
	p := NewPoller(c, logger)
	p.Interval = cfg.PollInterval()
	p.MaxAttempts = cfg.Transcription.PollMaxAttempts
	p.Backoff = cfg.Transcription.PollBackoff
	p.MaxInterval = cfg.MaxPollInterval()
	return &Remote{client: c, poller: p, apiKey: cfg.Transcription.APIKey, logger: logger}
}

func (r *Remote) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if strings.TrimSpace(r.apiKey) == "" {
		return "", ErrNoAPIKey
	}
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer func() { _ = f.Close() }()

	uploadURL, err := r.client.Upload(ctx, f)
	if err != nil {
		return "", err
	}
	jobID, err := r.client.Submit(ctx, uploadURL)
	if err != nil {
		return "", err
	}
	if r.logger != nil {
		r.logger.Infof("transcription job %s submitted", jobID)
	}
	job, err := r.poller.Wait(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Status != StatusCompleted {
		msg := strings.TrimSpace(job.Error)
		if msg == "" {
			msg = DefaultFailureMessage
		}
		return "", &JobFailedError{JobID: jobID, Message: msg}
	}
	return strings.TrimSpace(job.Text), nil
}

// New returns the transcriber selected by cfg.Transcription.Provider.
func New(cfg *config.Config, logger *logrus.Logger) (Transcriber, error) {
	switch cfg.Transcription.Provider {
	case "", "assemblyai":
		return NewRemote(cfg, logger), nil
	case "whisper":
		return NewLocal(cfg, logger)
	}
	return nil, fmt.Errorf("unknown transcription provider %q", cfg.Transcription.Provider)
}
