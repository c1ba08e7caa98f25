package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultPollAttempts    = 120
	DefaultMaxPollInterval = 30 * time.Second
)

// StatusSource is the part of Client the poller needs.
type StatusSource interface {
	Status(ctx context.Context, jobID string) (Job, error)
}

// Poller waits for a job to reach a terminal state. The delay between polls
// starts at Interval and is multiplied by Backoff after every poll, capped at
// MaxInterval.
type Poller struct {
	Source      StatusSource
	Interval    time.Duration
	MaxAttempts int
	Backoff     float64
	MaxInterval time.Duration
	Logger      *logrus.Logger
}

func NewPoller(src StatusSource, logger *logrus.Logger) *Poller {
	return &Poller{
		Source:      src,
		Interval:    DefaultPollInterval,
		MaxAttempts: DefaultPollAttempts,
		Backoff:     1,
		MaxInterval: DefaultMaxPollInterval,
		Logger:      logger,
	}
}

// Wait polls jobID until it is terminal. Temporary API errors use up a poll
// attempt and are retried; any other error is returned. Cancelling ctx
// returns ctx.Err() immediately and no further poll is issued.
func (p *Poller) Wait(ctx context.Context, jobID string) (Job, error) {
	logger := p.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}
	delay := p.Interval
	if delay <= 0 {
		delay = DefaultPollInterval
	}

	timer := time.NewTimer(delay)
	timer.Stop()
	defer timer.Stop()

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}
		job, err := p.Source.Status(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || !apiErr.Temporary() || attempt == attempts {
				return Job{}, err
			}
			logger.Warnf("transcription %s: status poll %d/%d failed, retrying: %v", jobID, attempt, attempts, err)
		} else {
			logger.Debugf("transcription %s: %s (poll %d/%d)", jobID, job.Status, attempt, attempts)
			if job.Status.Terminal() {
				return job, nil
			}
			if attempt == attempts {
				break
			}
		}

		timer.Reset(delay)
		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-timer.C:
		}
		delay = p.next(delay)
	}
	return Job{}, fmt.Errorf("%w: job %s after %d polls", ErrPollExhausted, jobID, attempts)
}

func (p *Poller) next(d time.Duration) time.Duration {
	if p.Backoff <= 1 {
		return d
	}
	n := time.Duration(float64(d) * p.Backoff)
	if p.MaxInterval > 0 && n > p.MaxInterval {
		return p.MaxInterval
	}
	return n
}
