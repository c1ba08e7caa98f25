package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// RetryPolicy lists the waits between attempts for each retryable failure
// class. The number of attempts is one more than the longer list.
type RetryPolicy struct {
	RateLimitWaits   []time.Duration
	ServerErrorWaits []time.Duration
}

// DefaultRetryPolicy waits past a typical per-minute quota window on 429s.
var DefaultRetryPolicy = RetryPolicy{
	RateLimitWaits:   []time.Duration{65 * time.Second, 100 * time.Second},
	ServerErrorWaits: []time.Duration{5 * time.Second, 30 * time.Second},
}

func (p RetryPolicy) attempts() int {
	n := len(p.RateLimitWaits)
	if len(p.ServerErrorWaits) > n {
		n = len(p.ServerErrorWaits)
	}
	return n + 1
}

// callWithRetry runs fn until it succeeds, fails with a non-retryable error,
// or the policy runs out. Waits end early when ctx is cancelled.
func callWithRetry(ctx context.Context, p RetryPolicy, logger *logrus.Logger, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	total := p.attempts()
	for attempt := 0; attempt < total; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		var waits []time.Duration
		switch {
		case isRateLimitError(err):
			waits = p.RateLimitWaits
		case isServerError(err):
			waits = p.ServerErrorWaits
		default:
			return "", err
		}
		if attempt >= len(waits) {
			return "", err
		}
		if logger != nil {
			logger.Warnf("analysis attempt %d failed, retrying in %s: %v", attempt+1, waits[attempt], err)
		}
		t := time.NewTimer(waits[attempt])
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return "", fmt.Errorf("failed after %d attempts: %w", total, lastErr)
}

var (
	rateLimitRE   = regexp.MustCompile(`(?i)\b(?:status|error|code)[: =]*429\b|\brate[ _-]?limit|\btoo many requests\b`)
	serverErrorRE = regexp.MustCompile(`(?i)\b(?:status|error|code)[: =]*5\d\d\b|\binternal server error\b|\bservice unavailable\b|\bserver_error\b|^5\d\d\b`)
)

// statusCode extracts the HTTP status from SDK errors, or 0.
func statusCode(err error) int {
	var oe *openai.Error
	if errors.As(err, &oe) {
		return oe.StatusCode
	}
	var ge genai.APIError
	if errors.As(err, &ge) {
		return ge.Code
	}
	var gp *genai.APIError
	if errors.As(err, &gp) && gp != nil {
		return gp.Code
	}
	return 0
}

// The text checks only look at whole status tokens; SDK errors are
// classified by their status code alone.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if code := statusCode(err); code != 0 {
		return code == http.StatusTooManyRequests
	}
	msg := err.Error()
	return strings.Contains(msg, "RESOURCE_EXHAUSTED") || rateLimitRE.MatchString(msg)
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	if code := statusCode(err); code != 0 {
		return code >= 500
	}
	msg := err.Error()
	return strings.Contains(msg, "UNAVAILABLE") || serverErrorRE.MatchString(msg)
}
