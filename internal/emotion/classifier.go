package emotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPClassifier calls a sentence classification service:
// POST <base>/analyze {"sentence": ...} -> {"emotion": ...}.
type HTTPClassifier struct {
	client *resty.Client
}

type classifyRequest struct {
	Sentence string `json:"sentence"`
}

type classifyResponse struct {
	Emotion string `json:"emotion"`
}

func NewHTTPClassifier(baseURL string, timeout time.Duration) *HTTPClassifier {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &HTTPClassifier{client: c}
}

func (c *HTTPClassifier) Classify(ctx context.Context, sentence string) (string, error) {
	var out classifyResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(classifyRequest{Sentence: sentence}).
		SetResult(&out).
		Post("/analyze")
	if err != nil {
		return "", fmt.Errorf("classifier request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("classifier: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if strings.TrimSpace(out.Emotion) == "" {
		return "", errors.New("classifier: empty emotion")
	}
	return out.Emotion, nil
}

// Ping checks that the classifier answers at all. Any HTTP response counts.
func (c *HTTPClassifier) Ping(ctx context.Context) error {
	_, err := c.client.R().SetContext(ctx).Get("/")
	return err
}
