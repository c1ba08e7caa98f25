package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Client talks to an AssemblyAI-compatible v2 API.
type Client struct {
	http *resty.Client
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type submitRequest struct {
	AudioURL string `json:"audio_url"`
}

func NewClient(baseURL, apiKey string) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("authorization", apiKey)
	return &Client{http: c}
}

// Upload streams raw audio bytes and returns the URL the API stored them at.
func (c *Client) Upload(ctx context.Context, audio io.Reader) (string, error) {
	var out uploadResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(audio).
		SetResult(&out).
		Post("/upload")
	if err := checkResponse(resp, err); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	if out.UploadURL == "" {
		return "", errors.New("upload: response has no upload_url")
	}
	return out.UploadURL, nil
}

// Submit starts a transcription job for a previously uploaded file.
func (c *Client) Submit(ctx context.Context, uploadURL string) (string, error) {
	var out Job
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(submitRequest{AudioURL: uploadURL}).
		SetResult(&out).
		Post("/transcript")
	if err := checkResponse(resp, err); err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("submit: response has no id")
	}
	return out.ID, nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (Job, error) {
	var out Job
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetResult(&out).
		Get("/transcript/{id}")
	if err := checkResponse(resp, err); err != nil {
		return Job{}, fmt.Errorf("status %s: %w", jobID, err)
	}
	if out.ID == "" {
		out.ID = jobID
	}
	return out, nil
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	return nil
}
