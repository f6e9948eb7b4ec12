// File: internal/infra/queue/client.go
package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"journal-ai-coach/internal/domain/ports/adapter"
)

var _ adapter.TaskQueueClient = (*HTTPClient)(nil)

// HTTPClient implements adapter.TaskQueueClient against an HTTP task queue.
// Each enqueue publishes a message whose body carries the job id; the queue
// later delivers it back to us on the configured callback URL.
type HTTPClient struct {
	baseURL     string
	token       string
	callbackURL string
	client      *http.Client
}

func NewHTTPClient(baseURL, token, callbackURL string) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, errors.New("queue base url empty")
	}
	if _, err := url.Parse(callbackURL); err != nil {
		return nil, fmt.Errorf("invalid callback url: %w", err)
	}
	return &HTTPClient{
		baseURL:     baseURL,
		token:       token,
		callbackURL: callbackURL,
		client:      &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Enqueue publishes a message for jobID and returns the queue message id.
func (c *HTTPClient) Enqueue(ctx context.Context, jobID string, payload map[string]any) (string, error) {
	body := map[string]any{
		"callback_url": c.callbackURL,
		"body": map[string]any{
			"job_id":  jobID,
			"payload": payload,
		},
	}
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/publish", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("queue publish: unexpected status %d", resp.StatusCode)
	}
	var out struct {
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("queue publish: decode response: %w", err)
	}
	if out.MessageID == "" {
		return "", errors.New("queue publish: empty message id")
	}
	return out.MessageID, nil
}
