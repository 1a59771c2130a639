package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teazle/autosocialai/internal/upstream"
)

const (
	serviceName  = "replicate"
	pollInterval = time.Second
)

// Prediction mirrors the fields of a Replicate prediction we use.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

func (p Prediction) done() bool {
	switch p.Status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

// Client talks to the Replicate predictions API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	poll    time.Duration
}

// NewClient creates a reusable HTTP client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 90 * time.Second},
		poll:    pollInterval,
	}
}

// Configured reports whether a token is present.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// Run starts a prediction for model and waits for it to finish. Model is
// either "owner/name" or "owner/name:version".
func (c *Client) Run(ctx context.Context, model string, input map[string]any) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, upstream.Unavailable(serviceName, errors.New("api token not configured"))
	}

	path, payload := c.predictionRequest(model, input)
	var pred Prediction
	if err := c.do(ctx, http.MethodPost, path, payload, &pred); err != nil {
		return nil, err
	}

	for !pred.done() {
		if pred.ID == "" {
			return nil, errors.New("replicate returned a pending prediction without id")
		}
		timer := time.NewTimer(c.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if err := c.do(ctx, http.MethodGet, "/predictions/"+pred.ID, nil, &pred); err != nil {
			return nil, err
		}
	}

	if pred.Status != "succeeded" {
		return nil, fmt.Errorf("prediction %s %s: %s", pred.ID, pred.Status, strings.Trim(string(pred.Error), `"`))
	}
	return pred.Output, nil
}

func (c *Client) predictionRequest(model string, input map[string]any) (string, map[string]any) {
	if _, version, ok := strings.Cut(model, ":"); ok && version != "" {
		return "/predictions", map[string]any{"version": version, "input": input}
	}
	return "/models/" + model + "/predictions", map[string]any{"input": input}
}

func (c *Client) do(ctx context.Context, method, path string, payload any, v any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "wait")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return upstream.Unavailable(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return upstream.NewStatusError(serviceName, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
