// Package social publishes captions and images to Meta and TikTok.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/teazle/autosocialai/internal/upstream"
)

// ErrImageRequired is returned by platforms that cannot post text alone.
var ErrImageRequired = errors.New("platform requires an image")

func send(client *http.Client, req *http.Request, service string, v any) error {
	resp, err := client.Do(req)
	if err != nil {
		return upstream.Unavailable(service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", service, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return upstream.NewStatusError(service, resp.StatusCode, errorMessage(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: decode response: %w", service, err)
	}
	return nil
}

// errorMessage pulls the message out of Graph and TikTok error envelopes.
func errorMessage(body []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return strings.TrimSpace(string(body))
}

func newRequest(ctx context.Context, method, url string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}
