package llm

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

	"github.com/kaptinlin/jsonrepair"

	"github.com/teazle/autosocialai/internal/config"
	"github.com/teazle/autosocialai/internal/upstream"
)

const serviceName = "llm"

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg config.LLMConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the client has what it needs to make calls.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != "" && c.endpoint != "" && c.model != ""
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete sends the messages and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, messages []Message, temperature float64, jsonMode bool) (string, error) {
	if c == nil {
		return "", fmt.Errorf("llm client is nil")
	}
	if !c.Configured() {
		return "", upstream.Unavailable(serviceName, errors.New("client misconfigured"))
	}

	payload := completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
	}
	if jsonMode {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal llm payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", upstream.Unavailable(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", upstream.NewStatusError(serviceName, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("llm response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// CompleteJSON asks for a JSON object and decodes it into v, repairing
// slightly malformed output first.
func (c *Client) CompleteJSON(ctx context.Context, messages []Message, temperature float64, v any) error {
	content, err := c.Complete(ctx, messages, temperature, true)
	if err != nil {
		return err
	}
	return DecodeJSON(content, v)
}

// DecodeJSON decodes model output, stripping code fences and repairing it
// when plain decoding fails.
func DecodeJSON(content string, v any) error {
	content = stripFences(content)
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil {
		return fmt.Errorf("repair llm json: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decode llm json: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
