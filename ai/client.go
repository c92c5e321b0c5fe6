// Package ai provides the LLM text client used for meeting summarization,
// title/project extraction and structured task extraction. The client talks
// to any OpenAI-compatible chat completions endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nexxia-ai/meetingflow/retry"
)

// ErrNotConfigured is returned when no API key is set. Callers treat it as
// a skip, not a failure.
var ErrNotConfigured = errors.New("llm client not configured")

// StatusError carries a non-2xx response from the completion endpoint.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("status: %s, code: %d, error: %s", e.Status, e.StatusCode, e.ErrorMessage)
}

// Client is a completion client. callFunc carries the provider-specific
// transport so tests can substitute a canned implementation.
type Client struct {
	ModelName string
	APIKey    string
	BaseURL   string

	Temperature float64

	httpClient *http.Client
	policy     retry.Policy
	callFunc   func(ctx context.Context, c *Client, system, user string) (string, error)
}

// NewClient creates a client for an OpenAI-compatible endpoint. An empty
// apiKey produces an unconfigured client whose calls return
// ErrNotConfigured.
func NewClient(modelName, apiKey, baseURL string) *Client {
	return &Client{
		ModelName:   modelName,
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Temperature: 0.2,
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
		policy:      retry.DefaultPolicy(),
		callFunc:    chatComplete,
	}
}

// NewDummyClient is useful for testing purposes. It allows you to mock the
// completion response.
func NewDummyClient(responseFunc func(system, user string) (string, error)) *Client {
	return &Client{
		ModelName: "dummy",
		APIKey:    "dummy",
		callFunc: func(ctx context.Context, c *Client, system, user string) (string, error) {
			return responseFunc(system, user)
		},
	}
}

// IsConfigured reports whether the client can make calls.
func (c *Client) IsConfigured() bool {
	return c != nil && c.APIKey != ""
}

// Complete makes a single completion call, retrying transient failures per
// the client's policy.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	var out string
	err := c.policy.Do(ctx, "llm completion", func() error {
		text, err := c.callFunc(ctx, c, system, user)
		if err != nil {
			return classify(err)
		}
		out = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// classify tags retryable transport failures.
func classify(err error) error {
	var se StatusError
	if errors.As(err, &se) {
		if se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests {
			return retry.Temporary(err)
		}
		return err
	}
	// Plain transport errors (connection refused, timeouts) are worth a
	// retry; anything structured was handled above.
	return retry.Temporary(err)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func chatComplete(ctx context.Context, c *Client, system, user string) (string, error) {
	payload := chatRequest{
		Model: c.ModelName,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", StatusError{
			StatusCode:   resp.StatusCode,
			Status:       resp.Status,
			ErrorMessage: string(respBody),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse completion response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("completion error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	content := parsed.Choices[0].Message.Content
	slog.Debug("completion received", "model", c.ModelName, "chars", len(content))
	return content, nil
}
