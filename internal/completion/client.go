// Package completion talks to an OpenAI-compatible chat completions endpoint
// (Groq by default).
package completion

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

	"github.com/atlasstudy/atlas/internal/prompt"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.1-8b-instant"
	defaultTimeout = 60 * time.Second

	// maxErrorBody bounds how much of a failed response is read.
	maxErrorBody = 64 << 10
)

// ErrMissingAPIKey is returned by NewClient when no key is configured.
var ErrMissingAPIKey = errors.New("completion API key is not configured")

// Error is a failed completion call. StatusCode is zero for transport errors.
type Error struct {
	StatusCode      int
	UpstreamMessage string
	Err             error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("completion request failed: %v", e.Err)
	}
	msg := e.UpstreamMessage
	if msg == "" {
		msg = "Unknown error"
	}
	return fmt.Sprintf("completion API error: %d: %s", e.StatusCode, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Client sends message sequences to a fixed model. It never retries.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient fails fast when apiKey is empty. Empty baseURL and model fall
// back to the Groq defaults; a non-positive timeout means 60s.
func NewClient(apiKey, baseURL, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &Error{Err: ErrMissingAPIKey}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Complete returns the first choice's content verbatim, or "" when the
// response has no choices.
func (c *Client) Complete(ctx context.Context, messages []prompt.Message, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", upstreamError(resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &Error{StatusCode: resp.StatusCode, UpstreamMessage: "malformed response body", Err: err}
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

func upstreamError(resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er errorResponse
	_ = json.Unmarshal(raw, &er)
	return &Error{
		StatusCode:      resp.StatusCode,
		UpstreamMessage: er.Error.Message,
		Err:             fmt.Errorf("unexpected status %d", resp.StatusCode),
	}
}

// ListModels queries the provider's model catalogue. "atlas status" uses
// it to check the endpoint and key.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError(resp)
	}

	var list modelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding models: %w", err)
	}
	if list.Data == nil {
		return []Model{}, nil
	}
	return list.Data, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}
