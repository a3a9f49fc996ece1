// Package upstream talks to an OpenAI-compatible chat-completion API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/liliang-cn/folio/internal/domain"
	"go.uber.org/zap"
)

const defaultMaxErrorBody = 64 * 1024

// Options configures a Client
type Options struct {
	BaseURL      string
	Model        string
	Timeout      time.Duration
	MaxErrorBody int64
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Client calls the chat-completion endpoint. It holds no per-request state
// and is safe for concurrent use.
type Client struct {
	endpoint     string
	model        string
	timeout      time.Duration
	maxErrorBody int64
	httpClient   *http.Client
	logger       *zap.Logger
}

// CompletionRequest is the upstream request body
type CompletionRequest struct {
	Model    string               `json:"model"`
	Messages []domain.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a new upstream client
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// No client-level timeout: streams are bounded by the watchdog instead.
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxErrorBody := opts.MaxErrorBody
	if maxErrorBody <= 0 {
		maxErrorBody = defaultMaxErrorBody
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		endpoint:     strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		model:        opts.Model,
		timeout:      timeout,
		maxErrorBody: maxErrorBody,
		httpClient:   httpClient,
		logger:       logger,
	}
}

// Stream requests a streaming completion. The caller must Close the stream.
func (c *Client) Stream(ctx context.Context, apiKey string, messages []domain.ChatMessage) (*Stream, error) {
	resp, wd, cancel, err := c.do(ctx, apiKey, messages, true)
	if err != nil {
		return nil, err
	}
	wd.reset()
	return newStream(resp.Body, wd, cancel), nil
}

// Complete requests a buffered completion and returns its text
func (c *Client) Complete(ctx context.Context, apiKey string, messages []domain.ChatMessage) (string, error) {
	resp, wd, cancel, err := c.do(ctx, apiKey, messages, false)
	if err != nil {
		return "", err
	}
	defer cancel()
	defer wd.stop()
	defer resp.Body.Close()

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if wd.expired() {
			return "", domain.ErrUpstreamTimeout
		}
		return "", fmt.Errorf("failed to decode completion: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", domain.ErrEmptyReply
	}
	return out.Choices[0].Message.Content, nil
}

// do sends the request and returns a 2xx response whose body is still open.
// On every error path the body, the watchdog and the context are released.
func (c *Client) do(ctx context.Context, apiKey string, messages []domain.ChatMessage, stream bool) (*http.Response, *watchdog, context.CancelFunc, error) {
	body, err := json.Marshal(CompletionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   stream,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode completion request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	wd := newWatchdog(c.timeout, cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		wd.stop()
		cancel()
		return nil, nil, nil, fmt.Errorf("failed to create upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		wd.stop()
		cancel()
		return nil, nil, nil, c.transportError(wd, err)
	}

	c.logger.Debug("upstream responded",
		zap.Int("status", resp.StatusCode),
		zap.Bool("stream", stream),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer wd.stop()
		defer resp.Body.Close()

		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, c.maxErrorBody))
		if readErr != nil && wd.expired() {
			return nil, nil, nil, domain.ErrUpstreamTimeout
		}
		return nil, nil, nil, &domain.UpstreamError{
			Status:  resp.StatusCode,
			Message: errorMessage(raw, resp.StatusCode),
		}
	}

	return resp, wd, cancel, nil
}

func (c *Client) transportError(wd *watchdog, err error) error {
	var netErr net.Error
	switch {
	case wd.expired(), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrUpstreamTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return domain.ErrUpstreamTimeout
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnreachable, err)
	}
}

// errorMessage extracts a readable message from an upstream error body.
// Providers use {"error":{"message":...}}, {"error":"..."} or {"message":...}.
func errorMessage(raw []byte, status int) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if len(body.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(body.Error, &nested); err == nil && nested.Message != "" {
				return nested.Message
			}
			var flat string
			if err := json.Unmarshal(body.Error, &flat); err == nil && flat != "" {
				return flat
			}
		}
		if body.Message != "" {
			return body.Message
		}
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		if st := http.StatusText(status); st != "" {
			return st
		}
		return "upstream request failed"
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
