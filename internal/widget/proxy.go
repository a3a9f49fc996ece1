package widget

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

	"github.com/liliang-cn/folio/internal/domain"
	"go.uber.org/zap"
)

const maxErrorBody = 64 * 1024

// ProxyClient calls the chat proxy's /chat endpoint
type ProxyClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewProxyClient creates a client for the proxy at baseURL. timeout bounds
// a whole call, stream included; zero means no bound beyond ctx.
func NewProxyClient(baseURL string, timeout time.Duration, httpClient *http.Client, logger *zap.Logger) *ProxyClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProxyClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Call sends the conversation and streams the reply into onFragment.
// streamed reports whether any fragment was delivered. Every failure is a
// *domain.ReplyError; on a mid-stream failure text holds the partial reply.
func (p *ProxyClient) Call(ctx context.Context, history []domain.ChatMessage, contextDoc string, onFragment func(string)) (text string, streamed bool, err error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	body, err := json.Marshal(domain.ProxyRequest{Messages: history, Context: contextDoc})
	if err != nil {
		return "", false, &domain.ReplyError{Category: domain.CategoryGeneric, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", false, &domain.ReplyError{Category: domain.CategoryGeneric, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", false, &domain.ReplyError{
			Category: domain.CategoryNetwork,
			Err:      fmt.Errorf("%w: %v", domain.ErrUpstreamUnreachable, err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := p.errorMessage(resp)
		p.logger.Warn("chat proxy returned an error",
			zap.Int("status", resp.StatusCode),
			zap.String("error", message),
		)
		return "", false, &domain.ReplyError{
			Category: domain.ClassifyStatus(resp.StatusCode, message),
			Err:      &domain.UpstreamError{Status: resp.StatusCode, Message: message},
		}
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return p.buffered(resp.Body)
	}

	var delivered bool
	text, err = ReadStream(resp.Body, func(fragment string) {
		delivered = true
		if onFragment != nil {
			onFragment(fragment)
		}
	}, p.logger)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
		}
		return text, delivered, &domain.ReplyError{Category: domain.ClassifyError(err), Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", delivered, &domain.ReplyError{Category: domain.CategoryGeneric, Err: domain.ErrEmptyReply}
	}
	return text, delivered, nil
}

func (p *ProxyClient) buffered(body io.Reader) (string, bool, error) {
	var reply domain.BufferedReply
	if err := json.NewDecoder(body).Decode(&reply); err != nil {
		return "", false, &domain.ReplyError{Category: domain.CategoryGeneric, Err: fmt.Errorf("decode reply: %w", err)}
	}
	if strings.TrimSpace(reply.Reply) == "" {
		return "", false, &domain.ReplyError{Category: domain.CategoryGeneric, Err: domain.ErrEmptyReply}
	}
	return reply.Reply, false, nil
}

// errorMessage reads the {"error": ...} body of a failed call
func (p *ProxyClient) errorMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil && !errors.Is(err, io.EOF) {
		p.logger.Debug("failed to read error body", zap.Error(err))
	}

	var body domain.ErrorResponse
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return fmt.Sprintf("Server error: %d", resp.StatusCode)
}
