package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/liliang-cn/folio/internal/config"
	"github.com/liliang-cn/folio/internal/domain"
	"github.com/liliang-cn/folio/internal/upstream"
	"go.uber.org/zap"
)

// Completer is the upstream chat-completion API
type Completer interface {
	Stream(ctx context.Context, apiKey string, messages []domain.ChatMessage) (*upstream.Stream, error)
	Complete(ctx context.Context, apiKey string, messages []domain.ChatMessage) (string, error)
}

// ProxyService prepares conversations for the upstream API. It keeps no
// per-request state; every call stands alone.
type ProxyService struct {
	cfg      *config.Config
	upstream Completer
	logger   *zap.Logger
}

// NewProxyService creates a new proxy service
func NewProxyService(cfg *config.Config, completer Completer, logger *zap.Logger) *ProxyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProxyService{
		cfg:      cfg,
		upstream: completer,
		logger:   logger,
	}
}

// Validate checks a request before anything is sent upstream
func (s *ProxyService) Validate(req *domain.ProxyRequest) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: messages must be a non-empty array", domain.ErrInvalidRequest)
	}
	for i, m := range req.Messages {
		switch m.Role {
		case domain.RoleUser, domain.RoleAssistant, domain.RoleSystem:
		default:
			return fmt.Errorf("%w: messages[%d] has unsupported role %q", domain.ErrInvalidRequest, i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("%w: messages[%d] has empty content", domain.ErrInvalidRequest, i)
		}
	}
	return nil
}

// BuildMessages prepends the system instruction carrying the context document
func (s *ProxyService) BuildMessages(req *domain.ProxyRequest) []domain.ChatMessage {
	system := s.cfg.SystemInstruction()
	if doc := req.ContextDocument(); doc != "" {
		system += " Here is the portfolio data:\n\n" + doc
	}

	messages := make([]domain.ChatMessage, 0, len(req.Messages)+1)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: system})
	messages = append(messages, req.Messages...)
	return messages
}

// credential returns the upstream key or fails closed
func (s *ProxyService) credential() (string, error) {
	key := strings.TrimSpace(s.cfg.Upstream.APIKey)
	if key == "" {
		s.logger.Error("upstream credential missing; set DEEPSEEK_API_KEY or FOLIO_UPSTREAM_API_KEY")
		return "", domain.ErrMissingCredential
	}
	return key, nil
}

// OpenStream validates the request and opens a streaming completion
func (s *ProxyService) OpenStream(ctx context.Context, req *domain.ProxyRequest) (*upstream.Stream, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	key, err := s.credential()
	if err != nil {
		return nil, err
	}

	stream, err := s.upstream.Stream(ctx, key, s.BuildMessages(req))
	if err != nil {
		s.logger.Warn("upstream stream failed", zap.Error(err), zap.Int("messages", len(req.Messages)))
		return nil, err
	}
	return stream, nil
}

// Complete validates the request and returns a buffered completion
func (s *ProxyService) Complete(ctx context.Context, req *domain.ProxyRequest) (string, error) {
	if err := s.Validate(req); err != nil {
		return "", err
	}
	key, err := s.credential()
	if err != nil {
		return "", err
	}

	reply, err := s.upstream.Complete(ctx, key, s.BuildMessages(req))
	if err != nil {
		s.logger.Warn("upstream completion failed", zap.Error(err), zap.Int("messages", len(req.Messages)))
		return "", err
	}
	return reply, nil
}
