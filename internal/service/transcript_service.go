package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/liliang-cn/folio/internal/domain"
)

// TranscriptStore persists logged exchanges
type TranscriptStore interface {
	Create(ctx context.Context, t *domain.Transcript) error
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Transcript, error)
	Count(ctx context.Context) (int, error)
}

// TranscriptService handles the exchange log
type TranscriptService struct {
	store TranscriptStore
}

// NewTranscriptService creates a new transcript service
func NewTranscriptService(store TranscriptStore) *TranscriptService {
	return &TranscriptService{store: store}
}

// Record validates and stores one exchange
func (s *TranscriptService) Record(ctx context.Context, req *domain.CreateTranscriptRequest) (*domain.Transcript, error) {
	if strings.TrimSpace(req.UserMessage) == "" || strings.TrimSpace(req.BotResponse) == "" {
		return nil, fmt.Errorf("%w: user_message and bot_response are required", domain.ErrInvalidRequest)
	}

	t := &domain.Transcript{
		SessionID:   strings.TrimSpace(req.SessionID),
		UserMessage: req.UserMessage,
		BotResponse: req.BotResponse,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to store transcript: %w", err)
	}
	return t, nil
}

// Stats returns transcript statistics
func (s *TranscriptService) Stats(ctx context.Context) (*domain.TranscriptStats, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count transcripts: %w", err)
	}
	return &domain.TranscriptStats{Total: total}, nil
}

// SessionHistory returns the exchanges logged for one widget session
func (s *TranscriptService) SessionHistory(ctx context.Context, sessionID string) ([]*domain.Transcript, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", domain.ErrInvalidRequest)
	}
	transcripts, err := s.store.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	if transcripts == nil {
		transcripts = []*domain.Transcript{}
	}
	return transcripts, nil
}
