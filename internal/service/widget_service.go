package service

import (
	"context"

	"github.com/liliang-cn/folio/internal/config"
	"github.com/liliang-cn/folio/internal/domain"
)

// WidgetService handles widget operations
type WidgetService struct {
	cfg *config.Config
}

// NewWidgetService creates a new widget service
func NewWidgetService(cfg *config.Config) *WidgetService {
	return &WidgetService{cfg: cfg}
}

// GetWidgetConfig returns the widget configuration. baseURL overrides the
// configured one when the request came through a proxy.
func (s *WidgetService) GetWidgetConfig(ctx context.Context, baseURL string) *domain.WidgetConfig {
	config := domain.DefaultWidgetConfig()

	if s.cfg.Assistant.Owner != "" {
		config.Name = s.cfg.Assistant.Owner + "'s assistant"
	}
	if s.cfg.Widget.WelcomeMessage != "" {
		config.WelcomeMessage = s.cfg.Widget.WelcomeMessage
	}
	if s.cfg.Widget.Placeholder != "" {
		config.Placeholder = s.cfg.Widget.Placeholder
	}
	if s.cfg.Widget.IdleTimeout > 0 {
		config.IdleTimeoutSeconds = int(s.cfg.Widget.IdleTimeout.Seconds())
	}

	config.BaseURL = s.cfg.Server.BaseURL
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &config
}
