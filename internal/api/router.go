package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/folio/internal/api/chat"
	"github.com/liliang-cn/folio/internal/api/middleware"
	"github.com/liliang-cn/folio/internal/api/transcript"
	"github.com/liliang-cn/folio/internal/api/widget"
	"github.com/liliang-cn/folio/internal/domain"
	"github.com/liliang-cn/folio/internal/service"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	AllowOrigins []string
	// RateLimiter guards the POST endpoints; nil disables limiting
	RateLimiter  *middleware.RateLimiter
	ContentRoute string
	ContentPath  string
	Logger       *zap.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(
	proxyService *service.ProxyService,
	widgetService *service.WidgetService,
	transcriptService *service.TranscriptService,
	cfg RouterConfig,
) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, domain.ErrorResponse{Error: "method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, domain.ErrorResponse{Error: "not found"})
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	var limit []gin.HandlerFunc
	if cfg.RateLimiter != nil {
		limit = append(limit, cfg.RateLimiter.Middleware())
	}

	// Knowledge base consumed by the widget
	SetupContentRoute(r, cfg.ContentRoute, cfg.ContentPath)

	// Chat proxy (public)
	chatHandler := chat.NewHandler(proxyService, logger)
	chatHandler.RegisterRoutes(r, limit...)

	// Widget API (public)
	widgetHandler := widget.NewHandler(widgetService)
	widgetHandler.RegisterRoutes(r.Group("/api/widget"))

	// Exchange log
	if transcriptService != nil {
		transcriptHandler := transcript.NewHandler(transcriptService, logger)
		transcriptHandler.RegisterRoutes(r.Group("/api/transcripts"), limit...)
	}

	return r
}
