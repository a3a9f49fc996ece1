package widget

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/folio/internal/service"
)

// Handler serves the chat client's settings
type Handler struct {
	widgetService *service.WidgetService
}

// NewHandler creates a new widget handler
func NewHandler(widgetService *service.WidgetService) *Handler {
	return &Handler{widgetService: widgetService}
}

// RegisterRoutes registers widget routes
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/config", h.GetConfig)
}

// GetConfig returns the widget configuration with base_url pointing back at
// the address the caller used
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.widgetService.GetWidgetConfig(c.Request.Context(), publicBaseURL(c.Request)))
}

// publicBaseURL rebuilds the caller-facing origin from the request Host.
// Only the scheme is taken from X-Forwarded-Proto (first hop, http or
// https); X-Forwarded-Host is ignored since any client can set it.
func publicBaseURL(r *http.Request) string {
	if r.Host == "" {
		return ""
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := firstValue(r.Header.Get("X-Forwarded-Proto")); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func firstValue(header string) string {
	first, _, _ := strings.Cut(header, ",")
	return strings.ToLower(strings.TrimSpace(first))
}
