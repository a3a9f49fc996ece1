package chat

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/folio/internal/domain"
	"github.com/liliang-cn/folio/internal/service"
	"github.com/liliang-cn/folio/internal/sse"
	"github.com/liliang-cn/folio/internal/upstream"
	"go.uber.org/zap"
)

// maxRequestBody bounds a /chat body, context document included
const maxRequestBody = 1 << 20

// Handler handles chat proxy requests
type Handler struct {
	proxyService *service.ProxyService
	logger       *zap.Logger
}

// NewHandler creates a new chat handler
func NewHandler(proxyService *service.ProxyService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{proxyService: proxyService, logger: logger}
}

// RegisterRoutes registers chat routes. limit guards POST only; preflight
// is answered by middleware.CORS before routing.
func (h *Handler) RegisterRoutes(r gin.IRoutes, limit ...gin.HandlerFunc) {
	r.POST("/chat", append(limit, h.Chat)...)
}

// Chat forwards a conversation upstream and relays the reply
func (h *Handler) Chat(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody)

	var req domain.ProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "invalid request body: messages must be an array of {role, content}"})
		return
	}

	if !req.Streaming() {
		h.complete(c, &req)
		return
	}

	stream, err := h.proxyService.OpenStream(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer stream.Close()

	sse.SetHeaders(c.Writer.Header())
	c.Status(http.StatusOK)
	h.relay(stream, sse.NewWriter(c.Writer))
}

func (h *Handler) complete(c *gin.Context, req *domain.ProxyRequest) {
	reply, err := h.proxyService.Complete(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.BufferedReply{Reply: reply})
}

// relay copies data events from upstream to the caller, one line at a time.
// Content already sent is never retracted; a failure after the first byte
// becomes an inline error event.
func (h *Handler) relay(stream *upstream.Stream, w *sse.Writer) {
	fragments := 0
	for {
		line, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.logger.Warn("upstream stream interrupted", zap.Error(err), zap.Int("fragments", fragments))
			msg := "stream interrupted"
			if errors.Is(err, domain.ErrUpstreamTimeout) {
				msg = domain.ErrUpstreamTimeout.Error()
			}
			if werr := w.Error(msg); werr != nil {
				h.logger.Debug("failed to write inline error", zap.Error(werr))
			}
			return
		}

		payload, ok := sse.Payload(line)
		if !ok || payload == "" {
			continue
		}
		if payload == sse.Done {
			break
		}
		if err := w.Data(payload); err != nil {
			h.logger.Debug("client went away", zap.Error(err), zap.Int("fragments", fragments))
			return
		}
		fragments++
	}

	if err := w.Done(); err != nil {
		h.logger.Debug("failed to write end of stream", zap.Error(err))
	}
	h.logger.Debug("stream relayed", zap.Int("fragments", fragments))
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("chat proxy failed", zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, domain.ErrorResponse{Error: message})
}

// statusFor maps proxy errors to the status and text returned to callers.
// Internal error details never reach the caller.
func statusFor(err error) (int, string) {
	var upstreamErr *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrMissingCredential):
		return http.StatusInternalServerError, "API key is not configured."
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, "upstream timed out"
	case errors.Is(err, domain.ErrUpstreamUnreachable):
		return http.StatusBadGateway, "upstream unreachable"
	case errors.As(err, &upstreamErr):
		return upstreamErr.RelayStatus(), upstreamErr.Message
	case errors.Is(err, domain.ErrEmptyReply):
		return http.StatusBadGateway, domain.ErrEmptyReply.Error()
	case errors.Is(err, context.Canceled):
		return http.StatusInternalServerError, "request canceled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
