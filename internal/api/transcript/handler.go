package transcript

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/folio/internal/domain"
	"github.com/liliang-cn/folio/internal/service"
	"go.uber.org/zap"
)

const maxRequestBody = 256 * 1024

// Handler handles transcript requests
type Handler struct {
	transcriptService *service.TranscriptService
	logger            *zap.Logger
}

// NewHandler creates a new transcript handler
func NewHandler(transcriptService *service.TranscriptService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{transcriptService: transcriptService, logger: logger}
}

// RegisterRoutes registers transcript routes. limit guards POST only.
func (h *Handler) RegisterRoutes(r gin.IRoutes, limit ...gin.HandlerFunc) {
	r.POST("", append(limit, h.Create)...)
	r.GET("/stats", h.Stats)
	r.GET("/sessions/:session_id", h.Session)
}

// Create logs one exchange
func (h *Handler) Create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody)

	var req domain.CreateTranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "user_message and bot_response are required"})
		return
	}

	transcript, err := h.transcriptService.Record(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: err.Error()})
			return
		}
		h.logger.Error("failed to record transcript", zap.Error(err))
		c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "failed to record transcript"})
		return
	}

	c.JSON(http.StatusCreated, transcript)
}

// Stats returns transcript statistics
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.transcriptService.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load transcript stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Session returns the exchanges of one session, oldest first
func (h *Handler) Session(c *gin.Context) {
	transcripts, err := h.transcriptService.SessionHistory(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: err.Error()})
			return
		}
		h.logger.Error("failed to load session transcripts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "failed to load transcripts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcripts": transcripts})
}
