package widget

import (
	"context"
	"strings"

	"github.com/liliang-cn/folio/internal/domain"
	"go.uber.org/zap"
)

// ReplyRequest is one user submission with its conversation so far
type ReplyRequest struct {
	Text    string
	History []domain.ChatMessage
	Context string
}

// Reply is the text to show for a submission. Streamed is true when the
// text was already delivered to the view fragment by fragment. Err is the
// underlying failure when Text is an error message or a partial reply.
type Reply struct {
	Text     string
	Streamed bool
	Err      error
}

// ReplySource produces the bot's reply for a submission
type ReplySource interface {
	Reply(ctx context.Context, req ReplyRequest, view ReplyView) Reply
}

// Resolver picks the proxy or the local responder based on the environment
type Resolver struct {
	env    Environment
	proxy  *ProxyClient
	local  *LocalResponder
	logger *zap.Logger
}

// NewResolver creates a resolver. proxy may be nil when env has no backend.
func NewResolver(env Environment, proxy *ProxyClient, local *LocalResponder, logger *zap.Logger) *Resolver {
	if local == nil {
		local = NewLocalResponder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{env: env, proxy: proxy, local: local, logger: logger}
}

// Reply always returns non-empty text
func (r *Resolver) Reply(ctx context.Context, req ReplyRequest, view ReplyView) Reply {
	if !r.env.BackendAvailable() || r.proxy == nil {
		return Reply{Text: r.local.Respond(req.Text, req.Context)}
	}

	text, streamed, err := r.proxy.Call(ctx, req.History, req.Context, view.Append)
	if err == nil {
		return Reply{Text: text, Streamed: streamed}
	}

	category := domain.ClassifyError(err)
	r.logger.Warn("chat reply failed",
		zap.String("category", string(category)),
		zap.Error(err),
	)

	// Fragments already on screen stay as they are.
	if streamed && strings.TrimSpace(text) != "" {
		return Reply{Text: text, Streamed: true, Err: err}
	}
	return Reply{Text: category.Message(), Err: err}
}
