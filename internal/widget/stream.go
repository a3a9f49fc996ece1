package widget

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/liliang-cn/folio/internal/domain"
	"github.com/liliang-cn/folio/internal/sse"
	"go.uber.org/zap"
)

// ReadStream consumes a proxy event stream, calling onFragment for every
// text delta in arrival order, and returns the accumulated text.
//
// Malformed fragments are logged and skipped. The stream ends at the Done
// sentinel or at EOF; an inline error fragment or a broken connection is
// returned together with whatever text arrived before it.
func ReadStream(r io.Reader, onFragment func(string), logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		text      strings.Builder
		streamErr error
	)

	scanner := sse.NewScanner(r)
	for scanner.Scan() {
		payload, ok := sse.Payload(scanner.Text())
		if !ok || payload == "" {
			continue
		}
		if payload == sse.Done {
			return text.String(), streamErr
		}

		content, err := sse.DecodeDelta(payload)
		var inline *sse.StreamError
		switch {
		case err == nil:
			text.WriteString(content)
			if onFragment != nil {
				onFragment(content)
			}
		case errors.Is(err, sse.ErrNoContent):
		case errors.As(err, &inline):
			logger.Warn("stream reported an error", zap.String("error", inline.Message))
			streamErr = inlineError(inline)
		default:
			logger.Warn("skipping malformed stream fragment", zap.Error(err))
		}
	}

	if err := scanner.Err(); err != nil {
		return text.String(), fmt.Errorf("%w: %v", domain.ErrUpstreamUnreachable, err)
	}
	return text.String(), streamErr
}

// inlineError maps the proxy's inline messages back onto the sentinels
func inlineError(e *sse.StreamError) error {
	if e.Message == domain.ErrUpstreamTimeout.Error() {
		return fmt.Errorf("%w: reported mid-stream", domain.ErrUpstreamTimeout)
	}
	return e
}
