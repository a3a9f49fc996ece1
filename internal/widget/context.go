package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
)

// maxContextSize keeps a request with full history under the proxy's body limit
const maxContextSize = 512 * 1024

// FallbackContext is used whenever the knowledge-base document cannot be loaded
const FallbackContext = `Portfolio information is currently unavailable. ` +
	`Answer general questions politely and suggest getting in touch directly for details about work, services and availability.`

// ContextLoader fetches the knowledge-base document once per session
type ContextLoader struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewContextLoader creates a loader
func NewContextLoader(httpClient *http.Client, logger *zap.Logger) *ContextLoader {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextLoader{httpClient: httpClient, logger: logger}
}

// Load reads source, an http(s) URL or a file path, and returns it as text.
// JSON documents are re-indented. Any failure yields FallbackContext.
func (l *ContextLoader) Load(ctx context.Context, source string) string {
	if strings.TrimSpace(source) == "" {
		return FallbackContext
	}

	raw, err := l.read(ctx, source)
	if err != nil {
		l.logger.Warn("failed to load context, using fallback",
			zap.String("source", source),
			zap.Error(err),
		)
		return FallbackContext
	}

	text := normalizeContext(raw)
	if text == "" {
		l.logger.Warn("context document is empty, using fallback", zap.String("source", source))
		return FallbackContext
	}
	return text
}

func (l *ContextLoader) read(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		f, err := os.Open(source)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readLimited(f)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return readLimited(resp.Body)
}

// readLimited fails rather than truncate, a cut JSON document is useless
func readLimited(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxContextSize+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxContextSize {
		return nil, fmt.Errorf("document exceeds %d bytes", maxContextSize)
	}
	return raw, nil
}

func normalizeContext(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	if json.Valid(trimmed) {
		var out bytes.Buffer
		if err := json.Indent(&out, trimmed, "", "  "); err == nil {
			return out.String()
		}
	}
	return string(trimmed)
}
