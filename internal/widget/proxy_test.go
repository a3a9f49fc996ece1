package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/folio/internal/api"
	"github.com/liliang-cn/folio/internal/config"
	"github.com/liliang-cn/folio/internal/domain"
	"github.com/liliang-cn/folio/internal/service"
	"github.com/liliang-cn/folio/internal/upstream"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryStore struct {
	mu    sync.Mutex
	items []*domain.Transcript
}

func (m *memoryStore) Create(ctx context.Context, t *domain.Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = fmt.Sprintf("t-%d", len(m.items)+1)
	t.CreatedAt = time.Now().UTC()
	m.items = append(m.items, t)
	return nil
}

func (m *memoryStore) ListBySession(ctx context.Context, sessionID string) ([]*domain.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Transcript
	for _, t := range m.items {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

func (m *memoryStore) All() []*domain.Transcript {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Transcript(nil), m.items...)
}

// proxyStack is the real chat proxy in front of a fake completion API
type proxyStack struct {
	URL        string
	store      *memoryStore
	calls      atomic.Int32
	lastUpload atomic.Value // upstream.CompletionRequest
}

func newProxyStack(t *testing.T, apiKey string, handler http.HandlerFunc) *proxyStack {
	t.Helper()
	stack := &proxyStack{store: &memoryStore{}}

	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stack.calls.Add(1)
		var req upstream.CompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			stack.lastUpload.Store(req)
		}
		handler(w, r)
	}))
	t.Cleanup(fake.Close)

	cfg := &config.Config{}
	cfg.Upstream = config.UpstreamConfig{BaseURL: fake.URL, APIKey: apiKey, Model: "test-model", Timeout: 2 * time.Second}
	cfg.Assistant = config.AssistantConfig{Owner: "Ada", Instructions: config.DefaultInstructions}

	client := upstream.NewClient(upstream.Options{BaseURL: fake.URL, Model: "test-model", Timeout: 2 * time.Second})
	router := api.SetupRouter(
		service.NewProxyService(cfg, client, nil),
		service.NewWidgetService(cfg),
		service.NewTranscriptService(stack.store),
		api.RouterConfig{AllowOrigins: []string{"*"}},
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	stack.URL = srv.URL
	return stack
}

func streamChunks(chunks ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", c)
			w.(http.Flusher).Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func TestProxyClientStream(t *testing.T) {
	stack := newProxyStack(t, "sk-test", streamChunks("Hel", "lo"))
	client := NewProxyClient(stack.URL, 5*time.Second, nil, nil)

	var fragments []string
	history := []domain.ChatMessage{{Role: domain.RoleUser, Content: "Hi"}}
	text, streamed, err := client.Call(context.Background(), history, "Ada writes Go.", func(f string) {
		fragments = append(fragments, f)
	})
	if err != nil {
		t.Fatalf("Call err: %v", err)
	}
	if text != "Hello" || !streamed {
		t.Errorf("Expected streamed Hello, got %q streamed=%v", text, streamed)
	}
	if strings.Join(fragments, "|") != "Hel|lo" {
		t.Errorf("Expected fragments Hel|lo, got %v", fragments)
	}

	sent := stack.lastUpload.Load().(upstream.CompletionRequest)
	if len(sent.Messages) != 2 || sent.Messages[0].Role != domain.RoleSystem {
		t.Fatalf("Expected system message ahead of history, got %+v", sent.Messages)
	}
	if !strings.Contains(sent.Messages[0].Content, "Ada writes Go.") {
		t.Errorf("Expected context in system message, got %q", sent.Messages[0].Content)
	}
}

func TestProxyClientErrors(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		handler  http.HandlerFunc
		category domain.Category
	}{
		{
			name:     "missing credential",
			apiKey:   "",
			handler:  streamChunks("never"),
			category: domain.CategoryMisconfigured,
		},
		{
			name:   "upstream rejects key",
			apiKey: "sk-bad",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
			},
			category: domain.CategoryMisconfigured,
		},
		{
			name:   "upstream busy",
			apiKey: "sk-test",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
			},
			category: domain.CategoryUnavailable,
		},
		{
			name:   "upstream rate limited",
			apiKey: "sk-test",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"message":"slow down"}}`, http.StatusTooManyRequests)
			},
			category: domain.CategoryUnavailable,
		},
		{
			name:   "upstream bad request",
			apiKey: "sk-test",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"message":"context too long"}}`, http.StatusBadRequest)
			},
			category: domain.CategoryGeneric,
		},
		{
			name:   "empty stream",
			apiKey: "sk-test",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, "data: [DONE]\n\n")
			},
			category: domain.CategoryGeneric,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stack := newProxyStack(t, tc.apiKey, tc.handler)
			client := NewProxyClient(stack.URL, 5*time.Second, nil, nil)

			history := []domain.ChatMessage{{Role: domain.RoleUser, Content: "Hi"}}
			text, _, err := client.Call(context.Background(), history, "ctx", nil)
			if err == nil {
				t.Fatalf("Expected error, got reply %q", text)
			}

			var replyErr *domain.ReplyError
			if !errors.As(err, &replyErr) {
				t.Fatalf("Expected *domain.ReplyError, got %T", err)
			}
			if replyErr.Category != tc.category {
				t.Errorf("Expected category %s, got %s (%v)", tc.category, replyErr.Category, err)
			}
		})
	}
}

func TestProxyClientStatusMapping(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		category domain.Category
	}{
		{http.StatusInternalServerError, `{"error":"API key is not configured."}`, domain.CategoryMisconfigured},
		{http.StatusGatewayTimeout, `{"error":"upstream timed out"}`, domain.CategoryNetwork},
		{http.StatusBadGateway, `{"error":"upstream unreachable"}`, domain.CategoryNetwork},
		{http.StatusBadGateway, `{"error":"bad gateway"}`, domain.CategoryUnavailable},
		{http.StatusInternalServerError, `<html>oops</html>`, domain.CategoryGeneric},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%d", tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, _, err := NewProxyClient(srv.URL, time.Second, nil, nil).Call(context.Background(), nil, "", nil)
			if got := domain.ClassifyError(err); got != tc.category {
				t.Errorf("Expected %s, got %s (%v)", tc.category, got, err)
			}
		})
	}
}

func TestProxyClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, _, err := NewProxyClient(url, time.Second, nil, nil).Call(context.Background(), nil, "", nil)
	if got := domain.ClassifyError(err); got != domain.CategoryNetwork {
		t.Errorf("Expected network category, got %s (%v)", got, err)
	}
}

func TestProxyClientBufferedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"reply":"All at once"}`))
	}))
	defer srv.Close()

	text, streamed, err := NewProxyClient(srv.URL, time.Second, nil, nil).Call(context.Background(), nil, "", nil)
	if err != nil {
		t.Fatalf("Call err: %v", err)
	}
	if text != "All at once" || streamed {
		t.Errorf("Expected buffered reply, got %q streamed=%v", text, streamed)
	}
}
