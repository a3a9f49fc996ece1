package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/folio/internal/config"
	"github.com/liliang-cn/folio/internal/domain"
	"github.com/liliang-cn/folio/internal/service"
	"github.com/liliang-cn/folio/internal/sse"
	"github.com/liliang-cn/folio/internal/upstream"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUpstream struct {
	server *httptest.Server
	calls  atomic.Int32
	last   atomic.Value // upstream.CompletionRequest
}

func newFakeUpstream(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		var req upstream.CompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			f.last.Store(req)
		}
		handler(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func streamLines(lines ...string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			w.(http.Flusher).Flush()
		}
	}
}

func delta(content string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`, content)
}

func setupRouter(t *testing.T, upstreamURL, apiKey string, timeout time.Duration) *gin.Engine {
	t.Helper()
	cfg := &config.Config{}
	cfg.Upstream = config.UpstreamConfig{BaseURL: upstreamURL, APIKey: apiKey, Model: "test-model", Timeout: timeout}
	cfg.Assistant = config.AssistantConfig{Owner: "Ada", Instructions: config.DefaultInstructions}
	client := upstream.NewClient(upstream.Options{BaseURL: upstreamURL, Model: "test-model", Timeout: timeout})
	handler := NewHandler(service.NewProxyService(cfg, client, nil), nil)

	r := gin.New()
	handler.RegisterRoutes(r)
	return r
}

func postChat(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func ssePayloads(t *testing.T, body io.Reader) []string {
	t.Helper()
	var payloads []string
	scanner := sse.NewScanner(body)
	for scanner.Scan() {
		if p, ok := sse.Payload(scanner.Text()); ok {
			payloads = append(payloads, p)
		}
	}
	return payloads
}

const validBody = `{"messages":[{"role":"user","content":"What do you do?"}],"context":"Ada builds websites."}`

func TestChatRelaysStream(t *testing.T) {
	up := newFakeUpstream(t, streamLines(": keep-alive", delta("Hel"), "event: ignored", delta("lo"), "data: [DONE]"))
	r := setupRouter(t, up.server.URL, "sk-test", time.Second)

	resp := postChat(r, validBody)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected event stream, got %q", ct)
	}

	payloads := ssePayloads(t, resp.Body)
	if len(payloads) != 3 {
		t.Fatalf("expected 3 events, got %d: %v", len(payloads), payloads)
	}
	var text string
	for _, p := range payloads[:2] {
		d, err := sse.DecodeDelta(p)
		if err != nil {
			t.Fatalf("DecodeDelta err: %v", err)
		}
		text += d
	}
	if text != "Hello" {
		t.Errorf("expected Hello, got %q", text)
	}
	if payloads[2] != sse.Done {
		t.Errorf("expected sentinel, got %q", payloads[2])
	}

	sent := up.last.Load().(upstream.CompletionRequest)
	if len(sent.Messages) != 2 || sent.Messages[0].Role != domain.RoleSystem {
		t.Fatalf("expected system message first, got %+v", sent.Messages)
	}
	if !strings.Contains(sent.Messages[0].Content, "Ada builds websites.") {
		t.Errorf("system message missing context: %q", sent.Messages[0].Content)
	}
	if !strings.HasPrefix(sent.Messages[0].Content, "You are Ada's") {
		t.Errorf("system message missing owner: %q", sent.Messages[0].Content)
	}
	if sent.Messages[1].Content != "What do you do?" {
		t.Errorf("user message not forwarded: %+v", sent.Messages[1])
	}
}

func TestChatAppendsMissingSentinel(t *testing.T) {
	up := newFakeUpstream(t, streamLines(delta("only")))
	r := setupRouter(t, up.server.URL, "sk-test", time.Second)

	payloads := ssePayloads(t, postChat(r, validBody).Body)
	if len(payloads) != 2 || payloads[1] != sse.Done {
		t.Fatalf("expected delta then sentinel, got %v", payloads)
	}
}

func TestChatAcceptsLegacyContextField(t *testing.T) {
	up := newFakeUpstream(t, streamLines(delta("ok"), "data: [DONE]"))
	r := setupRouter(t, up.server.URL, "sk-test", time.Second)

	resp := postChat(r, `{"messages":[{"role":"user","content":"hi"}],"portfolioContext":"legacy doc"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	sent := up.last.Load().(upstream.CompletionRequest)
	if !strings.Contains(sent.Messages[0].Content, "legacy doc") {
		t.Errorf("legacy context not forwarded: %q", sent.Messages[0].Content)
	}
}

func TestChatRejectsInvalidBodies(t *testing.T) {
	up := newFakeUpstream(t, streamLines("data: [DONE]"))
	r := setupRouter(t, up.server.URL, "sk-test", time.Second)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not json", "hello"},
		{"missing messages", `{"context":"x"}`},
		{"messages not array", `{"messages":"hi"}`},
		{"empty messages", `{"messages":[]}`},
		{"unknown role", `{"messages":[{"role":"robot","content":"hi"}]}`},
		{"blank content", `{"messages":[{"role":"user","content":"  "}]}`},
		{"oversized context", `{"messages":[{"role":"user","content":"hi"}],"context":"` + strings.Repeat("a", maxRequestBody) + `"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := postChat(r, tc.body)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.Code)
			}
			var body domain.ErrorResponse
			if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil || body.Error == "" {
				t.Errorf("expected JSON error body, got %q", resp.Body.String())
			}
		})
	}

	if n := up.calls.Load(); n != 0 {
		t.Errorf("expected no upstream calls, got %d", n)
	}
}

func TestChatMissingCredential(t *testing.T) {
	up := newFakeUpstream(t, streamLines("data: [DONE]"))
	r := setupRouter(t, up.server.URL, "", time.Second)

	resp := postChat(r, validBody)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var body domain.ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil || body.Error == "" {
		t.Fatalf("expected JSON error body, got %q", resp.Body.String())
	}
	if n := up.calls.Load(); n != 0 {
		t.Errorf("expected zero upstream calls, got %d", n)
	}
}

func TestChatUpstreamTimeout(t *testing.T) {
	up := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	r := setupRouter(t, up.server.URL, "sk-test", 50*time.Millisecond)

	start := time.Now()
	resp := postChat(r, validBody)

	if resp.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", resp.Code)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("request not bounded: %s", elapsed)
	}
}

func TestChatMidStreamTimeoutBecomesInlineError(t *testing.T) {
	up := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "%s\n\n", delta("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	r := setupRouter(t, up.server.URL, "sk-test", 100*time.Millisecond)

	resp := postChat(r, validBody)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 once streaming started, got %d", resp.Code)
	}

	payloads := ssePayloads(t, resp.Body)
	if len(payloads) != 2 {
		t.Fatalf("expected partial delta and inline error, got %v", payloads)
	}
	if got, _ := sse.DecodeDelta(payloads[0]); got != "partial" {
		t.Errorf("partial content retracted: %v", payloads)
	}
	if _, err := sse.DecodeDelta(payloads[1]); err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected inline timeout error, got %v", err)
	}
}

func TestChatUpstreamErrorTranslation(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantError  string
	}{
		{"auth failure", http.StatusUnauthorized, `{"error":{"message":"Authentication Fails"}}`, 401, "Authentication Fails"},
		{"overloaded", http.StatusServiceUnavailable, `{"error":"busy"}`, 503, "busy"},
		{"unparseable", http.StatusInternalServerError, `<html>oops</html>`, 500, "<html>oops</html>"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			up := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})
			r := setupRouter(t, up.server.URL, "sk-test", time.Second)

			resp := postChat(r, validBody)
			if resp.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, resp.Code)
			}
			var body domain.ErrorResponse
			json.Unmarshal(resp.Body.Bytes(), &body)
			if body.Error != tc.wantError {
				t.Errorf("expected error %q, got %q", tc.wantError, body.Error)
			}
			if strings.Contains(resp.Body.String(), "sk-test") {
				t.Error("credential leaked to caller")
			}
		})
	}
}

func TestChatBufferedMode(t *testing.T) {
	up := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"Hello"}}]}`)
	})
	r := setupRouter(t, up.server.URL, "sk-test", time.Second)

	resp := postChat(r, `{"messages":[{"role":"user","content":"hi"}],"context":"doc","stream":false}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body domain.BufferedReply
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if body.Reply != "Hello" {
		t.Errorf("expected Hello, got %q", body.Reply)
	}
	if sent := up.last.Load().(upstream.CompletionRequest); sent.Stream {
		t.Error("expected buffered upstream request")
	}
}
