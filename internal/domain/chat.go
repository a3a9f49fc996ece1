package domain

import "time"

// Message roles accepted by the chat proxy
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Speaker of a conversation turn as shown in the widget
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// Turn is one displayed message. Turns are append-only and never mutated.
type Turn struct {
	Speaker   Speaker   `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatMessage is the provider-agnostic message shape sent to the proxy and upstream
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ProxyRequest is the body of POST /chat
type ProxyRequest struct {
	Messages []ChatMessage `json:"messages"`
	Context  string        `json:"context"`
	// PortfolioContext is the field name older widgets send
	PortfolioContext string `json:"portfolioContext,omitempty"`
	Stream           *bool  `json:"stream,omitempty"`
}

// ContextDocument returns the context text, preferring Context over the legacy field
func (r *ProxyRequest) ContextDocument() string {
	if r.Context != "" {
		return r.Context
	}
	return r.PortfolioContext
}

// Streaming reports whether the caller wants an event stream (the default)
func (r *ProxyRequest) Streaming() bool {
	return r.Stream == nil || *r.Stream
}

// BufferedReply is the response of POST /chat with "stream": false
type BufferedReply struct {
	Reply string `json:"reply"`
}

// ErrorResponse is the JSON error body returned by every endpoint
type ErrorResponse struct {
	Error string `json:"error"`
}
