package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRequest indicates invalid request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRateLimited indicates rate limit exceeded
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrMissingCredential indicates no upstream API key is configured
	ErrMissingCredential = errors.New("API key is not configured")
	// ErrUpstreamTimeout indicates the upstream did not answer within the bound
	ErrUpstreamTimeout = errors.New("upstream timed out")
	// ErrUpstreamUnreachable indicates the upstream could not be contacted
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
	// ErrEmptyReply indicates a transport-level success that carried no text
	ErrEmptyReply = errors.New("no response received from AI")
	// ErrEmptyMessage indicates blank user input
	ErrEmptyMessage = errors.New("message is empty")
	// ErrBusy indicates a request is already in flight for the session
	ErrBusy = errors.New("a reply is already in progress")
	// ErrSessionEnded indicates the session ended due to inactivity
	ErrSessionEnded = errors.New("session has ended")
)

// UpstreamError is a non-2xx answer from the completion service
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Message)
}

// RelayStatus returns the status to forward to the caller. Statuses outside
// 4xx/5xx are not meaningful to a browser and become 502.
func (e *UpstreamError) RelayStatus() int {
	if e.Status >= 400 && e.Status <= 599 {
		return e.Status
	}
	return http.StatusBadGateway
}

// Category groups failures into the fixed set of user-facing replies
type Category string

const (
	CategoryNetwork       Category = "network"
	CategoryMisconfigured Category = "misconfigured"
	CategoryUnavailable   Category = "unavailable"
	CategoryGeneric       Category = "generic"
)

// Message returns the text shown to the visitor for the category
func (c Category) Message() string {
	switch c {
	case CategoryNetwork:
		return "Connection error: Please check your internet connection or try again later."
	case CategoryMisconfigured:
		return "Configuration error: AI service is temporarily unavailable."
	case CategoryUnavailable:
		return "The AI service is busy right now. Please try again in a moment."
	default:
		return "Sorry, I am having trouble connecting to my brain right now. Please try again later."
	}
}

// ReplyError is a classified failure of a proxy call
type ReplyError struct {
	Category Category
	Err      error
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *ReplyError) Unwrap() error {
	return e.Err
}

// ClassifyStatus maps a failed HTTP status and its error text to a category
func ClassifyStatus(status int, message string) Category {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "api key"), strings.Contains(lower, "not configured"):
		return CategoryMisconfigured
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return CategoryMisconfigured
	case strings.Contains(lower, "timed out"), strings.Contains(lower, "unreachable"):
		return CategoryNetwork
	case status == http.StatusGatewayTimeout:
		return CategoryNetwork
	case status == http.StatusTooManyRequests,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable:
		return CategoryUnavailable
	default:
		return CategoryGeneric
	}
}

// ClassifyError maps any error from a proxy call to a category
func ClassifyError(err error) Category {
	var replyErr *ReplyError
	if errors.As(err, &replyErr) {
		return replyErr.Category
	}
	var upstreamErr *UpstreamError
	switch {
	case err == nil:
		return CategoryGeneric
	case errors.Is(err, ErrMissingCredential):
		return CategoryMisconfigured
	case errors.Is(err, ErrUpstreamTimeout), errors.Is(err, ErrUpstreamUnreachable):
		return CategoryNetwork
	case errors.As(err, &upstreamErr):
		return ClassifyStatus(upstreamErr.Status, upstreamErr.Message)
	default:
		return CategoryGeneric
	}
}
