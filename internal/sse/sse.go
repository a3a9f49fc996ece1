// Package sse implements the line framing used between the upstream
// completion API, the chat proxy and the chat client.
//
// Every event is a single "data: <payload>" line followed by a blank line.
// The payload is either a JSON chunk or the literal Done sentinel.
package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Done marks the normal end of a stream
const Done = "[DONE]"

const (
	dataPrefix = "data:"
	// upstream chunks can carry long deltas, bufio's 64KiB default is too small
	maxLineSize = 1024 * 1024
)

// ErrNoContent is returned by DecodeDelta for chunks that carry no text
var ErrNoContent = errors.New("chunk has no content")

// Chunk is the streamed completion payload. Only the fields the relay and
// the client read are declared.
type Chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Error string `json:"error,omitempty"`
}

// Payload extracts the data payload from one line. ok is false for blank
// lines, comments and other SSE fields (event:, id:, retry:).
func Payload(line string) (payload string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(dataPrefix):]), true
}

// DecodeDelta parses a JSON payload and returns its text delta. A payload
// that is not a well-formed chunk returns an error and must be skipped.
func DecodeDelta(payload string) (string, error) {
	var chunk Chunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", fmt.Errorf("malformed chunk: %w", err)
	}
	if chunk.Error != "" {
		return "", &StreamError{Message: chunk.Error}
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return "", ErrNoContent
	}
	return chunk.Choices[0].Delta.Content, nil
}

// StreamError is an inline error fragment reported after a stream started
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "stream error: " + e.Message
}

// NewScanner returns a line scanner sized for completion chunks
func NewScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return scanner
}

// Writer frames events onto an HTTP response and flushes after each one
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w. Flushing is skipped when w cannot flush.
func NewWriter(w io.Writer) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// SetHeaders sets the event-stream response headers
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Data writes one data event
func (w *Writer) Data(payload string) error {
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Done writes the end-of-stream sentinel
func (w *Writer) Done() error {
	return w.Data(Done)
}

// Error writes an inline error fragment
func (w *Writer) Error(message string) error {
	data, err := json.Marshal(Chunk{Error: message})
	if err != nil {
		return err
	}
	return w.Data(string(data))
}

// Delta writes a text delta in the upstream chunk shape
func (w *Writer) Delta(content string) error {
	data, err := json.Marshal(map[string]any{
		"choices": []map[string]any{{
			"index": 0,
			"delta": map[string]string{"content": content},
		}},
	})
	if err != nil {
		return err
	}
	return w.Data(string(data))
}
