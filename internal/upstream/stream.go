package upstream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/liliang-cn/folio/internal/domain"
	"github.com/liliang-cn/folio/internal/sse"
)

// Stream is an open streaming completion. Lines are read one at a time;
// the idle time between lines is bounded by the client timeout.
type Stream struct {
	body      io.ReadCloser
	scanner   *bufio.Scanner
	wd        *watchdog
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newStream(body io.ReadCloser, wd *watchdog, cancel context.CancelFunc) *Stream {
	return &Stream{
		body:    body,
		scanner: sse.NewScanner(body),
		wd:      wd,
		cancel:  cancel,
	}
}

// Next returns the next raw line. It returns io.EOF at a clean end of
// stream and domain.ErrUpstreamTimeout when the idle bound expired.
func (s *Stream) Next() (string, error) {
	if s.scanner.Scan() {
		s.wd.reset()
		return s.scanner.Text(), nil
	}
	if s.wd.expired() {
		return "", domain.ErrUpstreamTimeout
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read upstream stream: %w", err)
	}
	return "", io.EOF
}

// Close releases the upstream connection. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.wd.stop()
		s.cancel()
		err = s.body.Close()
	})
	return err
}

// watchdog cancels a request when no progress is made within timeout
type watchdog struct {
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

func newWatchdog(timeout time.Duration, cancel context.CancelFunc) *watchdog {
	w := &watchdog{timeout: timeout}
	w.timer = time.AfterFunc(timeout, func() {
		w.fired.Store(true)
		cancel()
	})
	return w
}

func (w *watchdog) reset() {
	if !w.fired.Load() {
		w.timer.Reset(w.timeout)
	}
}

func (w *watchdog) stop() {
	w.timer.Stop()
}

func (w *watchdog) expired() bool {
	return w.fired.Load()
}
