package widget

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/folio/internal/domain"
	"go.uber.org/zap"
)

// SessionEndedNotice is shown when the idle timer ends a session
const SessionEndedNotice = "Your session has ended due to inactivity. Click or start typing to continue."

const defaultHistoryLimit = 20

// TranscriptSink receives finished exchanges. Failures are logged only.
type TranscriptSink interface {
	Record(ctx context.Context, sessionID, userMessage, botResponse string) error
}

// Options configures a Session
type Options struct {
	Source  ReplySource
	Surface Surface
	// Context is the knowledge-base document, loaded once per session
	Context     string
	IdleTimeout time.Duration
	// ReopenAfter reopens an ended session on its own; zero waits for interaction
	ReopenAfter  time.Duration
	HistoryLimit int
	Transcripts  TranscriptSink
	Logger       *zap.Logger
}

// entry is a shown turn. failed marks a bot turn that stands in for a
// reply that never arrived; it is shown but not sent upstream.
type entry struct {
	turn   domain.Turn
	failed bool
}

// Session is one visitor conversation. Turns are append-only and at most
// one reply is in flight at a time.
type Session struct {
	id           string
	source       ReplySource
	surface      Surface
	contextDoc   string
	historyLimit int
	reopenAfter  time.Duration
	transcripts  TranscriptSink
	logger       *zap.Logger
	idle         *IdleTimer

	mu          sync.Mutex
	turns       []entry
	inFlight    bool
	ended       bool
	closed      bool
	reopenTimer *time.Timer
}

// NewSession creates a session. Call Open to start it.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	historyLimit := opts.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	idleTimeout := opts.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 5 * time.Minute
	}
	contextDoc := opts.Context
	if strings.TrimSpace(contextDoc) == "" {
		contextDoc = FallbackContext
	}

	s := &Session{
		id:           uuid.New().String(),
		source:       opts.Source,
		surface:      opts.Surface,
		contextDoc:   contextDoc,
		historyLimit: historyLimit,
		reopenAfter:  opts.ReopenAfter,
		transcripts:  opts.Transcripts,
		logger:       logger,
	}
	s.logger = logger.With(zap.String("session_id", s.id))
	s.idle = NewIdleTimer(idleTimeout, s.expire)
	return s
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Open shows the welcome message and starts the idle timer
func (s *Session) Open(welcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if welcome != "" {
		s.surface.ShowNotice(welcome)
	}
	s.surface.SetInputEnabled(true)
	s.idle.Reset()
}

// Submit sends one user message and waits for the reply. Blank text is
// ErrEmptyMessage, a submission while a reply is pending is ErrBusy and an
// ended session is ErrSessionEnded; none of these change any state.
// Reply failures are shown as bot messages, not returned.
func (s *Session) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ErrEmptyMessage
	}

	s.mu.Lock()
	switch {
	case s.ended, s.closed:
		s.mu.Unlock()
		return domain.ErrSessionEnded
	case s.inFlight:
		s.mu.Unlock()
		return domain.ErrBusy
	}
	s.inFlight = true
	userTurn := domain.Turn{Speaker: domain.SpeakerUser, Text: text, Timestamp: time.Now()}
	s.turns = append(s.turns, entry{turn: userTurn})
	history := s.historyLocked()
	s.surface.ShowTurn(userTurn)
	s.surface.SetInputEnabled(false)
	s.idle.Reset()
	s.mu.Unlock()

	view := s.surface.BeginReply()
	reply := s.source.Reply(ctx, ReplyRequest{Text: text, History: history, Context: s.contextDoc}, view)
	if strings.TrimSpace(reply.Text) == "" {
		reply = Reply{Text: domain.CategoryGeneric.Message(), Err: domain.ErrEmptyReply}
	}
	if !reply.Streamed {
		view.Replace(reply.Text)
	}

	s.mu.Lock()
	botTurn := domain.Turn{Speaker: domain.SpeakerBot, Text: reply.Text, Timestamp: time.Now()}
	s.turns = append(s.turns, entry{turn: botTurn, failed: reply.Err != nil})
	s.inFlight = false
	if !s.ended && !s.closed {
		s.surface.SetInputEnabled(true)
		s.idle.Reset()
	}
	s.mu.Unlock()

	if reply.Err == nil {
		s.record(ctx, text, reply.Text)
	}
	return nil
}

// Keystroke records typing activity: it reopens an ended session and
// restarts the idle timer
func (s *Session) Keystroke() {
	s.reopen()
	s.idle.Reset()
}

// Touch records a click or focus on the input. It reopens an ended session.
func (s *Session) Touch() {
	if s.reopen() {
		s.idle.Reset()
	}
}

// Turns returns a copy of the conversation
func (s *Session) Turns() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := make([]domain.Turn, len(s.turns))
	for i, e := range s.turns {
		turns[i] = e.turn
	}
	return turns
}

// Ended reports whether the session ended due to inactivity
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// InFlight reports whether a reply is pending
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Close stops all timers. The session accepts no further submissions.
func (s *Session) Close() {
	s.idle.Stop()
	s.mu.Lock()
	s.closed = true
	if s.reopenTimer != nil {
		s.reopenTimer.Stop()
		s.reopenTimer = nil
	}
	s.mu.Unlock()
}

// historyLocked converts the most recent turns to proxy messages. A failed
// reply is dropped together with the user message it answered.
func (s *Session) historyLocked() []domain.ChatMessage {
	msgs := make([]domain.ChatMessage, 0, len(s.turns))
	for _, e := range s.turns {
		switch {
		case e.turn.Speaker == domain.SpeakerBot && e.failed:
			if n := len(msgs); n > 0 && msgs[n-1].Role == domain.RoleUser {
				msgs = msgs[:n-1]
			}
		case e.turn.Speaker == domain.SpeakerBot:
			msgs = append(msgs, domain.ChatMessage{Role: domain.RoleAssistant, Content: e.turn.Text})
		default:
			msgs = append(msgs, domain.ChatMessage{Role: domain.RoleUser, Content: e.turn.Text})
		}
	}
	if len(msgs) > s.historyLimit {
		msgs = msgs[len(msgs)-s.historyLimit:]
	}
	return msgs
}

func (s *Session) expire() {
	s.mu.Lock()
	if s.ended || s.closed {
		s.mu.Unlock()
		return
	}
	s.ended = true
	if s.reopenAfter > 0 {
		s.reopenTimer = time.AfterFunc(s.reopenAfter, func() { s.reopen() })
	}
	s.surface.SetInputEnabled(false)
	s.surface.ShowNotice(SessionEndedNotice)
	s.mu.Unlock()

	s.logger.Info("session ended due to inactivity")
}

// reopen returns true when the session was ended and is now open again
func (s *Session) reopen() bool {
	s.mu.Lock()
	if !s.ended || s.closed {
		s.mu.Unlock()
		return false
	}
	s.ended = false
	if s.reopenTimer != nil {
		s.reopenTimer.Stop()
		s.reopenTimer = nil
	}
	if !s.inFlight {
		s.surface.SetInputEnabled(true)
	}
	s.mu.Unlock()
	return true
}

func (s *Session) record(ctx context.Context, userMessage, botResponse string) {
	if s.transcripts == nil {
		return
	}
	if err := s.transcripts.Record(ctx, s.id, userMessage, botResponse); err != nil {
		s.logger.Warn("failed to record transcript", zap.Error(err))
	}
}
