package widget

import (
	"strings"
	"sync"

	"github.com/liliang-cn/folio/internal/domain"
)

// recordingSurface keeps everything the session renders
type recordingSurface struct {
	mu           sync.Mutex
	turns        []domain.Turn
	notices      []string
	inputEnabled bool
	toggles      []bool
	views        []*recordingView
}

type recordingView struct {
	mu        sync.Mutex
	fragments []string
	text      string
}

func (s *recordingSurface) ShowTurn(turn domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
}

func (s *recordingSurface) BeginReply() ReplyView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := &recordingView{text: "..."}
	s.views = append(s.views, v)
	return v
}

func (s *recordingSurface) SetInputEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputEnabled = enabled
	s.toggles = append(s.toggles, enabled)
}

func (s *recordingSurface) ShowNotice(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, text)
}

func (s *recordingSurface) InputEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputEnabled
}

func (s *recordingSurface) Notices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notices...)
}

func (s *recordingSurface) LastView() *recordingView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.views) == 0 {
		return nil
	}
	return s.views[len(s.views)-1]
}

func (v *recordingView) Append(fragment string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.fragments) == 0 {
		v.text = ""
	}
	v.fragments = append(v.fragments, fragment)
	v.text += fragment
}

func (v *recordingView) Replace(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.text = text
}

func (v *recordingView) Text() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.text
}

func (v *recordingView) Fragments() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return strings.Join(v.fragments, "|")
}
