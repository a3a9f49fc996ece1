package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/liliang-cn/folio/internal/domain"
	"github.com/liliang-cn/folio/internal/widget"
)

// terminal renders a session on a line-oriented stream. User turns are not
// echoed since the user just typed them.
type terminal struct {
	mu   sync.Mutex
	out  io.Writer
	name string
}

func newTerminal(out io.Writer, name string) *terminal {
	return &terminal{out: out, name: name}
}

func (t *terminal) ShowTurn(turn domain.Turn) {
	if turn.Speaker == domain.SpeakerUser {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s: %s\n", t.name, turn.Text)
}

func (t *terminal) BeginReply() widget.ReplyView {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s: ", t.name)
	return &terminalView{t: t}
}

func (t *terminal) SetInputEnabled(enabled bool) {
	if enabled {
		t.Prompt()
	}
}

func (t *terminal) ShowNotice(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "\n* %s\n", text)
}

// Prompt prints the input marker on a fresh line
func (t *terminal) Prompt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.out, "\n> ")
}

type terminalView struct {
	t *terminal
}

func (v *terminalView) Append(fragment string) {
	v.t.mu.Lock()
	defer v.t.mu.Unlock()
	fmt.Fprint(v.t.out, fragment)
}

// Replace prints the whole reply. Nothing has been printed for this view
// when it is called, so there is nothing to erase.
func (v *terminalView) Replace(text string) {
	v.t.mu.Lock()
	defer v.t.mu.Unlock()
	fmt.Fprint(v.t.out, text)
}
