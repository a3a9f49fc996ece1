package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/liliang-cn/folio/internal/domain"
)

func TestTerminalRendersStreamedReply(t *testing.T) {
	var out bytes.Buffer
	term := newTerminal(&out, "bot")

	term.ShowTurn(domain.Turn{Speaker: domain.SpeakerUser, Text: "Hi", Timestamp: time.Now()})
	view := term.BeginReply()
	view.Append("Hel")
	view.Append("lo")
	term.SetInputEnabled(true)

	got := out.String()
	if strings.Contains(got, "Hi") {
		t.Errorf("Expected user turn not echoed, got %q", got)
	}
	if !strings.HasPrefix(got, "bot: Hello\n> ") {
		t.Errorf("Unexpected output %q", got)
	}
}

func TestTerminalDisabledInputPrintsNothing(t *testing.T) {
	var out bytes.Buffer
	term := newTerminal(&out, "bot")
	term.SetInputEnabled(false)
	if out.Len() != 0 {
		t.Errorf("Expected no output, got %q", out.String())
	}
}
