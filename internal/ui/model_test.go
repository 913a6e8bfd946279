// ABOUTME: Tests for TUI model state transitions and view rendering
// ABOUTME: Exercises the model without a running bubbletea program
package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mpriessner/veepa-audio-probe/internal/app"
	"github.com/mpriessner/veepa-audio-probe/internal/intercept"
	"github.com/mpriessner/veepa-audio-probe/internal/session"
	"github.com/mpriessner/veepa-audio-probe/pkg/audio"
)

func TestNewModelWithoutController(t *testing.T) {
	m := NewModel(nil)
	if m.entries != nil {
		t.Error("expected no entry channel without controller")
	}
	if m.Init() == nil {
		t.Error("expected init command")
	}
	// Controller-bound keys are no-ops, not panics.
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	if cmd != nil {
		t.Error("expected no command without controller")
	}
	if next == nil {
		t.Error("expected model from update")
	}
}

func TestStatusMsgApplied(t *testing.T) {
	m := NewModel(nil)
	st := app.Status{
		SessionState: session.StateActive,
		Strategy:     "preinit",
		Granted:      audio.FormatDescriptor{SampleRate: 16000, Channels: 1, BitsPerSample: 16},
		VoiceActive:  true,
		Mismatches:   1,
	}
	next, _ := m.Update(statusMsg(st))
	got := next.(Model)
	if got.status.Strategy != "preinit" {
		t.Errorf("expected strategy applied, got %q", got.status.Strategy)
	}
	if !got.status.VoiceActive {
		t.Error("expected voice active applied")
	}
}

func TestViewRendersStatus(t *testing.T) {
	m := NewModel(nil)
	m.width = 80
	m.height = 30
	m.strategies = []string{"baseline", "preinit", "intercepted", "locked"}
	m.status = app.Status{
		SessionState:  session.StateActive,
		Strategy:      "locked",
		Granted:       audio.FormatDescriptor{SampleRate: 16000, Channels: 1, BitsPerSample: 16},
		VoiceActive:   true,
		Degraded:      true,
		BridgeState:   intercept.StateInstalled,
		GateInstalled: true,
	}

	view := m.View()
	for _, want := range []string{"Veepa Audio Probe", "locked", "DEGRADED", "restart required", "[4] locked"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
	if !strings.Contains(view, "> ") {
		t.Error("expected active strategy marker")
	}
}

func TestViewBeforeSizing(t *testing.T) {
	m := NewModel(nil)
	if m.View() != "Loading..." {
		t.Errorf("expected loading placeholder, got %q", m.View())
	}
}

func TestQuitKey(t *testing.T) {
	m := NewModel(nil)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !next.(Model).quitting {
		t.Error("expected quitting state")
	}
}

func TestStrategyIndex(t *testing.T) {
	tests := []struct {
		key  string
		n    int
		want int
	}{
		{"1", 4, 0},
		{"4", 4, 3},
		{"5", 4, -1},
		{"0", 4, -1},
		{"a", 4, -1},
		{"12", 4, -1},
		{"2", 1, -1},
	}
	for _, tt := range tests {
		if got := strategyIndex(tt.key, tt.n); got != tt.want {
			t.Errorf("strategyIndex(%q, %d) = %d, expected %d", tt.key, tt.n, got, tt.want)
		}
	}
}

func TestLogLinesTrimmed(t *testing.T) {
	m := NewModel(nil)
	for i := 0; i < maxLogLines+50; i++ {
		m.appendLine("entry")
	}
	if len(m.logLines) != maxLogLines {
		t.Errorf("expected %d retained lines, got %d", maxLogLines, len(m.logLines))
	}
}

func TestWindowSizeInitializesViewport(t *testing.T) {
	m := NewModel(nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	got := next.(Model)
	if !got.ready {
		t.Fatal("expected viewport ready after window size")
	}
	if got.vp.Width != 100 {
		t.Errorf("expected viewport width 100, got %d", got.vp.Width)
	}
}

func TestOpErrorShownAndCleared(t *testing.T) {
	m := NewModel(nil)
	m.width = 80

	next, _ := m.Update(opDoneMsg{op: "start voice", err: errFake})
	got := next.(Model)
	if !strings.Contains(got.View(), "start voice") {
		t.Error("expected failed op in view")
	}

	next, _ = got.Update(opDoneMsg{op: "start voice", err: nil})
	got = next.(Model)
	if strings.Contains(got.View(), "start voice:") {
		t.Error("expected error cleared after success")
	}
}

var errFake = &fakeErr{}

type fakeErr struct{}

func (*fakeErr) Error() string { return "boom" }
