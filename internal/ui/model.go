// ABOUTME: Bubbletea model for the probe TUI
// ABOUTME: Strategy picker, live status pane and scrolling report log
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mpriessner/veepa-audio-probe/internal/app"
	"github.com/mpriessner/veepa-audio-probe/internal/report"
)

const maxLogLines = 500

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

// Model is the TUI state. The controller does the actual work; the model
// only issues commands and displays status and report entries.
type Model struct {
	ctrl       *app.Controller
	entries    <-chan report.Entry
	strategies []string

	vp       viewport.Model
	logLines []string
	status   app.Status
	lastErr  string
	ready    bool
	quitting bool
	width    int
	height   int
}

type tickMsg time.Time

type entryMsg report.Entry

type statusMsg app.Status

type opDoneMsg struct {
	op  string
	err error
}

// NewModel creates the TUI model. A nil controller is allowed in tests;
// keys that would reach the controller become no-ops.
func NewModel(ctrl *app.Controller) Model {
	m := Model{ctrl: ctrl}
	if ctrl != nil {
		m.entries = ctrl.Reporter().Subscribe()
		m.strategies = ctrl.Strategies()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickEvery(), m.waitEntry())
}

func tickEvery() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) waitEntry() tea.Cmd {
	if m.entries == nil {
		return nil
	}
	ch := m.entries
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return entryMsg(e)
	}
}

func (m Model) refreshStatus() tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		return statusMsg(ctrl.Status())
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		logHeight := msg.Height - 14
		if logHeight < 3 {
			logHeight = 3
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, logHeight)
			m.ready = true
			m.vp.SetContent(strings.Join(m.logLines, "\n"))
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = logHeight
		}

	case tickMsg:
		return m, tea.Batch(tickEvery(), m.refreshStatus())

	case statusMsg:
		m.status = app.Status(msg)

	case entryMsg:
		m.appendLine(report.Entry(msg).String())
		return m, m.waitEntry()

	case opDoneMsg:
		if msg.err != nil {
			m.lastErr = fmt.Sprintf("%s: %v", msg.op, msg.err)
		} else {
			m.lastErr = ""
		}
		return m, m.refreshStatus()
	}

	var cmd tea.Cmd
	if m.ready {
		m.vp, cmd = m.vp.Update(msg)
	}
	return m, cmd
}

func (m *Model) appendLine(line string) {
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
	if m.ready {
		m.vp.SetContent(strings.Join(m.logLines, "\n"))
		m.vp.GotoBottom()
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "s":
		return m, m.runOp("start voice", func(ctx context.Context, c *app.Controller) error {
			return c.StartVoice(ctx)
		})

	case "x":
		return m, m.runOp("stop voice", func(ctx context.Context, c *app.Controller) error {
			return c.StopVoice(ctx)
		})

	case "m":
		muted := !m.status.Muted
		return m, m.runOp("mute", func(ctx context.Context, c *app.Controller) error {
			return c.SetMute(ctx, muted)
		})

	case "t":
		return m, m.runOp("self-test", func(ctx context.Context, c *app.Controller) error {
			return c.SelfTest(ctx, "", 2*time.Second)
		})
	}

	if idx := strategyIndex(key, len(m.strategies)); idx >= 0 {
		name := m.strategies[idx]
		return m, m.runOp("apply "+name, func(ctx context.Context, c *app.Controller) error {
			_, err := c.ApplyStrategy(ctx, name)
			return err
		})
	}

	var cmd tea.Cmd
	if m.ready {
		m.vp, cmd = m.vp.Update(msg)
	}
	return m, cmd
}

// strategyIndex maps number keys to strategy list positions.
func strategyIndex(key string, n int) int {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return -1
	}
	idx := int(key[0] - '1')
	if idx >= n {
		return -1
	}
	return idx
}

func (m Model) runOp(label string, fn func(context.Context, *app.Controller) error) tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		return opDoneMsg{op: label, err: fn(context.Background(), ctrl)}
	}
}

func (m Model) View() string {
	if m.quitting {
		return "Shutting down probe...\n"
	}
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Veepa Audio Probe"))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Session: "))
	b.WriteString(valueStyle.Render(m.status.SessionState.String()))
	if m.status.Strategy != "" {
		b.WriteString(valueStyle.Render(fmt.Sprintf("  strategy=%s  granted=%s", m.status.Strategy, m.status.Granted)))
	}
	if m.status.Mismatches > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  mismatches=%d", m.status.Mismatches)))
	}
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Voice:   "))
	b.WriteString(valueStyle.Render(voiceLine(m.status)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Capture: "))
	b.WriteString(valueStyle.Render(captureLine(m.status)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Gate:    "))
	b.WriteString(valueStyle.Render(gateLine(m.status)))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Strategies"))
	b.WriteString("\n")
	for i, name := range m.strategies {
		marker := "  "
		if name == m.status.Strategy {
			marker = "> "
		}
		b.WriteString(valueStyle.Render(fmt.Sprintf("%s[%d] %s", marker, i+1, name)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.lastErr != "" {
		b.WriteString(errStyle.Render(m.lastErr))
		b.WriteString("\n")
	}

	if m.ready {
		b.WriteString(m.vp.View())
		b.WriteString("\n")
	}

	b.WriteString(faintStyle.Render("1-4:Strategy  s:Start  x:Stop  m:Mute  t:Tone  q:Quit"))
	return b.String()
}

func voiceLine(st app.Status) string {
	if !st.VoiceActive {
		return "inactive"
	}
	s := "active"
	if st.Muted {
		s += " (muted)"
	}
	if st.Degraded {
		s += "  DEGRADED: no local monitor"
	}
	return s
}

func captureLine(st app.Status) string {
	s := st.BridgeState.String()
	if st.CaptureSource != "" {
		s += fmt.Sprintf("  source=%s", st.CaptureSource)
	}
	s += fmt.Sprintf("  frames=%d  underruns=%d  dropped=%d",
		st.FramesCaptured, st.Underruns, st.Dropped)
	return s
}

func gateLine(st app.Status) string {
	if !st.GateInstalled {
		return "not installed"
	}
	return fmt.Sprintf("installed  intercepts=%d (restart required to remove)", st.GateIntercepts)
}
