// ABOUTME: TUI program setup for the probe
// ABOUTME: Wraps bubbletea with alt-screen and the probe model
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mpriessner/veepa-audio-probe/internal/app"
)

// Run creates and returns the TUI program for the given controller. The
// caller runs it and shuts the controller down after it exits.
func Run(ctrl *app.Controller) *tea.Program {
	return tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
}
