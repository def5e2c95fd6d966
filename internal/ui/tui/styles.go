package tui

import "github.com/charmbracelet/lipgloss"

// Palette follows the Proxmox web UI: orange accents on slate.
var (
	colorAccent  = lipgloss.Color("#e57000")
	colorRunning = lipgloss.Color("#4caf50")
	colorFailed  = lipgloss.Color("#d9534f")
	colorHalted  = lipgloss.Color("#f0ad4e")
	colorMuted   = lipgloss.Color("#8a94a6")
	colorText    = lipgloss.Color("#e8ecf1")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorText).MarginTop(1)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	footerStyle  = mutedStyle.MarginTop(1)

	progressBarFull  = lipgloss.NewStyle().Foreground(colorAccent)
	progressBarEmpty = lipgloss.NewStyle().Foreground(colorMuted)
)

// rowState is where a machine row stands in its phase list.
type rowState int

const (
	rowQueued rowState = iota
	rowWorking
	rowUp
	rowFailed
	rowInterrupted
)

// rowLook is the mark and style of a row state. rowWorking shows the
// spinner instead of its mark.
type rowLook struct {
	mark  string
	style lipgloss.Style
}

var rowLooks = map[rowState]rowLook{
	rowQueued:      {"  --", mutedStyle},
	rowWorking:     {"", lipgloss.NewStyle().Bold(true).Foreground(colorText)},
	rowUp:          {"  up", lipgloss.NewStyle().Foreground(colorRunning)},
	rowFailed:      {"fail", lipgloss.NewStyle().Bold(true).Foreground(colorFailed)},
	rowInterrupted: {"halt", lipgloss.NewStyle().Foreground(colorHalted)},
}
