package tui

import (
	"fmt"
	"strings"
	"time"
)

func renderView(m Model) string {
	var b strings.Builder
	renderHeader(&b, m)
	renderMachines(&b, m)
	renderFooter(&b, m)
	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	b.WriteString(titleStyle.Render("proxmate: " + m.Title))

	status := " "
	switch {
	case m.Err != nil:
		status += rowLooks[rowFailed].style.Render(fmt.Sprintf("Error: %v", m.Err))
	case m.Done:
		status += rowLooks[rowUp].style.Render("Done")
	case m.Interrupting:
		status += rowLooks[rowInterrupted].style.Render("Interrupting...")
	default:
		status += m.spinner.View()
	}
	b.WriteString(status)
	b.WriteString("\n")
}

func renderMachines(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Machines"))
	b.WriteString("\n")

	if len(m.Machines) == 0 {
		b.WriteString(mutedStyle.Render("    waiting for the first phase..."))
		b.WriteString("\n")
		return
	}

	for _, row := range m.Machines {
		look := rowLooks[stateOf(row)]
		mark := look.mark
		if mark == "" {
			mark = "   " + m.spinner.View()
		}
		phase := row.Phase
		if row.Total > 0 {
			phase = fmt.Sprintf("%s %d/%d", row.Phase, row.Step, row.Total)
		}
		fmt.Fprintf(b, "    %s %-16s %-14s %s\n", look.style.Render(mark), look.style.Render(row.Name), phase, progressBar(row.Progress(), barWidth))

		detail := row.LastLine
		detailStyle := mutedStyle
		switch {
		case row.Err != "":
			detail = row.Err
			detailStyle = rowLooks[rowFailed].style
		case row.Warning:
			detailStyle = rowLooks[rowInterrupted].style
		}
		if detail != "" {
			fmt.Fprintf(b, "         %s\n", detailStyle.Render(truncate(detail, lineWidth(m))))
		}
	}
}

const barWidth = 20

func progressBar(progress float64, width int) string {
	filled := int(float64(width) * progress)
	if filled > width {
		filled = width
	}
	return progressBarFull.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", width-filled))
}

func stateOf(row MachineRow) rowState {
	switch {
	case row.Err != "":
		return rowFailed
	case row.Interrupted:
		return rowInterrupted
	case row.Active:
		return rowWorking
	case row.Total > 0 && row.Step == row.Total:
		return rowUp
	default:
		return rowQueued
	}
}

func renderFooter(b *strings.Builder, m Model) {
	elapsed := formatDuration(time.Since(m.StartTime))
	b.WriteString(footerStyle.Render(fmt.Sprintf("  elapsed %s  |  ctrl+c to interrupt", elapsed)))
	b.WriteString("\n")
}

func lineWidth(m Model) int {
	if m.Width > 20 {
		return m.Width - 10
	}
	return 70
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
