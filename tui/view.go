package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/hochfrequenz/swebatch/internal/domain"
	"github.com/hochfrequenz/swebatch/internal/runstore"
)

var (
	headerStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255")).
		Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	runningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	warningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	dimmedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	selectedStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205"))

	tabActiveStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	statusBarStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255"))
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	header := fmt.Sprintf(" swebatch │ Runs: %d │ %s ",
		len(m.runs), m.summaryLine())
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	switch m.activeTab {
	case 0:
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderRuns()))
	case 1:
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderInstances()))
	}
	b.WriteString("\n")

	if m.loadErr != nil {
		b.WriteString(errorStyle.Width(m.width).Render(" " + m.loadErr.Error() + " "))
		b.WriteString("\n")
	}

	help := " q quit │ tab switch │ j/k move │ r refresh "
	if !m.lastRefresh.IsZero() {
		help += dimmedStyle.Render(fmt.Sprintf("│ refreshed %s ago", time.Since(m.lastRefresh).Round(time.Second)))
	}
	b.WriteString(statusBarStyle.Width(m.width).Render(help))

	return b.String()
}

func (m Model) renderTabs() string {
	tabs := []string{"Runs", "Instances"}
	var parts []string
	for i, t := range tabs {
		if i == m.activeTab {
			parts = append(parts, tabActiveStyle.Render(t))
		} else {
			parts = append(parts, tabInactiveStyle.Render(t))
		}
	}
	return " " + strings.Join(parts, "  ")
}

func (m Model) summaryLine() string {
	if m.summary == nil {
		return "no data"
	}
	return fmt.Sprintf("recorded: %d │ failed: %d │ running: %d │ skipped: %d",
		m.summary[domain.StateRecorded]+m.summary[domain.StateActionGated],
		m.summary[domain.StateFailed],
		m.summary[domain.StateRunning],
		m.summary[domain.StateSkipped]+m.summary[domain.StateFilteredOut])
}

func (m Model) renderRuns() string {
	var b strings.Builder
	b.WriteString("Batch Runs\n\n")

	if len(m.runs) == 0 {
		b.WriteString(dimmedStyle.Render("No runs recorded yet"))
		return b.String()
	}

	for i, r := range m.runs {
		line := fmt.Sprintf("%-50s %s %s", truncate(r.Name, 50),
			r.StartedAt.Format("2006-01-02 15:04"), runStatus(r))
		if i == m.selectedRun {
			b.WriteString(selectedStyle.Render("▶ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func runStatus(r *runstore.Run) string {
	if r.FinishedAt == nil {
		return runningStyle.Render("running")
	}
	return dimmedStyle.Render("finished " + r.FinishedAt.Format("15:04"))
}

func (m Model) renderInstances() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Instances (%d)\n\n", len(m.instances)))

	if len(m.instances) == 0 {
		b.WriteString(dimmedStyle.Render("No instances for selected run"))
		return b.String()
	}

	maxVisible := m.height - 10
	if maxVisible < 5 {
		maxVisible = 5
	}
	start := m.scroll
	if start > len(m.instances)-1 {
		start = len(m.instances) - 1
	}
	end := start + maxVisible
	if end > len(m.instances) {
		end = len(m.instances)
	}

	for _, inst := range m.instances[start:end] {
		status := string(inst.State)
		if inst.ExitStatus != "" {
			status += " (" + string(inst.ExitStatus) + ")"
		}
		line := fmt.Sprintf("%-45s %s", truncate(inst.InstanceID, 45), stateStyle(inst.State).Render(status))
		b.WriteString("  " + line + "\n")
		if inst.Error != "" {
			b.WriteString("    " + errorStyle.Render(truncate(inst.Error, m.width-8)) + "\n")
		}
	}

	if end < len(m.instances) {
		b.WriteString(dimmedStyle.Render(fmt.Sprintf("  … %d more", len(m.instances)-end)))
	}
	return b.String()
}

func stateStyle(s domain.InstanceState) lipgloss.Style {
	switch s {
	case domain.StateRecorded, domain.StateActionGated:
		return runningStyle
	case domain.StateFailed:
		return errorStyle
	case domain.StateRunning:
		return warningStyle
	default:
		return dimmedStyle
	}
}

func truncate(s string, max int) string {
	if max < 1 || len(s) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return s[:max-1] + "…"
}
