package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.refreshCmd()
		case "j", "down":
			if m.activeTab == 0 {
				if m.selectedRun < len(m.runs)-1 {
					m.selectedRun++
					return m, m.refreshCmd()
				}
			} else {
				m.scroll++
			}
		case "k", "up":
			if m.activeTab == 0 {
				if m.selectedRun > 0 {
					m.selectedRun--
					return m, m.refreshCmd()
				}
			} else if m.scroll > 0 {
				m.scroll--
			}
		case "tab":
			m.activeTab = (m.activeTab + 1) % 2
			m.scroll = 0
		case "i":
			m.activeTab = 1
			m.scroll = 0
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tea.Batch(m.refreshCmd(), tickCmd())

	case SnapshotMsg:
		if msg.Err != nil {
			m.loadErr = msg.Err
			return m, nil
		}
		m.loadErr = nil
		m.runs = msg.Snapshot.Runs
		m.instances = msg.Snapshot.Instances
		m.summary = msg.Snapshot.Summary
		if m.selectedRun >= len(m.runs) && len(m.runs) > 0 {
			m.selectedRun = len(m.runs) - 1
		}
		m.lastRefresh = time.Now()
		return m, nil
	}

	return m, nil
}
