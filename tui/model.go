package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/swebatch/internal/domain"
	"github.com/hochfrequenz/swebatch/internal/runstore"
)

// Snapshot is the data the dashboard renders, loaded from the run index
type Snapshot struct {
	Runs      []*runstore.Run
	Instances []*runstore.Instance
	Summary   map[domain.InstanceState]int
}

// Loader fetches a fresh snapshot for the selected run
type Loader func(runID string) (Snapshot, error)

// Model is the TUI application model
type Model struct {
	load Loader

	// Data
	runs      []*runstore.Run
	instances []*runstore.Instance
	summary   map[domain.InstanceState]int

	// UI state
	width       int
	height      int
	activeTab   int
	selectedRun int
	scroll      int
	loadErr     error

	lastRefresh time.Time
}

// NewModel creates a new TUI model
func NewModel(load Loader) Model {
	return Model{load: load}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), tickCmd())
}

// TickMsg triggers a refresh
type TickMsg time.Time

// SnapshotMsg carries freshly loaded data
type SnapshotMsg struct {
	Snapshot Snapshot
	Err      error
}

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) refreshCmd() tea.Cmd {
	runID := ""
	if m.selectedRun < len(m.runs) {
		runID = m.runs[m.selectedRun].ID
	}
	load := m.load
	return func() tea.Msg {
		snap, err := load(runID)
		return SnapshotMsg{Snapshot: snap, Err: err}
	}
}
