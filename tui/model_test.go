package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/swebatch/internal/domain"
	"github.com/hochfrequenz/swebatch/internal/runstore"
)

func testSnapshot() Snapshot {
	finished := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)
	return Snapshot{
		Runs: []*runstore.Run{
			{ID: "r1", Name: "gpt4__lite__default__t-0.00__p-0.95__c-3.00__install-1", StartedAt: finished.Add(-time.Hour)},
			{ID: "r2", Name: "older-run", StartedAt: finished.Add(-2 * time.Hour), FinishedAt: &finished},
		},
		Instances: []*runstore.Instance{
			{RunID: "r1", InstanceID: "astropy__astropy-12907", State: domain.StateRecorded, ExitStatus: domain.ExitSubmitted},
			{RunID: "r1", InstanceID: "django__django-11039", State: domain.StateFailed, Error: "agent exited with status 3"},
			{RunID: "r1", InstanceID: "sympy__sympy-13031", State: domain.StateRunning},
		},
		Summary: map[domain.InstanceState]int{
			domain.StateRecorded: 1,
			domain.StateFailed:   1,
			domain.StateRunning:  1,
		},
	}
}

func loadedModel(t *testing.T) Model {
	t.Helper()
	m := NewModel(func(runID string) (Snapshot, error) {
		return testSnapshot(), nil
	})
	updated, _ := m.Update(SnapshotMsg{Snapshot: testSnapshot()})
	updated, _ = updated.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model)
}

func TestModel_ViewRendersRuns(t *testing.T) {
	m := loadedModel(t)

	view := m.View()
	if !strings.Contains(view, "gpt4__lite") {
		t.Error("View should list the run name")
	}
	if !strings.Contains(view, "Runs: 2") {
		t.Error("View should show the run count in the header")
	}
	if !strings.Contains(view, "recorded: 1") {
		t.Error("View should show the summary line")
	}
}

func TestModel_ViewRendersInstances(t *testing.T) {
	m := loadedModel(t)
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)

	view := m.View()
	if !strings.Contains(view, "astropy__astropy-12907") {
		t.Error("Instances tab should list instance ids")
	}
	if !strings.Contains(view, "submitted") {
		t.Error("Instances tab should show exit statuses")
	}
	if !strings.Contains(view, "agent exited with status 3") {
		t.Error("Instances tab should show instance errors")
	}
}

func TestModel_Navigation(t *testing.T) {
	m := loadedModel(t)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	m = updated.(Model)
	if m.selectedRun != 1 {
		t.Errorf("selectedRun = %d, want 1", m.selectedRun)
	}
	if cmd == nil {
		t.Error("Changing run selection should trigger a reload")
	}

	// Does not move past the last run
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	m = updated.(Model)
	if m.selectedRun != 1 {
		t.Errorf("selectedRun = %d, want 1", m.selectedRun)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	m = updated.(Model)
	if m.selectedRun != 0 {
		t.Errorf("selectedRun = %d, want 0", m.selectedRun)
	}
}

func TestModel_Quit(t *testing.T) {
	m := loadedModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
}

func TestModel_LoadError(t *testing.T) {
	m := loadedModel(t)
	updated, _ := m.Update(SnapshotMsg{Err: errTest})
	m = updated.(Model)

	if !strings.Contains(m.View(), "index unavailable") {
		t.Error("View should surface the load error")
	}
}

var errTest = &indexError{}

type indexError struct{}

func (*indexError) Error() string { return "index unavailable" }

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"much-too-long-for-this", 10, "much-too-…"},
		{"ab", 1, "…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
