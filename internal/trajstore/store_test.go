package trajstore

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"regexp"
	"testing"

	"github.com/hochfrequenz/swebatch/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func strptr(s string) *string { return &s }

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	traj := domain.Trajectory{json.RawMessage(`{"action":"ls"}`)}
	out := domain.RunOutcome{ExitStatus: domain.ExitSubmitted, Submission: strptr("patch text")}

	if err := s.Save("inst-1", traj, out); err != nil {
		t.Fatal(err)
	}
	tf, err := s.Load("inst-1")
	if err != nil {
		t.Fatal(err)
	}
	if !tf.Complete() {
		t.Error("submitted trajectory not complete")
	}
	if len(tf.Trajectory) != 1 {
		t.Errorf("trajectory length = %d, want 1", len(tf.Trajectory))
	}
	if tf.Info.Submission == nil || *tf.Info.Submission != "patch text" {
		t.Errorf("submission = %v", tf.Info.Submission)
	}
}

func TestDecide_Filter(t *testing.T) {
	s := newTestStore(t)
	filter := regexp.MustCompile(`^(?:a.*)$`)

	tests := []struct {
		id   string
		want Decision
	}{
		{"a1", Process},
		{"a2", Process},
		{"b1", SkipFiltered},
	}
	for _, tt := range tests {
		got, err := s.Decide(filter, true, tt.id)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Decide(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestDecide_SkipExistingDisabled(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save("done", nil, domain.RunOutcome{ExitStatus: domain.ExitSubmitted}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Decide(nil, false, "done")
	if err != nil {
		t.Fatal(err)
	}
	if got != Process {
		t.Errorf("Decide with skip_existing=false = %v, want Process", got)
	}
}

func TestDecide_CompleteTrajectorySkipped(t *testing.T) {
	s := newTestStore(t)
	for _, status := range []domain.ExitStatus{domain.ExitSubmitted, domain.ExitCost, domain.ExitError} {
		id := "done-" + string(status)
		if err := s.Save(id, nil, domain.RunOutcome{ExitStatus: status}); err != nil {
			t.Fatal(err)
		}
		got, err := s.Decide(nil, true, id)
		if err != nil {
			t.Fatal(err)
		}
		if got != SkipDone {
			t.Errorf("Decide(%s) = %v, want SkipDone", id, got)
		}
		// The complete file is left untouched.
		if _, err := os.Stat(s.Path(id)); err != nil {
			t.Errorf("complete trajectory %s was removed: %v", id, err)
		}
	}
}

func TestDecide_IncompleteTrajectoryRemoved(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name    string
		outcome domain.RunOutcome
	}{
		{"early-exit", domain.RunOutcome{ExitStatus: domain.ExitEarly}},
		{"no-status", domain.RunOutcome{}},
	}
	for _, tt := range tests {
		if err := s.Save(tt.name, nil, tt.outcome); err != nil {
			t.Fatal(err)
		}
		got, err := s.Decide(nil, true, tt.name)
		if err != nil {
			t.Fatal(err)
		}
		if got != Process {
			t.Errorf("Decide(%s) = %v, want Process", tt.name, got)
		}
		if _, err := os.Stat(s.Path(tt.name)); !os.IsNotExist(err) {
			t.Errorf("incomplete trajectory %s not removed", tt.name)
		}
	}
}

func TestDecide_CorruptedTrajectoryRemoved(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(s.Path("bad"), []byte(`{"trajectory": [`), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := s.Decide(nil, true, "bad")
	if err != nil {
		t.Fatal(err)
	}
	if got != Process {
		t.Errorf("Decide(bad) = %v, want Process", got)
	}
	if _, err := os.Stat(s.Path("bad")); !os.IsNotExist(err) {
		t.Error("corrupted trajectory not removed")
	}
}

func TestLedger_AppendAndRead(t *testing.T) {
	s := newTestStore(t)

	if err := s.AppendPrediction("run-x", "i1", strptr("patch-1")); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendPrediction("run-x", "i2", nil); err != nil {
		t.Fatal(err)
	}

	preds, err := s.ReadLedger()
	if err != nil {
		t.Fatal(err)
	}
	if len(preds) != 2 {
		t.Fatalf("ledger has %d entries, want 2", len(preds))
	}
	if preds[0].InstanceID != "i1" || preds[0].ModelPatch == nil || *preds[0].ModelPatch != "patch-1" {
		t.Errorf("first entry = %+v", preds[0])
	}
	if preds[1].ModelPatch != nil {
		t.Errorf("nil submission serialized as %v, want null", *preds[1].ModelPatch)
	}
}

func TestWritePatch(t *testing.T) {
	s := newTestStore(t)

	patch := "--- a/f.txt\n+++ b/f.txt\n@@ -1 +1 @@\n-old\n+new\n"
	path, err := s.WritePatch("i1", domain.RunOutcome{Submission: strptr(patch)})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != patch {
		t.Error("patch artifact not byte-identical to submission")
	}

	// Overwrite is idempotent.
	if _, err := s.WritePatch("i1", domain.RunOutcome{Submission: strptr(patch)}); err != nil {
		t.Fatal(err)
	}

	// No submission: nothing written, no error.
	path, err = s.WritePatch("i2", domain.RunOutcome{})
	if err != nil {
		t.Fatal(err)
	}
	if path != "" {
		t.Errorf("WritePatch without submission returned path %q", path)
	}
}
