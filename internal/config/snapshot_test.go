package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveSnapshot_FirstRun(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	if err := SaveSnapshot(dir, Default(), log); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "args.yaml")); err != nil {
		t.Fatalf("args.yaml not written: %v", err)
	}
	if strings.Contains(buf.String(), "different arguments") {
		t.Error("warned about drift on first run")
	}
}

func TestSaveSnapshot_WarnsOnDrift(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	if err := SaveSnapshot(dir, Default(), log); err != nil {
		t.Fatal(err)
	}

	changed := Default()
	changed.Run.Suffix = "v2"
	if err := SaveSnapshot(dir, changed, log); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "different arguments") {
		t.Error("no warning on drifted snapshot")
	}

	// Drift is tolerated: the new snapshot wins.
	data, err := os.ReadFile(filepath.Join(dir, "args.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "v2") {
		t.Error("snapshot not overwritten with current config")
	}
}
