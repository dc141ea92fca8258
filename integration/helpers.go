//go:build integration

package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hochfrequenz/swebatch/internal/domain"
)

// TempDBPath creates a temporary database path for testing
func TempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "runs.db")
}

// WriteDataset writes instance records to a JSONL dataset file
func WriteDataset(t *testing.T, dir string, records []domain.InstanceRecord) string {
	t.Helper()
	path := filepath.Join(dir, "dataset.jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create dataset: %v", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			t.Fatalf("Failed to write dataset record: %v", err)
		}
	}
	return path
}

// SampleRecords returns a small dataset covering distinct instances
func SampleRecords() []domain.InstanceRecord {
	return []domain.InstanceRecord{
		{
			InstanceID:       "repo__proj-1",
			ProblemStatement: "Division by zero in parser",
			Patch:            "--- a/parser.py\n+++ b/parser.py\n@@ -1 +1 @@\n-old\n+new\n",
			FailToPass:       []string{"test_parse_empty"},
		},
		{
			InstanceID:       "repo__proj-2",
			ProblemStatement: "Off by one in pagination",
		},
		{
			InstanceID:       "other__lib-9",
			ProblemStatement: "Crash on unicode input",
		},
	}
}

// SubmitAgentScript is a shell agent that reads the setup payload from
// stdin and emits one step plus a submitted outcome with a fixed patch.
const SubmitAgentScript = `read -r payload
printf '%s\n' '{"role":"assistant","action":"inspect"}'
printf '%s\n' '{"exit_status":"submitted","submission":"diff --git a/f b/f"}'
`

// WriteAgent writes an executable shell script agent and returns the
// command line for it
func WriteAgent(t *testing.T, dir, script string) string {
	t.Helper()
	path := filepath.Join(dir, "agent.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("Failed to write agent script: %v", err)
	}
	return path
}
