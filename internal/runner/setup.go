package runner

import (
	"fmt"

	"github.com/hochfrequenz/swebatch/internal/diff"
	"github.com/hochfrequenz/swebatch/internal/domain"
)

// SetupArgs is the payload handed to the agent for one instance.
type SetupArgs struct {
	// Issue is the problem statement text.
	Issue string `json:"issue"`
	// Files lists the files the gold patch modifies, as a bullet list.
	Files string `json:"files"`
	// TestFiles lists the files the test patch modifies or adds.
	TestFiles string `json:"test_files"`
	// Tests lists the tests expected to flip from failing to passing.
	Tests string `json:"tests"`
}

func buildSetupArgs(rec *domain.InstanceRecord) (SetupArgs, error) {
	setup := SetupArgs{Issue: rec.ProblemStatement}

	if rec.Patch != "" {
		files, err := diff.ModifiedFiles(rec.Patch)
		if err != nil {
			return SetupArgs{}, fmt.Errorf("parsing gold patch for %s: %w", rec.InstanceID, err)
		}
		setup.Files = diff.BulletList(files)
	}
	if rec.TestPatch != "" {
		files, err := diff.ChangedFiles(rec.TestPatch)
		if err != nil {
			return SetupArgs{}, fmt.Errorf("parsing test patch for %s: %w", rec.InstanceID, err)
		}
		setup.TestFiles = diff.BulletList(files)
	}
	setup.Tests = diff.BulletList(rec.FailToPass)

	return setup, nil
}
