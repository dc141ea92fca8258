package domain

// InstanceRecord is one row of the dataset: an issue to solve, plus the
// optional reference material benchmarks ship alongside it.
type InstanceRecord struct {
	InstanceID       string   `json:"instance_id"`
	ProblemStatement string   `json:"problem_statement,omitempty"`
	// Patch is the gold patch in unified diff format, when known.
	Patch string `json:"patch,omitempty"`
	// TestPatch adds or modifies the tests that verify the fix.
	TestPatch string `json:"test_patch,omitempty"`
	// FailToPass lists tests expected to flip from failing to passing.
	FailToPass []string `json:"FAIL_TO_PASS,omitempty"`
	Repo       string   `json:"repo,omitempty"`
	BaseCommit string   `json:"base_commit,omitempty"`
}
