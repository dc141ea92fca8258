package domain

// ExitStatus is the terminal classification of one instance's processing.
type ExitStatus string

const (
	// ExitSubmitted means the agent finished with a final patch submission.
	ExitSubmitted ExitStatus = "submitted"
	// ExitEarly marks an interrupted run; a trajectory carrying it is
	// incomplete and will be reprocessed on the next invocation.
	ExitEarly ExitStatus = "early_exit"

	ExitCost    ExitStatus = "exit_cost"
	ExitContext ExitStatus = "exit_context"
	ExitFormat  ExitStatus = "exit_format"
	ExitError   ExitStatus = "exit_error"
)

// Terminal reports whether the status marks a trajectory as complete.
// A missing status or an early exit means the run never finished.
func (s ExitStatus) Terminal() bool {
	return s != "" && s != ExitEarly
}

// InstanceState represents where one instance ended up in the batch loop.
type InstanceState string

const (
	StateFilteredOut InstanceState = "filtered_out"
	StateSkipped     InstanceState = "skipped"
	StateRunning     InstanceState = "running"
	StateRecorded    InstanceState = "recorded"
	StateActionGated InstanceState = "action_gated"
	StateFailed      InstanceState = "failed"
)
