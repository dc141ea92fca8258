package domain

import "encoding/json"

// RunOutcome is the result of processing one instance. Beyond the exit
// status and the optional submission, agents attach fields (model stats,
// cost counters) that the batch loop carries through untouched.
type RunOutcome struct {
	ExitStatus ExitStatus
	// Submission is the final patch text, nil when the agent produced none.
	Submission *string
	// Aux holds every other field of the outcome object, round-tripped
	// verbatim.
	Aux map[string]json.RawMessage
}

// HasSubmission reports whether the outcome carries a non-empty patch.
func (o RunOutcome) HasSubmission() bool {
	return o.Submission != nil && *o.Submission != ""
}

func (o RunOutcome) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(o.Aux)+2)
	for k, v := range o.Aux {
		fields[k] = v
	}
	if o.ExitStatus != "" {
		raw, err := json.Marshal(o.ExitStatus)
		if err != nil {
			return nil, err
		}
		fields["exit_status"] = raw
	}
	if o.Submission != nil {
		raw, err := json.Marshal(*o.Submission)
		if err != nil {
			return nil, err
		}
		fields["submission"] = raw
	}
	return json.Marshal(fields)
}

func (o *RunOutcome) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*o = RunOutcome{}
	if raw, ok := fields["exit_status"]; ok {
		if err := json.Unmarshal(raw, &o.ExitStatus); err != nil {
			return err
		}
		delete(fields, "exit_status")
	}
	if raw, ok := fields["submission"]; ok {
		var s *string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		o.Submission = s
		delete(fields, "submission")
	}
	if len(fields) > 0 {
		o.Aux = fields
	}
	return nil
}

// Trajectory is the recorded sequence of agent interaction steps. Step
// contents are opaque to the batch loop.
type Trajectory []json.RawMessage

// TrajectoryFile is the on-disk record for one instance: the interaction
// steps plus the final outcome.
type TrajectoryFile struct {
	Trajectory Trajectory `json:"trajectory"`
	Info       RunOutcome `json:"info"`
}

// Complete reports whether the recorded outcome reached a terminal state.
func (t *TrajectoryFile) Complete() bool {
	return t.Info.ExitStatus.Terminal()
}
