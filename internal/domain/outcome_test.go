package domain

import (
	"encoding/json"
	"testing"
)

func TestExitStatus_Terminal(t *testing.T) {
	tests := []struct {
		status ExitStatus
		want   bool
	}{
		{ExitSubmitted, true},
		{ExitCost, true},
		{ExitError, true},
		{ExitEarly, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("Terminal(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRunOutcome_AuxRoundTrip(t *testing.T) {
	in := []byte(`{"exit_status":"submitted","submission":"diff --git a/x b/x","model_stats":{"tokens_sent":12,"api_calls":3}}`)

	var o RunOutcome
	if err := json.Unmarshal(in, &o); err != nil {
		t.Fatal(err)
	}
	if o.ExitStatus != ExitSubmitted {
		t.Errorf("ExitStatus = %q, want submitted", o.ExitStatus)
	}
	if o.Submission == nil || *o.Submission != "diff --git a/x b/x" {
		t.Errorf("Submission = %v, want patch text", o.Submission)
	}
	if _, ok := o.Aux["model_stats"]; !ok {
		t.Fatal("model_stats not preserved in Aux")
	}

	out, err := json.Marshal(o)
	if err != nil {
		t.Fatal(err)
	}
	var got, want map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(in, &want); err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Errorf("round trip lost fields: got %v, want %v", got, want)
	}
}

func TestRunOutcome_MissingFields(t *testing.T) {
	var o RunOutcome
	if err := json.Unmarshal([]byte(`{"exit_status":"early_exit"}`), &o); err != nil {
		t.Fatal(err)
	}
	if o.HasSubmission() {
		t.Error("HasSubmission() = true for outcome without submission")
	}
	if (&TrajectoryFile{Info: o}).Complete() {
		t.Error("early_exit trajectory reported complete")
	}
}
