package prgate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hochfrequenz/swebatch/internal/domain"
	"github.com/hochfrequenz/swebatch/internal/issues"
)

type fakeLookup struct {
	data *issues.Data
	err  error
}

func (f *fakeLookup) Fetch(context.Context, string) (*issues.Data, error) {
	return f.data, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strptr(s string) *string { return &s }

func submitted() domain.RunOutcome {
	return domain.RunOutcome{ExitStatus: domain.ExitSubmitted, Submission: strptr("diff")}
}

func TestEvaluate_NoSubmission(t *testing.T) {
	// The lookup must never be called when there is nothing to submit.
	g := New(&fakeLookup{err: fmt.Errorf("lookup should not run")}, true, discard())

	for _, o := range []domain.RunOutcome{
		{},
		{ExitStatus: domain.ExitSubmitted},
		{ExitStatus: domain.ExitSubmitted, Submission: strptr("")},
	} {
		v, err := g.Evaluate(context.Background(), "https://github.com/o/r/issues/1", o)
		if err != nil {
			t.Fatal(err)
		}
		if v.Eligible {
			t.Errorf("outcome %+v eligible without submission", o)
		}
	}
}

func TestEvaluate_NotSubmittedStatus(t *testing.T) {
	g := New(&fakeLookup{data: &issues.Data{State: "open"}}, true, discard())
	v, err := g.Evaluate(context.Background(), "url",
		domain.RunOutcome{ExitStatus: domain.ExitCost, Submission: strptr("diff")})
	if err != nil {
		t.Fatal(err)
	}
	if v.Eligible {
		t.Error("eligible with exit_cost status")
	}
}

func TestEvaluate_UnsupportedHost(t *testing.T) {
	g := New(&fakeLookup{err: fmt.Errorf("wrap: %w", issues.ErrUnsupportedHost)}, true, discard())
	v, err := g.Evaluate(context.Background(), "data/file.json", submitted())
	if err != nil {
		t.Fatalf("unsupported host surfaced as error: %v", err)
	}
	if v.Eligible {
		t.Error("eligible for non-github data source")
	}
}

func TestEvaluate_LookupFailure(t *testing.T) {
	g := New(&fakeLookup{err: errors.New("rate limited")}, true, discard())
	if _, err := g.Evaluate(context.Background(), "url", submitted()); err == nil {
		t.Error("transport failure swallowed")
	}
}

func TestEvaluate_IssueState(t *testing.T) {
	tests := []struct {
		name string
		data issues.Data
		want bool
	}{
		{"closed", issues.Data{State: "closed"}, false},
		{"locked", issues.Data{State: "open", Locked: true}, false},
		{"open", issues.Data{State: "open"}, true},
	}
	for _, tt := range tests {
		g := New(&fakeLookup{data: &tt.data}, true, discard())
		v, err := g.Evaluate(context.Background(), "url", submitted())
		if err != nil {
			t.Fatal(err)
		}
		if v.Eligible != tt.want {
			t.Errorf("%s: eligible = %v, want %v (reason %q)", tt.name, v.Eligible, tt.want, v.Reason)
		}
	}
}

func TestEvaluate_AssociatedCommits(t *testing.T) {
	data := &issues.Data{
		State:             "open",
		AssociatedCommits: []string{"https://github.com/o/r/commit/abc"},
	}

	g := New(&fakeLookup{data: data}, true, discard())
	v, err := g.Evaluate(context.Background(), "url", submitted())
	if err != nil {
		t.Fatal(err)
	}
	if v.Eligible {
		t.Error("eligible despite associated commits with skip enabled")
	}
	if len(v.AssociatedCommits) != 1 {
		t.Errorf("verdict does not surface commits: %v", v.AssociatedCommits)
	}

	// With skip disabled the gate proceeds but warns loudly.
	var buf bytes.Buffer
	g = New(&fakeLookup{data: data}, false, slog.New(slog.NewTextHandler(&buf, nil)))
	v, err = g.Evaluate(context.Background(), "url", submitted())
	if err != nil {
		t.Fatal(err)
	}
	if !v.Eligible {
		t.Errorf("not eligible with skip disabled: %q", v.Reason)
	}
	if !strings.Contains(buf.String(), "commit/abc") {
		t.Error("no warning naming the associated commits")
	}
}
