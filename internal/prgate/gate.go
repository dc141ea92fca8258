// Package prgate decides whether opening a pull request for a finished
// instance is safe. The decision is total and side-effect free apart from
// the issue lookup and logging.
package prgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hochfrequenz/swebatch/internal/domain"
	"github.com/hochfrequenz/swebatch/internal/issues"
)

// Verdict is the gate's decision, with the reason it was reached.
type Verdict struct {
	Eligible bool
	Reason   string
	// AssociatedCommits is populated when the issue already has commits
	// referencing it.
	AssociatedCommits []string
}

// Gate evaluates PR eligibility for run outcomes.
type Gate struct {
	lookup issues.Lookup
	// skipIfReferenced blocks PRs for issues that already have commits
	// referencing them.
	skipIfReferenced bool
	log              *slog.Logger
}

// New returns a Gate using the given issue lookup.
func New(lookup issues.Lookup, skipIfReferenced bool, log *slog.Logger) *Gate {
	return &Gate{lookup: lookup, skipIfReferenced: skipIfReferenced, log: log}
}

// Evaluate runs the eligibility checks in order; the first failing check
// wins. An unsupported issue host is not an error, merely ineligible.
// Transport failures during the lookup are returned to the caller.
func (g *Gate) Evaluate(ctx context.Context, dataSource string, outcome domain.RunOutcome) (Verdict, error) {
	if !outcome.HasSubmission() {
		return g.ineligible("no submission to open a PR from"), nil
	}
	if outcome.ExitStatus != domain.ExitSubmitted {
		return g.ineligible(fmt.Sprintf("exit status is %q, not submitted", outcome.ExitStatus)), nil
	}

	data, err := g.lookup.Fetch(ctx, dataSource)
	if err != nil {
		if errors.Is(err, issues.ErrUnsupportedHost) {
			return g.ineligible("only github issues are supported for PR creation"), nil
		}
		return Verdict{}, fmt.Errorf("issue lookup: %w", err)
	}

	if data.State != "open" {
		return g.ineligible(fmt.Sprintf("issue is not open (state=%s)", data.State)), nil
	}
	if data.Locked {
		return g.ineligible("issue is locked"), nil
	}

	if len(data.AssociatedCommits) > 0 {
		urls := strings.Join(data.AssociatedCommits, ", ")
		if g.skipIfReferenced {
			v := g.ineligible("issue already has associated commits: " + urls)
			v.AssociatedCommits = data.AssociatedCommits
			return v, nil
		}
		g.log.Warn("proceeding with PR creation even though commits already reference the issue; "+
			"verify the existing commits do not fix the issue",
			"commits", urls)
	}

	return Verdict{Eligible: true, Reason: "all checks passed"}, nil
}

func (g *Gate) ineligible(reason string) Verdict {
	g.log.Info("not opening PR", "reason", reason)
	return Verdict{Eligible: false, Reason: reason}
}
