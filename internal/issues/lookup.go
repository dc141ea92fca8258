// Package issues looks up issue metadata for the PR gate. Only GitHub is
// supported; lookups go through the gh CLI so authentication and pagination
// stay out of this codebase.
package issues

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
)

// ErrUnsupportedHost marks a data source that is not a GitHub issue URL.
// Callers distinguish it from transport failures with errors.Is.
var ErrUnsupportedHost = errors.New("data source is not a github issue url")

// Data is the issue metadata the PR gate decides on.
type Data struct {
	State  string
	Locked bool
	// AssociatedCommits lists URLs of commits already referencing the
	// issue.
	AssociatedCommits []string
}

// Lookup fetches issue metadata for a data source identifier.
type Lookup interface {
	Fetch(ctx context.Context, dataSource string) (*Data, error)
}

var issueURLPattern = regexp.MustCompile(`^(?:https?://)?github\.com/([^/]+)/([^/]+)/issues/(\d+)/?$`)

// ParseIssueURL splits a GitHub issue URL into owner, repo, and issue
// number. Anything else returns ErrUnsupportedHost.
func ParseIssueURL(dataSource string) (owner, repo string, number int, err error) {
	m := issueURLPattern.FindStringSubmatch(dataSource)
	if m == nil {
		return "", "", 0, fmt.Errorf("%w: %q", ErrUnsupportedHost, dataSource)
	}
	number, err = strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %q", ErrUnsupportedHost, dataSource)
	}
	return m[1], m[2], number, nil
}

// runGH executes a gh invocation and returns its stdout. Swapped out in
// tests.
type runGH func(ctx context.Context, token string, args ...string) ([]byte, error)

// GHLookup fetches issue metadata from GitHub via the gh CLI.
type GHLookup struct {
	token string
	run   runGH
}

// NewGHLookup returns a Lookup authenticated with the given token. An
// empty token falls back to gh's own authentication.
func NewGHLookup(token string) *GHLookup {
	return &GHLookup{token: token, run: execGH}
}

func execGH(ctx context.Context, token string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Env = os.Environ()
	if token != "" {
		cmd.Env = append(cmd.Env, "GH_TOKEN="+token)
	}
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("gh %s: %s: %w", args[0], exitErr.Stderr, err)
		}
		return nil, fmt.Errorf("gh %s: %w", args[0], err)
	}
	return out, nil
}

type ghIssue struct {
	State  string `json:"state"`
	Locked bool   `json:"locked"`
}

type ghTimelineEvent struct {
	Event    string `json:"event"`
	CommitID string `json:"commit_id"`
}

// Fetch returns state, lock status, and associated commit references for
// the issue the data source points at.
func (g *GHLookup) Fetch(ctx context.Context, dataSource string) (*Data, error) {
	owner, repo, number, err := ParseIssueURL(dataSource)
	if err != nil {
		return nil, err
	}

	out, err := g.run(ctx, g.token, "api", fmt.Sprintf("repos/%s/%s/issues/%d", owner, repo, number))
	if err != nil {
		return nil, fmt.Errorf("fetching issue %s/%s#%d: %w", owner, repo, number, err)
	}
	var issue ghIssue
	if err := json.Unmarshal(out, &issue); err != nil {
		return nil, fmt.Errorf("parsing issue %s/%s#%d: %w", owner, repo, number, err)
	}

	out, err = g.run(ctx, g.token, "api", "--paginate",
		fmt.Sprintf("repos/%s/%s/issues/%d/timeline", owner, repo, number))
	if err != nil {
		return nil, fmt.Errorf("fetching timeline for %s/%s#%d: %w", owner, repo, number, err)
	}
	var events []ghTimelineEvent
	if err := json.Unmarshal(out, &events); err != nil {
		return nil, fmt.Errorf("parsing timeline for %s/%s#%d: %w", owner, repo, number, err)
	}

	data := &Data{State: issue.State, Locked: issue.Locked}
	for _, ev := range events {
		if ev.Event == "referenced" && ev.CommitID != "" {
			data.AssociatedCommits = append(data.AssociatedCommits,
				fmt.Sprintf("https://github.com/%s/%s/commit/%s", owner, repo, ev.CommitID))
		}
	}
	return data, nil
}
