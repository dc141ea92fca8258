package swenv

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/hochfrequenz/swebatch/internal/domain"
	"github.com/hochfrequenz/swebatch/internal/issues"
)

const prBodyTemplate = `This is a PR opened by an automated problem-solving agent.

Closes #%d.

The fix was produced over %d agent interaction steps; the full trajectory
and patch are recorded in the run directory of the batch that solved it.

---
Automated submission by swebatch
`

var branchSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// OpenPR pushes the solved instance's branch and opens a pull request
// against the issue the data source points at. When pushRepoURL is set the
// branch goes to that fork instead of origin.
func (e *Env) OpenPR(ctx context.Context, traj domain.Trajectory, pushRepoURL string) error {
	if e.cur == nil {
		return fmt.Errorf("no instance loaded")
	}
	_, _, number, err := issues.ParseIssueURL(e.cfg.DataPath)
	if err != nil {
		return err
	}

	branch := "swebatch/" + branchSanitizer.ReplaceAllString(e.cur.InstanceID, "-")

	remote := "origin"
	if pushRepoURL != "" {
		remote = pushRepoURL
	}
	push := exec.CommandContext(ctx, "git", "push", "-u", remote, "HEAD:"+branch)
	push.Dir = e.cfg.WorkDir
	if out, err := push.CombinedOutput(); err != nil {
		return fmt.Errorf("git push: %s: %w", out, err)
	}

	title := fmt.Sprintf("Fix #%d (%s)", number, e.cur.InstanceID)
	body := fmt.Sprintf(prBodyTemplate, number, len(traj))

	args := []string{"pr", "create", "--title", title, "--body", body, "--head", branch}
	if pushRepoURL != "" {
		// PRs from a fork stay as drafts for manual review.
		args = append(args, "--draft")
	}
	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Dir = e.cfg.WorkDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("gh pr create: %s: %w", out, err)
	}

	url := strings.TrimSpace(string(out))
	e.log.Info("opened PR", "instance_id", e.cur.InstanceID, "url", url)
	return nil
}
