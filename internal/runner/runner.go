// Package runner drives the batch loop: one instance at a time, in dataset
// order, with per-instance failure isolation and idempotent resume over the
// run directory.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/hochfrequenz/swebatch/internal/config"
	"github.com/hochfrequenz/swebatch/internal/domain"
	"github.com/hochfrequenz/swebatch/internal/prgate"
	"github.com/hochfrequenz/swebatch/internal/trajstore"
)

// Agent is the delegated problem-solving engine. Run is the single
// suspension point of the batch loop; it may take arbitrarily long and is
// treated as atomic.
type Agent interface {
	Run(ctx context.Context, setup SetupArgs, env Environment, observation string, trajDir string) (domain.RunOutcome, domain.Trajectory, error)
}

// Environment is the sandboxed execution environment instances run in.
type Environment interface {
	// Data returns the dataset, in processing order.
	Data() []domain.InstanceRecord
	// Record returns the instance record selected by the last Reset.
	Record() *domain.InstanceRecord
	// Reset prepares the environment for the given instance. A nil error
	// with usable=false means the instance cannot run but the batch
	// should continue.
	Reset(ctx context.Context, index int) (observation string, usable bool, err error)
	// ResetContainer restores a clean baseline after a failure.
	ResetContainer(ctx context.Context) error
	Close() error
	// OpenPR opens a pull request from the finished trajectory.
	OpenPR(ctx context.Context, traj domain.Trajectory, pushRepoURL string) error
}

// Index receives best-effort per-instance state updates for reporting.
type Index interface {
	SetInstanceState(runID, instanceID string, state domain.InstanceState, exitStatus domain.ExitStatus, errMsg string) error
}

// Options carries the optional collaborators of a Runner.
type Options struct {
	// Gate decides PR eligibility; required when actions.open_pr is set.
	Gate *prgate.Gate
	// Index, when set, receives per-instance state updates under RunID.
	Index Index
	RunID string
}

// Runner is the batch loop over one run directory.
type Runner struct {
	cfg     *config.Config
	env     Environment
	agent   Agent
	store   *trajstore.Store
	gate    *prgate.Gate
	index   Index
	runID   string
	runName string
	filter  *regexp.Regexp
	log     *slog.Logger
}

// New assembles a Runner. The config must already be validated.
func New(cfg *config.Config, env Environment, agent Agent, store *trajstore.Store, log *slog.Logger, opts Options) (*Runner, error) {
	filter, err := cfg.CompileFilter()
	if err != nil {
		return nil, err
	}
	if cfg.Actions.OpenPR && opts.Gate == nil {
		return nil, fmt.Errorf("actions.open_pr is set but no PR gate was provided")
	}
	return &Runner{
		cfg:     cfg,
		env:     env,
		agent:   agent,
		store:   store,
		gate:    opts.Gate,
		index:   opts.Index,
		runID:   opts.RunID,
		runName: cfg.RunName(),
		filter:  filter,
		log:     log,
	}, nil
}

// Run processes every instance of the dataset sequentially. Per-instance
// errors are logged and isolated unless strict mode is set. Cancelling the
// context stops the batch cleanly: the environment is closed, no further
// instances are attempted, and nil is returned.
func (r *Runner) Run(ctx context.Context) error {
	if err := config.SaveSnapshot(r.store.Dir(), r.cfg, r.log); err != nil {
		return fmt.Errorf("saving config snapshot: %w", err)
	}

	defer func() {
		if err := r.env.Close(); err != nil {
			r.log.Warn("closing environment", "err", err)
		}
	}()

	data := r.env.Data()
	for i := range data {
		if ctx.Err() != nil {
			r.log.Info("interrupt received, stopping batch")
			return nil
		}

		instanceID := data[i].InstanceID
		err := r.processInstance(ctx, i, instanceID)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			r.log.Info("interrupt received, stopping batch", "instance_id", instanceID)
			return nil
		}

		r.log.Error("instance failed", "instance_id", instanceID, "err", err)
		r.setState(instanceID, domain.StateFailed, "", err.Error())
		if r.cfg.Run.Strict {
			return fmt.Errorf("instance %s: %w", instanceID, err)
		}
		if rerr := r.env.ResetContainer(ctx); rerr != nil {
			r.log.Warn("baseline container reset failed", "instance_id", instanceID, "err", rerr)
		}
	}
	return nil
}

func (r *Runner) processInstance(ctx context.Context, index int, instanceID string) error {
	decision, err := r.store.Decide(r.filter, r.cfg.Run.SkipExisting, instanceID)
	if err != nil {
		return err
	}
	switch decision {
	case trajstore.SkipFiltered:
		r.setState(instanceID, domain.StateFilteredOut, "", "")
		return nil
	case trajstore.SkipDone:
		r.setState(instanceID, domain.StateSkipped, "", "")
		return nil
	}

	r.log.Info("beginning instance", "index", index, "instance_id", instanceID)
	r.setState(instanceID, domain.StateRunning, "", "")

	observation, usable, err := r.env.Reset(ctx, index)
	if err != nil {
		return fmt.Errorf("environment reset: %w", err)
	}
	if !usable {
		r.log.Error("environment reset yielded no usable observation, skipping instance",
			"instance_id", instanceID)
		r.setState(instanceID, domain.StateFailed, "", "no usable observation after reset")
		return nil
	}

	setup, err := buildSetupArgs(r.env.Record())
	if err != nil {
		return err
	}

	outcome, traj, err := r.agent.Run(ctx, setup, r.env, observation, r.store.Dir())
	if err != nil {
		return fmt.Errorf("agent run: %w", err)
	}

	if err := r.store.Save(instanceID, traj, outcome); err != nil {
		return err
	}
	if err := r.store.AppendPrediction(r.runName, instanceID, outcome.Submission); err != nil {
		return err
	}
	if _, err := r.store.WritePatch(instanceID, outcome); err != nil {
		return err
	}
	r.setState(instanceID, domain.StateRecorded, outcome.ExitStatus, "")

	if r.cfg.Actions.OpenPR {
		verdict, err := r.gate.Evaluate(ctx, r.cfg.Environment.DataPath, outcome)
		if err != nil {
			return err
		}
		if verdict.Eligible {
			if err := r.env.OpenPR(ctx, traj, r.cfg.Actions.PushRepoURL); err != nil {
				return fmt.Errorf("opening PR: %w", err)
			}
			r.setState(instanceID, domain.StateActionGated, outcome.ExitStatus, "")
		}
	}
	return nil
}

func (r *Runner) setState(instanceID string, state domain.InstanceState, exitStatus domain.ExitStatus, errMsg string) {
	if r.index == nil {
		return
	}
	if err := r.index.SetInstanceState(r.runID, instanceID, state, exitStatus, errMsg); err != nil {
		r.log.Warn("updating run index", "instance_id", instanceID, "err", err)
	}
}
