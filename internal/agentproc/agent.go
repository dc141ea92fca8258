// Package agentproc runs the problem-solving agent as a subprocess. The
// setup payload goes to the agent's stdin as JSON; the agent writes one
// JSON object per line to stdout, interaction steps first and the final
// outcome object (carrying exit_status) last. The raw stream is mirrored
// to a per-instance log file in the run directory.
package agentproc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hochfrequenz/swebatch/internal/config"
	"github.com/hochfrequenz/swebatch/internal/domain"
	"github.com/hochfrequenz/swebatch/internal/runner"
)

// maxLineSize bounds a single agent output line. Submissions travel inside
// one JSON line, so this must fit a large patch.
const maxLineSize = 64 * 1024 * 1024

// Agent launches an external agent executable once per instance.
type Agent struct {
	Command string
	Args    []string
	log     *slog.Logger
}

// New builds an Agent from the configuration. The configured command is
// split on whitespace; the agent config file, when set, is appended as
// a --config flag.
func New(cfg config.AgentConfig, log *slog.Logger) (*Agent, error) {
	fields := strings.Fields(cfg.Command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("agent command is not configured")
	}
	args := fields[1:]
	if cfg.ConfigFile != "" {
		args = append(args, "--config", cfg.ConfigFile)
	}
	return &Agent{Command: fields[0], Args: args, log: log}, nil
}

type payload struct {
	InstanceID  string `json:"instance_id"`
	Observation string `json:"observation"`
	runner.SetupArgs
}

// Run executes the agent for the instance currently loaded in the
// environment and parses its trajectory and final outcome.
func (a *Agent) Run(ctx context.Context, setup runner.SetupArgs, env runner.Environment, observation string, trajDir string) (domain.RunOutcome, domain.Trajectory, error) {
	instanceID := env.Record().InstanceID

	logPath := filepath.Join(trajDir, instanceID+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return domain.RunOutcome{}, nil, fmt.Errorf("creating agent log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, a.Command, a.Args...)
	cmd.Stderr = logFile

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return domain.RunOutcome{}, nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domain.RunOutcome{}, nil, err
	}

	if err := cmd.Start(); err != nil {
		return domain.RunOutcome{}, nil, fmt.Errorf("starting agent %s: %w", a.Command, err)
	}
	a.log.Info("agent started", "instance_id", instanceID, "command", a.Command, "log", logPath)

	encErr := make(chan error, 1)
	go func() {
		defer stdin.Close()
		encErr <- json.NewEncoder(stdin).Encode(payload{
			InstanceID:  instanceID,
			Observation: observation,
			SetupArgs:   setup,
		})
	}()

	steps, last, scanErr := readStream(stdout, logFile)

	waitErr := cmd.Wait()
	if err := <-encErr; err != nil && waitErr == nil {
		return domain.RunOutcome{}, nil, fmt.Errorf("sending setup payload: %w", err)
	}
	if scanErr != nil {
		return domain.RunOutcome{}, nil, fmt.Errorf("reading agent output: %w", scanErr)
	}
	if waitErr != nil {
		return domain.RunOutcome{}, nil, fmt.Errorf("agent exited: %w", waitErr)
	}

	if last == nil {
		return domain.RunOutcome{}, nil, fmt.Errorf("agent produced no output for %s", instanceID)
	}
	var outcome domain.RunOutcome
	if err := json.Unmarshal(last, &outcome); err != nil {
		return domain.RunOutcome{}, nil, fmt.Errorf("parsing agent outcome: %w", err)
	}
	if outcome.ExitStatus == "" {
		return domain.RunOutcome{}, nil, fmt.Errorf("agent outcome for %s has no exit_status", instanceID)
	}
	return outcome, steps, nil
}

// readStream collects stdout lines as trajectory steps, mirroring the raw
// stream to the log file. The last line is returned separately as the
// outcome candidate.
func readStream(r io.Reader, logFile io.Writer) (domain.Trajectory, json.RawMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var steps domain.Trajectory
	var last json.RawMessage
	for scanner.Scan() {
		line := scanner.Bytes()
		fmt.Fprintf(logFile, "%s\n", line)
		// Non-JSON noise stays in the log file but not the trajectory.
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		if last != nil {
			steps = append(steps, last)
		}
		last = append(json.RawMessage(nil), line...)
	}
	return steps, last, scanner.Err()
}
