// Package swenv is the default execution environment: instance records
// come from a JSON or JSONL dataset file, and environment lifecycle hooks
// (reset, baseline restart, close) shell out to configured commands.
package swenv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hochfrequenz/swebatch/internal/config"
	"github.com/hochfrequenz/swebatch/internal/domain"
)

// Env implements the batch loop's Environment contract.
type Env struct {
	cfg  config.EnvironmentConfig
	data []domain.InstanceRecord
	cur  *domain.InstanceRecord
	log  *slog.Logger
}

// New loads the dataset and returns an Env over it.
func New(cfg config.EnvironmentConfig, log *slog.Logger) (*Env, error) {
	data, err := LoadDataset(cfg.DataPath)
	if err != nil {
		return nil, err
	}
	return &Env{cfg: cfg, data: data, log: log}, nil
}

// LoadDataset reads instance records from a .json array or .jsonl file.
func LoadDataset(path string) ([]domain.InstanceRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}

	switch filepath.Ext(path) {
	case ".json":
		var records []domain.InstanceRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
		}
		return records, nil
	case ".jsonl":
		var records []domain.InstanceRecord
		dec := json.NewDecoder(strings.NewReader(string(raw)))
		for dec.More() {
			var rec domain.InstanceRecord
			if err := dec.Decode(&rec); err != nil {
				return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
			}
			records = append(records, rec)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("unsupported dataset format: %s", path)
	}
}

// Data returns the loaded instance records in dataset order.
func (e *Env) Data() []domain.InstanceRecord {
	return e.data
}

// Record returns the instance selected by the last Reset.
func (e *Env) Record() *domain.InstanceRecord {
	return e.cur
}

// Reset selects the instance at index and runs the configured reset
// command. The command's stdout is the initial observation. A command
// that runs but exits nonzero leaves the instance unusable without
// failing the batch.
func (e *Env) Reset(ctx context.Context, index int) (string, bool, error) {
	if index < 0 || index >= len(e.data) {
		return "", false, fmt.Errorf("instance index %d out of range", index)
	}
	e.cur = &e.data[index]

	if e.cfg.ResetCommand == "" {
		return "", true, nil
	}

	out, err := e.runHook(ctx, e.cfg.ResetCommand)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			e.log.Warn("reset command failed", "instance_id", e.cur.InstanceID,
				"exit_code", exitErr.ExitCode(), "stderr", string(exitErr.Stderr))
			return "", false, nil
		}
		return "", false, fmt.Errorf("running reset command: %w", err)
	}
	return string(out), true, nil
}

// ResetContainer restores the environment to a clean baseline.
func (e *Env) ResetContainer(ctx context.Context) error {
	if e.cfg.RestartCommand == "" {
		return nil
	}
	_, err := e.runHook(ctx, e.cfg.RestartCommand)
	if err != nil {
		return fmt.Errorf("running restart command: %w", err)
	}
	return nil
}

// Close tears the environment down.
func (e *Env) Close() error {
	if e.cfg.CloseCommand == "" {
		return nil
	}
	_, err := e.runHook(context.Background(), e.cfg.CloseCommand)
	if err != nil {
		return fmt.Errorf("running close command: %w", err)
	}
	return nil
}

// runHook executes a lifecycle command through the shell, exporting the
// current instance to it.
func (e *Env) runHook(ctx context.Context, command string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if e.cfg.WorkDir != "" {
		cmd.Dir = e.cfg.WorkDir
	}
	cmd.Env = os.Environ()
	if e.cur != nil {
		cmd.Env = append(cmd.Env,
			"SWEBATCH_INSTANCE_ID="+e.cur.InstanceID,
			"SWEBATCH_REPO="+e.cur.Repo,
			"SWEBATCH_BASE_COMMIT="+e.cur.BaseCommit,
			"SWEBATCH_IMAGE="+e.cfg.ImageName,
		)
	}
	return cmd.Output()
}
