// Package trajstore persists the durable record of a batch run: trajectory
// files, the predictions ledger, and patch artifacts, all keyed by instance
// id inside a single run directory. The run directory is owned by exactly
// one batch loop for the lifetime of a run; safety comes from sequential
// processing and append-only/overwrite-only file semantics, not locks.
package trajstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hochfrequenz/swebatch/internal/domain"
)

// Store is the file-backed trajectory store for one run directory.
type Store struct {
	dir string
	log *slog.Logger
}

// New creates the run directory if needed and returns a Store over it.
func New(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

// Dir returns the run directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the trajectory file path for an instance.
func (s *Store) Path(instanceID string) string {
	return filepath.Join(s.dir, instanceID+".traj")
}

// Load reads the trajectory file for an instance. A missing file returns
// os.ErrNotExist; a corrupted file returns the parse error.
func (s *Store) Load(instanceID string) (*domain.TrajectoryFile, error) {
	data, err := os.ReadFile(s.Path(instanceID))
	if err != nil {
		return nil, err
	}
	var tf domain.TrajectoryFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.Path(instanceID), err)
	}
	return &tf, nil
}

// Save writes the trajectory file for an instance, overwriting any
// previous attempt.
func (s *Store) Save(instanceID string, traj domain.Trajectory, outcome domain.RunOutcome) error {
	if traj == nil {
		traj = domain.Trajectory{}
	}
	data, err := json.MarshalIndent(domain.TrajectoryFile{Trajectory: traj, Info: outcome}, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing trajectory for %s: %w", instanceID, err)
	}
	return os.WriteFile(s.Path(instanceID), data, 0644)
}

// Remove deletes the trajectory file for an instance.
func (s *Store) Remove(instanceID string) error {
	return os.Remove(s.Path(instanceID))
}
