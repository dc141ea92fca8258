package trajstore

import (
	"errors"
	"fmt"
	"os"
	"regexp"
)

// Decision is the outcome of the per-instance skip check.
type Decision int

const (
	// Process means the instance should run.
	Process Decision = iota
	// SkipFiltered means the instance id did not match the filter.
	SkipFiltered
	// SkipDone means a complete trajectory already exists.
	SkipDone
)

// Decide determines whether an instance should be processed. The filter
// uses full-match semantics. When skipExisting is set, a trajectory whose
// outcome never reached a terminal state counts as a failed earlier attempt:
// the file is deleted and the instance reprocessed. The deletion is the only
// side effect; if it fails the instance cannot safely resume and the error
// is returned as-is.
func (s *Store) Decide(filter *regexp.Regexp, skipExisting bool, instanceID string) (Decision, error) {
	if filter != nil && !filter.MatchString(instanceID) {
		s.log.Info("instance filter not matched, skipping", "instance_id", instanceID)
		return SkipFiltered, nil
	}

	if !skipExisting {
		return Process, nil
	}

	tf, err := s.Load(instanceID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Process, nil
		}
		// A file we cannot parse is a partial write from a crashed
		// run, not an error: resume by reprocessing.
		s.log.Info("found corrupted trajectory, removing", "instance_id", instanceID, "err", err)
		if rmErr := s.Remove(instanceID); rmErr != nil {
			return Process, fmt.Errorf("removing corrupted trajectory for %s: %w", instanceID, rmErr)
		}
		return Process, nil
	}

	if !tf.Complete() {
		s.log.Info("found incomplete trajectory, removing and reprocessing",
			"instance_id", instanceID, "exit_status", string(tf.Info.ExitStatus))
		if err := s.Remove(instanceID); err != nil {
			return Process, fmt.Errorf("removing incomplete trajectory for %s: %w", instanceID, err)
		}
		return Process, nil
	}

	s.log.Info("skipping existing trajectory", "instance_id", instanceID, "path", s.Path(instanceID))
	return SkipDone, nil
}
