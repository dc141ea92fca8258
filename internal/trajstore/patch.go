package trajstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hochfrequenz/swebatch/internal/domain"
)

const patchDirName = "patches"

// PatchPath returns the patch artifact path for an instance.
func (s *Store) PatchPath(instanceID string) string {
	return filepath.Join(s.dir, patchDirName, instanceID+".patch")
}

// WritePatch writes the raw submission to patches/<id>.patch, overwriting
// any earlier artifact for the same instance. A missing submission is not
// an error; there is simply nothing to write.
func (s *Store) WritePatch(instanceID string, outcome domain.RunOutcome) (string, error) {
	if !outcome.HasSubmission() {
		s.log.Info("no patch to save", "instance_id", instanceID)
		return "", nil
	}

	dir := filepath.Join(s.dir, patchDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating patches directory: %w", err)
	}

	path := s.PatchPath(instanceID)
	if err := os.WriteFile(path, []byte(*outcome.Submission), 0644); err != nil {
		return "", fmt.Errorf("writing patch for %s: %w", instanceID, err)
	}
	s.log.Info("saved patch", "instance_id", instanceID, "path", path)
	return path, nil
}
