package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const snapshotName = "args.yaml"

// SaveSnapshot serializes the effective configuration into the run
// directory. When a snapshot from an earlier run already exists and
// differs, a warning is logged and the snapshot is overwritten; re-running
// with drifted defaults is tolerated, not rejected.
func SaveSnapshot(runDir string, cfg *Config, log *slog.Logger) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}

	path := filepath.Join(runDir, snapshotName)
	if prev, err := os.ReadFile(path); err == nil {
		if !bytes.Equal(prev, data) {
			log.Warn("**************************************************")
			log.Warn("existing args.yaml was written with different arguments", "path", path)
			log.Warn("**************************************************")
		}
	} else if !os.IsNotExist(err) {
		log.Warn("failed to read existing args.yaml", "path", path, "err", err)
	}

	return os.WriteFile(path, data, 0644)
}
