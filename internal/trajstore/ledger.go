package trajstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const ledgerName = "all_preds.jsonl"

// Prediction is one line of the predictions ledger.
type Prediction struct {
	ModelNameOrPath string  `json:"model_name_or_path"`
	InstanceID      string  `json:"instance_id"`
	ModelPatch      *string `json:"model_patch"`
}

// LedgerPath returns the path of the predictions ledger for this run.
func (s *Store) LedgerPath() string {
	return filepath.Join(s.dir, ledgerName)
}

// AppendPrediction appends one prediction line to the ledger. The ledger is
// append-only and never rewritten; each line is synced to disk before the
// call returns so a crash cannot lose a recorded prediction.
func (s *Store) AppendPrediction(runName, instanceID string, submission *string) (err error) {
	f, err := os.OpenFile(s.LedgerPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening predictions ledger: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	line, err := json.Marshal(Prediction{
		ModelNameOrPath: runName,
		InstanceID:      instanceID,
		ModelPatch:      submission,
	})
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending prediction for %s: %w", instanceID, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("flushing predictions ledger: %w", err)
	}
	s.log.Info("saved prediction", "instance_id", instanceID, "path", s.LedgerPath())
	return nil
}

// ReadLedger loads every prediction recorded so far, in append order.
func (s *Store) ReadLedger() ([]Prediction, error) {
	data, err := os.ReadFile(s.LedgerPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var preds []Prediction
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var p Prediction
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("parsing predictions ledger: %w", err)
		}
		preds = append(preds, p)
	}
	return preds, nil
}
