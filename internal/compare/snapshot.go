package compare

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotWriter persists the quotes of a run as one json object keyed by pair.
type SnapshotWriter struct{}

// Write replaces the file at path atomically, readers never see a partial snapshot.
func (SnapshotWriter) Write(path string, result Result) error {
	quotes := result.Quotes
	if quotes == nil {
		quotes = map[string][]Quote{}
	}
	serialized, err := json.MarshalIndent(quotes, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, err = tmp.Write(append(serialized, '\n'))
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	err = tmp.Sync()
	if err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	err = os.Rename(tmpPath, path)
	if err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot written by SnapshotWriter.
func ReadSnapshot(path string) (map[string][]Quote, error) {
	serialized, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var quotes map[string][]Quote
	err = json.Unmarshal(serialized, &quotes)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot '%s': %w", path, err)
	}
	return quotes, nil
}
