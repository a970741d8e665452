package scan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CheckpointStore persists the last fully processed block for one
// (chain, source) as a {chain_name: last_block} JSON file.
type CheckpointStore struct {
	path  string
	chain string
}

func NewCheckpointStore(path, chain string) *CheckpointStore {
	return &CheckpointStore{path: path, chain: chain}
}

// Load returns the stored checkpoint. A missing file yields (0, false,
// nil); a corrupt file yields an error so the caller can tally it and
// fall back to the source's deployment block.
func (c *CheckpointStore) Load() (uint64, bool, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var blocks map[string]uint64
	if err := json.Unmarshal(data, &blocks); err != nil {
		return 0, false, fmt.Errorf("parse checkpoint: %w", err)
	}

	block, ok := blocks[c.chain]
	return block, ok, nil
}

// Save rewrites the checkpoint through a temp file and rename, so a crash
// mid-write never corrupts an already advanced checkpoint.
func (c *CheckpointStore) Save(lastProcessed uint64) error {
	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	data, err := json.Marshal(map[string]uint64{c.chain: lastProcessed})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}
