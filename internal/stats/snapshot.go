package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WindowSnapshot is the per-chain weekly/monthly document written after
// each run. It exists for observability only and is never read back.
type WindowSnapshot struct {
	Chain       string                        `json:"chain"`
	GeneratedAt string                        `json:"generated_at"`
	Sources     map[string]SourceWindowTotals `json:"sources"`
}

// SourceWindowTotals holds the window totals for one event source.
type SourceWindowTotals struct {
	Weekly  map[string]string `json:"weekly"`
	Monthly map[string]string `json:"monthly"`
}

// WindowTotals flattens a Totals into owner->decimal-string form.
func WindowTotals(totals Totals) map[string]string {
	out := make(map[string]string, len(totals.Amounts))
	for owner, amount := range totals.Amounts {
		out[owner] = amount.String()
	}
	return out
}

// WriteSnapshot rewrites the snapshot file for a chain.
func WriteSnapshot(path string, snapshot WindowSnapshot) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	snapshot.GeneratedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
