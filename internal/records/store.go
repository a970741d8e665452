package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// RetentionHorizon is the maximum age of a record before it is pruned.
const RetentionHorizon = 30 * 24 * time.Hour

// Store persists an ordered sequence of records for one (chain, source)
// as a JSON array. It transparently upgrades the legacy owner->amount map
// format on load.
type Store struct {
	path   string
	chain  string
	source string
}

func NewStore(path, chain, source string) *Store {
	return &Store{path: path, chain: chain, source: source}
}

// Load reads the record sequence. A missing file yields an empty sequence
// and no error. A structurally corrupt file yields an error; callers fall
// back to an empty sequence and tally the failure.
func (s *Store) Load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read record store: %w", err)
	}

	records, err := s.decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse record store: %w", err)
	}
	return records, nil
}

func (s *Store) decode(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var records []Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	// Legacy format: a plain {owner: amount} map with no timestamps.
	// Upgraded records carry observed_at 0, which places them outside any
	// bounded retention window; the first pruning pass discards them.
	var legacy map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &legacy); err != nil {
		return nil, err
	}

	owners := make([]string, 0, len(legacy))
	for owner := range legacy {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	records := make([]Record, 0, len(legacy))
	for _, owner := range owners {
		amount, err := parseAmount(legacy[owner])
		if err != nil {
			return nil, fmt.Errorf("legacy amount for %s: %w", owner, err)
		}
		records = append(records, Record{
			Owner:      owner,
			Amount:     amount,
			ObservedAt: 0,
			Chain:      s.chain,
			Source:     s.source,
		})
	}
	return records, nil
}

// Save rewrites the whole store file. The write goes through a temp file
// and a rename so a crash never leaves a half-written store behind.
func (s *Store) Save(records []Record) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create record store dir: %w", err)
		}
	}

	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write record store tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename record store: %w", err)
	}
	return nil
}

// Prune drops records strictly older than the retention horizon relative
// to now. It is idempotent for a fixed now.
func Prune(records []Record, now time.Time, horizon time.Duration) []Record {
	cutoff := now.Add(-horizon).Unix()
	kept := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.ObservedAt < cutoff {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

func parseAmount(raw json.RawMessage) (*big.Int, error) {
	text := bytes.TrimSpace(raw)
	text = bytes.Trim(text, `"`)
	amount, ok := new(big.Int).SetString(string(text), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", text)
	}
	return amount, nil
}
