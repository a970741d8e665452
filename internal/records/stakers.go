package records

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
)

// StakerSnapshot tracks the last known committed stake per owner. Unlike
// the record sequence it is last-value-wins and never pruned.
type StakerSnapshot map[string]*big.Int

// Apply folds stake-update records into the snapshot in sequence order,
// so the final value per owner is the most recently observed one.
func (s StakerSnapshot) Apply(recs []Record) {
	for _, rec := range recs {
		if rec.Amount == nil {
			continue
		}
		s[rec.Owner] = new(big.Int).Set(rec.Amount)
	}
}

// Total sums all committed stakes.
func (s StakerSnapshot) Total() *big.Int {
	total := new(big.Int)
	for _, stake := range s {
		total.Add(total, stake)
	}
	return total
}

// StakerStore persists a StakerSnapshot as an owner->amount JSON map.
type StakerStore struct {
	path string
}

func NewStakerStore(path string) *StakerStore {
	return &StakerStore{path: path}
}

// Load reads the snapshot. A missing file yields an empty snapshot and no
// error; a corrupt file yields an error for the caller to tally.
func (s *StakerStore) Load() (StakerSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return StakerSnapshot{}, nil
		}
		return nil, fmt.Errorf("read stakers file: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse stakers file: %w", err)
	}

	snapshot := make(StakerSnapshot, len(raw))
	for owner, value := range raw {
		stake, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return nil, fmt.Errorf("invalid stake for %s: %s", owner, value)
		}
		snapshot[owner] = stake
	}
	return snapshot, nil
}

// Save rewrites the snapshot file via temp file and rename.
func (s *StakerStore) Save(snapshot StakerSnapshot) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create stakers dir: %w", err)
		}
	}

	raw := make(map[string]string, len(snapshot))
	for owner, stake := range snapshot {
		raw[owner] = stake.String()
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal stakers: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write stakers tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename stakers file: %w", err)
	}
	return nil
}
