package stats

import (
	"math/big"
	"sort"
)

// TopN is the leaderboard truncation size.
const TopN = 10

// Entry is one ranked leaderboard row.
type Entry struct {
	Owner  string
	Amount *big.Int
}

// Leaderboard ranks the totals descending by amount and truncates to
// topN. The sort is stable over first-seen insertion order, so ties keep
// the order produced by the record sequence.
func Leaderboard(totals Totals, topN int) []Entry {
	entries := make([]Entry, 0, len(totals.Order))
	for _, owner := range totals.Order {
		entries = append(entries, Entry{Owner: owner, Amount: totals.Amounts[owner]})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Amount.Cmp(entries[j].Amount) > 0
	})

	if topN > 0 && len(entries) > topN {
		entries = entries[:topN]
	}
	return entries
}
