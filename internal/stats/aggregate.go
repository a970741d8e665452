package stats

import (
	"math/big"
	"time"

	"honeystats/internal/records"
)

// WindowKind names a ranking window.
type WindowKind string

const (
	Weekly  WindowKind = "weekly"
	Monthly WindowKind = "monthly"
	AllTime WindowKind = "all_time"
)

// Totals maps owner to cumulative amount and remembers the order in which
// owners were first seen, so leaderboard ties stay stable for a fixed
// record sequence.
type Totals struct {
	Amounts map[string]*big.Int
	Order   []string
}

func NewTotals() Totals {
	return Totals{Amounts: make(map[string]*big.Int)}
}

// Add accumulates amount into the owner's total.
func (t *Totals) Add(owner string, amount *big.Int) {
	if amount == nil {
		return
	}
	total, ok := t.Amounts[owner]
	if !ok {
		total = new(big.Int)
		t.Amounts[owner] = total
		t.Order = append(t.Order, owner)
	}
	total.Add(total, amount)
}

// Aggregate holds the recomputed windows for one record sequence. All
// windows are derived from the same pruned store, so the all-time window
// only covers retained history.
type Aggregate struct {
	Weekly  Totals
	Monthly Totals
	AllTime Totals
}

// Compute recomputes all windows in a single pass over the record
// sequence. The weekly and monthly buckets key on the calendar
// week-of-year and month-of-year of each record, with no year qualifier:
// records from the same calendar week or month in different years land in
// the same bucket. That collision is inherited behavior and kept as is.
func Compute(recs []records.Record, now time.Time) Aggregate {
	agg := Aggregate{
		Weekly:  NewTotals(),
		Monthly: NewTotals(),
		AllTime: NewTotals(),
	}

	currentWeek := weekOf(now)
	currentMonth := monthOf(now)

	for _, rec := range recs {
		agg.AllTime.Add(rec.Owner, rec.Amount)

		observed := time.Unix(rec.ObservedAt, 0)
		if weekOf(observed) == currentWeek {
			agg.Weekly.Add(rec.Owner, rec.Amount)
		}
		if monthOf(observed) == currentMonth {
			agg.Monthly.Add(rec.Owner, rec.Amount)
		}
	}

	return agg
}

// Window returns the totals for a window kind.
func (a Aggregate) Window(kind WindowKind) Totals {
	switch kind {
	case Weekly:
		return a.Weekly
	case Monthly:
		return a.Monthly
	default:
		return a.AllTime
	}
}

func weekOf(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}

func monthOf(t time.Time) int {
	return int(t.Month())
}
