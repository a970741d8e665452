package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ErrType identifies a failure class in the error tally.
type ErrType string

const (
	ErrReadCheckpoint  ErrType = "read_checkpoint"
	ErrReadRecordStore ErrType = "read_record_store"
	ErrGetEvents       ErrType = "get_events"
	ErrWriteRecords    ErrType = "write_record_store"

	ErrReadLastBlockRedistribution ErrType = "read_last_block_redistribution"
	ErrReadLastBlockStaking        ErrType = "read_last_block_staking"
	ErrGetRedistributionEvents     ErrType = "get_redistribution_events"
	ErrGetStakingEvents            ErrType = "get_staking_events"
	ErrReadStakersFile             ErrType = "read_stakers_file"
	ErrWriteStakersFile            ErrType = "write_stakers_file"
)

// Tally counts failures by chain and error type. It is shared by all
// concurrently running scan units; the underlying CounterVec handles
// concurrent label registration and increments.
type Tally struct {
	vec *prometheus.CounterVec
}

// NewTally registers the error counter on the given registry and returns
// the tally. The registry is rebuilt every run, so the counter starts at
// zero each cycle.
func NewTally(reg prometheus.Registerer) *Tally {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "honeystats_errors_total",
		Help: "Failures by chain and error type",
	}, []string{"chain", "error_type"})
	reg.MustRegister(vec)
	return &Tally{vec: vec}
}

// Add increments the counter for a chain and error type.
func (t *Tally) Add(chain string, errType ErrType) {
	if t == nil {
		return
	}
	t.vec.WithLabelValues(chain, string(errType)).Inc()
}

// Counter exposes the underlying metric for a chain and error type.
func (t *Tally) Counter(chain string, errType ErrType) prometheus.Counter {
	return t.vec.WithLabelValues(chain, string(errType))
}
