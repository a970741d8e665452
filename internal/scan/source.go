package scan

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"honeystats/internal/metrics"
)

// Kind identifies an event source on a chain.
type Kind string

const (
	Redistribution Kind = "redistribution"
	Staking        Kind = "staking"
)

// Source identifies one independently checkpointed ingestion stream:
// a contract and event kind on one chain, with the field mapping used to
// pull owner and amount out of the decoded event.
type Source struct {
	Chain        string
	ContractName string
	Address      common.Address
	Event        abi.Event
	OwnerField   string
	AmountField  string
	DeployBlock  uint64
	Kind         Kind
}

// CheckpointErr is the tally type for a corrupt or unreadable checkpoint.
func (s Source) CheckpointErr() metrics.ErrType {
	switch s.Kind {
	case Redistribution:
		return metrics.ErrReadLastBlockRedistribution
	case Staking:
		return metrics.ErrReadLastBlockStaking
	default:
		return metrics.ErrReadCheckpoint
	}
}

// EventsErr is the tally type for a failed event fetch.
func (s Source) EventsErr() metrics.ErrType {
	switch s.Kind {
	case Redistribution:
		return metrics.ErrGetRedistributionEvents
	case Staking:
		return metrics.ErrGetStakingEvents
	default:
		return metrics.ErrGetEvents
	}
}
