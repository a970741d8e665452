package records

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Record is one observed stake event. Amount is the raw on-chain integer,
// unscaled. ObservedAt is the timestamp of the containing block; legacy
// stores upgrade into records with ObservedAt 0.
type Record struct {
	Owner      string
	Amount     *big.Int
	ObservedAt int64
	Chain      string
	Source     string
}

type recordJSON struct {
	Owner      string `json:"owner"`
	Amount     string `json:"amount"`
	ObservedAt int64  `json:"observed_at"`
	Chain      string `json:"chain"`
	Source     string `json:"source"`
}

// MarshalJSON encodes the amount as a decimal string so arbitrarily large
// stakes survive the round trip.
func (r Record) MarshalJSON() ([]byte, error) {
	amount := "0"
	if r.Amount != nil {
		amount = r.Amount.String()
	}
	return json.Marshal(recordJSON{
		Owner:      r.Owner,
		Amount:     amount,
		ObservedAt: r.ObservedAt,
		Chain:      r.Chain,
		Source:     r.Source,
	})
}

// UnmarshalJSON decodes a Record from JSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var rec recordJSON
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	amount, ok := new(big.Int).SetString(rec.Amount, 10)
	if !ok {
		return fmt.Errorf("invalid amount: %s", rec.Amount)
	}
	*r = Record{
		Owner:      rec.Owner,
		Amount:     amount,
		ObservedAt: rec.ObservedAt,
		Chain:      rec.Chain,
		Source:     rec.Source,
	}
	return nil
}
