package scan

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// decodeEvent unpacks a log's data and indexed topics into a single
// name->value map using the source's event schema.
func decodeEvent(event abi.Event, log types.Log) (map[string]interface{}, error) {
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return nil, fmt.Errorf("log topic0 does not match event %s", event.Name)
	}

	values := make(map[string]interface{})
	if len(log.Data) > 0 {
		if err := event.Inputs.UnpackIntoMap(values, log.Data); err != nil {
			return nil, fmt.Errorf("unpack %s data: %w", event.Name, err)
		}
	}

	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
			return nil, fmt.Errorf("parse %s topics: %w", event.Name, err)
		}
	}

	return values, nil
}

// eventOwner extracts the owner address from decoded event values.
func eventOwner(values map[string]interface{}, field string) (string, error) {
	value, ok := values[field]
	if !ok {
		return "", fmt.Errorf("missing owner field %q", field)
	}
	addr, ok := value.(common.Address)
	if !ok {
		return "", fmt.Errorf("owner field %q is not an address", field)
	}
	return addr.Hex(), nil
}

// eventAmount extracts the stake amount from decoded event values.
func eventAmount(values map[string]interface{}, field string) (*big.Int, error) {
	value, ok := values[field]
	if !ok {
		return nil, fmt.Errorf("missing amount field %q", field)
	}
	amount, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("amount field %q is not an integer", field)
	}
	return amount, nil
}
