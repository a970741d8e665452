package scan

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const stakeUpdatedABI = `[{
	"anonymous": false,
	"inputs": [
		{"indexed": true, "internalType": "bytes32", "name": "overlay", "type": "bytes32"},
		{"indexed": false, "internalType": "uint256", "name": "stakeAmount", "type": "uint256"},
		{"indexed": false, "internalType": "address", "name": "owner", "type": "address"},
		{"indexed": false, "internalType": "uint256", "name": "lastUpdatedBlock", "type": "uint256"}
	],
	"name": "StakeUpdated",
	"type": "event"
}]`

func TestDecodeEventWithIndexedTopics(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(stakeUpdatedABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	event := parsed.Events["StakeUpdated"]

	owner := common.HexToAddress("0x3333333333333333333333333333333333333333")
	overlay := common.HexToHash("0xabcdef0000000000000000000000000000000000000000000000000000000001")

	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(4200), owner, big.NewInt(99))
	if err != nil {
		t.Fatalf("pack data: %v", err)
	}
	log := types.Log{
		Topics:      []common.Hash{event.ID, overlay},
		Data:        data,
		BlockNumber: 99,
	}

	values, err := decodeEvent(event, log)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	gotOwner, err := eventOwner(values, "owner")
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if gotOwner != owner.Hex() {
		t.Fatalf("owner mismatch: %s != %s", gotOwner, owner.Hex())
	}

	amount, err := eventAmount(values, "stakeAmount")
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	if amount.Cmp(big.NewInt(4200)) != 0 {
		t.Fatalf("amount mismatch: %s != 4200", amount)
	}
}

func TestDecodeEventTopicMismatch(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(stakeUpdatedABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	event := parsed.Events["StakeUpdated"]

	log := types.Log{Topics: []common.Hash{common.HexToHash("0x01")}}
	if _, err := decodeEvent(event, log); err == nil {
		t.Fatalf("expected error for mismatched topic0")
	}
}

func TestDecodeEventMissingFields(t *testing.T) {
	values := map[string]interface{}{"stakeAmount": big.NewInt(1)}

	if _, err := eventOwner(values, "owner"); err == nil {
		t.Fatalf("expected error for missing owner field")
	}
	if _, err := eventAmount(values, "amount"); err == nil {
		t.Fatalf("expected error for missing amount field")
	}
	if _, err := eventAmount(values, "stakeAmount"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
