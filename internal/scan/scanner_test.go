package scan

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"honeystats/internal/metrics"
)

const winnerABI = `[{
	"anonymous": false,
	"inputs": [
		{"indexed": false, "internalType": "address", "name": "owner", "type": "address"},
		{"indexed": false, "internalType": "uint256", "name": "stake", "type": "uint256"}
	],
	"name": "WinnerSelected",
	"type": "event"
}]`

type fakeChain struct {
	head     uint64
	logs     map[uint64][]types.Log
	failFrom map[uint64]bool
	tsFail   map[uint64]bool
	calls    []BlockRange
}

func (f *fakeChain) LatestBlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeChain) FilterLogs(_ context.Context, from, to uint64, _ common.Address, _ common.Hash) ([]types.Log, error) {
	f.calls = append(f.calls, BlockRange{From: from, To: to})
	if f.failFrom[from] {
		return nil, errors.New("rate limited")
	}
	return f.logs[from], nil
}

func (f *fakeChain) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	if f.tsFail[number] {
		return 0, errors.New("timestamp lookup failed")
	}
	return 1_700_000_000 + number, nil
}

func testSource(t *testing.T, kind Kind) Source {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(winnerABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	return Source{
		Chain:        "gnosis",
		ContractName: "Redistribution",
		Address:      common.HexToAddress("0x5069cdfB3D9E56d23B1cAeE83CE6109A7E4fd62d"),
		Event:        parsed.Events["WinnerSelected"],
		OwnerField:   "owner",
		AmountField:  "stake",
		Kind:         kind,
	}
}

func winnerLog(t *testing.T, src Source, block uint64, owner string, stake int64) types.Log {
	t.Helper()
	data, err := src.Event.Inputs.Pack(common.HexToAddress(owner), big.NewInt(stake))
	if err != nil {
		t.Fatalf("pack event data: %v", err)
	}
	return types.Log{
		Topics:      []common.Hash{src.Event.ID},
		Data:        data,
		BlockNumber: block,
	}
}

func newTestScanner(chainReader ChainReader, tally *metrics.Tally) *Scanner {
	s := NewScanner(chainReader, tally, nil, 10_000)
	s.pause = time.Millisecond
	return s
}

func TestScanChunksAndCheckpoint(t *testing.T) {
	src := testSource(t, Redistribution)
	fake := &fakeChain{
		head: 25_000,
		logs: map[uint64][]types.Log{
			1001:  {winnerLog(t, src, 2000, "0x1111111111111111111111111111111111111111", 100)},
			21001: {winnerLog(t, src, 22_000, "0x2222222222222222222222222222222222222222", 50)},
		},
	}
	tally := metrics.NewTally(prometheus.NewRegistry())
	cp := NewCheckpointStore(filepath.Join(t.TempDir(), "last_block.json"), "gnosis")

	recs, checkpoint, err := newTestScanner(fake, tally).Scan(context.Background(), src, cp, 1000)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	wantCalls := []BlockRange{
		{From: 1001, To: 11_000},
		{From: 11_001, To: 21_000},
		{From: 21_001, To: 25_000},
	}
	if len(fake.calls) != len(wantCalls) {
		t.Fatalf("call count mismatch: %d != %d", len(fake.calls), len(wantCalls))
	}
	for i, call := range fake.calls {
		if call != wantCalls[i] {
			t.Fatalf("call %d mismatch: %+v != %+v", i, call, wantCalls[i])
		}
	}

	if checkpoint != 25_000 {
		t.Fatalf("checkpoint mismatch: %d != 25000", checkpoint)
	}
	saved, ok, err := cp.Load()
	if err != nil || !ok {
		t.Fatalf("load checkpoint: ok=%v err=%v", ok, err)
	}
	if saved != 25_000 {
		t.Fatalf("persisted checkpoint mismatch: %d != 25000", saved)
	}

	if len(recs) != 2 {
		t.Fatalf("record count mismatch: %d != 2", len(recs))
	}
	if recs[0].Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("amount mismatch: %s != 100", recs[0].Amount)
	}
	if recs[0].ObservedAt != 1_700_002_000 {
		t.Fatalf("observed_at mismatch: %d", recs[0].ObservedAt)
	}
}

func TestScanSkipsFailedChunk(t *testing.T) {
	src := testSource(t, "")
	fake := &fakeChain{
		head: 25_000,
		logs: map[uint64][]types.Log{
			21001: {winnerLog(t, src, 22_000, "0x2222222222222222222222222222222222222222", 50)},
		},
		failFrom: map[uint64]bool{11_001: true},
	}
	tally := metrics.NewTally(prometheus.NewRegistry())
	cp := NewCheckpointStore(filepath.Join(t.TempDir(), "last_block.json"), "gnosis")

	recs, checkpoint, err := newTestScanner(fake, tally).Scan(context.Background(), src, cp, 1000)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	// The failed range is skipped for good: the checkpoint advances past
	// it and the scan resumes at the next chunk.
	if checkpoint != 25_000 {
		t.Fatalf("checkpoint mismatch: %d != 25000", checkpoint)
	}
	if got := testutil.ToFloat64(tally.Counter("gnosis", metrics.ErrGetEvents)); got != 1 {
		t.Fatalf("error tally mismatch: %v != 1", got)
	}
	if len(recs) != 1 {
		t.Fatalf("record count mismatch: %d != 1", len(recs))
	}
	if recs[0].Owner != common.HexToAddress("0x2222222222222222222222222222222222222222").Hex() {
		t.Fatalf("unexpected record owner: %s", recs[0].Owner)
	}
}

func TestScanSourceSpecificErrorType(t *testing.T) {
	src := testSource(t, Redistribution)
	fake := &fakeChain{
		head:     15_000,
		failFrom: map[uint64]bool{1001: true, 11_001: true},
	}
	tally := metrics.NewTally(prometheus.NewRegistry())
	cp := NewCheckpointStore(filepath.Join(t.TempDir(), "last_block.json"), "gnosis")

	_, checkpoint, err := newTestScanner(fake, tally).Scan(context.Background(), src, cp, 1000)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if checkpoint != 15_000 {
		t.Fatalf("checkpoint mismatch: %d != 15000", checkpoint)
	}
	if got := testutil.ToFloat64(tally.Counter("gnosis", metrics.ErrGetRedistributionEvents)); got != 2 {
		t.Fatalf("error tally mismatch: %v != 2", got)
	}
}

func TestScanTimestampFailureSkipsChunk(t *testing.T) {
	src := testSource(t, Redistribution)
	fake := &fakeChain{
		head: 5000,
		logs: map[uint64][]types.Log{
			1001: {winnerLog(t, src, 2000, "0x1111111111111111111111111111111111111111", 100)},
		},
		tsFail: map[uint64]bool{2000: true},
	}
	tally := metrics.NewTally(prometheus.NewRegistry())
	cp := NewCheckpointStore(filepath.Join(t.TempDir(), "last_block.json"), "gnosis")

	recs, checkpoint, err := newTestScanner(fake, tally).Scan(context.Background(), src, cp, 1000)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no records from skipped chunk, got %d", len(recs))
	}
	if checkpoint != 5000 {
		t.Fatalf("checkpoint mismatch: %d != 5000", checkpoint)
	}
	if got := testutil.ToFloat64(tally.Counter("gnosis", metrics.ErrGetRedistributionEvents)); got != 1 {
		t.Fatalf("error tally mismatch: %v != 1", got)
	}
}

func TestScanNothingToDo(t *testing.T) {
	src := testSource(t, Redistribution)
	fake := &fakeChain{head: 1000}
	tally := metrics.NewTally(prometheus.NewRegistry())
	cp := NewCheckpointStore(filepath.Join(t.TempDir(), "last_block.json"), "gnosis")

	recs, checkpoint, err := newTestScanner(fake, tally).Scan(context.Background(), src, cp, 1000)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(recs) != 0 || checkpoint != 1000 {
		t.Fatalf("expected no-op scan, got %d records, checkpoint %d", len(recs), checkpoint)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no log queries, got %d", len(fake.calls))
	}
}
