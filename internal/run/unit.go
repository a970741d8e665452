package run

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"honeystats/internal/metrics"
	"honeystats/internal/records"
	"honeystats/internal/scan"
	"honeystats/internal/stats"
)

// unit is one independent scan-and-aggregate pipeline for a (chain,
// source) pair. Units run concurrently; each one exclusively owns its
// checkpoint, record store, and snapshot files for the duration of a run.
type unit struct {
	src       scan.Source
	scanner   *scan.Scanner
	dataDir   string
	retention time.Duration
	topN      int
	tally     *metrics.Tally
	logger    *zap.Logger
}

// unitResult carries everything the run's sequential phase publishes.
type unitResult struct {
	src       scan.Source
	lastBlock uint64
	agg       stats.Aggregate
	boards    map[stats.WindowKind][]stats.Entry

	// staking only
	stakerCount int
	stakerTotal *big.Int
}

// process never fails the run: every fault degrades this unit's output
// for one cycle and lands in the tally.
func (u *unit) process(ctx context.Context, now time.Time) *unitResult {
	chain := u.src.Chain

	cp := scan.NewCheckpointStore(u.checkpointPath(), chain)
	lastBlock, ok, err := cp.Load()
	if err != nil {
		u.logger.Warn("read checkpoint failed", zap.String("chain", chain), zap.Error(err))
		u.tally.Add(chain, u.src.CheckpointErr())
	}
	if !ok || lastBlock < u.src.DeployBlock {
		lastBlock = u.src.DeployBlock
	}

	store := records.NewStore(u.recordPath(), chain, string(u.src.Kind))
	recs, err := store.Load()
	if err != nil {
		u.logger.Warn("read record store failed", zap.String("chain", chain), zap.Error(err))
		u.tally.Add(chain, metrics.ErrReadRecordStore)
		recs = nil
	}

	// Retention runs before the scan appends, so stale history never
	// survives into this run's aggregates.
	recs = records.Prune(recs, now, u.retention)

	scanned, newCheckpoint, err := u.scanner.Scan(ctx, u.src, cp, lastBlock)
	if err != nil {
		u.logger.Warn("scan failed", zap.String("chain", chain), zap.String("source", string(u.src.Kind)), zap.Error(err))
		u.tally.Add(chain, u.src.EventsErr())
	}
	recs = append(recs, scanned...)

	u.save(store, recs)

	agg := stats.Compute(recs, now)

	// Second save keeps the pruned store durable even when the scan found
	// nothing new.
	u.save(store, recs)

	res := &unitResult{
		src:       u.src,
		lastBlock: newCheckpoint,
		agg:       agg,
		boards: map[stats.WindowKind][]stats.Entry{
			stats.Weekly:  stats.Leaderboard(agg.Weekly, u.topN),
			stats.Monthly: stats.Leaderboard(agg.Monthly, u.topN),
			stats.AllTime: stats.Leaderboard(agg.AllTime, u.topN),
		},
	}

	if u.src.Kind == scan.Staking {
		u.updateStakers(res, scanned)
	}

	return res
}

func (u *unit) save(store *records.Store, recs []records.Record) {
	if err := store.Save(recs); err != nil {
		u.logger.Warn("write record store failed", zap.String("chain", u.src.Chain), zap.Error(err))
		u.tally.Add(u.src.Chain, metrics.ErrWriteRecords)
	}
}

// updateStakers folds this run's stake updates into the last-value-wins
// snapshot and exposes its size and value sum on the result.
func (u *unit) updateStakers(res *unitResult, scanned []records.Record) {
	chain := u.src.Chain
	store := records.NewStakerStore(u.stakersPath())

	snapshot, err := store.Load()
	if err != nil {
		u.logger.Warn("read stakers file failed", zap.String("chain", chain), zap.Error(err))
		u.tally.Add(chain, metrics.ErrReadStakersFile)
		snapshot = records.StakerSnapshot{}
	}

	snapshot.Apply(scanned)

	if err := store.Save(snapshot); err != nil {
		u.logger.Warn("write stakers file failed", zap.String("chain", chain), zap.Error(err))
		u.tally.Add(chain, metrics.ErrWriteStakersFile)
	}

	res.stakerCount = len(snapshot)
	res.stakerTotal = snapshot.Total()
}

func (u *unit) checkpointPath() string {
	return filepath.Join(u.dataDir, fmt.Sprintf("last_block_%s_%s.json", u.src.Chain, u.src.Kind))
}

func (u *unit) recordPath() string {
	name := "winners"
	if u.src.Kind == scan.Staking {
		name = "stakes"
	}
	return filepath.Join(u.dataDir, fmt.Sprintf("%s_%s.json", name, u.src.Chain))
}

func (u *unit) stakersPath() string {
	return filepath.Join(u.dataDir, fmt.Sprintf("stakers_%s.json", u.src.Chain))
}
