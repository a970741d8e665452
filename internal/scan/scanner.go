package scan

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"honeystats/internal/metrics"
	"honeystats/internal/records"
)

// DefaultChunkSize bounds the block count per upstream request; the
// Gnosis nodes reject larger ranges.
const DefaultChunkSize = 10_000

const errPause = time.Second

// ChainReader is the subset of chain operations the scanner needs.
type ChainReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topic0 common.Hash) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// chunkOutcome is the explicit per-chunk result driving the scan loop.
type chunkOutcome int

const (
	chunkOK chunkOutcome = iota
	chunkSkipped
)

// Scanner fetches event logs for one source in bounded chunks, advancing
// the checkpoint after every chunk. A failed chunk is skipped rather than
// retried: the checkpoint still advances past it, trading completeness
// for liveness against a flaky upstream.
type Scanner struct {
	chain     ChainReader
	tally     *metrics.Tally
	logger    *zap.Logger
	chunkSize uint64
	pause     time.Duration
}

func NewScanner(chain ChainReader, tally *metrics.Tally, logger *zap.Logger, chunkSize uint64) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	return &Scanner{
		chain:     chain,
		tally:     tally,
		logger:    logger,
		chunkSize: chunkSize,
		pause:     errPause,
	}
}

// Scan processes [lastProcessed+1, head] for the source, where head is
// snapshotted once at scan start. It returns the decoded records and the
// new checkpoint, which is always >= lastProcessed. The checkpoint store
// is persisted after every chunk, success or skip.
func (s *Scanner) Scan(ctx context.Context, src Source, cp *CheckpointStore, lastProcessed uint64) ([]records.Record, uint64, error) {
	head, err := s.chain.LatestBlockNumber(ctx)
	if err != nil {
		return nil, lastProcessed, err
	}

	if lastProcessed >= head {
		s.logger.Info("nothing to scan",
			zap.String("chain", src.Chain),
			zap.String("source", string(src.Kind)),
			zap.Uint64("last_processed", lastProcessed),
			zap.Uint64("head", head),
		)
		return nil, lastProcessed, nil
	}

	ranges, err := SplitRange(lastProcessed+1, head, s.chunkSize)
	if err != nil {
		return nil, lastProcessed, err
	}

	var out []records.Record
	checkpoint := lastProcessed

	for _, chunk := range ranges {
		select {
		case <-ctx.Done():
			return out, checkpoint, ctx.Err()
		default:
		}

		s.logger.Info("scan chunk",
			zap.String("chain", src.Chain),
			zap.String("source", string(src.Kind)),
			zap.Uint64("from", chunk.From),
			zap.Uint64("to", chunk.To),
		)

		recs, outcome := s.scanChunk(ctx, src, chunk)
		if outcome == chunkSkipped {
			s.tally.Add(src.Chain, src.EventsErr())
		} else {
			out = append(out, recs...)
		}

		// The checkpoint advances past failed chunks too: that range is
		// permanently skipped.
		checkpoint = chunk.To
		if err := cp.Save(checkpoint); err != nil {
			s.logger.Warn("save checkpoint failed",
				zap.String("chain", src.Chain),
				zap.String("source", string(src.Kind)),
				zap.Error(err),
			)
		}

		if outcome == chunkSkipped {
			if err := s.sleep(ctx); err != nil {
				return out, checkpoint, err
			}
		}
	}

	return out, checkpoint, nil
}

func (s *Scanner) scanChunk(ctx context.Context, src Source, chunk BlockRange) ([]records.Record, chunkOutcome) {
	logs, err := s.chain.FilterLogs(ctx, chunk.From, chunk.To, src.Address, src.Event.ID)
	if err != nil {
		s.logger.Warn("get events failed",
			zap.String("chain", src.Chain),
			zap.String("source", string(src.Kind)),
			zap.Uint64("from", chunk.From),
			zap.Uint64("to", chunk.To),
			zap.Error(err),
		)
		return nil, chunkSkipped
	}

	recs := make([]records.Record, 0, len(logs))
	for _, log := range logs {
		values, err := decodeEvent(src.Event, log)
		if err != nil {
			s.logger.Warn("decode event failed", zap.String("chain", src.Chain), zap.Error(err))
			return nil, chunkSkipped
		}

		owner, err := eventOwner(values, src.OwnerField)
		if err != nil {
			s.logger.Warn("decode event failed", zap.String("chain", src.Chain), zap.Error(err))
			return nil, chunkSkipped
		}

		amount, err := eventAmount(values, src.AmountField)
		if err != nil {
			s.logger.Warn("decode event failed", zap.String("chain", src.Chain), zap.Error(err))
			return nil, chunkSkipped
		}

		ts, err := s.chain.BlockTimestamp(ctx, log.BlockNumber)
		if err != nil {
			s.logger.Warn("block timestamp failed",
				zap.String("chain", src.Chain),
				zap.Uint64("block_number", log.BlockNumber),
				zap.Error(err),
			)
			return nil, chunkSkipped
		}

		recs = append(recs, records.Record{
			Owner:      owner,
			Amount:     amount,
			ObservedAt: int64(ts),
			Chain:      src.Chain,
			Source:     string(src.Kind),
		})
	}

	return recs, chunkOK
}

func (s *Scanner) sleep(ctx context.Context) error {
	timer := time.NewTimer(s.pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
