package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"honeystats/internal/stats"
)

// Store mirrors leaderboards and scan progress into Postgres for ad hoc
// querying. It is optional; the file stores remain the source of truth.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertLeaderboard replaces the ranked rows for one (chain, source,
// window). Amounts are stored as numeric text to keep full precision.
func (s *Store) UpsertLeaderboard(
	ctx context.Context,
	chain, source string,
	window stats.WindowKind,
	entries []stats.Entry,
) error {
	batch := &pgx.Batch{}
	batch.Queue(
		`DELETE FROM leaderboards WHERE chain=$1 AND source=$2 AND window_kind=$3`,
		chain, source, string(window),
	)
	for rank, entry := range entries {
		batch.Queue(`
			INSERT INTO leaderboards (chain, source, window_kind, rank, owner, amount, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
		`,
			chain,
			source,
			string(window),
			rank+1,
			entry.Owner,
			entry.Amount.String(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(entries)+1; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// SaveScanState upserts the last processed block for a (chain, source).
func (s *Store) SaveScanState(ctx context.Context, chain, source string, lastBlock uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scan_state (chain, source, last_block, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (chain, source) DO UPDATE
		SET last_block = EXCLUDED.last_block, updated_at = now()
	`, chain, source, int64(lastBlock))
	return err
}
