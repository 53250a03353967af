package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/its-DeFine/embody-financial-audit-pack/internal/model"
)

// Store provides Postgres persistence for verification run history.
// It is write-only: runs are archived for later querying, never read
// back during verification.
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

// InsertRun records one verification run and its per-category
// summaries. Returns the run id.
func (s *Store) InsertRun(ctx context.Context, verifier, status string, startedAt time.Time, summaries []model.ReconciliationSummary) (int64, error) {
	if verifier == "" {
		return 0, fmt.Errorf("verifier name required")
	}

	var runID int64
	row := s.pool.QueryRow(ctx, `
		INSERT INTO verification_runs (verifier, status, started_at, finished_at)
		VALUES ($1, $2, $3, now())
		RETURNING id
	`, verifier, status, startedAt.UTC())
	if err := row.Scan(&runID); err != nil {
		return 0, err
	}

	if len(summaries) == 0 {
		return runID, nil
	}

	batch := &pgx.Batch{}
	for _, summary := range summaries {
		batch.Queue(`
			INSERT INTO run_summaries (
				run_id, category, computed_total, expected_total, matched, delta, as_of_date, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		`,
			runID,
			summary.Category,
			summary.ComputedTotal,
			summary.ExpectedTotal,
			summary.Matched,
			summary.Delta,
			summary.AsOfDate,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range summaries {
		if _, err := br.Exec(); err != nil {
			return 0, err
		}
	}
	return runID, nil
}
