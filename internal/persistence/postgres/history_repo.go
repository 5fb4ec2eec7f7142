package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/edgeworks/nfledge/internal/decision"
	"github.com/edgeworks/nfledge/internal/discovery"
	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/jmoiron/sqlx"
)

// HistoryRepo implements orchestrator.HistoryWriter (the permanent,
// time-indexed cache tier) and backtest.OddsAsOf (replay reads against that
// same table) — the two sides of the "raw responses retained indefinitely,
// indexed by collector+time" requirement.
type HistoryRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewHistoryRepo(db *sqlx.DB) *HistoryRepo {
	return &HistoryRepo{db: db, timeout: defaultQueryTimeout}
}

// RecordResponse appends one raw collector response. History is
// append-only: a given (collector_key, cache_key, fetched_at) is never
// overwritten, so replays of the same instant are reproducible.
func (r *HistoryRepo) RecordResponse(ctx context.Context, collectorKey, cacheKey string, raw []byte, fetchedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO response_history (collector_key, cache_key, raw, fetched_at)
		VALUES ($1, $2, $3, $4)
	`, collectorKey, cacheKey, raw, fetchedAt)
	if err != nil {
		return fmt.Errorf("postgres: record response history for %s/%s: %w", collectorKey, cacheKey, err)
	}
	return nil
}

// QuotesAsOf returns the odds quotes that were the most recently observed
// per book as of asOf — never a quote recorded after asOf, the no-look-ahead
// discipline the Backtester depends on.
func (r *HistoryRepo) QuotesAsOf(ctx context.Context, gameID domain.GameID, asOf time.Time) ([]decision.OddsQuote, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []struct {
		Book       string    `db:"book"`
		Side       string    `db:"side"`
		American   int       `db:"american"`
		ObservedAt time.Time `db:"observed_at"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT DISTINCT ON (book, side) book, side, american, observed_at
		FROM odds_quotes
		WHERE game_key = $1 AND observed_at <= $2
		ORDER BY book, side, observed_at DESC
	`, gameID.String(), asOf)
	if err != nil {
		return nil, fmt.Errorf("postgres: quotes as of %s for %s: %w", asOf, gameID, err)
	}

	out := make([]decision.OddsQuote, len(rows))
	for i, row := range rows {
		out[i] = decision.OddsQuote{Book: row.Book, Side: row.Side, American: row.American, ObservedAt: row.ObservedAt}
	}
	return out, nil
}

// DiscoveryLogRepo implements discovery.Log, the append-only ledger of
// candidate-consideration outcomes.
type DiscoveryLogRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewDiscoveryLogRepo(db *sqlx.DB) *DiscoveryLogRepo {
	return &DiscoveryLogRepo{db: db, timeout: defaultQueryTimeout}
}

func (r *DiscoveryLogRepo) Append(ctx context.Context, entry discovery.LogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO discovery_log (run_id, candidate_name, source, outcome, reason, considered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.RunID, entry.CandidateName, entry.Source, entry.Outcome, entry.Reason, entry.ConsideredAt)
	if err != nil {
		return fmt.Errorf("postgres: append discovery log entry for run %s: %w", entry.RunID, err)
	}
	return nil
}
