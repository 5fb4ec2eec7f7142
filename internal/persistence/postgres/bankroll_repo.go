package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/jmoiron/sqlx"
)

// BankrollRepo implements bankroll.Store: the append-only ledger table
// backing BankrollState.
type BankrollRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewBankrollRepo(db *sqlx.DB) *BankrollRepo {
	return &BankrollRepo{db: db, timeout: defaultQueryTimeout}
}

func (r *BankrollRepo) Append(ctx context.Context, entry domain.LedgerEntry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (occurred_at, delta, reason, balance)
		VALUES ($1, $2, $3, $4)
	`, entry.OccurredAt, entry.Delta, entry.Reason, entry.Balance)
	if err != nil {
		return fmt.Errorf("postgres: append ledger entry (%s): %w", entry.Reason, err)
	}
	return nil
}

func (r *BankrollRepo) All(ctx context.Context) ([]domain.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []struct {
		ID         int64     `db:"id"`
		OccurredAt time.Time `db:"occurred_at"`
		Delta      float64   `db:"delta"`
		Reason     string    `db:"reason"`
		Balance    float64   `db:"balance"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, occurred_at, delta, reason, balance FROM ledger_entries ORDER BY id`); err != nil {
		return nil, fmt.Errorf("postgres: read ledger: %w", err)
	}

	out := make([]domain.LedgerEntry, len(rows))
	for i, row := range rows {
		out[i] = domain.LedgerEntry{ID: row.ID, OccurredAt: row.OccurredAt, Delta: row.Delta, Reason: row.Reason, Balance: row.Balance}
	}
	return out, nil
}
