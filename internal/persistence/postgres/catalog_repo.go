// Package postgres implements the production persistence layer: the Edge
// Catalog's Store, the Orchestrator's permanent history tier, the
// Discoverer's run log, and the bankroll ledger, all against a single
// Postgres database via sqlx using an upsert-with-ON-CONFLICT /
// windowed-query / scan-helper repository pattern.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const defaultQueryTimeout = 5 * time.Second

// edgeRow mirrors the edges table for sqlx scanning; domain.Edge's nested
// Stats structs are flattened into discovery_/recent_ prefixed columns.
type edgeRow struct {
	ID                   string     `db:"id"`
	PredicateText        string     `db:"predicate_text"`
	RecommendedSide      string     `db:"recommended_side"`
	Status               string     `db:"status"`
	DiscoverySampleSize  int        `db:"discovery_sample_size"`
	DiscoveryWins        int        `db:"discovery_wins"`
	DiscoveryWinRate     float64    `db:"discovery_win_rate"`
	DiscoveryROI         float64    `db:"discovery_roi"`
	DiscoveryPValue      float64    `db:"discovery_p_value"`
	DiscoveryEffectSize  float64    `db:"discovery_effect_size"`
	RecentSampleSize     int        `db:"recent_sample_size"`
	RecentWins           int        `db:"recent_wins"`
	RecentWinRate        float64    `db:"recent_win_rate"`
	RecentROI            float64    `db:"recent_roi"`
	RecentPValue         float64    `db:"recent_p_value"`
	RecentEffectSize     float64    `db:"recent_effect_size"`
	Version              int        `db:"version"`
	CreatedAt            time.Time  `db:"created_at"`
	PromotedAt           *time.Time `db:"promoted_at"`
	RetiredAt            *time.Time `db:"retired_at"`
	RetiredReason        string     `db:"retired_reason"`
}

// CatalogRepo is a Postgres-backed catalog.Store.
type CatalogRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewCatalogRepo wraps an open *sqlx.DB. Callers own the DB's lifecycle.
func NewCatalogRepo(db *sqlx.DB) *CatalogRepo {
	return &CatalogRepo{db: db, timeout: defaultQueryTimeout}
}

func (r *CatalogRepo) Get(ctx context.Context, id string) (*domain.Edge, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row edgeRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM edges WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: get edge %s: %w", id, err)
	}
	return rowToEdge(row), true, nil
}

func (r *CatalogRepo) All(ctx context.Context) ([]*domain.Edge, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []edgeRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM edges ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("postgres: list all edges: %w", err)
	}
	return rowsToEdges(rows), nil
}

func (r *CatalogRepo) ListActive(ctx context.Context) ([]*domain.Edge, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []edgeRow
	err := r.db.SelectContext(ctx, &rows, `SELECT * FROM edges WHERE status = $1 ORDER BY created_at`, string(domain.EdgeActive))
	if err != nil {
		return nil, fmt.Errorf("postgres: list active edges: %w", err)
	}
	return rowsToEdges(rows), nil
}

// Put upserts an Edge by ID using the standard ON-CONFLICT-DO-UPDATE
// shape for artifact rows.
func (r *CatalogRepo) Put(ctx context.Context, e *domain.Edge) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := edgeToRow(e)
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO edges (
			id, predicate_text, recommended_side, status,
			discovery_sample_size, discovery_wins, discovery_win_rate, discovery_roi, discovery_p_value, discovery_effect_size,
			recent_sample_size, recent_wins, recent_win_rate, recent_roi, recent_p_value, recent_effect_size,
			version, created_at, promoted_at, retired_at, retired_reason
		) VALUES (
			:id, :predicate_text, :recommended_side, :status,
			:discovery_sample_size, :discovery_wins, :discovery_win_rate, :discovery_roi, :discovery_p_value, :discovery_effect_size,
			:recent_sample_size, :recent_wins, :recent_win_rate, :recent_roi, :recent_p_value, :recent_effect_size,
			:version, :created_at, :promoted_at, :retired_at, :retired_reason
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			recent_sample_size = EXCLUDED.recent_sample_size,
			recent_wins = EXCLUDED.recent_wins,
			recent_win_rate = EXCLUDED.recent_win_rate,
			recent_roi = EXCLUDED.recent_roi,
			recent_p_value = EXCLUDED.recent_p_value,
			recent_effect_size = EXCLUDED.recent_effect_size,
			version = EXCLUDED.version,
			promoted_at = EXCLUDED.promoted_at,
			retired_at = EXCLUDED.retired_at,
			retired_reason = EXCLUDED.retired_reason
	`, row)
	if err != nil {
		return fmt.Errorf("postgres: upsert edge %s: %w", e.ID, err)
	}
	return nil
}

func edgeToRow(e *domain.Edge) edgeRow {
	return edgeRow{
		ID:                  e.ID,
		PredicateText:       e.PredicateText,
		RecommendedSide:     string(e.RecommendedSide),
		Status:              string(e.Status),
		DiscoverySampleSize: e.DiscoveryStats.SampleSize,
		DiscoveryWins:       e.DiscoveryStats.Wins,
		DiscoveryWinRate:    e.DiscoveryStats.WinRate,
		DiscoveryROI:        e.DiscoveryStats.ROI,
		DiscoveryPValue:     e.DiscoveryStats.PValue,
		DiscoveryEffectSize: e.DiscoveryStats.EffectSize,
		RecentSampleSize:    e.RecentStats.SampleSize,
		RecentWins:          e.RecentStats.Wins,
		RecentWinRate:       e.RecentStats.WinRate,
		RecentROI:           e.RecentStats.ROI,
		RecentPValue:        e.RecentStats.PValue,
		RecentEffectSize:    e.RecentStats.EffectSize,
		Version:             e.Version,
		CreatedAt:           e.CreatedAt,
		PromotedAt:          e.PromotedAt,
		RetiredAt:           e.RetiredAt,
		RetiredReason:       e.RetiredReason,
	}
}

func rowToEdge(row edgeRow) *domain.Edge {
	return &domain.Edge{
		ID:              row.ID,
		PredicateText:   row.PredicateText,
		RecommendedSide: domain.Side(row.RecommendedSide),
		Status:          domain.EdgeStatus(row.Status),
		DiscoveryStats: domain.Stats{
			SampleSize: row.DiscoverySampleSize,
			Wins:       row.DiscoveryWins,
			WinRate:    row.DiscoveryWinRate,
			ROI:        row.DiscoveryROI,
			PValue:     row.DiscoveryPValue,
			EffectSize: row.DiscoveryEffectSize,
		},
		RecentStats: domain.Stats{
			SampleSize: row.RecentSampleSize,
			Wins:       row.RecentWins,
			WinRate:    row.RecentWinRate,
			ROI:        row.RecentROI,
			PValue:     row.RecentPValue,
			EffectSize: row.RecentEffectSize,
		},
		Version:       row.Version,
		CreatedAt:     row.CreatedAt,
		PromotedAt:    row.PromotedAt,
		RetiredAt:     row.RetiredAt,
		RetiredReason: row.RetiredReason,
	}
}

func rowsToEdges(rows []edgeRow) []*domain.Edge {
	out := make([]*domain.Edge, len(rows))
	for i, row := range rows {
		out[i] = rowToEdge(row)
	}
	return out
}
