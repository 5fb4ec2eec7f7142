package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*CatalogRepo, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewCatalogRepo(sqlx.NewDb(mockDB, "postgres")), mock
}

func testEdge() *domain.Edge {
	return &domain.Edge{
		ID:              "edge-1",
		PredicateText:   "home_rest_days >= 7",
		RecommendedSide: domain.SideHome,
		Status:          domain.EdgeActive,
		DiscoveryStats:  domain.Stats{SampleSize: 150, Wins: 90, WinRate: 0.6, ROI: 0.1, PValue: 0.001, EffectSize: 0.1},
		RecentStats:     domain.Stats{SampleSize: 40, Wins: 24, WinRate: 0.6, ROI: 0.1, PValue: 0.02, EffectSize: 0.1},
		Version:         1,
		CreatedAt:       time.Now().UTC(),
	}
}

func TestGetReturnsNotFoundWithoutError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT \* FROM edges WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(nil))

	_, ok, err := repo.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutUpsertsEdge(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`INSERT INTO edges`).WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Put(context.Background(), testEdge())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveFiltersByStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	cols := []string{
		"id", "predicate_text", "recommended_side", "status",
		"discovery_sample_size", "discovery_wins", "discovery_win_rate", "discovery_roi", "discovery_p_value", "discovery_effect_size",
		"recent_sample_size", "recent_wins", "recent_win_rate", "recent_roi", "recent_p_value", "recent_effect_size",
		"version", "created_at", "promoted_at", "retired_at", "retired_reason",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		"edge-1", "home_rest_days >= 7", "home", "active",
		150, 90, 0.6, 0.1, 0.001, 0.1,
		40, 24, 0.6, 0.1, 0.02, 0.1,
		1, time.Now(), nil, nil, "",
	)
	mock.ExpectQuery(`SELECT \* FROM edges WHERE status = \$1`).WithArgs("active").WillReturnRows(rows)

	edges, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "edge-1", edges[0].ID)
	assert.Equal(t, domain.SideHome, edges[0].RecommendedSide)
}
