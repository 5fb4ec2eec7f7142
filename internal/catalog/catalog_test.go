package catalog

import (
	"context"
	"testing"

	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/edgeworks/nfledge/internal/predicate"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog() *Catalog {
	return New(NewMemoryStore(), 50, zerolog.Nop())
}

func mustPredicate(t *testing.T, field predicate.Field, op predicate.Op, val float64) *predicate.Predicate {
	p, err := predicate.New(predicate.Comparison{Field: field, Op: op, Value: val})
	require.NoError(t, err)
	return p
}

func TestRegisterNewCandidateAccepted(t *testing.T) {
	c := newTestCatalog()
	p := mustPredicate(t, predicate.FieldHomeEloDiff, predicate.OpGT, 100)
	candidate := &domain.Edge{PredicateText: p.Canonical(), RecommendedSide: domain.SideHome,
		DiscoveryStats: domain.Stats{SampleSize: 400, WinRate: 0.70, PValue: 0.00001}}

	outcome, edge, err := c.Register(context.Background(), candidate, p)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, outcome)
	assert.NotEmpty(t, edge.ID)
	assert.Equal(t, 1, edge.Version)
}

func TestRegisterDuplicateRejected(t *testing.T) {
	c := newTestCatalog()
	p1 := mustPredicate(t, predicate.FieldHomeEloDiff, predicate.OpGT, 100)
	first := &domain.Edge{PredicateText: p1.Canonical(), RecommendedSide: domain.SideHome,
		DiscoveryStats: domain.Stats{SampleSize: 400, WinRate: 0.70, PValue: 0.00001}}
	_, _, err := c.Register(context.Background(), first, p1)
	require.NoError(t, err)

	// near-identical predicate, no meaningful improvement
	p2 := mustPredicate(t, predicate.FieldHomeEloDiff, predicate.OpGT, 101)
	second := &domain.Edge{PredicateText: p2.Canonical(), RecommendedSide: domain.SideHome,
		DiscoveryStats: domain.Stats{SampleSize: 410, WinRate: 0.705, PValue: 0.00001}}

	outcome, _, err := c.Register(context.Background(), second, p2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
}

func TestRegisterVersionBumpWhenClearlyBetter(t *testing.T) {
	c := newTestCatalog()
	p1 := mustPredicate(t, predicate.FieldHomeEloDiff, predicate.OpGT, 100)
	first := &domain.Edge{PredicateText: p1.Canonical(), RecommendedSide: domain.SideHome,
		DiscoveryStats: domain.Stats{SampleSize: 200, WinRate: 0.60, PValue: 0.001}}
	_, _, err := c.Register(context.Background(), first, p1)
	require.NoError(t, err)

	p2 := mustPredicate(t, predicate.FieldHomeEloDiff, predicate.OpGT, 101)
	better := &domain.Edge{PredicateText: p2.Canonical(), RecommendedSide: domain.SideHome,
		DiscoveryStats: domain.Stats{SampleSize: 400, WinRate: 0.70, PValue: 0.00001}}

	outcome, edge, err := c.Register(context.Background(), better, p2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeVersionBump, outcome)
	assert.Equal(t, 2, edge.Version)
}

func TestPromoteRequiresInvariants(t *testing.T) {
	c := newTestCatalog()
	p := mustPredicate(t, predicate.FieldHomeEloDiff, predicate.OpGT, 100)
	weak := &domain.Edge{PredicateText: p.Canonical(),
		DiscoveryStats: domain.Stats{SampleSize: 50, PValue: 0.2}}
	_, edge, err := c.Register(context.Background(), weak, p)
	require.NoError(t, err)

	err = c.Promote(context.Background(), edge.ID)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestPromoteIdempotent(t *testing.T) {
	c := newTestCatalog()
	p := mustPredicate(t, predicate.FieldHomeEloDiff, predicate.OpGT, 100)
	strong := &domain.Edge{PredicateText: p.Canonical(),
		DiscoveryStats: domain.Stats{SampleSize: 400, PValue: 0.0001}}
	_, edge, err := c.Register(context.Background(), strong, p)
	require.NoError(t, err)

	require.NoError(t, c.Promote(context.Background(), edge.ID))
	require.NoError(t, c.Promote(context.Background(), edge.ID))

	active, err := c.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestRecordObservationAutoRetiresOnDecay(t *testing.T) {
	c := New(NewMemoryStore(), 40, zerolog.Nop())
	p := mustPredicate(t, predicate.FieldHomeEloDiff, predicate.OpGT, 100)
	strong := &domain.Edge{PredicateText: p.Canonical(),
		DiscoveryStats: domain.Stats{SampleSize: 400, PValue: 0.0001}}
	_, edge, err := c.Register(context.Background(), strong, p)
	require.NoError(t, err)
	require.NoError(t, c.Promote(context.Background(), edge.ID))

	for i := 0; i < 40; i++ { // fill the full 40-game monitoring window
		won := i%20 < 9 // 45% win rate, below decay threshold
		require.NoError(t, c.RecordObservation(context.Background(), edge.ID, won, 0))
	}

	active, err := c.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)

	stored, ok, err := c.store.Get(context.Background(), edge.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.EdgeRetired, stored.Status)
	assert.InDelta(t, 0.45, stored.RecentStats.WinRate, 1e-9)
}
