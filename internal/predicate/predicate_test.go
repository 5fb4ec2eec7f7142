package predicate

import (
	"testing"

	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateConjunction(t *testing.T) {
	p, err := New(
		Comparison{Field: FieldHomeEloDiff, Op: OpGT, Value: 100},
		Comparison{Field: FieldIsHomeFavorite, Op: OpEq, Value: 1},
	)
	require.NoError(t, err)

	fv := &domain.FeatureVector{HomeEloDiff: 150, IsHomeFavorite: true}
	ok, err := p.Evaluate(fv, &domain.Game{})
	require.NoError(t, err)
	assert.True(t, ok)

	fv.HomeEloDiff = 50
	ok, err = p.Evaluate(fv, &domain.Game{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRejectsUnknownField(t *testing.T) {
	_, err := New(Comparison{Field: "not_a_real_field", Op: OpGT, Value: 1})
	assert.Error(t, err)
}

func TestCanonicalIsOrderIndependent(t *testing.T) {
	p1, err := New(
		Comparison{Field: FieldHomeEloDiff, Op: OpGT, Value: 100},
		Comparison{Field: FieldIsDivisional, Op: OpEq, Value: 1},
	)
	require.NoError(t, err)
	p2, err := New(
		Comparison{Field: FieldIsDivisional, Op: OpEq, Value: 1},
		Comparison{Field: FieldHomeEloDiff, Op: OpGT, Value: 100},
	)
	require.NoError(t, err)
	assert.Equal(t, p1.Canonical(), p2.Canonical())
}

func TestParseRoundTrip(t *testing.T) {
	p, err := New(Comparison{Field: FieldForecastWindMPH, Op: OpGE, Value: 15})
	require.NoError(t, err)

	parsed, err := Parse(p.Canonical())
	require.NoError(t, err)
	assert.Equal(t, p.Canonical(), parsed.Canonical())
}

func TestParseRejectsMalformedAIProposal(t *testing.T) {
	_, err := Parse("this is not a predicate at all")
	assert.Error(t, err)

	_, err = Parse("made_up_field > 5")
	assert.Error(t, err)
}

func TestSimilarityIdenticalIsOne(t *testing.T) {
	p, _ := New(Comparison{Field: FieldHomeEloDiff, Op: OpGT, Value: 100})
	assert.Equal(t, 1.0, Similarity(p, p))
}

func TestSimilarityNearDuplicateCrossesThreshold(t *testing.T) {
	a, _ := New(Comparison{Field: FieldHomeEloDiff, Op: OpGT, Value: 100})
	b, _ := New(Comparison{Field: FieldHomeEloDiff, Op: OpGT, Value: 105})
	sim := Similarity(a, b)
	assert.Greater(t, sim, 0.85)
}

func TestSimilarityDistinctPredicatesLow(t *testing.T) {
	a, _ := New(Comparison{Field: FieldHomeEloDiff, Op: OpGT, Value: 100})
	b, _ := New(Comparison{Field: FieldForecastWindMPH, Op: OpGE, Value: 20})
	assert.Less(t, Similarity(a, b), 0.85)
}
