package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakEvenWinRate(t *testing.T) {
	assert.InDelta(t, 0.5238, BreakEvenWinRate(-110), 0.0005)
	assert.InDelta(t, 0.5, BreakEvenWinRate(100), 0.0005)
}

func TestDecayThreshold(t *testing.T) {
	assert.InDelta(t, 0.5038, DecayThreshold(), 0.0005)
}

func TestEdgeActivationInvariants(t *testing.T) {
	e := &Edge{DiscoveryStats: Stats{SampleSize: 100, PValue: 0.01}}
	// strict inequalities: sample exactly 100 with p exactly 0.01 must reject
	assert.False(t, e.MeetsActivationInvariants())

	e.DiscoveryStats.PValue = 0.0099
	assert.True(t, e.MeetsActivationInvariants())

	e.DiscoveryStats.SampleSize = 99
	assert.False(t, e.MeetsActivationInvariants())
}

func TestGameCompleteIsOneShot(t *testing.T) {
	g := &Game{ID: GameID{Season: 2024, Week: 1, Away: "BUF", Home: "NYJ"}, Status: GameScheduled}
	require.NoError(t, g.Complete(Score{Home: 22, Away: 16}))
	assert.Equal(t, GameCompleted, g.Status)
	assert.Equal(t, 6, *g.Result)

	err := g.Complete(Score{Home: 1, Away: 0})
	assert.Error(t, err)
}

func TestFeatureVectorLookAhead(t *testing.T) {
	asOf := time.Date(2024, 9, 8, 17, 0, 0, 0, time.UTC)
	fv := &FeatureVector{AsOf: asOf}
	fv.RecordInput("weather", asOf.Add(-2*time.Hour))
	require.NoError(t, fv.Validate())

	fv.RecordInput("odds", asOf) // not strictly before -> violation
	err := fv.Validate()
	require.Error(t, err)
	var lav *LookAheadViolation
	require.ErrorAs(t, err, &lav)
	assert.Equal(t, "odds", lav.Input)
}
