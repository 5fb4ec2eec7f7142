package decision

import (
	"context"
	"testing"
	"time"

	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	prob float64
	side domain.Side
	err  error
}

func (f *fakeClassifier) Predict(_ context.Context, _ *domain.FeatureVector) (float64, domain.Side, error) {
	return f.prob, f.side, f.err
}

type fakeEdges struct {
	edges []*domain.Edge
}

func (f *fakeEdges) ListActive(_ context.Context) ([]*domain.Edge, error) { return f.edges, nil }

type fakeBankroll struct {
	regime  domain.Regime
	sharpe  float64
	balance float64
}

func (f *fakeBankroll) Regime(_ context.Context) (domain.Regime, float64, error) {
	return f.regime, f.sharpe, nil
}

func (f *fakeBankroll) Balance(_ context.Context) (float64, error) {
	if f.balance == 0 {
		return 10000, nil
	}
	return f.balance, nil
}

func testGame() *domain.Game {
	return &domain.Game{
		ID:      domain.GameID{Season: 2024, Week: 5, Home: "BUF", Away: "NYJ"},
		Kickoff: time.Date(2024, 10, 6, 17, 0, 0, 0, time.UTC),
		Status:  domain.GameScheduled,
	}
}

func testFV(game *domain.Game) *domain.FeatureVector {
	fv := &domain.FeatureVector{
		GameID:         game.ID,
		AsOf:           game.Kickoff.Add(-10 * time.Minute),
		HomeEloDiff:    160,
		IsHomeFavorite: true,
	}
	fv.RecordInput("home_elo_diff", game.Kickoff.Add(-48*time.Hour))
	return fv
}

func defaultConfig() Config {
	return Config{
		MinEdgeNoMatch:    0.03,
		MinEdgeWithMatch:  0.02,
		MinConfidence:     0.55,
		KellyFractionBase: 0.25,
		StakeCap:          0.05,
		StakeFloor:        0.001,
	}
}

// TestNoMatchedEdgeRequiresLargerRawEdge covers testable property #3: with
// no matched active Edges, raw_edge must clear the higher no-match bar.
func TestNoMatchedEdgeRequiresLargerRawEdge(t *testing.T) {
	game := testGame()
	fv := testFV(game)
	classifier := &fakeClassifier{prob: 0.56, side: domain.SideHome} // implied ~0.524 at -110, raw edge ~0.036
	quotes := []OddsQuote{{Book: "pinnacle", Side: "home", American: -110, ObservedAt: time.Now()}}

	e := New(classifier, &fakeEdges{}, &fakeBankroll{regime: domain.RegimeNormal, balance: 10000}, defaultConfig(), zerolog.Nop())
	rec, err := e.Decide(context.Background(), game, fv, quotes, nil, game.Kickoff.Add(-1*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.GreaterOrEqual(t, rec.RawEdge, 0.03)
	assert.InDelta(t, rec.StakeFraction*10000, rec.StakeAmount, 1e-9)
	assert.NotZero(t, rec.StakeAmount)
}

// TestMatchedEdgeButNoOddsSourceSkips covers S2: a matched Edge exists but no
// book reports a price for the recommended side — skip, emit nothing.
func TestMatchedEdgeButNoOddsSourceSkips(t *testing.T) {
	game := testGame()
	fv := testFV(game)
	classifier := &fakeClassifier{prob: 0.60, side: domain.SideHome}
	activeEdge := &domain.Edge{
		ID: "e1", PredicateText: "home_elo_diff > 100 and is_home_favorite == 1",
		RecommendedSide: domain.SideHome, Status: domain.EdgeActive,
		DiscoveryStats: domain.Stats{SampleSize: 200, WinRate: 0.60, PValue: 0.001},
	}
	e := New(classifier, &fakeEdges{edges: []*domain.Edge{activeEdge}}, &fakeBankroll{regime: domain.RegimeNormal}, defaultConfig(), zerolog.Nop())

	rec, err := e.Decide(context.Background(), game, fv, nil, nil, game.Kickoff.Add(-1*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestClassifierFailureIsHardError(t *testing.T) {
	game := testGame()
	fv := testFV(game)
	classifier := &fakeClassifier{err: assertError{}}
	e := New(classifier, &fakeEdges{}, &fakeBankroll{regime: domain.RegimeNormal}, defaultConfig(), zerolog.Nop())

	rec, err := e.Decide(context.Background(), game, fv, nil, nil, game.Kickoff.Add(-1*time.Minute))
	assert.Error(t, err)
	assert.Nil(t, rec)
}

func TestLowEdgeBelowThresholdIsFilteredSilently(t *testing.T) {
	game := testGame()
	fv := testFV(game)
	classifier := &fakeClassifier{prob: 0.52, side: domain.SideHome} // implied ~0.524, raw edge negative
	quotes := []OddsQuote{{Book: "pinnacle", Side: "home", American: -110, ObservedAt: time.Now()}}
	e := New(classifier, &fakeEdges{}, &fakeBankroll{regime: domain.RegimeNormal}, defaultConfig(), zerolog.Nop())

	rec, err := e.Decide(context.Background(), game, fv, quotes, nil, game.Kickoff.Add(-1*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestExpiredDeadlineCancels(t *testing.T) {
	game := testGame()
	fv := testFV(game)
	classifier := &fakeClassifier{prob: 0.70, side: domain.SideHome}
	quotes := []OddsQuote{{Book: "pinnacle", Side: "home", American: -110, ObservedAt: time.Now()}}
	e := New(classifier, &fakeEdges{}, &fakeBankroll{regime: domain.RegimeNormal}, defaultConfig(), zerolog.Nop())

	_, err := e.Decide(context.Background(), game, fv, quotes, nil, time.Now().Add(-time.Hour))
	assert.Error(t, err)
}

func TestStakeNeverExceedsCap(t *testing.T) {
	game := testGame()
	fv := testFV(game)
	classifier := &fakeClassifier{prob: 0.90, side: domain.SideHome}
	quotes := []OddsQuote{{Book: "pinnacle", Side: "home", American: +150, ObservedAt: time.Now()}}
	e := New(classifier, &fakeEdges{}, &fakeBankroll{regime: domain.RegimeHot}, defaultConfig(), zerolog.Nop())

	rec, err := e.Decide(context.Background(), game, fv, quotes, nil, game.Kickoff.Add(-1*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.LessOrEqual(t, rec.StakeFraction, defaultConfig().StakeCap)
}

func TestLookAheadViolationIsFatal(t *testing.T) {
	game := testGame()
	fv := testFV(game)
	fv.RecordInput("bad_input", game.Kickoff.Add(time.Hour)) // after AsOf: violation
	classifier := &fakeClassifier{prob: 0.70, side: domain.SideHome}
	e := New(classifier, &fakeEdges{}, &fakeBankroll{regime: domain.RegimeNormal}, defaultConfig(), zerolog.Nop())

	rec, err := e.Decide(context.Background(), game, fv, nil, nil, game.Kickoff.Add(-1*time.Minute))
	var violation *domain.LookAheadViolation
	assert.ErrorAs(t, err, &violation)
	assert.Nil(t, rec)
}

type assertError struct{}

func (assertError) Error() string { return "classifier boom" }
