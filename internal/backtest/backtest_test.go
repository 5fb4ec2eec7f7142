package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/edgeworks/nfledge/internal/decision"
	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct{ prob float64 }

func (f fakeClassifier) Predict(_ context.Context, _ *domain.FeatureVector) (float64, domain.Side, error) {
	return f.prob, domain.SideHome, nil
}

type fakeTrainable struct{ prob float64 }

func (f fakeTrainable) Train(_ context.Context, _, _ time.Time) (decision.Classifier, error) {
	return fakeClassifier{prob: f.prob}, nil
}

type fakeFeatures struct{}

func (fakeFeatures) BuildFeatures(_ context.Context, g *domain.Game, asOf time.Time) (*domain.FeatureVector, error) {
	fv := &domain.FeatureVector{GameID: g.ID, AsOf: asOf, HomeEloDiff: 160, IsHomeFavorite: true}
	fv.RecordInput("home_elo_diff", asOf.Add(-48*time.Hour))
	return fv, nil
}

type fakeGames struct{ games []*domain.Game }

func (f fakeGames) GamesInWindow(_ context.Context, start, end time.Time) ([]*domain.Game, error) {
	var out []*domain.Game
	for _, g := range f.games {
		if !g.Kickoff.Before(start) && g.Kickoff.Before(end) {
			out = append(out, g)
		}
	}
	return out, nil
}

type fakeOdds struct{}

func (fakeOdds) QuotesAsOf(_ context.Context, _ domain.GameID, _ time.Time) ([]decision.OddsQuote, error) {
	return []decision.OddsQuote{{Book: "pinnacle", Side: "home", American: -110, ObservedAt: time.Now()}}, nil
}

type fakeActiveEdges struct{}

func (fakeActiveEdges) ListActive(_ context.Context) ([]*domain.Edge, error) { return nil, nil }

type fakeBankroll struct{}

func (fakeBankroll) Regime(_ context.Context) (domain.Regime, float64, error) {
	return domain.RegimeNormal, 1.2, nil
}

func (fakeBankroll) Balance(_ context.Context) (float64, error) { return 10000, nil }

func completedGame(season, week int, home, away string, kickoff time.Time, margin int) *domain.Game {
	g := &domain.Game{ID: domain.GameID{Season: season, Week: week, Home: home, Away: away}, Kickoff: kickoff, Status: domain.GameScheduled}
	_ = g.Complete(domain.Score{Home: 24 + margin, Away: 24})
	return g
}

func testEngine(prob float64) *decision.Engine {
	cfg := decision.Config{MinEdgeNoMatch: 0.03, MinEdgeWithMatch: 0.02, MinConfidence: 0.55, KellyFractionBase: 0.25, StakeCap: 0.05, StakeFloor: 0.001}
	return decision.New(fakeClassifier{prob: prob}, fakeActiveEdges{}, fakeBankroll{}, cfg, zerolog.Nop())
}

func TestWalkForwardRunProducesSettlements(t *testing.T) {
	start := time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)
	games := []*domain.Game{
		completedGame(2023, 1, "BUF", "NYJ", start.Add(24*time.Hour), 7),
		completedGame(2023, 2, "KC", "DEN", start.Add(24*7*time.Hour), 10),
	}
	bt := New(testEngine(0.60), fakeTrainable{prob: 0.60}, fakeFeatures{}, fakeGames{games: games}, fakeOdds{}, Config{
		TrainWindow: 365 * 24 * time.Hour, ValidateWindow: 21 * 24 * time.Hour, FeatureCutoff: 10 * time.Minute,
	}, zerolog.Nop())

	result, err := bt.Run(context.Background(), start, start.Add(30*24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, result.Recommendations, 2)
	assert.Len(t, result.Settlements, 2)
	for _, s := range result.Settlements {
		assert.True(t, s.Won) // home favored and home won both fakes
	}
}

func TestWalkForwardRunRespectsCancellation(t *testing.T) {
	start := time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)
	games := []*domain.Game{completedGame(2023, 1, "BUF", "NYJ", start.Add(24*time.Hour), 7)}
	bt := New(testEngine(0.60), fakeTrainable{prob: 0.60}, fakeFeatures{}, fakeGames{games: games}, fakeOdds{}, Config{
		TrainWindow: 365 * 24 * time.Hour, ValidateWindow: 21 * 24 * time.Hour, FeatureCutoff: 10 * time.Minute,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := bt.Run(ctx, start, start.Add(30*24*time.Hour))
	assert.Error(t, err)
}

func TestSummarizeComputesWinRateAndROI(t *testing.T) {
	settlements := []domain.SettledOutcome{
		{Won: true, Profit: 0.9, SettledAt: time.Now()},
		{Won: false, Profit: -1.0, SettledAt: time.Now().Add(time.Hour)},
		{Won: true, Profit: 0.9, SettledAt: time.Now().Add(2 * time.Hour)},
	}
	m := Summarize(settlements)
	assert.InDelta(t, 2.0/3.0, m.WinRate, 1e-9)
	assert.InDelta(t, (0.9-1.0+0.9)/3.0, m.ROI, 1e-9)
}

func TestMaxDrawdownTracksWorstDecline(t *testing.T) {
	base := time.Now()
	settlements := []domain.SettledOutcome{
		{Profit: 1.0, SettledAt: base},
		{Profit: 1.0, SettledAt: base.Add(time.Hour)},
		{Profit: -3.0, SettledAt: base.Add(2 * time.Hour)},
		{Profit: 1.0, SettledAt: base.Add(3 * time.Hour)},
	}
	m := Summarize(settlements)
	assert.InDelta(t, 3.0, m.MaxDrawdown, 1e-9)
}

func TestDiscoverPatternsRequiresSampleAndLift(t *testing.T) {
	var items []SettledRecommendation
	for i := 0; i < 25; i++ {
		won := i%10 < 8 // 21 of 25 won (84%), well above a 0.52 base
		items = append(items, SettledRecommendation{
			Recommendation: &domain.Recommendation{GameID: domain.GameID{Season: 2023}, Side: domain.SideHome, Tier: "A"},
			Settlement:     domain.SettledOutcome{Won: won, Profit: boolProfit(won)},
			Features:       &domain.FeatureVector{HomeEloDiff: 175, StadiumRoof: domain.RoofOutdoor, ForecastWindMPH: 20},
		})
	}
	cands := DiscoverPatterns(items, PatternConfig{MinSample: 20, MinLiftPP: 0.03, MaxPValue: 0.01, BaseWinRate: 0.5238})
	assert.NotEmpty(t, cands)
	for _, c := range cands {
		assert.NotNil(t, c.Predicate)
		assert.Equal(t, "backtest_pattern", c.Source)
	}
}

func boolProfit(won bool) float64 {
	if won {
		return 0.9
	}
	return -1.0
}
