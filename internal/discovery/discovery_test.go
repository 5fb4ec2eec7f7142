package discovery

import (
	"context"
	"testing"

	"github.com/edgeworks/nfledge/internal/catalog"
	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/edgeworks/nfledge/internal/predicate"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	games []LabeledGame
}

func (f *fakeHistory) Since(_ context.Context, _ int) ([]LabeledGame, error) {
	return f.games, nil
}

// buildHomeFavoriteSlice seeds a historical slice where home_elo_diff > 100
// wins at a high rate, spanning enough seasons for a holdout split.
func buildHomeFavoriteSlice(n int, winRate float64, seasons []int) []LabeledGame {
	games := make([]LabeledGame, 0, n)
	perSeason := n / len(seasons)
	idx := 0
	for _, season := range seasons {
		for i := 0; i < perSeason; i++ {
			won := float64(i)/float64(perSeason) < winRate
			games = append(games, LabeledGame{
				Game:     domain.Game{ID: domain.GameID{Season: season, Week: i%18 + 1, Home: "AAA", Away: "BBB"}},
				Features: domain.FeatureVector{HomeEloDiff: 150, IsHomeFavorite: true},
				SideWon:  map[domain.Side]bool{domain.SideHome: won},
			})
			idx++
		}
	}
	return games
}

func TestSweepProducesManyCandidates(t *testing.T) {
	cands, err := Sweep()
	require.NoError(t, err)
	assert.Greater(t, len(cands), 30)
}

func homeFavoritePredicate(t *testing.T) *predicate.Predicate {
	p, err := predicate.New(
		predicate.Comparison{Field: predicate.FieldHomeEloDiff, Op: predicate.OpGT, Value: 100},
		predicate.Comparison{Field: predicate.FieldIsHomeFavorite, Op: predicate.OpEq, Value: 1},
	)
	require.NoError(t, err)
	return p
}

func TestValidateRejectsBelowMinSample(t *testing.T) {
	cand := Candidate{Name: "x", Side: domain.SideHome, Predicate: homeFavoritePredicate(t)}

	games := buildHomeFavoriteSlice(50, 0.7, []int{2020, 2021})
	_, err := Validate(cand, games, 100, 2, 0.01)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestValidateAcceptsStrongHomeFavoriteEdge(t *testing.T) {
	cand := Candidate{Name: "home_favorite_elo_gap@100", Side: domain.SideHome, Predicate: homeFavoritePredicate(t)}

	games := buildHomeFavoriteSlice(400, 0.70, []int{2019, 2020, 2021, 2022})
	result, err := Validate(cand, games, 100, 2, 0.01)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.GreaterOrEqual(t, result.Stats.SampleSize, 400)
}

func TestDiscovererRunRegistersStrongCandidate(t *testing.T) {
	games := buildHomeFavoriteSlice(400, 0.70, []int{2019, 2020, 2021, 2022})
	hist := &fakeHistory{games: games}
	cat := catalog.New(catalog.NewMemoryStore(), 200, zerolog.Nop())
	cfg := Config{StartSeasonsBack: 8, MinSample: 100, PValueThreshold: 0.01, HoldoutSeasons: 2, InteractionMinSupport: 100}
	d := New(cat, hist, nil, cfg, nil, zerolog.Nop())

	summary, err := d.Run(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Greater(t, summary.Registered, 0)

	active, err := cat.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active) // registered as candidate, not yet promoted
}
