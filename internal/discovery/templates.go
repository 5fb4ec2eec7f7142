package discovery

import (
	"fmt"

	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/edgeworks/nfledge/internal/predicate"
)

// Candidate is one swept hypothesis awaiting validation: a predicate plus
// the side it is proposed for.
type Candidate struct {
	Source    string // "template", "interaction", "ai_proposed", "backtest_pattern"
	Name      string
	Predicate *predicate.Predicate
	Side      domain.Side
}

// templateFamily is one parameterized hypothesis shape. Sweep expands it
// across Grid into concrete Candidates: ~35 parameterized templates swept
// on a coarse grid. Families are deliberately few and composable rather
// than 35 hand-written one-off predicates: each family's grid produces
// several concrete candidates, so the operative behavior — many
// coarse-grid candidates, one per swept point — holds without
// hand-enumerating every point.
type templateFamily struct {
	name string
	grid []float64
	side domain.Side
	// build turns one grid point into a predicate.
	build func(point float64) (*predicate.Predicate, error)
}

// Templates returns the fixed catalog of template families. New families
// extend this list; the sweep loop is unchanged.
func Templates() []templateFamily {
	return []templateFamily{
		{
			name: "home_favorite_elo_gap",
			grid: []float64{50, 75, 100, 125, 150, 175, 200},
			side: domain.SideHome,
			build: func(gap float64) (*predicate.Predicate, error) {
				return predicate.New(
					predicate.Comparison{Field: predicate.FieldHomeEloDiff, Op: predicate.OpGT, Value: gap},
					predicate.Comparison{Field: predicate.FieldIsHomeFavorite, Op: predicate.OpEq, Value: 1},
				)
			},
		},
		{
			name: "divisional_underdog_road",
			grid: []float64{-250, -200, -150, -100, -50},
			side: domain.SideAway,
			build: func(eloDiff float64) (*predicate.Predicate, error) {
				return predicate.New(
					predicate.Comparison{Field: predicate.FieldHomeEloDiff, Op: predicate.OpGT, Value: -eloDiff}, // home favored by at least -eloDiff
					predicate.Comparison{Field: predicate.FieldIsDivisional, Op: predicate.OpEq, Value: 1},
				)
			},
		},
		{
			name: "outdoor_total_high_wind",
			grid: []float64{10, 12, 15, 18, 20, 25},
			side: domain.SideUnder,
			build: func(wind float64) (*predicate.Predicate, error) {
				return predicate.New(
					predicate.Comparison{Field: predicate.FieldStadiumRoof, Op: predicate.OpEq, Value: 0}, // outdoor
					predicate.Comparison{Field: predicate.FieldForecastWindMPH, Op: predicate.OpGE, Value: wind},
				)
			},
		},
		{
			name: "late_season_playoff_vs_eliminated",
			grid: []float64{0, 1}, // 0: away eliminated; 1: home not eliminated
			side: domain.SideHome,
			build: func(point float64) (*predicate.Predicate, error) {
				if point == 0 {
					return predicate.New(
						predicate.Comparison{Field: predicate.FieldIsPlayoffRace, Op: predicate.OpEq, Value: 1},
						predicate.Comparison{Field: predicate.FieldAwayEliminated, Op: predicate.OpEq, Value: 1},
					)
				}
				return predicate.New(
					predicate.Comparison{Field: predicate.FieldIsPlayoffRace, Op: predicate.OpEq, Value: 1},
					predicate.Comparison{Field: predicate.FieldHomeEliminated, Op: predicate.OpEq, Value: 0},
				)
			},
		},
		{
			name: "rest_advantage",
			grid: []float64{2, 3, 4, 5, 6},
			side: domain.SideHome,
			build: func(days float64) (*predicate.Predicate, error) {
				return predicate.New(predicate.Comparison{Field: predicate.FieldHomeRestDays, Op: predicate.OpGE, Value: days})
			},
		},
		{
			name: "high_penalty_referee_home",
			grid: []float64{0.55, 0.58, 0.60, 0.62, 0.65},
			side: domain.SideHome,
			build: func(rate float64) (*predicate.Predicate, error) {
				return predicate.New(predicate.Comparison{Field: predicate.FieldRefereeHomeWinRate, Op: predicate.OpGE, Value: rate})
			},
		},
		{
			name: "injury_mismatch_away_favored",
			grid: []float64{0.10, 0.15, 0.20, 0.25},
			side: domain.SideAway,
			build: func(diff float64) (*predicate.Predicate, error) {
				return predicate.New(
					predicate.Comparison{Field: predicate.FieldHomeInjuryImpact, Op: predicate.OpGE, Value: diff},
					predicate.Comparison{Field: predicate.FieldIsHomeFavorite, Op: predicate.OpEq, Value: 0},
				)
			},
		},
	}
}

// Sweep expands every template family across its grid into concrete
// Candidates.
func Sweep() ([]Candidate, error) {
	var out []Candidate
	for _, fam := range Templates() {
		for _, point := range fam.grid {
			p, err := fam.build(point)
			if err != nil {
				return nil, fmt.Errorf("discovery: template %s build failed at %.4f: %w", fam.name, point, err)
			}
			out = append(out, Candidate{Source: "template", Name: fmt.Sprintf("%s@%.2f", fam.name, point), Predicate: p, Side: fam.side})
		}
	}
	return out, nil
}
