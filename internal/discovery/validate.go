package discovery

import (
	"fmt"

	"github.com/edgeworks/nfledge/internal/catalog"
	"github.com/edgeworks/nfledge/internal/domain"
)

// ValidationResult is the outcome of running a Candidate through the
// validation algorithm.
type ValidationResult struct {
	Candidate    Candidate
	Stats        domain.Stats
	HoldoutStats domain.Stats
	Passed       bool
	Reason       string // set when Passed is false
}

// Validate runs the five-step validation algorithm: assemble the matching
// slice, require min sample,
// compute stats, split train/holdout by season, and require both the
// p-value bar and the holdout win-rate bar before acceptance.
func Validate(cand Candidate, games []LabeledGame, minSample, holdoutSeasons int, pValueThreshold float64) (ValidationResult, error) {
	matched := make([]LabeledGame, 0)
	for _, g := range games {
		ok, err := cand.Predicate.Evaluate(&g.Features, &g.Game)
		if err != nil {
			return ValidationResult{}, fmt.Errorf("discovery: validate %s: %w", cand.Name, err)
		}
		if ok {
			matched = append(matched, g)
		}
	}

	if len(matched) < minSample {
		return ValidationResult{Candidate: cand, Passed: false, Reason: "insufficient sample"}, domain.ErrInsufficientData
	}

	maxSeason := 0
	for _, g := range matched {
		if g.Game.ID.Season > maxSeason {
			maxSeason = g.Game.ID.Season
		}
	}
	holdoutCutoff := maxSeason - holdoutSeasons + 1

	var holdout []LabeledGame
	for _, g := range matched {
		if g.Game.ID.Season >= holdoutCutoff {
			holdout = append(holdout, g)
		}
	}

	fullStats := catalog.StatsFromOutcomes(outcomesFor(matched, cand.Side))
	holdoutStats := catalog.StatsFromOutcomes(outcomesFor(holdout, cand.Side))

	if len(holdout) > 0 && holdoutStats.WinRate < domain.BreakEvenWinRate(-110) {
		return ValidationResult{Candidate: cand, Stats: fullStats, HoldoutStats: holdoutStats, Passed: false,
			Reason: "holdout win rate below break-even"}, nil
	}

	if fullStats.PValue >= pValueThreshold {
		return ValidationResult{Candidate: cand, Stats: fullStats, HoldoutStats: holdoutStats, Passed: false,
			Reason: "p-value above threshold"}, nil
	}

	return ValidationResult{Candidate: cand, Stats: fullStats, HoldoutStats: holdoutStats, Passed: true}, nil
}

func outcomesFor(games []LabeledGame, side domain.Side) []bool {
	out := make([]bool, 0, len(games))
	for _, g := range games {
		out = append(out, g.SideWon[side])
	}
	return out
}
