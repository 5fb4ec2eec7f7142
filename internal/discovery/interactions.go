package discovery

import (
	"context"
	"fmt"

	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/edgeworks/nfledge/internal/predicate"
)

// MineInteractions forms pairwise and triple conjunctions across distinct
// template families' terms and keeps only those meeting minSupport matching
// historical games. Candidates from the same family are not
// combined with each other — a family's own grid already explores that
// dimension.
func MineInteractions(ctx context.Context, history GameHistory, sinceSeason, minSupport int) ([]Candidate, error) {
	games, err := history.Since(ctx, sinceSeason)
	if err != nil {
		return nil, fmt.Errorf("discovery: mine interactions: %w", err)
	}

	families := Templates()
	var out []Candidate

	// representative returns the family's middle grid point built as a term
	// set. Exhaustively crossing every grid point of every combination would
	// explode combinatorially well beyond the intended coarse sweep, so
	// interaction mining samples one representative comparison per family
	// and lets the template sweep already cover within-family parameter
	// search.
	representative := func(idx int) ([]predicate.Comparison, bool) {
		p, err := families[idx].build(families[idx].grid[len(families[idx].grid)/2])
		if err != nil {
			return nil, false
		}
		return p.Terms, true
	}

	tryEmit := func(name string, side, otherSide domain.Side, terms []predicate.Comparison) error {
		if side != otherSide {
			return nil // conjunctions only make sense for a shared side recommendation
		}
		combined, err := predicate.New(terms...)
		if err != nil {
			return nil
		}
		support, err := countMatches(combined, games)
		if err != nil {
			return err
		}
		if support < minSupport {
			return nil
		}
		out = append(out, Candidate{Source: "interaction", Name: name, Predicate: combined, Side: side})
		return nil
	}

	for i := 0; i < len(families); i++ {
		ti, ok := representative(i)
		if !ok {
			continue
		}
		for j := i + 1; j < len(families); j++ {
			tj, ok := representative(j)
			if !ok {
				continue
			}
			pairTerms := append(append([]predicate.Comparison{}, ti...), tj...)
			name := fmt.Sprintf("%s+%s", families[i].name, families[j].name)
			if err := tryEmit(name, families[i].side, families[j].side, pairTerms); err != nil {
				return nil, err
			}

			// Triple conjunctions (spec.md §4.2.2): extend every qualifying
			// pair with a third, distinct family's representative term set.
			for k := j + 1; k < len(families); k++ {
				tk, ok := representative(k)
				if !ok {
					continue
				}
				if families[j].side != families[k].side {
					continue
				}
				tripleTerms := append(append([]predicate.Comparison{}, pairTerms...), tk...)
				tripleName := fmt.Sprintf("%s+%s+%s", families[i].name, families[j].name, families[k].name)
				if err := tryEmit(tripleName, families[i].side, families[k].side, tripleTerms); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

func countMatches(p *predicate.Predicate, games []LabeledGame) (int, error) {
	n := 0
	for _, g := range games {
		ok, err := p.Evaluate(&g.Features, &g.Game)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}
