// Package discovery implements the Edge Discoverer (C2):
// template sweep, interaction mining, optional AI-proposed predicates, the
// validation algorithm, and cadenced discovery runs that feed accepted
// candidates into the Edge Catalog.
package discovery

import (
	"context"

	"github.com/edgeworks/nfledge/internal/domain"
)

// LabeledGame is one historical game with its as-of-kickoff FeatureVector
// and, for each side, whether a wager on that side won. How sides are
// labeled (outright result, or against a closing spread/total) is a
// data-preparation concern outside this package's scope; GameHistory
// implementations own it.
type LabeledGame struct {
	Game     domain.Game
	Features domain.FeatureVector
	SideWon  map[domain.Side]bool
}

// GameHistory supplies the labeled historical slice the Discoverer sweeps
// over. sinceSeason bounds how far back to look.
type GameHistory interface {
	Since(ctx context.Context, sinceSeason int) ([]LabeledGame, error)
}
