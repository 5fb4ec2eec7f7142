// Package backtest implements the Walk-Forward Backtester (C5): replays the
// Decision Engine over historical windows under the same no-look-ahead
// discipline the live system uses, then scores and slices the results to
// feed new candidate Edges back to the Discoverer.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/edgeworks/nfledge/internal/decision"
	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/rs/zerolog"
)

// TrainableClassifier produces a decision.Classifier trained only on games
// completed strictly before the window's end — the walk-forward loop never
// lets a classifier see a game it will later be scored against.
type TrainableClassifier interface {
	Train(ctx context.Context, trainStart, trainEnd time.Time) (decision.Classifier, error)
}

// FeatureBuilder reconstructs a FeatureVector for a game as of a past
// instant, using only observations recorded before that instant.
type FeatureBuilder interface {
	BuildFeatures(ctx context.Context, game *domain.Game, asOf time.Time) (*domain.FeatureVector, error)
}

// GameSource supplies completed games with kickoffs inside [start, end).
type GameSource interface {
	GamesInWindow(ctx context.Context, start, end time.Time) ([]*domain.Game, error)
}

// OddsAsOf supplies the odds quotes observed at a past instant — the
// history tier of the Orchestrator's cache, not the current live line.
type OddsAsOf interface {
	QuotesAsOf(ctx context.Context, gameID domain.GameID, asOf time.Time) ([]decision.OddsQuote, error)
}

// Config governs the walk-forward loop (mirrors internal/config.BacktestConfig).
type Config struct {
	TrainWindow    time.Duration
	ValidateWindow time.Duration
	FeatureCutoff  time.Duration
}

// Backtester runs the walk-forward loop.
type Backtester struct {
	engine     *decision.Engine
	classifier TrainableClassifier
	features   FeatureBuilder
	games      GameSource
	odds       OddsAsOf
	cfg        Config
	log        zerolog.Logger
}

// New builds a Backtester.
func New(engine *decision.Engine, classifier TrainableClassifier, features FeatureBuilder, games GameSource, odds OddsAsOf, cfg Config, log zerolog.Logger) *Backtester {
	return &Backtester{engine: engine, classifier: classifier, features: features, games: games, odds: odds, cfg: cfg, log: log.With().Str("component", "backtester").Logger()}
}

// RunResult is the complete output of one walk-forward pass: every emitted
// Recommendation paired with its settlement, in the order produced.
type RunResult struct {
	Recommendations []*domain.Recommendation
	Settlements     []domain.SettledOutcome
}

// Run executes the walk-forward loop over
// [start, end). It is interruptible: on ctx cancellation it returns
// everything settled so far, along with ctx.Err(), so a caller can resume
// from the next unsettled game.
func (b *Backtester) Run(ctx context.Context, start, end time.Time) (RunResult, error) {
	var result RunResult

	for t := start; !t.After(end); t = t.Add(b.cfg.ValidateWindow) {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		trainStart := t.Add(-b.cfg.TrainWindow)
		classifier, err := b.classifier.Train(ctx, trainStart, t)
		if err != nil {
			return result, fmt.Errorf("backtest: train classifier for window starting %s: %w", t, err)
		}

		validateEnd := t.Add(b.cfg.ValidateWindow)
		if validateEnd.After(end) {
			validateEnd = end
		}
		games, err := b.games.GamesInWindow(ctx, t, validateEnd)
		if err != nil {
			return result, fmt.Errorf("backtest: list games in [%s, %s): %w", t, validateEnd, err)
		}

		windowEngine := b.engine.WithClassifier(classifier)

		for _, g := range games {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			rec, settlement, err := b.runOneGame(ctx, windowEngine, g)
			if err != nil {
				b.log.Warn().Err(err).Str("game", g.ID.String()).Msg("skipping game in backtest window")
				continue
			}
			if rec == nil {
				continue
			}
			result.Recommendations = append(result.Recommendations, rec)
			result.Settlements = append(result.Settlements, settlement)
		}
	}

	return result, nil
}

func (b *Backtester) runOneGame(ctx context.Context, engine *decision.Engine, g *domain.Game) (*domain.Recommendation, domain.SettledOutcome, error) {
	asOf := g.Kickoff.Add(-b.cfg.FeatureCutoff)

	fv, err := b.features.BuildFeatures(ctx, g, asOf)
	if err != nil {
		return nil, domain.SettledOutcome{}, fmt.Errorf("build features: %w", err)
	}

	quotes, err := b.odds.QuotesAsOf(ctx, g.ID, asOf)
	if err != nil {
		return nil, domain.SettledOutcome{}, fmt.Errorf("quotes as of %s: %w", asOf, err)
	}

	// The deadline argument is a wall-clock cancellation point in live
	// operation (kickoff minus lead time); a historical asOf would expire it
	// immediately, so the backtest gives the engine a deadline far in the
	// future and relies on ctx cancellation for its own soft-timeout/resume
	// behavior instead.
	rec, err := engine.Decide(ctx, g, fv, quotes, nil, time.Now().Add(time.Hour))
	if err != nil {
		return nil, domain.SettledOutcome{}, err
	}
	if rec == nil {
		return nil, domain.SettledOutcome{}, nil
	}

	closingQuotes, err := b.odds.QuotesAsOf(ctx, g.ID, g.Kickoff)
	if err != nil {
		return rec, domain.SettledOutcome{}, fmt.Errorf("closing quotes at %s: %w", g.Kickoff, err)
	}
	outcome, err := settle(rec, g, closingQuotes)
	if err != nil {
		return rec, domain.SettledOutcome{}, err
	}
	return rec, outcome, nil
}

// settle computes the paired outcome for a Recommendation against a
// completed game's actual result. Won/profit follow the same flat -110
// payout convention the Catalog uses for ROI; CLV is the
// difference between the Recommendation's price and the closing line
// (the last quote observed before kickoff).
func settle(rec *domain.Recommendation, g *domain.Game, closingQuotes []decision.OddsQuote) (domain.SettledOutcome, error) {
	if g.Status != domain.GameCompleted || g.Result == nil {
		return domain.SettledOutcome{}, fmt.Errorf("settle: game %s has no final result", g.ID)
	}

	won := sideWon(rec.Side, *g.Result)
	profit := payout(won, rec.StakeFraction, rec.BestOdds)

	closing, ok := decision.BestQuote(closingQuotes, string(rec.Side))
	clv := 0.0
	if ok {
		clv = decision.ImpliedProbability(closing.American) - decision.ImpliedProbability(rec.BestOdds)
	}

	return domain.SettledOutcome{
		GameID:    g.ID,
		Side:      rec.Side,
		Won:       won,
		Profit:    profit,
		CLV:       clv,
		SettledAt: time.Now().UTC(),
	}, nil
}

func sideWon(side domain.Side, margin int) bool {
	switch side {
	case domain.SideHome:
		return margin > 0
	case domain.SideAway:
		return margin < 0
	default:
		// Over/Under settlement requires the total line and final total,
		// which the walk-forward harness does not model in this pass.
		return false
	}
}

func payout(won bool, stakeFraction float64, americanOdds int) float64 {
	if !won {
		return -stakeFraction
	}
	if americanOdds < 0 {
		return stakeFraction * (100.0 / float64(-americanOdds))
	}
	return stakeFraction * (float64(americanOdds) / 100.0)
}
