// Package decision implements the Decision Engine (C4): the
// per-game procedure that turns a FeatureVector and odds table into a
// Recommendation, or into nothing at all when the filters say no.
package decision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/edgeworks/nfledge/internal/predicate"
	"github.com/rs/zerolog"
)

// Classifier predicts the model's win probability for the recommended side
// of a game. A Classifier error is always a hard error for the run
// — never swallowed like a missing
// input would be.
type Classifier interface {
	Predict(ctx context.Context, fv *domain.FeatureVector) (modelProb float64, side domain.Side, err error)
}

// BankrollProvider supplies the current regime classification used by h()
// in stake sizing, plus the current balance a stake fraction is converted
// into a stake amount against.
type BankrollProvider interface {
	Regime(ctx context.Context) (domain.Regime, float64 /* sharpe */, error)
	Balance(ctx context.Context) (float64, error)
}

// ActiveEdges supplies the Catalog's currently active Edges so the Engine
// can evaluate which ones match a game.
type ActiveEdges interface {
	ListActive(ctx context.Context) ([]*domain.Edge, error)
}

// Config bundles the filter thresholds and stake-sizing parameters
// (mirrors internal/config.DecisionConfig).
type Config struct {
	MinEdgeNoMatch    float64
	MinEdgeWithMatch  float64
	MinConfidence     float64
	KellyFractionBase float64
	StakeCap          float64
	StakeFloor        float64
}

// Engine is the Decision Engine.
type Engine struct {
	classifier Classifier
	edges      ActiveEdges
	bankroll   BankrollProvider
	cfg        Config
	log        zerolog.Logger
}

// New builds an Engine.
func New(classifier Classifier, edges ActiveEdges, bankroll BankrollProvider, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{classifier: classifier, edges: edges, bankroll: bankroll, cfg: cfg, log: log.With().Str("component", "decision_engine").Logger()}
}

// WithClassifier returns a shallow copy of the Engine bound to a different
// Classifier, leaving the Catalog/bankroll/config wiring untouched. The
// Backtester uses this once per walk-forward window to swap in the
// classifier retrained on that window's training data without constructing
// a whole new Engine.
func (e *Engine) WithClassifier(c Classifier) *Engine {
	cp := *e
	cp.classifier = c
	return &cp
}

// Decide runs the per-game procedure. deadline is
// the cancellation point (default kickoff-10min); if it passes
// mid-computation, Decide returns (nil, ctx.Err()) and no Recommendation is
// emitted. A nil, nil return means the game was filtered out, not an error.
func (e *Engine) Decide(ctx context.Context, game *domain.Game, fv *domain.FeatureVector, quotes []OddsQuote, staleInputs []string, deadline time.Time) (*domain.Recommendation, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	// Step 1-4 precondition: the caller has already built fv; step 1's
	// invariant (no look-ahead) is enforced here before anything else uses
	// it, and is always fatal, never swallowed.
	if err := fv.Validate(); err != nil {
		return nil, err
	}

	modelProb, side, err := e.classifier.Predict(ctx, fv)
	if err != nil {
		return nil, fmt.Errorf("decision engine: classifier failed: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	best, ok := BestQuote(quotes, string(side))
	if !ok {
		e.log.Info().Str("game", game.ID.String()).Msg("no odds source reporting, skipping")
		return nil, nil
	}
	impliedProb := ImpliedProbability(best.American)
	rawEdge := modelProb - impliedProb

	active, err := e.edges.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("decision engine: list active edges: %w", err)
	}
	matched, unanimousSide, matchErr := matchEdges(active, fv, game)
	if matchErr != nil {
		return nil, fmt.Errorf("decision engine: evaluate active edges: %w", matchErr)
	}
	if unanimousSide != "" && domain.Side(unanimousSide) != side {
		side = domain.Side(unanimousSide)
		best, ok = BestQuote(quotes, string(side))
		if !ok {
			return nil, nil
		}
		impliedProb = ImpliedProbability(best.American)
		rawEdge = modelProb - impliedProb
	}

	confidence := confidenceFromEdge(rawEdge, len(matched))

	minEdge := e.cfg.MinEdgeNoMatch
	if len(matched) > 0 {
		minEdge = e.cfg.MinEdgeWithMatch
	}
	if rawEdge < minEdge || confidence < e.cfg.MinConfidence {
		return nil, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	regime, _, err := e.bankroll.Regime(ctx)
	if err != nil {
		return nil, fmt.Errorf("decision engine: bankroll regime: %w", err)
	}
	balance, err := e.bankroll.Balance(ctx)
	if err != nil {
		return nil, fmt.Errorf("decision engine: bankroll balance: %w", err)
	}

	caps := StakeCaps{Cap: e.cfg.StakeCap, Floor: e.cfg.StakeFloor}
	stakeFraction := sizeStake(modelProb, best.American, confidence, matched, regime, e.cfg.KellyFractionBase, caps, true)
	stakeAmount := stakeFraction * balance

	matchedIDs := make([]string, 0, len(matched))
	for _, m := range matched {
		matchedIDs = append(matchedIDs, m.ID)
	}

	return &domain.Recommendation{
		GameID:              game.ID,
		Side:                side,
		StakeFraction:       stakeFraction,
		StakeAmount:         stakeAmount,
		ModelProb:           modelProb,
		ImpliedProb:         impliedProb,
		RawEdge:             rawEdge,
		MatchedEdges:        matchedIDs,
		Confidence:          confidence,
		Tier:                tierFor(rawEdge, confidence),
		BestBook:            best.Book,
		BestOdds:            best.American,
		GeneratedAt:         time.Now().UTC(),
		FeatureSnapshotHash: snapshotHash(fv),
		StaleInputs:         staleInputs,
		OddsObservedAt:      best.ObservedAt,
	}, nil
}

// matchEdges evaluates every active Edge's predicate against the game and
// returns the matches, plus the shared side when every matched edge
// recommends the same side ("" otherwise). Decide applies that side as an
// override only when it differs from the classifier's.
func matchEdges(active []*domain.Edge, fv *domain.FeatureVector, game *domain.Game) ([]*domain.Edge, string, error) {
	var matched []*domain.Edge
	sides := map[domain.Side]bool{}
	for _, e := range active {
		p, err := predicate.Parse(e.PredicateText)
		if err != nil {
			continue // a stored edge with an unparseable predicate cannot match; skip it
		}
		ok, err := p.Evaluate(fv, game)
		if err != nil {
			return nil, "", err
		}
		if ok {
			matched = append(matched, e)
			sides[e.RecommendedSide] = true
		}
	}
	if len(sides) == 1 {
		for s := range sides {
			return matched, string(s), nil
		}
	}
	return matched, "", nil
}

// confidenceFromEdge derives a confidence score from raw edge magnitude and
// matched-edge corroboration, tying it to the same quantities min_confidence
// filtering and stake sizing already use.
func confidenceFromEdge(rawEdge float64, matchedCount int) float64 {
	c := 0.5 + rawEdge*2.5
	c += float64(matchedCount) * 0.03
	if c > 0.99 {
		c = 0.99
	}
	return c
}

// tierFor buckets a Recommendation into S/A/B/C.
func tierFor(rawEdge, confidence float64) string {
	switch {
	case rawEdge >= 0.08 && confidence > 0.75:
		return "S"
	case rawEdge >= 0.05 && confidence > 0.70:
		return "A"
	case rawEdge >= 0.03 && confidence > 0.65:
		return "B"
	default:
		return "C"
	}
}

// snapshotHash hashes the FeatureVector's values so identical inputs always
// hash identically, enabling the Backtester's byte-identical reproducibility
// check.
func snapshotHash(fv *domain.FeatureVector) string {
	h := sha256.New()
	fmt.Fprintf(h, "%+v", *fv)
	return hex.EncodeToString(h.Sum(nil))[:32]
}
