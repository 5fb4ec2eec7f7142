// Package catalog implements the Edge Catalog (C1): the
// durable, queryable registry of every hypothesis the system has ever
// considered, plus its lifecycle and similarity-based deduplication.
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/edgeworks/nfledge/internal/predicate"
	"github.com/rs/zerolog"
)

// Outcome is the result of register().
type Outcome string

const (
	OutcomeAccepted      Outcome = "accepted"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeVersionBump   Outcome = "version_bump"
)

const (
	similarityDuplicateThreshold = 0.85
	versionBumpMinDeltaPP        = 0.05
	versionBumpMinSampleRatio    = 1.5
)

// Catalog is the single writer over a Store. All mutating operations take
// an internal mutex so that two concurrent callers never interleave a
// register/promote/retire sequence — the only way CatalogWriteConflict
// could otherwise arise.
type Catalog struct {
	store              Store
	log                zerolog.Logger
	monitoringWindow   int
	mu                 sync.Mutex
	observationWindows map[string][]bool // edge ID -> recent win/loss, bounded to monitoringWindow
}

// New builds a Catalog over the given Store.
func New(store Store, monitoringWindowGames int, log zerolog.Logger) *Catalog {
	if monitoringWindowGames <= 0 {
		monitoringWindowGames = 200 // roughly two completed seasons
	}
	return &Catalog{
		store:              store,
		log:                log.With().Str("component", "catalog").Logger(),
		monitoringWindow:   monitoringWindowGames,
		observationWindows: make(map[string][]bool),
	}
}

// edgeID deterministically derives the catalog key from the predicate's
// canonical form and version: a deterministic hash of its predicate plus
// version.
func edgeID(predicateCanonical string, version int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s#v%d", predicateCanonical, version)))
	return hex.EncodeToString(sum[:])[:16]
}

// Register computes similarity against every stored predicate and decides
// accepted / duplicate / version_bump, per the catalog's threshold policy.
func (c *Catalog) Register(ctx context.Context, candidate *domain.Edge, candidatePred *predicate.Predicate) (Outcome, *domain.Edge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	all, err := c.store.All(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("catalog register: %w", err)
	}

	var best *domain.Edge
	bestSim := 0.0
	for _, existing := range all {
		existingPred, err := predicate.Parse(existing.PredicateText)
		if err != nil {
			// A stored predicate that no longer parses cannot be compared;
			// skip it rather than fail the whole registration.
			continue
		}
		sim := predicate.Similarity(candidatePred, existingPred)
		if sim > bestSim {
			bestSim = sim
			best = existing
		}
	}

	if best == nil || bestSim < similarityDuplicateThreshold {
		candidate.ID = edgeID(candidatePred.Canonical(), 1)
		candidate.Version = 1
		candidate.Status = domain.EdgeCandidate
		candidate.CreatedAt = timeNow()
		if err := c.store.Put(ctx, candidate); err != nil {
			return "", nil, fmt.Errorf("catalog register: %w", err)
		}
		c.log.Info().Str("edge_id", candidate.ID).Msg("registered new candidate edge")
		return OutcomeAccepted, candidate, nil
	}

	// Similar enough to an existing predicate: either a version bump or a
	// straight duplicate rejection, ties broken by older created_at winning
	//, which Register honors implicitly by never replacing
	// `best` unless the candidate clears the version-bump bar below.
	deltaWinRate := candidate.DiscoveryStats.WinRate - best.DiscoveryStats.WinRate
	deltaROI := candidate.DiscoveryStats.ROI - best.DiscoveryStats.ROI
	improved := deltaWinRate >= versionBumpMinDeltaPP || deltaROI >= versionBumpMinDeltaPP
	sampleRatio := 0.0
	if best.DiscoveryStats.SampleSize > 0 {
		sampleRatio = float64(candidate.DiscoveryStats.SampleSize) / float64(best.DiscoveryStats.SampleSize)
	}

	if improved && sampleRatio >= versionBumpMinSampleRatio {
		now := timeNow()
		best.Status = domain.EdgeRetired
		best.RetiredAt = &now
		best.RetiredReason = "superseded by version bump"
		if err := c.store.Put(ctx, best); err != nil {
			return "", nil, fmt.Errorf("catalog register: retire prior version: %w", err)
		}

		candidate.ID = edgeID(candidatePred.Canonical(), best.Version+1)
		candidate.Version = best.Version + 1
		candidate.Status = domain.EdgeCandidate
		candidate.CreatedAt = now
		if err := c.store.Put(ctx, candidate); err != nil {
			return "", nil, fmt.Errorf("catalog register: store version bump: %w", err)
		}
		c.log.Info().Str("edge_id", candidate.ID).Str("superseded", best.ID).Msg("version bump accepted")
		return OutcomeVersionBump, candidate, nil
	}

	c.log.Info().Str("rejected_as_duplicate_of", best.ID).Float64("similarity", bestSim).Msg("duplicate predicate rejected")
	return OutcomeDuplicate, best, nil
}

// Promote moves candidate -> active iff the activation invariants hold.
// Idempotent: promoting an already-active edge is a no-op.
func (c *Catalog) Promote(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("catalog promote: %w", err)
	}
	if !ok {
		return domain.ErrEdgeNotFound
	}
	if e.Status == domain.EdgeActive || e.Status == domain.EdgeMonitored {
		return nil // idempotent
	}
	if !e.MeetsActivationInvariants() {
		return domain.ErrInvariantViolation
	}
	now := timeNow()
	e.Status = domain.EdgeActive
	e.PromotedAt = &now
	if err := c.store.Put(ctx, e); err != nil {
		return fmt.Errorf("catalog promote: %w", err)
	}
	c.log.Info().Str("edge_id", e.ID).Msg("promoted to active")
	return nil
}

// ListActive returns every currently active Edge.
func (c *Catalog) ListActive(ctx context.Context) ([]*domain.Edge, error) {
	return c.store.ListActive(ctx)
}

// RecordObservation appends a settled wager outcome to the Edge's trailing
// window, recomputes recent_stats, and auto-retires on decay.
func (c *Catalog) RecordObservation(ctx context.Context, id string, won bool, profit float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("catalog record observation: %w", err)
	}
	if !ok {
		return domain.ErrEdgeNotFound
	}

	win := append(c.observationWindows[id], won)
	if len(win) > c.monitoringWindow {
		win = win[len(win)-c.monitoringWindow:]
	}
	c.observationWindows[id] = win

	e.RecentStats = StatsFromOutcomes(win)
	// "for a full monitoring window" (§3): only evaluate decay once the
	// trailing window has actually filled, not on a handful of early
	// observations.
	decayed := len(win) >= c.monitoringWindow && e.RecentStats.WinRate < domain.DecayThreshold()

	if decayed && e.Status != domain.EdgeRetired {
		now := timeNow()
		e.Status = domain.EdgeRetired
		e.RetiredAt = &now
		e.RetiredReason = fmt.Sprintf("recent win rate %.4f crossed decay threshold %.4f", e.RecentStats.WinRate, domain.DecayThreshold())
		c.log.Warn().Str("edge_id", id).Float64("recent_win_rate", e.RecentStats.WinRate).Msg("edge auto-retired on decay")
	} else if e.Status == domain.EdgeActive {
		e.Status = domain.EdgeMonitored
	}

	if err := c.store.Put(ctx, e); err != nil {
		return fmt.Errorf("catalog record observation: %w", err)
	}
	return nil
}

// StatsFromOutcomes computes sample size, win rate, flat -110 ROI, and a
// two-sided binomial p-value from a slice of win/loss outcomes. Exported so
// the Discoverer's validation algorithm computes identical
// statistics to the Catalog's own trailing-window recomputation.
func StatsFromOutcomes(wins []bool) domain.Stats {
	n := len(wins)
	if n == 0 {
		return domain.Stats{}
	}
	w := 0
	for _, won := range wins {
		if won {
			w++
		}
	}
	winRate := float64(w) / float64(n)
	return domain.Stats{
		SampleSize: n,
		Wins:       w,
		WinRate:    winRate,
		ROI:        roiAtFlatOdds(winRate, -110),
		PValue:     binomialTwoSidedPValue(n, w, 0.5),
	}
}

// roiAtFlatOdds computes return on investment for a flat stake at the given
// American odds, given an observed win rate.
func roiAtFlatOdds(winRate float64, americanOdds int) float64 {
	var payoutPerWin float64
	if americanOdds < 0 {
		payoutPerWin = 100.0 / float64(-americanOdds)
	} else {
		payoutPerWin = float64(americanOdds) / 100.0
	}
	return winRate*payoutPerWin - (1 - winRate)
}

// binomialTwoSidedPValue approximates the two-sided p-value for observing w
// wins in n trials under a null win probability p0, using a normal
// approximation to the binomial (valid for the sample sizes this system
// requires, n >= 100).
func binomialTwoSidedPValue(n, w int, p0 float64) float64 {
	if n == 0 {
		return 1.0
	}
	mean := float64(n) * p0
	sd := math.Sqrt(float64(n) * p0 * (1 - p0))
	if sd == 0 {
		return 1.0
	}
	z := (float64(w) - mean) / sd
	return 2 * (1 - standardNormalCDF(math.Abs(z)))
}

// standardNormalCDF evaluates the exact identity Phi(x) = (1 + erf(x/sqrt2))/2
// using the standard library's math.Erf.
func standardNormalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// Retire moves an Edge to retired with a reason; reversible only via a new
// version bump.
func (c *Catalog) Retire(ctx context.Context, id string, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("catalog retire: %w", err)
	}
	if !ok {
		return domain.ErrEdgeNotFound
	}
	now := timeNow()
	e.Status = domain.EdgeRetired
	e.RetiredAt = &now
	e.RetiredReason = reason
	if err := c.store.Put(ctx, e); err != nil {
		return fmt.Errorf("catalog retire: %w", err)
	}
	c.log.Info().Str("edge_id", id).Str("reason", reason).Msg("edge retired")
	return nil
}

// timeNow is a seam so tests can freeze time; production uses wall clock.
var timeNow = func() time.Time { return time.Now().UTC() }
