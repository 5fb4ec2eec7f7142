package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/edgeworks/nfledge/internal/catalog"
	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/rs/zerolog"
)

// LogEntry is one row appended to the discovery log for a single candidate
// considered during a run.
type LogEntry struct {
	RunID       string
	CandidateName string
	Source      string
	Outcome     string // "registered", "duplicate", "version_bump", "rejected", "error"
	Reason      string
	ConsideredAt time.Time
}

// Log is the append-only sink for LogEntry rows. Implemented by the
// persistence layer; a nil Log is valid and simply drops entries.
type Log interface {
	Append(ctx context.Context, entry LogEntry) error
}

type nopLog struct{}

func (nopLog) Append(context.Context, LogEntry) error { return nil }

// RunSummary totals a discovery run's outcomes.
type RunSummary struct {
	RunID      string
	Considered int
	Registered int
	Duplicates int
	VersionBumps int
	Rejected   int
	Errored    int
}

// Config bundles the validation/sweep tunables a Discoverer runs with
// (mirrors internal/config.DiscoveryConfig).
type Config struct {
	StartSeasonsBack int
	MinSample        int
	PValueThreshold  float64
	HoldoutSeasons   int
	InteractionMinSupport int
}

// Discoverer is the Edge Discoverer (C2): generates hypotheses from the
// template sweep, interaction mining, and an optional AI proposer, runs
// each through the validation algorithm, and registers passing candidates
// with the Catalog.
type Discoverer struct {
	catalog *catalog.Catalog
	history GameHistory
	ai      AIProposer
	cfg     Config
	log     zerolog.Logger
	runLog  Log
}

// New builds a Discoverer. ai and runLog may be nil.
func New(cat *catalog.Catalog, history GameHistory, ai AIProposer, cfg Config, runLog Log, log zerolog.Logger) *Discoverer {
	if runLog == nil {
		runLog = nopLog{}
	}
	return &Discoverer{catalog: cat, history: history, ai: ai, cfg: cfg, runLog: runLog, log: log.With().Str("component", "discoverer").Logger()}
}

// Run executes one discovery pass: template sweep, interaction mining, one
// AI proposal attempt, validation, and catalog registration for everything
// that passes. A data-fetch failure aborts the run without
// corrupting the catalog (nothing is registered before validation passes);
// a panicking or erroring template is logged and skipped, and the run
// continues for the rest.
func (d *Discoverer) Run(ctx context.Context, runID string) (RunSummary, error) {
	summary := RunSummary{RunID: runID}

	games, err := d.history.Since(ctx, currentSeason()-d.cfg.StartSeasonsBack)
	if err != nil {
		return summary, fmt.Errorf("discovery run %s: fetch history: %w", runID, err)
	}

	var candidates []Candidate
	candidates = append(candidates, d.safeSweep()...)

	interactions, err := MineInteractions(ctx, d.history, currentSeason()-d.cfg.StartSeasonsBack, d.cfg.InteractionMinSupport)
	if err != nil {
		d.log.Warn().Err(err).Msg("interaction mining failed, continuing with template candidates only")
	} else {
		candidates = append(candidates, interactions...)
	}

	if ai, ok := proposeFromAI(ctx, d.ai, summarize(games), d.log); ok {
		candidates = append(candidates, *ai)
	}

	d.considerAll(ctx, &summary, candidates, games)
	return summary, nil
}

// ConsiderExternal runs the same validate-then-register path as Run, but
// over candidates supplied by an external producer instead of the
// template sweep — the Backtester's pattern-discovery slices use this entry point rather than duplicating
// considerOne's logic.
func (d *Discoverer) ConsiderExternal(ctx context.Context, runID string, cands []Candidate, games []LabeledGame) RunSummary {
	summary := RunSummary{RunID: runID}
	d.considerAll(ctx, &summary, cands, games)
	return summary
}

func (d *Discoverer) considerAll(ctx context.Context, summary *RunSummary, candidates []Candidate, games []LabeledGame) {
	for _, cand := range candidates {
		summary.Considered++
		outcome, reason := d.considerOne(ctx, cand, games)
		d.recordOutcome(ctx, summary.RunID, cand, outcome, reason)
		switch outcome {
		case "registered":
			summary.Registered++
		case "duplicate":
			summary.Duplicates++
		case "version_bump":
			summary.VersionBumps++
		case "error":
			summary.Errored++
		default:
			summary.Rejected++
		}
	}
}

func (d *Discoverer) considerOne(ctx context.Context, cand Candidate, games []LabeledGame) (outcome, reason string) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("candidate", cand.Name).Msg("template evaluation panicked, skipping")
			outcome, reason = "error", fmt.Sprintf("panic: %v", r)
		}
	}()

	result, err := Validate(cand, games, d.cfg.MinSample, d.cfg.HoldoutSeasons, d.cfg.PValueThreshold)
	if err != nil {
		if err == domain.ErrInsufficientData {
			return "rejected", "insufficient sample"
		}
		return "error", err.Error()
	}
	if !result.Passed {
		return "rejected", result.Reason
	}

	candidateEdge := &domain.Edge{
		PredicateText:   cand.Predicate.Canonical(),
		RecommendedSide: cand.Side,
		DiscoveryStats:  result.Stats,
		RecentStats:     result.Stats,
	}
	regOutcome, _, err := d.catalog.Register(ctx, candidateEdge, cand.Predicate)
	if err != nil {
		return "error", err.Error()
	}
	return string(regOutcome), ""
}

func (d *Discoverer) safeSweep() []Candidate {
	cands, err := Sweep()
	if err != nil {
		d.log.Error().Err(err).Msg("template sweep failed to build, continuing with empty template set")
		return nil
	}
	return cands
}

func (d *Discoverer) recordOutcome(ctx context.Context, runID string, cand Candidate, outcome, reason string) {
	entry := LogEntry{RunID: runID, CandidateName: cand.Name, Source: cand.Source, Outcome: outcome, Reason: reason, ConsideredAt: time.Now().UTC()}
	if err := d.runLog.Append(ctx, entry); err != nil {
		d.log.Warn().Err(err).Msg("discovery log append failed")
	}
}

func summarize(games []LabeledGame) string {
	return fmt.Sprintf("%d labeled games available for training summary", len(games))
}

// currentSeason is a seam so tests can pin the season; production derives
// it from wall-clock time (NFL seasons are named by their starting year).
var currentSeason = func() int {
	now := time.Now().UTC()
	if now.Month() >= time.March {
		return now.Year()
	}
	return now.Year() - 1
}
