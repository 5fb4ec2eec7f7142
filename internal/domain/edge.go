package domain

import "time"

// EdgeStatus is the lifecycle state of an Edge.
type EdgeStatus string

const (
	EdgeCandidate EdgeStatus = "candidate"
	EdgeActive    EdgeStatus = "active"
	EdgeMonitored EdgeStatus = "monitored"
	EdgeRetired   EdgeStatus = "retired"
)

// Stats holds the statistical summary of an Edge over some sample window.
type Stats struct {
	SampleSize int
	Wins       int
	WinRate    float64
	ROI        float64 // at flat -110
	PValue     float64 // two-sided binomial vs p=0.5
	EffectSize float64
}

// Edge is a historically validated predicate that, when true, flips expected
// value of a specific side positive at standard odds.
type Edge struct {
	ID               string // deterministic hash of predicate + version
	PredicateText    string // canonical string form
	RecommendedSide  Side
	Status           EdgeStatus
	DiscoveryStats   Stats
	RecentStats      Stats // trailing window, default last two completed seasons
	Version          int
	CreatedAt        time.Time
	PromotedAt       *time.Time
	RetiredAt        *time.Time
	RetiredReason    string
}

// BreakEvenWinRate returns the win rate required to break even at the given
// American odds. For -110 this is 110/210 ≈ 0.5238.
func BreakEvenWinRate(americanOdds int) float64 {
	if americanOdds < 0 {
		risk := float64(-americanOdds)
		return risk / (risk + 100)
	}
	return 100.0 / (float64(americanOdds) + 100.0)
}

// MeetsActivationInvariants reports whether the Edge may hold EdgeActive,
// activation requires sample_size >= 100 and p_value < 0.01 (only the p-value
// bound is strict).
func (e *Edge) MeetsActivationInvariants() bool {
	return e.DiscoveryStats.SampleSize >= 100 && e.DiscoveryStats.PValue < 0.01
}

// DecayThreshold is the recent win-rate floor below which an active Edge is
// auto-retired: break-even at -110 minus 2 percentage points.
func DecayThreshold() float64 {
	return BreakEvenWinRate(-110) - 0.02
}

// Recommendation is emitted by the Decision Engine. Immutable once emitted;
// a settlement step attaches Result afterward in a separate record.
type Recommendation struct {
	GameID              GameID
	Side                Side
	StakeFraction       float64
	StakeAmount         float64
	ModelProb           float64
	ImpliedProb         float64
	RawEdge             float64
	MatchedEdges        []string
	Confidence          float64
	Tier                string // S|A|B|C
	BestBook            string
	BestOdds            int
	GeneratedAt         time.Time
	FeatureSnapshotHash string
	StaleInputs         []string
	OddsObservedAt      time.Time
}

// SettledOutcome is the paired outcome record for a Recommendation.
type SettledOutcome struct {
	GameID   GameID
	Side     Side
	Won      bool
	Profit   float64 // in bankroll units
	CLV      float64 // closing line value
	SettledAt time.Time
}
