package backtest

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/edgeworks/nfledge/internal/discovery"
	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/edgeworks/nfledge/internal/predicate"
)

// SettledRecommendation pairs one emitted Recommendation with its
// settlement and the FeatureVector it was built from — the unit the slicers
// operate on.
type SettledRecommendation struct {
	Recommendation *domain.Recommendation
	Settlement     domain.SettledOutcome
	Features       *domain.FeatureVector
}

// Dimension is one orthogonal way of grouping settled Recommendations.
// Predicate is nil for dimensions that cannot be expressed in the closed
// predicate grammar (time buckets, matched-edge sets) — those slices still
// surface in the report but are not forwarded to the Discoverer as
// candidates.
type Dimension struct {
	Name      string
	Key       func(s SettledRecommendation) string
	Predicate func(key string) (*predicate.Predicate, error)
}

// Dimensions returns the fixed set of slicers the Backtester runs after
// every settlement pass.
func Dimensions() []Dimension {
	return []Dimension{
		{
			Name: "tier",
			Key:  func(s SettledRecommendation) string { return s.Recommendation.Tier },
		},
		{
			Name: "matched_edge_set",
			Key: func(s SettledRecommendation) string {
				ids := append([]string(nil), s.Recommendation.MatchedEdges...)
				sort.Strings(ids)
				return strings.Join(ids, "+")
			},
		},
		{
			Name: "season",
			Key:  func(s SettledRecommendation) string { return fmt.Sprintf("%d", s.Recommendation.GameID.Season) },
		},
		{
			Name: "home_elo_gap_band",
			Key: func(s SettledRecommendation) string {
				return eloBand(s.Features.HomeEloDiff)
			},
			Predicate: func(key string) (*predicate.Predicate, error) {
				lo, hi, ok := eloBandBounds(key)
				if !ok {
					return nil, fmt.Errorf("backtest: unrecognized elo band %q", key)
				}
				return predicate.New(
					predicate.Comparison{Field: predicate.FieldHomeEloDiff, Op: predicate.OpGE, Value: lo},
					predicate.Comparison{Field: predicate.FieldHomeEloDiff, Op: predicate.OpLT, Value: hi},
				)
			},
		},
		{
			Name: "high_wind_outdoor",
			Key: func(s SettledRecommendation) string {
				if s.Features.StadiumRoof == domain.RoofOutdoor && s.Features.ForecastWindMPH >= 15 {
					return "yes"
				}
				return "no"
			},
			Predicate: func(key string) (*predicate.Predicate, error) {
				if key != "yes" {
					return nil, fmt.Errorf("backtest: slice %q has no positive predicate", key)
				}
				return predicate.New(
					predicate.Comparison{Field: predicate.FieldStadiumRoof, Op: predicate.OpEq, Value: 0},
					predicate.Comparison{Field: predicate.FieldForecastWindMPH, Op: predicate.OpGE, Value: 15},
				)
			},
		},
	}
}

func eloBand(diff float64) string {
	const width = 50.0
	lo := math.Floor(diff/width) * width
	return fmt.Sprintf("%.0f_%.0f", lo, lo+width)
}

func eloBandBounds(key string) (lo, hi float64, ok bool) {
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	var loF, hiF float64
	if _, err := fmt.Sscanf(parts[0], "%f", &loF); err != nil {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(parts[1], "%f", &hiF); err != nil {
		return 0, 0, false
	}
	return loF, hiF, true
}

// SliceResult is one dimension/key bucket's aggregate performance.
type SliceResult struct {
	Dimension string
	Key       string
	Stats     AggregateMetrics
}

// PatternConfig governs the significance bar a slice must clear to be
// forwarded as a discovery candidate.
type PatternConfig struct {
	MinSample  int
	MinLiftPP  float64
	MaxPValue  float64
	BaseWinRate float64
}

// SliceAll runs every Dimension over a settled run and returns one
// SliceResult per (dimension, key) bucket with at least one member.
func SliceAll(items []SettledRecommendation) []SliceResult {
	var out []SliceResult
	for _, dim := range Dimensions() {
		buckets := map[string][]domain.SettledOutcome{}
		for _, it := range items {
			k := dim.Key(it)
			buckets[k] = append(buckets[k], it.Settlement)
		}
		keys := make([]string, 0, len(buckets))
		for k := range buckets {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, SliceResult{Dimension: dim.Name, Key: k, Stats: Summarize(buckets[k])})
		}
	}
	return out
}

// DiscoverPatterns filters slice results down to the ones that clear the
// significance bar and converts the representable ones (those whose
// Dimension has a Predicate builder) into discovery.Candidates ready for
// Validate — never auto-promoted.
func DiscoverPatterns(items []SettledRecommendation, cfg PatternConfig) []discovery.Candidate {
	dimByName := map[string]Dimension{}
	for _, d := range Dimensions() {
		dimByName[d.Name] = d
	}

	var out []discovery.Candidate
	for _, slice := range SliceAll(items) {
		if slice.Stats.SampleSize < cfg.MinSample {
			continue
		}
		liftPP := slice.Stats.WinRate - cfg.BaseWinRate
		if liftPP < cfg.MinLiftPP {
			continue
		}
		p := oneSidedPValue(slice.Stats.WinRate, slice.Stats.SampleSize, cfg.BaseWinRate)
		if p >= cfg.MaxPValue {
			continue
		}

		dim, ok := dimByName[slice.Dimension]
		if !ok || dim.Predicate == nil {
			continue
		}
		pred, err := dim.Predicate(slice.Key)
		if err != nil {
			continue
		}
		out = append(out, discovery.Candidate{
			Source:    "backtest_pattern",
			Name:      fmt.Sprintf("%s:%s", slice.Dimension, slice.Key),
			Predicate: pred,
			Side:      impliedSideFor(items, slice),
		})
	}
	return out
}

// impliedSideFor picks the side most of the slice's members recommended, so
// the forwarded candidate carries a concrete Side for Validate to score.
func impliedSideFor(items []SettledRecommendation, slice SliceResult) domain.Side {
	dim := findDimension(slice.Dimension)
	counts := map[domain.Side]int{}
	for _, it := range items {
		if dim.Key(it) != slice.Key {
			continue
		}
		counts[it.Recommendation.Side]++
	}
	best := domain.SideHome
	bestCount := -1
	for s, c := range counts {
		if c > bestCount {
			best, bestCount = s, c
		}
	}
	return best
}

func findDimension(name string) Dimension {
	for _, d := range Dimensions() {
		if d.Name == name {
			return d
		}
	}
	return Dimension{}
}

// oneSidedPValue is the normal-approximation one-sided binomial test of
// "this slice's win rate exceeds baseRate", matching the approximation
// style internal/catalog uses for its own two-sided test.
func oneSidedPValue(observedRate float64, n int, baseRate float64) float64 {
	if n == 0 {
		return 1
	}
	se := math.Sqrt(baseRate * (1 - baseRate) / float64(n))
	if se == 0 {
		return 1
	}
	z := (observedRate - baseRate) / se
	return 1 - standardNormalCDF(z)
}

func standardNormalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}
