// Package predicate implements the structured boolean expression grammar
// that replaces dynamic-typed string filters. A Predicate is a
// conjunction of Comparisons over a closed namespace of FeatureVector/Game
// fields — never an arbitrary expression over arbitrary strings — so that
// every predicate can be evaluated, canonicalized, and compared for
// similarity without an interpreter for a general language.
package predicate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/edgeworks/nfledge/internal/domain"
)

// Field is a name from the closed namespace a Comparison may reference. The
// Discoverer's template sweep and the AI-proposed path are both restricted
// to this set; an unknown field name fails to parse.
type Field string

const (
	FieldHomeEloDiff          Field = "home_elo_diff"
	FieldHomeOffEfficiency    Field = "home_off_efficiency"
	FieldAwayOffEfficiency    Field = "away_off_efficiency"
	FieldHomeDefEfficiency    Field = "home_def_efficiency"
	FieldAwayDefEfficiency    Field = "away_def_efficiency"
	FieldHomeRestDays         Field = "home_rest_days"
	FieldAwayRestDays         Field = "away_rest_days"
	FieldStadiumRoof          Field = "stadium_roof"
	FieldStadiumSurface       Field = "stadium_surface"
	FieldForecastWindMPH      Field = "forecast_wind_mph"
	FieldForecastGustMPH      Field = "forecast_gust_mph"
	FieldForecastTempF        Field = "forecast_temp_f"
	FieldForecastPrecipPct    Field = "forecast_precip_pct"
	FieldRefereeHomeWinRate   Field = "referee_home_win_rate"
	FieldRefereePenaltyRate   Field = "referee_penalty_rate"
	FieldHomeInjuryImpact     Field = "home_injury_impact"
	FieldAwayInjuryImpact     Field = "away_injury_impact"
	FieldIsHomeFavorite       Field = "is_home_favorite"
	FieldIsDivisional         Field = "is_divisional"
	FieldIsPlayoffRace        Field = "is_playoff_race"
	FieldHomeEliminated       Field = "home_eliminated"
	FieldAwayEliminated       Field = "away_eliminated"
)

// knownFields is the closed namespace used by the parser to reject anything
// outside it, including malformed AI-proposed predicates.
var knownFields = map[Field]bool{
	FieldHomeEloDiff: true, FieldHomeOffEfficiency: true, FieldAwayOffEfficiency: true,
	FieldHomeDefEfficiency: true, FieldAwayDefEfficiency: true, FieldHomeRestDays: true,
	FieldAwayRestDays: true, FieldStadiumRoof: true, FieldStadiumSurface: true,
	FieldForecastWindMPH: true, FieldForecastGustMPH: true, FieldForecastTempF: true,
	FieldForecastPrecipPct: true, FieldRefereeHomeWinRate: true, FieldRefereePenaltyRate: true,
	FieldHomeInjuryImpact: true, FieldAwayInjuryImpact: true, FieldIsHomeFavorite: true,
	FieldIsDivisional: true, FieldIsPlayoffRace: true, FieldHomeEliminated: true,
	FieldAwayEliminated: true,
}

// Op is a comparison operator. Boolean fields only support OpEq.
type Op string

const (
	OpGT Op = ">"
	OpLT Op = "<"
	OpGE Op = ">="
	OpLE Op = "<="
	OpEq Op = "=="
)

var validOps = map[Op]bool{OpGT: true, OpLT: true, OpGE: true, OpLE: true, OpEq: true}

// Comparison is one leaf of a Predicate: field OP value.
type Comparison struct {
	Field Field
	Op    Op
	Value float64 // booleans encoded as 0/1 with OpEq
}

// Predicate is a conjunction of Comparisons. There is deliberately no
// disjunction or negation in the grammar: every hypothesis the Discoverer
// produces, template or AI-proposed, is expressible as an AND of bounds,
// which keeps both evaluation and similarity comparison simple and total.
type Predicate struct {
	Terms []Comparison
}

// New builds a Predicate, rejecting unknown fields or operators so that a
// caller constructing one programmatically gets the same validation path as
// Parse.
func New(terms ...Comparison) (*Predicate, error) {
	p := &Predicate{Terms: terms}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Predicate) validate() error {
	if len(p.Terms) == 0 {
		return fmt.Errorf("predicate: must have at least one term")
	}
	for _, t := range p.Terms {
		if !knownFields[t.Field] {
			return fmt.Errorf("predicate: unknown field %q", t.Field)
		}
		if !validOps[t.Op] {
			return fmt.Errorf("predicate: unknown operator %q", t.Op)
		}
	}
	return nil
}

// Evaluate reports whether every term holds for the given feature vector and
// game. Field resolution is a closed switch, not reflection, so an
// unresolvable field is a programmer error caught by validate() at parse
// time, not a runtime surprise.
func (p *Predicate) Evaluate(fv *domain.FeatureVector, g *domain.Game) (bool, error) {
	for _, t := range p.Terms {
		v, err := resolve(t.Field, fv, g)
		if err != nil {
			return false, err
		}
		if !compare(v, t.Op, t.Value) {
			return false, nil
		}
	}
	return true, nil
}

func resolve(f Field, fv *domain.FeatureVector, g *domain.Game) (float64, error) {
	switch f {
	case FieldHomeEloDiff:
		return fv.HomeEloDiff, nil
	case FieldHomeOffEfficiency:
		return fv.HomeOffEfficiency, nil
	case FieldAwayOffEfficiency:
		return fv.AwayOffEfficiency, nil
	case FieldHomeDefEfficiency:
		return fv.HomeDefEfficiency, nil
	case FieldAwayDefEfficiency:
		return fv.AwayDefEfficiency, nil
	case FieldHomeRestDays:
		return float64(fv.HomeRestDays), nil
	case FieldAwayRestDays:
		return float64(fv.AwayRestDays), nil
	case FieldStadiumRoof:
		return roofCode(fv.StadiumRoof), nil
	case FieldStadiumSurface:
		return surfaceCode(fv.StadiumSurface), nil
	case FieldForecastWindMPH:
		return fv.ForecastWindMPH, nil
	case FieldForecastGustMPH:
		return fv.ForecastGustMPH, nil
	case FieldForecastTempF:
		return fv.ForecastTempF, nil
	case FieldForecastPrecipPct:
		return fv.ForecastPrecipPct, nil
	case FieldRefereeHomeWinRate:
		return fv.RefereeHomeWinRate, nil
	case FieldRefereePenaltyRate:
		return fv.RefereePenaltyRate, nil
	case FieldHomeInjuryImpact:
		return fv.HomeInjuryImpact, nil
	case FieldAwayInjuryImpact:
		return fv.AwayInjuryImpact, nil
	case FieldIsHomeFavorite:
		return boolF(fv.IsHomeFavorite), nil
	case FieldIsDivisional:
		return boolF(fv.IsDivisional), nil
	case FieldIsPlayoffRace:
		return boolF(fv.IsPlayoffRace), nil
	case FieldHomeEliminated:
		return boolF(fv.HomeEliminated), nil
	case FieldAwayEliminated:
		return boolF(fv.AwayEliminated), nil
	default:
		return 0, fmt.Errorf("predicate: cannot resolve field %q", f)
	}
}

func roofCode(r domain.Roof) float64 {
	switch r {
	case domain.RoofOutdoor:
		return 0
	case domain.RoofDome:
		return 1
	case domain.RoofRetractable:
		return 2
	default:
		return -1
	}
}

func surfaceCode(s string) float64 {
	if strings.EqualFold(s, "turf") {
		return 1
	}
	return 0
}

func boolF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func compare(v float64, op Op, target float64) bool {
	switch op {
	case OpGT:
		return v > target
	case OpLT:
		return v < target
	case OpGE:
		return v >= target
	case OpLE:
		return v <= target
	case OpEq:
		return v == target
	default:
		return false
	}
}

// Canonical renders the predicate's canonical string form: terms sorted by
// field name then operator, lowercased, whitespace-collapsed, operators
// standardized to a single space-padded token. This is the exact string the
// similarity metric (similarity.go) operates on, and the basis of the
// deterministic edge_id hash.
func (p *Predicate) Canonical() string {
	terms := make([]Comparison, len(p.Terms))
	copy(terms, p.Terms)
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Field != terms[j].Field {
			return terms[i].Field < terms[j].Field
		}
		return terms[i].Op < terms[j].Op
	})
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = fmt.Sprintf("%s %s %s", t.Field, t.Op, trimFloat(t.Value))
	}
	return strings.Join(parts, " and ")
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.4f", f)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

func (p *Predicate) String() string { return p.Canonical() }
