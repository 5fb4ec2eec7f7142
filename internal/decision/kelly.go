package decision

import "github.com/edgeworks/nfledge/internal/domain"

// kellyFraction computes full-Kelly stake fraction for a bet with win
// probability p at the given American odds (glossary: "growth-optimal
// stake fraction given edge and odds").
func kellyFraction(p float64, americanOdds int) float64 {
	b := decimalB(americanOdds)
	q := 1 - p
	f := (b*p - q) / b
	if f < 0 {
		return 0
	}
	return f
}

// decimalB is the net-odds multiplier b in the classic Kelly formula
// f* = (bp - q) / b: profit per unit staked on a win.
func decimalB(americanOdds int) float64 {
	if americanOdds < 0 {
		return 100.0 / float64(-americanOdds)
	}
	return float64(americanOdds) / 100.0
}

// confidenceMultiplier is f() in the stake-sizing procedure's step 9.
func confidenceMultiplier(confidence float64) float64 {
	switch {
	case confidence > 0.75:
		return 2.0
	case confidence > 0.70:
		return 1.5
	case confidence > 0.65:
		return 1.0
	default:
		return 0.5
	}
}

// matchedEdgeMultiplier is g() in the stake-sizing procedure's step 9:
// the best historical edge among matched Edges drives the bump.
func matchedEdgeMultiplier(matched []*domain.Edge) float64 {
	best := 0.0
	for _, e := range matched {
		hist := e.DiscoveryStats.WinRate - domain.BreakEvenWinRate(-110)
		if hist > best {
			best = hist
		}
	}
	switch {
	case best > 0.10:
		return 1.5
	case best > 0.05:
		return 1.2
	default:
		return 1.0
	}
}

// bankrollRegimeMultiplier is h() in the stake-sizing procedure's step 9.
func bankrollRegimeMultiplier(regime domain.Regime) float64 {
	switch regime {
	case domain.RegimeCold:
		return 0.5
	case domain.RegimeLowSharpe:
		return 0.7
	case domain.RegimeHot:
		return 1.3
	default:
		return 1.0
	}
}

// StakeCaps bounds the final stake fraction: absolute
// 10% cap, 0.1% floor when an edge exists, 0 when it does not.
type StakeCaps struct {
	Cap   float64
	Floor float64
}

// sizeStake composes the full quarter-Kelly stake-sizing pipeline.
func sizeStake(p float64, americanOdds int, confidence float64, matched []*domain.Edge, regime domain.Regime, kellyFractionBase float64, caps StakeCaps, hasEdge bool) float64 {
	if !hasEdge {
		return 0
	}
	base := kellyFractionBase * kellyFraction(p, americanOdds)
	multiplier := confidenceMultiplier(confidence) * matchedEdgeMultiplier(matched) * bankrollRegimeMultiplier(regime)
	stake := base * multiplier
	if stake > caps.Cap {
		stake = caps.Cap
	}
	if stake < caps.Floor {
		stake = caps.Floor
	}
	return stake
}
