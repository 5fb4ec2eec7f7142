// Package modelclassifier loads a trained classifier as an opaque artifact.
// It never trains a model; it evaluates a serialized linear-logistic weight
// vector over a FeatureVector's numeric fields, the same weighted-sum-then-
// squash shape a scoring engine uses for a composite score, here squashed
// through a sigmoid instead of clamped to a point scale.
package modelclassifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/edgeworks/nfledge/internal/decision"
	"github.com/edgeworks/nfledge/internal/domain"
)

// Weights is the artifact format: one coefficient per FeatureVector field
// plus an intercept. Field names match FeatureVector's numeric fields
// exactly; an unrecognized key fails to load rather than silently ignored.
type Weights struct {
	Intercept float64            `json:"intercept"`
	Coef      map[string]float64 `json:"coef"`
}

var knownFields = []string{
	"home_elo_diff", "home_off_efficiency", "home_def_efficiency",
	"away_off_efficiency", "away_def_efficiency", "home_rest_days", "away_rest_days",
	"forecast_wind_mph", "forecast_gust_mph", "forecast_temp_f", "forecast_precip_pct",
	"referee_home_win_rate", "referee_penalty_rate", "home_injury_impact", "away_injury_impact",
}

// LoadWeights reads and validates a weights artifact from disk.
func LoadWeights(path string) (Weights, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("modelclassifier: read weights artifact %s: %w", path, err)
	}
	var w Weights
	if err := json.Unmarshal(b, &w); err != nil {
		return Weights{}, fmt.Errorf("modelclassifier: parse weights artifact %s: %w", path, err)
	}
	known := make(map[string]bool, len(knownFields))
	for _, f := range knownFields {
		known[f] = true
	}
	for k := range w.Coef {
		if !known[k] {
			return Weights{}, fmt.Errorf("modelclassifier: weights artifact %s references unknown field %q", path, k)
		}
	}
	return w, nil
}

// Classifier implements decision.Classifier and backtest.TrainableClassifier
// over a fixed weight vector.
type Classifier struct {
	weights Weights
}

// New wraps a loaded Weights artifact.
func New(w Weights) *Classifier { return &Classifier{weights: w} }

func featureMap(fv *domain.FeatureVector) map[string]float64 {
	return map[string]float64{
		"home_elo_diff":          fv.HomeEloDiff,
		"home_off_efficiency":    fv.HomeOffEfficiency,
		"home_def_efficiency":    fv.HomeDefEfficiency,
		"away_off_efficiency":    fv.AwayOffEfficiency,
		"away_def_efficiency":    fv.AwayDefEfficiency,
		"home_rest_days":         float64(fv.HomeRestDays),
		"away_rest_days":         float64(fv.AwayRestDays),
		"forecast_wind_mph":      fv.ForecastWindMPH,
		"forecast_gust_mph":      fv.ForecastGustMPH,
		"forecast_temp_f":        fv.ForecastTempF,
		"forecast_precip_pct":    fv.ForecastPrecipPct,
		"referee_home_win_rate":  fv.RefereeHomeWinRate,
		"referee_penalty_rate":   fv.RefereePenaltyRate,
		"home_injury_impact":     fv.HomeInjuryImpact,
		"away_injury_impact":     fv.AwayInjuryImpact,
	}
}

// Predict computes P(home win) via a logistic link and returns the favored
// moneyline side with its win probability: (pHome, home) when pHome >= 0.5,
// otherwise (1-pHome, away). Over/Under is outside this artifact's scope.
func (c *Classifier) Predict(ctx context.Context, fv *domain.FeatureVector) (float64, domain.Side, error) {
	if err := ctx.Err(); err != nil {
		return 0, "", err
	}
	z := c.weights.Intercept
	for name, value := range featureMap(fv) {
		z += c.weights.Coef[name] * value
	}
	pHome := 1.0 / (1.0 + math.Exp(-z))
	if pHome >= 0.5 {
		return pHome, domain.SideHome, nil
	}
	return 1 - pHome, domain.SideAway, nil
}

var _ decision.Classifier = (*Classifier)(nil)

// Train satisfies backtest.TrainableClassifier. Fitting new coefficients
// from a training window is the out-of-scope ML step; this
// returns the same artifact unchanged, which keeps walk-forward replay
// mechanically correct (no look-ahead — the same fixed function is applied
// to every window) while the real fitting step runs as a separate offline
// job that re-writes the weights artifact between backtest invocations.
func (c *Classifier) Train(ctx context.Context, trainStart, trainEnd time.Time) (decision.Classifier, error) {
	return c, ctx.Err()
}
