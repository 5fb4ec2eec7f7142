package backtest

import (
	"fmt"
	"math"
	"sort"

	"github.com/edgeworks/nfledge/internal/domain"
)

// AggregateMetrics summarizes a settled run.
type AggregateMetrics struct {
	SampleSize  int
	WinRate     float64
	ROI         float64
	Sharpe      float64 // computed over weekly return buckets
	MaxDrawdown float64
	AvgCLV      float64
}

// Summarize computes AggregateMetrics from a run's settlements.
func Summarize(settlements []domain.SettledOutcome) AggregateMetrics {
	m := AggregateMetrics{SampleSize: len(settlements)}
	if len(settlements) == 0 {
		return m
	}

	var wins int
	var totalProfit, totalCLV float64
	for _, s := range settlements {
		if s.Won {
			wins++
		}
		totalProfit += s.Profit
		totalCLV += s.CLV
	}
	m.WinRate = float64(wins) / float64(len(settlements))
	m.ROI = totalProfit / float64(len(settlements))
	m.AvgCLV = totalCLV / float64(len(settlements))
	m.Sharpe = weeklySharpe(settlements)
	m.MaxDrawdown = maxDrawdown(settlements)
	return m
}

// weeklySharpe buckets settlements into ISO weeks by SettledAt, sums profit
// per week, and returns the mean-over-stddev of those weekly returns —
// Sharpe computed using weekly return buckets.
func weeklySharpe(settlements []domain.SettledOutcome) float64 {
	byWeek := map[string]float64{}
	for _, s := range settlements {
		year, week := s.SettledAt.ISOWeek()
		key := weekKey(year, week)
		byWeek[key] += s.Profit
	}
	if len(byWeek) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(byWeek))
	for _, v := range byWeek {
		returns = append(returns, v)
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0
	}
	return mean / stddev
}

func weekKey(year, week int) string {
	return fmt.Sprintf("%d-W%02d", year, week)
}

// maxDrawdown walks settlements in SettledAt order, accumulating running
// profit, and returns the largest peak-to-trough decline observed.
func maxDrawdown(settlements []domain.SettledOutcome) float64 {
	ordered := make([]domain.SettledOutcome, len(settlements))
	copy(ordered, settlements)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].SettledAt.Before(ordered[j].SettledAt) })

	running, peak, worst := 0.0, 0.0, 0.0
	for _, s := range ordered {
		running += s.Profit
		if running > peak {
			peak = running
		}
		if dd := peak - running; dd > worst {
			worst = dd
		}
	}
	return worst
}
