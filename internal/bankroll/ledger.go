// Package bankroll implements the bankroll state as an append-only
// event-sourced ledger: the current BankrollState is always derived by
// folding the ledger, never mutated in place, so a completed Backtester
// run's settled outcomes can be checked to sum exactly to the ledger delta
// over the run's window.
package bankroll

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/edgeworks/nfledge/internal/domain"
)

// Store persists LedgerEntry rows. Implemented by internal/persistence/postgres
// for production and an in-memory store for tests/backtests.
type Store interface {
	Append(ctx context.Context, entry domain.LedgerEntry) error
	All(ctx context.Context) ([]domain.LedgerEntry, error)
}

// memoryStore is the in-memory Store used by tests and isolated backtest runs.
type memoryStore struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
}

// NewMemoryStore builds an in-memory ledger store.
func NewMemoryStore() Store { return &memoryStore{} }

func (s *memoryStore) Append(_ context.Context, entry domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memoryStore) All(_ context.Context) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LedgerEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// Ledger derives BankrollState by folding the append-only store. Writes are
// serialized with a single-writer mutex, since the running balance each
// entry carries depends on reading the prior entry first.
type Ledger struct {
	mu            sync.Mutex
	store         Store
	rollingWindow int
}

// New builds a Ledger. rollingWindow bounds how many recent entries feed
// RollingWinRate.
func New(store Store, rollingWindow int) *Ledger {
	return &Ledger{store: store, rollingWindow: rollingWindow}
}

// Record appends one delta (a settlement or a backtest-window aggregate) and
// returns the resulting running balance.
func (l *Ledger) Record(ctx context.Context, entry domain.LedgerEntry) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.store.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("bankroll: read ledger: %w", err)
	}
	prevBalance := 0.0
	if len(entries) > 0 {
		prevBalance = entries[len(entries)-1].Balance
	}
	entry.Balance = prevBalance + entry.Delta
	if err := l.store.Append(ctx, entry); err != nil {
		return 0, fmt.Errorf("bankroll: append ledger entry: %w", err)
	}
	return entry.Balance, nil
}

// State folds the full ledger into the current BankrollState.
func (l *Ledger) State(ctx context.Context) (domain.BankrollState, error) {
	entries, err := l.store.All(ctx)
	if err != nil {
		return domain.BankrollState{}, fmt.Errorf("bankroll: read ledger: %w", err)
	}
	if len(entries) == 0 {
		return domain.BankrollState{}, nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	last := entries[len(entries)-1]
	window := entries
	if len(window) > l.rollingWindow {
		window = window[len(window)-l.rollingWindow:]
	}

	wins := 0
	for _, e := range window {
		if e.Delta > 0 {
			wins++
		}
	}

	return domain.BankrollState{
		Balance:         last.Balance,
		RollingWinRate:  float64(wins) / float64(len(window)),
		CurrentDrawdown: drawdown(entries),
		AggressionMult:  1.0,
		AsOf:            last.OccurredAt,
	}, nil
}

// Balance implements decision.BankrollProvider: the current running
// balance the Decision Engine converts a stake fraction into a stake
// amount against.
func (l *Ledger) Balance(ctx context.Context) (float64, error) {
	state, err := l.State(ctx)
	if err != nil {
		return 0, err
	}
	return state.Balance, nil
}

// Regime implements decision.BankrollProvider: folds the ledger and
// classifies the current regime using a Sharpe ratio computed over the
// rolling window's per-entry deltas.
func (l *Ledger) Regime(ctx context.Context) (domain.Regime, float64, error) {
	state, err := l.State(ctx)
	if err != nil {
		return domain.RegimeNormal, 0, err
	}
	entries, err := l.store.All(ctx)
	if err != nil {
		return domain.RegimeNormal, 0, err
	}
	window := entries
	if len(window) > l.rollingWindow {
		window = window[len(window)-l.rollingWindow:]
	}
	sharpe := sharpeOf(window)
	return state.Classify(sharpe), sharpe, nil
}

func drawdown(entries []domain.LedgerEntry) float64 {
	peak, worst := entries[0].Balance, 0.0
	for _, e := range entries {
		if e.Balance > peak {
			peak = e.Balance
		}
		if dd := peak - e.Balance; dd > worst {
			worst = dd
		}
	}
	return worst
}

func sharpeOf(entries []domain.LedgerEntry) float64 {
	if len(entries) < 2 {
		return 0
	}
	mean := 0.0
	for _, e := range entries {
		mean += e.Delta
	}
	mean /= float64(len(entries))

	variance := 0.0
	for _, e := range entries {
		d := e.Delta - mean
		variance += d * d
	}
	variance /= float64(len(entries))
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0
	}
	return mean / stddev
}
