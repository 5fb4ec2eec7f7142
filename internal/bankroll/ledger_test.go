package bankroll

import (
	"context"
	"testing"
	"time"

	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAccumulatesBalance(t *testing.T) {
	l := New(NewMemoryStore(), 50)
	ctx := context.Background()

	bal, err := l.Record(ctx, domain.LedgerEntry{OccurredAt: time.Now(), Delta: 10, Reason: "settlement:g1"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, bal)

	bal, err = l.Record(ctx, domain.LedgerEntry{OccurredAt: time.Now(), Delta: -3, Reason: "settlement:g2"})
	require.NoError(t, err)
	assert.Equal(t, 7.0, bal)
}

func TestStateComputesRollingWinRate(t *testing.T) {
	l := New(NewMemoryStore(), 10)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		delta := -1.0
		if i%2 == 0 {
			delta = 1.0
		}
		_, err := l.Record(ctx, domain.LedgerEntry{OccurredAt: time.Now(), Delta: delta})
		require.NoError(t, err)
	}
	state, err := l.State(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, state.RollingWinRate, 1e-9)
}

func TestRegimeClassifiesCold(t *testing.T) {
	l := New(NewMemoryStore(), 20)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		_, err := l.Record(ctx, domain.LedgerEntry{OccurredAt: time.Now(), Delta: -1})
		require.NoError(t, err)
	}
	regime, _, err := l.Regime(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RegimeCold, regime)
}

func TestDrawdownTracksPeakToTrough(t *testing.T) {
	l := New(NewMemoryStore(), 50)
	ctx := context.Background()
	deltas := []float64{5, 5, -8, 2}
	for _, d := range deltas {
		_, err := l.Record(ctx, domain.LedgerEntry{OccurredAt: time.Now(), Delta: d})
		require.NoError(t, err)
	}
	state, err := l.State(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, state.CurrentDrawdown, 1e-9)
}
