package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTierSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	req := Request{CollectorKey: "weather", Params: map[string]string{"stadium": "X"}}

	c1 := NewCache(16, nil, dir, nil, fixedTTL(time.Hour))
	require.NoError(t, c1.Put(context.Background(), req, []byte("forecast")))

	// A fresh Cache instance simulates a process restart: the hot tier is
	// empty, so only the file tier can answer.
	c2 := NewCache(16, nil, dir, nil, fixedTTL(time.Hour))
	val, fresh, stale := c2.Get(context.Background(), req)
	require.True(t, fresh)
	assert.False(t, stale)
	assert.Equal(t, "forecast", string(val))
}

func TestFileTierCarriesTrueTTLNotFabricatedOne(t *testing.T) {
	dir := t.TempDir()
	req := Request{CollectorKey: "odds", Params: map[string]string{"game": "1"}}

	c1 := NewCache(16, nil, dir, nil, fixedTTL(2 * time.Minute))
	require.NoError(t, c1.Put(context.Background(), req, []byte("line")))

	c2 := NewCache(16, nil, dir, nil, fixedTTL(2*time.Minute))
	e, ok := c2.file.get(CacheKey(req))
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().UTC().Add(2*time.Minute), e.expiresAt, 5*time.Second)
}

func TestEmptyFileDirDisablesFileTier(t *testing.T) {
	req := Request{CollectorKey: "weather", Params: map[string]string{"stadium": "X"}}
	c := NewCache(16, nil, "", nil, fixedTTL(time.Hour))
	require.NoError(t, c.Put(context.Background(), req, []byte("forecast")))

	_, ok := c.file.get(CacheKey(req))
	assert.False(t, ok)
}
