package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCollector struct {
	key   string
	calls int64
	delay time.Duration
}

func (c *countingCollector) Key() string { return c.key }

func (c *countingCollector) Fetch(ctx context.Context, req Request) (Result, error) {
	atomic.AddInt64(&c.calls, 1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return Result{Raw: []byte("payload"), FetchedAt: time.Now().UTC()}, nil
}

func (c *countingCollector) TTL(req Request) time.Duration { return time.Minute }

func fixedTTL(d time.Duration) TTLLookup {
	return func(Request) time.Duration { return d }
}

func newTestOrchestrator(collector Collector, cfg Config) *Orchestrator {
	cache := NewCache(1024, nil, "", nil, fixedTTL(time.Minute))
	o := New(cache, cfg, zerolog.Nop())
	o.Register(collector)
	return o
}

func TestFetchCachesAcrossCalls(t *testing.T) {
	c := &countingCollector{key: "weather"}
	cfg := Config{RateLimiterDefaults: RateLimiterPolicy{Capacity: 10, RefillPerSecond: 10}, Retry: DefaultRetryPolicy, Workers: 2}
	o := newTestOrchestrator(c, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go o.Run(ctx)
	defer cancel()

	req := Request{CollectorKey: "weather", Params: map[string]string{"stadium": "X", "time": "Y"}}
	for i := 0; i < 5; i++ {
		res, err := o.Fetch(context.Background(), req, PriorityNormal)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(res.Raw))
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&c.calls))
}

func TestFetchDeduplicatesConcurrentRequests(t *testing.T) {
	c := &countingCollector{key: "weather", delay: 50 * time.Millisecond}
	cfg := Config{RateLimiterDefaults: RateLimiterPolicy{Capacity: 1000, RefillPerSecond: 1000}, Retry: DefaultRetryPolicy, Workers: 8}
	o := newTestOrchestrator(c, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go o.Run(ctx)
	defer cancel()

	req := Request{CollectorKey: "weather", Params: map[string]string{"stadium": "X", "time": "Y"}}

	n := 20
	results := make(chan Result, n)
	for i := 0; i < n; i++ {
		go func() {
			res, err := o.Fetch(context.Background(), req, PriorityNormal)
			require.NoError(t, err)
			results <- res
		}()
	}
	for i := 0; i < n; i++ {
		<-results
	}
	assert.LessOrEqual(t, atomic.LoadInt64(&c.calls), int64(2)) // in-flight races may allow a second call before the first completes
}

func TestLowPriorityFailsFastOnEmptyBucket(t *testing.T) {
	c := &countingCollector{key: "odds"}
	cfg := Config{RateLimiterDefaults: RateLimiterPolicy{Capacity: 1, RefillPerSecond: 0.0001}, Retry: DefaultRetryPolicy, Workers: 1}
	o := newTestOrchestrator(c, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go o.Run(ctx)
	defer cancel()

	req1 := Request{CollectorKey: "odds", Params: map[string]string{"game": "1"}}
	_, err := o.Fetch(context.Background(), req1, PriorityLow)
	require.NoError(t, err)

	req2 := Request{CollectorKey: "odds", Params: map[string]string{"game": "2"}}
	_, err = o.Fetch(context.Background(), req2, PriorityLow)
	assert.Error(t, err)
}

func TestPriorityEscalation(t *testing.T) {
	q := NewPriorityQueue(EscalationThresholds{Low: 10 * time.Millisecond, Normal: 10 * time.Millisecond, High: 10 * time.Millisecond})
	ch := q.Push(Request{CollectorKey: "x"}, PriorityLow)
	time.Sleep(20 * time.Millisecond)
	item, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, PriorityNormal, item.priority)
	item.resultCh <- fetchOutcome{}
	<-ch
}
