package orchestrator

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheKey canonicalizes a Request into the key every tier indexes on:
// collector key plus params sorted by name, hashed so arbitrarily many
// params collapse to a fixed-width key.
func CacheKey(req Request) string {
	names := make([]string, 0, len(req.Params))
	for k := range req.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	h := sha256.New()
	fmt.Fprintf(h, "%s", req.CollectorKey)
	for _, n := range names {
		fmt.Fprintf(h, "|%s=%s", n, req.Params[n])
	}
	return req.CollectorKey + ":" + hex.EncodeToString(h.Sum(nil))[:24]
}

// entry is one cached value with its TTL deadline, carried across tiers.
type entry struct {
	value     []byte
	expiresAt time.Time
	storedAt  time.Time
}

func (e entry) expired(now time.Time) bool { return now.After(e.expiresAt) }

// hotTier is a bounded, in-process LRU — the sub-millisecond lookup tier.
// No third-party LRU library is available in this stack; container/list
// plus a map is the idiomatic stdlib building block for one.
type hotTier struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

type hotTierItem struct {
	key   string
	entry entry
}

func newHotTier(capacity int) *hotTier {
	if capacity <= 0 {
		capacity = 2048
	}
	return &hotTier{capacity: capacity, ll: list.New(), items: make(map[string]*list.Element)}
}

func (t *hotTier) get(key string) (entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.items[key]
	if !ok {
		return entry{}, false
	}
	t.ll.MoveToFront(el)
	return el.Value.(*hotTierItem).entry, true
}

func (t *hotTier) set(key string, e entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if el, ok := t.items[key]; ok {
		el.Value.(*hotTierItem).entry = e
		t.ll.MoveToFront(el)
		return
	}
	el := t.ll.PushFront(&hotTierItem{key: key, entry: e})
	t.items[key] = el
	for t.ll.Len() > t.capacity {
		oldest := t.ll.Back()
		if oldest == nil {
			break
		}
		t.ll.Remove(oldest)
		delete(t.items, oldest.Value.(*hotTierItem).key)
	}
}

// redisTier is an optional multi-process overflow for the hot tier: several
// Orchestrator processes sharing one Redis instance see each other's
// in-memory cache hits instead of each cold-starting its own. A nil client
// makes this tier a no-op, which is the default single-process deployment.
// It is not the spec's restart-surviving tier — that is fileTier below —
// Redis here is purely a hot-tier multiplier, grounded on the teacher's
// data/cache/cache.go NewAuto() env-driven memory/Redis selection.
type redisTier struct {
	client *redis.Client
}

func newRedisTier(client *redis.Client) *redisTier { return &redisTier{client: client} }

// fileEnvelope is the serialized JSON form of an entry, shared by the file
// tier's on-disk snapshots and the redis tier's values. expiresAt rides
// along so a restored entry carries its true TTL deadline rather than a
// fabricated one.
type fileEnvelope struct {
	Value     []byte    `json:"value"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t *redisTier) get(ctx context.Context, key string) (entry, bool) {
	if t.client == nil {
		return entry{}, false
	}
	b, err := t.client.Get(ctx, key).Bytes()
	if err != nil {
		return entry{}, false
	}
	var env fileEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return entry{}, false
	}
	return entry{value: env.Value, storedAt: env.StoredAt, expiresAt: env.ExpiresAt}, true
}

func (t *redisTier) set(ctx context.Context, key string, e entry) {
	if t.client == nil {
		return
	}
	ttl := time.Until(e.expiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	b, err := json.Marshal(fileEnvelope{Value: e.value, StoredAt: e.storedAt, ExpiresAt: e.expiresAt})
	if err != nil {
		return
	}
	_ = t.client.Set(ctx, key, b, ttl).Err()
}

// fileTier is the spec's second tier: serialized snapshots on disk,
// ~10ms lookup, surviving process restarts. Writes land via a temp file
// plus rename so a reader never observes a partially written snapshot —
// the same atomic-write pattern as the teacher's internal/atomicio.WriteFile.
// A zero-value dir disables the tier (falls back to hot+history only).
type fileTier struct {
	dir string
}

func newFileTier(dir string) *fileTier { return &fileTier{dir: dir} }

func (t *fileTier) path(key string) string {
	return filepath.Join(t.dir, key+".json")
}

func (t *fileTier) get(key string) (entry, bool) {
	if t.dir == "" {
		return entry{}, false
	}
	b, err := os.ReadFile(t.path(key))
	if err != nil {
		return entry{}, false
	}
	var env fileEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return entry{}, false
	}
	return entry{value: env.Value, storedAt: env.StoredAt, expiresAt: env.ExpiresAt}, true
}

func (t *fileTier) set(key string, e entry) {
	if t.dir == "" {
		return
	}
	b, err := json.Marshal(fileEnvelope{Value: e.value, StoredAt: e.storedAt, ExpiresAt: e.expiresAt})
	if err != nil {
		return
	}
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return
	}
	target := t.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, target)
}

// HistoryWriter is the permanent, time-indexed append-only tier
// the Backtester replays from. Implemented by
// internal/persistence/postgres in production; orchestrator only depends on
// the interface.
type HistoryWriter interface {
	RecordResponse(ctx context.Context, collectorKey, cacheKey string, raw []byte, fetchedAt time.Time) error
}

// noopHistory discards writes; used when no history store is configured,
// e.g. in unit tests.
type noopHistory struct{}

func (noopHistory) RecordResponse(context.Context, string, string, []byte, time.Time) error { return nil }

// Cache composes the tiers behind the read-through/write-through policy:
// hot memory, then the redis hot-tier overflow (if configured), then the
// restart-surviving file tier, then history. Read-through on miss,
// write-through to every tier on fetch success.
type Cache struct {
	hot     *hotTier
	redis   *redisTier
	file    *fileTier
	history HistoryWriter
	ttl     TTLLookup
}

// TTLLookup resolves the TTL that applies to a request, typically shortened
// as kickoff approaches.
type TTLLookup func(req Request) time.Duration

// NewCache builds the cache. redisClient may be nil (no multi-process hot
// overflow); fileDir may be empty (no restart-surviving tier); history may
// be nil (defaults to a no-op writer).
func NewCache(hotCapacity int, redisClient *redis.Client, fileDir string, history HistoryWriter, ttl TTLLookup) *Cache {
	if history == nil {
		history = noopHistory{}
	}
	return &Cache{
		hot:     newHotTier(hotCapacity),
		redis:   newRedisTier(redisClient),
		file:    newFileTier(fileDir),
		history: history,
		ttl:     ttl,
	}
}

// Get checks hot, then the redis overflow, then the file tier; a fresh hit
// from redis or the file tier is copied into the hot tier only. It does not
// consult history — history is write-only from the cache's perspective,
// read only by the Backtester via its own interface.
func (c *Cache) Get(ctx context.Context, req Request) ([]byte, bool, bool) {
	key := CacheKey(req)
	now := time.Now().UTC()
	if e, ok := c.hot.get(key); ok {
		if !e.expired(now) {
			return e.value, true, false
		}
	}
	if e, ok := c.redis.get(ctx, key); ok && !e.expired(now) {
		c.hot.set(key, e)
		return e.value, true, false
	}
	if e, ok := c.file.get(key); ok && !e.expired(now) {
		c.hot.set(key, e)
		return e.value, true, false
	}
	// Nothing fresh; fall back to a stale value held by the hot or file tier
	// (redis is not consulted here), preferring the most recently stored one.
	stale, ok := c.hot.get(key)
	if e, fileOk := c.file.get(key); fileOk && (!ok || e.storedAt.After(stale.storedAt)) {
		stale, ok = e, true
	}
	if ok {
		return stale.value, false, true // stale=true signals "usable as fallback only"
	}
	return nil, false, false
}

// Put writes through every configured tier on fetch success.
func (c *Cache) Put(ctx context.Context, req Request, value []byte) error {
	key := CacheKey(req)
	now := time.Now().UTC()
	d := c.ttl(req)
	e := entry{value: value, storedAt: now, expiresAt: now.Add(d)}
	c.hot.set(key, e)
	c.redis.set(ctx, key, e)
	c.file.set(key, e)
	return c.history.RecordResponse(ctx, req.CollectorKey, key, value, now)
}
