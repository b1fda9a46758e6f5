// Package fieldcache deduplicates and caches vector-field tile fetches.
//
// Concurrent requests for the same tile share one upstream fetch; fetched
// tiles are kept for a TTL in a bounded LRU. Failed fetches are never cached.
package fieldcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/signalsfoundry/drift-predictor/core"
	"github.com/signalsfoundry/drift-predictor/internal/logging"
	"github.com/signalsfoundry/drift-predictor/internal/observability"
	"github.com/signalsfoundry/drift-predictor/timectrl"
)

// FetchFunc retrieves one tile from upstream.
type FetchFunc func(ctx context.Context, key TileKey) (*core.VectorField, error)

// Metrics receives cache instrumentation. *observability.CacheCollector
// satisfies it.
type Metrics interface {
	ObserveLookup(result string)
	ObserveFetch(d time.Duration, err error)
	SetEntries(n int)
}

// Config holds cache settings.
type Config struct {
	// TTL is how long a fetched tile is served before it is refetched.
	// Default: 1h
	TTL time.Duration
	// Capacity bounds the number of resident tiles.
	// Default: 256
	Capacity int
	// FetchTimeout bounds one upstream fetch. The fetch is detached from the
	// cancellation of the caller that started it.
	// Default: 30s
	FetchTimeout time.Duration
}

// DefaultConfig returns the default cache settings.
func DefaultConfig() Config {
	return Config{TTL: time.Hour, Capacity: 256, FetchTimeout: 30 * time.Second}
}

// ApplyDefaults fills non-positive settings with defaults.
func (c Config) ApplyDefaults() Config {
	d := DefaultConfig()
	if c.TTL <= 0 {
		c.TTL = d.TTL
	}
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	return c
}

// FetchError reports a failed upstream fetch. It matches
// core.ErrCacheFetchFailed and unwraps to the upstream cause.
type FetchError struct {
	Key TileKey
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch tile %s: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == core.ErrCacheFetchFailed }

// Option customises a Cache.
type Option func(*Cache)

// WithClock sets the clock used for TTL expiry.
func WithClock(clock timectrl.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithMetrics attaches instrumentation.
func WithMetrics(m Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLogger attaches a logger for fetch failures and evictions.
func WithLogger(log logging.Logger) Option {
	return func(c *Cache) { c.log = log }
}

type entry struct {
	field     *core.VectorField
	fetchedAt time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	cfg     Config
	fetch   FetchFunc
	clock   timectrl.Clock
	metrics Metrics
	log     logging.Logger

	// mu guards tiles only; fetches run outside it so different keys proceed
	// in parallel.
	mu    sync.Mutex
	tiles *simplelru.LRU[TileKey, entry]

	group singleflight.Group
}

// New constructs a cache around fetch.
func New(fetch FetchFunc, cfg Config, opts ...Option) (*Cache, error) {
	if fetch == nil {
		return nil, errors.New("fieldcache: fetch function is required")
	}
	c := &Cache{
		cfg:   cfg.ApplyDefaults(),
		fetch: fetch,
		clock: timectrl.SystemClock{},
		log:   logging.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logging.Noop()
	}
	tiles, err := simplelru.NewLRU[TileKey, entry](c.cfg.Capacity, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("fieldcache: %w", err)
	}
	c.tiles = tiles
	return c, nil
}

// Config returns the effective configuration.
func (c *Cache) Config() Config { return c.cfg }

// Get returns the tile for key, fetching it at most once across all
// concurrent callers. A caller whose ctx ends stops waiting; the shared fetch
// continues for the others and still populates the cache.
func (c *Cache) Get(ctx context.Context, key TileKey) (*core.VectorField, error) {
	if f, ok := c.lookup(key); ok {
		c.observeLookup(observability.LookupHit)
		return f, nil
	}

	// Only the caller whose closure runs started the fetch; the write to
	// leader happens before the result is sent on ch.
	leader := false
	ch := c.group.DoChan(key.String(), func() (any, error) {
		leader = true
		return c.load(ctx, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if leader {
			c.observeLookup(observability.LookupMiss)
		} else {
			c.observeLookup(observability.LookupShared)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*core.VectorField), nil
	}
}

// load runs inside the flight for key.
func (c *Cache) load(ctx context.Context, key TileKey) (*core.VectorField, error) {
	// A flight that finished between the caller's lookup and this one joining
	// has already stored the tile.
	if f, ok := c.lookup(key); ok {
		return f, nil
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
	defer cancel()
	fctx, span := observability.StartSpan(fctx, "fieldcache.fetch",
		attribute.String("tile.key", key.String()))

	start := time.Now()
	f, err := c.fetch(fctx, key)
	if err == nil && f == nil {
		err = errors.New("upstream returned no field")
	}
	if c.metrics != nil {
		c.metrics.ObserveFetch(time.Since(start), err)
	}
	if err != nil {
		observability.EndSpan(span, err)
		c.log.Warn(ctx, "tile fetch failed",
			logging.String("tile", key.String()), logging.Err(err))
		return nil, &FetchError{Key: key, Err: err}
	}
	span.End()

	c.store(key, f)
	return f, nil
}

func (c *Cache) lookup(key TileKey) (*core.VectorField, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.tiles.Get(key)
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(e.fetchedAt) >= c.cfg.TTL {
		c.tiles.Remove(key)
		c.setEntries()
		return nil, false
	}
	return e.field, true
}

func (c *Cache) store(key TileKey, f *core.VectorField) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiles.Add(key, entry{field: f, fetchedAt: c.clock.Now()})
	c.setEntries()
}

// Invalidate drops key so the next Get refetches it.
func (c *Cache) Invalidate(key TileKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiles.Remove(key)
	c.setEntries()
}

// Purge drops every tile.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiles.Purge()
	c.setEntries()
}

// Len returns the number of resident tiles, expired ones included until
// they are next looked up.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tiles.Len()
}

// onEvict runs under c.mu.
func (c *Cache) onEvict(key TileKey, _ entry) {
	c.log.Debug(context.Background(), "tile evicted", logging.String("tile", key.String()))
}

// setEntries runs under c.mu.
func (c *Cache) setEntries() {
	if c.metrics != nil {
		c.metrics.SetEntries(c.tiles.Len())
	}
}

func (c *Cache) observeLookup(result string) {
	if c.metrics != nil {
		c.metrics.ObserveLookup(result)
	}
}
