package fieldcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/drift-predictor/core"
	"github.com/signalsfoundry/drift-predictor/internal/observability"
	"github.com/signalsfoundry/drift-predictor/timectrl"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testField(t *testing.T, u float64) *core.VectorField {
	t.Helper()
	f, err := core.UniformField(core.Axes{
		Lats:  []float64{0, 1},
		Lons:  []float64{0, 1},
		Times: []time.Time{epoch, epoch.Add(time.Hour)},
	}, u, 0)
	if err != nil {
		t.Fatalf("UniformField: %v", err)
	}
	return f
}

func testKey() TileKey {
	return DefaultTiling().KeyFor(KindCurrent, 0.5, 0.5, epoch)
}

func TestConcurrentGetsShareOneFetch(t *testing.T) {
	var fetches atomic.Int32
	field := testField(t, 0.2)
	cache, err := New(func(ctx context.Context, key TileKey) (*core.VectorField, error) {
		fetches.Add(1)
		time.Sleep(50 * time.Millisecond)
		return field, nil
	}, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const callers = 32
	var wg sync.WaitGroup
	results := make([]*core.VectorField, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = cache.Get(context.Background(), testKey())
		}()
	}
	wg.Wait()

	if got := fetches.Load(); got != 1 {
		t.Fatalf("upstream fetches = %d, want 1", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil || results[i] != field {
			t.Fatalf("caller %d got %p, %v", i, results[i], errs[i])
		}
	}
}

func TestDifferentKeysFetchInParallel(t *testing.T) {
	release := make(chan struct{})
	var inFlight atomic.Int32
	cache, err := New(func(ctx context.Context, key TileKey) (*core.VectorField, error) {
		inFlight.Add(1)
		<-release
		return testField(t, 0), nil
	}, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	keys := []TileKey{
		{Kind: KindCurrent, LatIndex: 1},
		{Kind: KindCurrent, LatIndex: 2},
		{Kind: KindWind, LatIndex: 1},
	}
	var wg sync.WaitGroup
	for _, k := range keys {
		k := k
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(context.Background(), k); err != nil {
				t.Errorf("Get(%s): %v", k, err)
			}
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for inFlight.Load() < int32(len(keys)) {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d fetches started concurrently", inFlight.Load(), len(keys))
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(release)
	wg.Wait()
	if cache.Len() != len(keys) {
		t.Fatalf("Len = %d, want %d", cache.Len(), len(keys))
	}
}

func TestFetchErrorPropagatesAndIsNotCached(t *testing.T) {
	upstream := errors.New("provider returned 503")
	var failing atomic.Bool
	failing.Store(true)
	field := testField(t, 0.1)
	cache, err := New(func(ctx context.Context, key TileKey) (*core.VectorField, error) {
		if failing.Load() {
			time.Sleep(20 * time.Millisecond)
			return nil, upstream
		}
		return field, nil
	}, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = cache.Get(context.Background(), testKey())
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if !errors.Is(err, core.ErrCacheFetchFailed) || !errors.Is(err, upstream) {
			t.Fatalf("caller %d error = %v, want cache fetch failure wrapping upstream", i, err)
		}
		var fe *FetchError
		if !errors.As(err, &fe) || fe.Key != testKey() {
			t.Fatalf("caller %d error is not a FetchError for the key: %v", i, err)
		}
	}
	if cache.Len() != 0 {
		t.Fatalf("failed fetch was cached")
	}

	failing.Store(false)
	got, err := cache.Get(context.Background(), testKey())
	if err != nil || got != field {
		t.Fatalf("retry after failure: %p, %v", got, err)
	}
}

func TestTTLExpiryRefetches(t *testing.T) {
	clock := timectrl.NewManualClock(epoch)
	var calls atomic.Int32
	cache, err := New(func(ctx context.Context, key TileKey) (*core.VectorField, error) {
		calls.Add(1)
		return testField(t, float64(calls.Load())), nil
	}, Config{TTL: 10 * time.Minute}, WithClock(clock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, _ := cache.Get(context.Background(), testKey())
	clock.Advance(9 * time.Minute)
	second, _ := cache.Get(context.Background(), testKey())
	if first != second || calls.Load() != 1 {
		t.Fatalf("tile refetched before TTL: calls=%d", calls.Load())
	}

	clock.Advance(time.Minute)
	third, _ := cache.Get(context.Background(), testKey())
	if third == first || calls.Load() != 2 {
		t.Fatalf("tile not refetched after TTL: calls=%d", calls.Load())
	}
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	var calls atomic.Int32
	cache, err := New(func(ctx context.Context, key TileKey) (*core.VectorField, error) {
		calls.Add(1)
		return testField(t, 0), nil
	}, Config{Capacity: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a := TileKey{Kind: KindCurrent, LatIndex: 1}
	b := TileKey{Kind: KindCurrent, LatIndex: 2}
	c := TileKey{Kind: KindCurrent, LatIndex: 3}
	ctx := context.Background()

	_, _ = cache.Get(ctx, a)
	_, _ = cache.Get(ctx, b)
	_, _ = cache.Get(ctx, a)
	_, _ = cache.Get(ctx, c) // evicts b
	_, _ = cache.Get(ctx, a)
	if calls.Load() != 3 {
		t.Fatalf("fetches = %d, want 3", calls.Load())
	}
	_, _ = cache.Get(ctx, b)
	if calls.Load() != 4 {
		t.Fatalf("evicted tile was not refetched: fetches = %d", calls.Load())
	}
}

func TestCallerCancellationDoesNotAbortSharedFetch(t *testing.T) {
	release := make(chan struct{})
	var fetchCtxErr atomic.Value
	field := testField(t, 0.3)
	cache, err := New(func(ctx context.Context, key TileKey) (*core.VectorField, error) {
		<-release
		if ctx.Err() != nil {
			fetchCtxErr.Store(ctx.Err())
		}
		return field, nil
	}, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.Get(ctx, testKey())
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller error = %v, want context.Canceled", err)
	}

	waiter := make(chan *core.VectorField, 1)
	go func() {
		f, _ := cache.Get(context.Background(), testKey())
		waiter <- f
	}()
	close(release)
	if got := <-waiter; got != field {
		t.Fatalf("second caller got %p, want shared field", got)
	}
	if v := fetchCtxErr.Load(); v != nil {
		t.Fatalf("fetch context was cancelled: %v", v)
	}
}

func TestFetchTimeout(t *testing.T) {
	cache, err := New(func(ctx context.Context, key TileKey) (*core.VectorField, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, Config{FetchTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = cache.Get(context.Background(), testKey())
	if !errors.Is(err, core.ErrCacheFetchFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want fetch failure from deadline", err)
	}
}

func TestCacheMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := observability.NewCacheCollector(reg)
	if err != nil {
		t.Fatalf("NewCacheCollector: %v", err)
	}
	cache, err := New(func(ctx context.Context, key TileKey) (*core.VectorField, error) {
		return testField(t, 0), nil
	}, Config{}, WithMetrics(collector))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, _ = cache.Get(context.Background(), testKey())
	_, _ = cache.Get(context.Background(), testKey())

	if got := testutil.ToFloat64(collector.Lookups.WithLabelValues(observability.LookupMiss)); got != 1 {
		t.Fatalf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Lookups.WithLabelValues(observability.LookupHit)); got != 1 {
		t.Fatalf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Entries); got != 1 {
		t.Fatalf("entries = %v, want 1", got)
	}
}

func TestCacheMetricsConcurrentLookups(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := observability.NewCacheCollector(reg)
	if err != nil {
		t.Fatalf("NewCacheCollector: %v", err)
	}
	release := make(chan struct{})
	field := testField(t, 0.1)
	cache, err := New(func(ctx context.Context, key TileKey) (*core.VectorField, error) {
		<-release
		return field, nil
	}, Config{}, WithMetrics(collector))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(context.Background(), testKey()); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	miss := testutil.ToFloat64(collector.Lookups.WithLabelValues(observability.LookupMiss))
	shared := testutil.ToFloat64(collector.Lookups.WithLabelValues(observability.LookupShared))
	hit := testutil.ToFloat64(collector.Lookups.WithLabelValues(observability.LookupHit))
	if miss != 1 {
		t.Fatalf("misses = %v, want 1 (shared %v, hits %v)", miss, shared, hit)
	}
	if shared+hit != callers-1 {
		t.Fatalf("shared + hits = %v, want %d", shared+hit, callers-1)
	}
}

func TestNewRequiresFetch(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Fatalf("expected error for nil fetch")
	}
}
