package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Lookup results used as the result label of fieldcache_lookups_total.
const (
	LookupHit    = "hit"
	LookupMiss   = "miss"
	LookupShared = "shared"
)

// CacheCollector exposes field cache metrics.
type CacheCollector struct {
	gatherer prometheus.Gatherer

	Lookups       *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	FetchErrors   prometheus.Counter
	Entries       prometheus.Gauge
}

// NewCacheCollector registers field cache metrics against the provided registerer.
func NewCacheCollector(reg prometheus.Registerer) (*CacheCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	lookups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldcache_lookups_total",
		Help: "Field cache lookups by result: hit, miss (this caller fetched) or shared (joined an in-flight fetch).",
	}, []string{"result"}), "fieldcache_lookups_total")
	if err != nil {
		return nil, err
	}

	fetchHistogram, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fieldcache_fetch_duration_seconds",
		Help:    "Duration of upstream tile fetches performed by the field cache.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}), "fieldcache_fetch_duration_seconds")
	if err != nil {
		return nil, err
	}

	fetchErrors, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldcache_fetch_errors_total",
		Help: "Upstream tile fetches that failed.",
	}), "fieldcache_fetch_errors_total")
	if err != nil {
		return nil, err
	}

	entries, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fieldcache_entries",
		Help: "Number of tiles currently held by the field cache.",
	}), "fieldcache_entries")
	if err != nil {
		return nil, err
	}

	return &CacheCollector{
		gatherer:      gatherer,
		Lookups:       lookups,
		FetchDuration: fetchHistogram,
		FetchErrors:   fetchErrors,
		Entries:       entries,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *CacheCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveLookup counts one lookup with the given result.
func (c *CacheCollector) ObserveLookup(result string) {
	if c == nil || c.Lookups == nil {
		return
	}
	c.Lookups.WithLabelValues(result).Inc()
}

// ObserveFetch records an upstream fetch duration and, when err is non-nil, a failure.
func (c *CacheCollector) ObserveFetch(d time.Duration, err error) {
	if c == nil {
		return
	}
	if c.FetchDuration != nil {
		c.FetchDuration.Observe(d.Seconds())
	}
	if err != nil && c.FetchErrors != nil {
		c.FetchErrors.Inc()
	}
}

// SetEntries updates the resident tile gauge.
func (c *CacheCollector) SetEntries(n int) {
	if c == nil || c.Entries == nil {
		return
	}
	c.Entries.Set(float64(n))
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
