package tiles

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/signalsfoundry/drift-predictor/core"
	"github.com/signalsfoundry/drift-predictor/internal/fieldcache"
)

// ErrTileNotFound is returned when upstream holds no data for a tile.
var ErrTileNotFound = fmt.Errorf("tile not found: %w", fs.ErrNotExist)

// Source fetches one tile from upstream.
type Source interface {
	Fetch(ctx context.Context, key fieldcache.TileKey) (*core.VectorField, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, key fieldcache.TileKey) (*core.VectorField, error)

func (f SourceFunc) Fetch(ctx context.Context, key fieldcache.TileKey) (*core.VectorField, error) {
	return f(ctx, key)
}

// FetchFunc adapts a Source to the cache's fetch signature.
func FetchFunc(src Source) fieldcache.FetchFunc {
	return src.Fetch
}

// ObjectName is the relative path of a tile inside a store:
// <kind>/<lat>_<lon>_<epoch>.json.
func ObjectName(key fieldcache.TileKey) string {
	return fmt.Sprintf("%s/%d_%d_%d.json", key.Kind, key.LatIndex, key.LonIndex, key.Epoch)
}

// DirSource reads tiles from a directory tree laid out by ObjectName. When a
// tile file is missing, <root>/<kind>.json is used as a whole-domain field
// if present.
type DirSource struct {
	Root string
}

func (d DirSource) Fetch(ctx context.Context, key fieldcache.TileKey) (*core.VectorField, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(d.Root, filepath.FromSlash(ObjectName(key))))
	if errors.Is(err, fs.ErrNotExist) {
		data, err = os.ReadFile(filepath.Join(d.Root, key.Kind+".json"))
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s under %s", ErrTileNotFound, key, d.Root)
	}
	if err != nil {
		return nil, fmt.Errorf("read tile %s: %w", key, err)
	}
	f, _, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", key, err)
	}
	return f, nil
}

// RateLimited throttles calls to an upstream source.
type RateLimited struct {
	src     Source
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond fetches with the given burst.
func NewRateLimited(src Source, perSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{src: src, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *RateLimited) Fetch(ctx context.Context, key fieldcache.TileKey) (*core.VectorField, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.src.Fetch(ctx, key)
}

// Synthetic generates uniform tiles covering exactly the region and time
// range the tiling assigns to each key. Kinds without a velocity produce
// ErrTileNotFound.
type Synthetic struct {
	Tiling fieldcache.Tiling
	// Velocity per kind, in m/s.
	Velocity map[string]core.Vector
	// GridDegrees is the node spacing.
	// Default: 0.25
	GridDegrees float64
	// LayerInterval is the time layer spacing.
	// Default: 1h
	LayerInterval time.Duration
}

func (s Synthetic) Fetch(ctx context.Context, key fieldcache.TileKey) (*core.VectorField, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vel, ok := s.Velocity[key.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: no synthetic %s field", ErrTileNotFound, key.Kind)
	}
	step := s.GridDegrees
	if !(step > 0) {
		step = 0.25
	}
	interval := s.LayerInterval
	if interval <= 0 {
		interval = time.Hour
	}

	region := s.Tiling.Region(key)
	start, end := s.Tiling.TimeRange(key)
	axes := core.Axes{
		Lats:  spaced(region.MinLat, region.MaxLat, step),
		Lons:  spaced(region.MinLon, region.MaxLon, step),
		Times: layers(start, end, interval),
	}
	return core.UniformField(axes, vel.U, vel.V)
}

// spaced returns lo, lo+step, ... ending exactly at hi.
func spaced(lo, hi, step float64) []float64 {
	n := int(math.Ceil((hi - lo) / step))
	out := make([]float64, 0, n+1)
	for i := 0; i < n; i++ {
		x := lo + float64(i)*step
		if hi-x < step*1e-6 {
			break
		}
		out = append(out, x)
	}
	return append(out, hi)
}

func layers(start, end time.Time, interval time.Duration) []time.Time {
	var out []time.Time
	for t := start; end.Sub(t) > 0; t = t.Add(interval) {
		out = append(out, t)
	}
	return append(out, end)
}
