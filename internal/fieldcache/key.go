package fieldcache

import (
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/drift-predictor/core"
)

// Field kinds.
const (
	KindCurrent = "current"
	KindWind    = "wind"
)

// TileKey identifies one fetchable tile: a spatial bucket, a time bucket and
// the kind of field. Keys are comparable and safe to use as map keys.
type TileKey struct {
	Kind     string
	LatIndex int
	LonIndex int
	// Epoch is the Unix time of the start of the tile's time bucket.
	Epoch int64
}

func (k TileKey) String() string {
	return fmt.Sprintf("%s/%d/%d/%d", k.Kind, k.LatIndex, k.LonIndex, k.Epoch)
}

// Tiling maps positions and times to tile keys, and keys back to the region
// and time range a tile must cover.
type Tiling struct {
	// SizeDegrees is the edge length of a spatial bucket.
	// Default: 1
	SizeDegrees float64
	// MarginDegrees pads each tile beyond its bucket so drifts starting near
	// a bucket edge stay inside the tile.
	// Default: 1
	MarginDegrees float64
	// Window is the width of a time bucket.
	// Default: 6h
	Window time.Duration
	// Horizon is how far past the end of its time bucket a tile extends.
	// Default: 72h
	Horizon time.Duration
}

// DefaultTiling returns the default tiling.
func DefaultTiling() Tiling {
	return Tiling{SizeDegrees: 1, MarginDegrees: 1, Window: 6 * time.Hour, Horizon: 72 * time.Hour}
}

// ApplyDefaults fills non-positive settings with defaults.
func (t Tiling) ApplyDefaults() Tiling {
	d := DefaultTiling()
	if !(t.SizeDegrees > 0) {
		t.SizeDegrees = d.SizeDegrees
	}
	if t.MarginDegrees < 0 {
		t.MarginDegrees = d.MarginDegrees
	}
	if t.Window <= 0 {
		t.Window = d.Window
	}
	if t.Horizon <= 0 {
		t.Horizon = d.Horizon
	}
	return t
}

// KeyFor returns the key of the tile holding (lat, lon) at time at.
func (t Tiling) KeyFor(kind string, lat, lon float64, at time.Time) TileKey {
	t = t.ApplyDefaults()
	return TileKey{
		Kind:     kind,
		LatIndex: int(math.Floor(lat / t.SizeDegrees)),
		LonIndex: int(math.Floor(lon / t.SizeDegrees)),
		Epoch:    at.UTC().Truncate(t.Window).Unix(),
	}
}

// Region returns the spatial box a tile covers, margin included, clamped to
// valid coordinates.
func (t Tiling) Region(k TileKey) core.Bounds {
	t = t.ApplyDefaults()
	b := core.Bounds{
		MinLat: float64(k.LatIndex)*t.SizeDegrees - t.MarginDegrees,
		MaxLat: float64(k.LatIndex+1)*t.SizeDegrees + t.MarginDegrees,
		MinLon: float64(k.LonIndex)*t.SizeDegrees - t.MarginDegrees,
		MaxLon: float64(k.LonIndex+1)*t.SizeDegrees + t.MarginDegrees,
	}
	b.MinLat = math.Max(-90, b.MinLat)
	b.MaxLat = math.Min(90, b.MaxLat)
	b.MinLon = math.Max(-180, b.MinLon)
	b.MaxLon = math.Min(180, b.MaxLon)
	return b
}

// TimeRange returns the first and last instant a tile covers.
func (t Tiling) TimeRange(k TileKey) (start, end time.Time) {
	t = t.ApplyDefaults()
	start = time.Unix(k.Epoch, 0).UTC()
	return start, start.Add(t.Window + t.Horizon)
}
