package fieldcache

import (
	"testing"
	"time"
)

func TestKeyForBuckets(t *testing.T) {
	tiling := DefaultTiling()
	at := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)

	a := tiling.KeyFor(KindCurrent, 52.5, 4.2, at)
	b := tiling.KeyFor(KindCurrent, 52.9, 4.9, at.Add(3*time.Hour))
	if a != b {
		t.Fatalf("same bucket produced different keys: %v vs %v", a, b)
	}
	if a.LatIndex != 52 || a.LonIndex != 4 {
		t.Fatalf("indices = %d, %d; want 52, 4", a.LatIndex, a.LonIndex)
	}
	if got := time.Unix(a.Epoch, 0).UTC(); !got.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("epoch = %v, want 12:00", got)
	}

	if w := tiling.KeyFor(KindWind, 52.5, 4.2, at); w == a {
		t.Fatalf("kind not part of the key")
	}
	if neg := tiling.KeyFor(KindCurrent, -0.5, -0.5, at); neg.LatIndex != -1 || neg.LonIndex != -1 {
		t.Fatalf("negative coordinates bucketed to %d, %d", neg.LatIndex, neg.LonIndex)
	}
}

func TestRegionAndTimeRangeCoverBucket(t *testing.T) {
	tiling := DefaultTiling()
	at := time.Date(2025, 6, 1, 17, 59, 0, 0, time.UTC)
	key := tiling.KeyFor(KindCurrent, 52.99, 4.01, at)

	region := tiling.Region(key)
	if !region.Contains(52.99, 4.01) || region.MinLat != 51 || region.MaxLat != 54 {
		t.Fatalf("region %+v does not pad the bucket", region)
	}
	start, end := tiling.TimeRange(key)
	if at.Before(start) || end.Sub(at) < tiling.Horizon {
		t.Fatalf("time range [%v, %v] does not give %v of horizon from %v", start, end, tiling.Horizon, at)
	}

	polar := tiling.Region(tiling.KeyFor(KindCurrent, 89.5, 179.5, at))
	if polar.MaxLat != 90 || polar.MaxLon != 180 {
		t.Fatalf("region not clamped: %+v", polar)
	}
}
