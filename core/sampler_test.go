package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

// cornerField is a 2x2 single-layer grid:
//
//	(1,0)=5  (1,1)=7
//	(0,0)=1  (0,1)=3
func cornerField(t *testing.T, topRight Sample) *VectorField {
	t.Helper()
	axes := Axes{Lats: []float64{0, 1}, Lons: []float64{0, 1}, Times: hourly(1)}
	f, err := NewVectorField(axes, []Sample{
		Defined(1, -1), Defined(3, -3),
		Defined(5, -5), topRight,
	})
	if err != nil {
		t.Fatalf("NewVectorField: %v", err)
	}
	return f
}

func mustSample(t *testing.T, f *VectorField, lat, lon float64, ts time.Time) Reading {
	t.Helper()
	r, err := SampleField(f, lat, lon, ts)
	if err != nil {
		t.Fatalf("SampleField(%v, %v): %v", lat, lon, err)
	}
	return r
}

func TestSampleAtGridNodeIsExact(t *testing.T) {
	axes := Axes{
		Lats:  []float64{50, 50.3, 51.1},
		Lons:  []float64{3, 3.25, 4.9},
		Times: hourly(3),
	}
	f, err := GenerateField(axes, func(lat, lon float64, ts time.Time) Sample {
		return Defined(math.Sin(lat)*0.37+lon/7, math.Cos(lon)*0.11-ts.Sub(t0).Hours()/3)
	})
	if err != nil {
		t.Fatalf("GenerateField: %v", err)
	}

	for k, ts := range axes.Times {
		for i, lat := range axes.Lats {
			for j, lon := range axes.Lons {
				r := mustSample(t, f, lat, lon, ts)
				got, ok := r.Sample.Vector()
				want, _ := f.At(k, i, j).Vector()
				if !ok || got != want {
					t.Fatalf("node (%d,%d,%d): got %v, want %v exactly", k, i, j, got, want)
				}
				if r.Stale {
					t.Fatalf("node sample flagged stale")
				}
			}
		}
	}
}

func TestSampleBilinearMidpoint(t *testing.T) {
	f := cornerField(t, Defined(7, -7))
	r := mustSample(t, f, 0.5, 0.5, t0)
	got, ok := r.Sample.Vector()
	if !ok || got.U != 4 || got.V != -4 {
		t.Fatalf("midpoint = %v (defined=%v), want (4, -4)", got, ok)
	}
	if r.Method != InterpolationBilinear {
		t.Fatalf("method = %v, want bilinear", r.Method)
	}

	r = mustSample(t, f, 0, 0.25, t0)
	got, _ = r.Sample.Vector()
	if math.Abs(got.U-1.5) > 1e-12 {
		t.Fatalf("edge sample = %v, want 1.5", got.U)
	}
}

func TestSampleFallsBackToInverseDistance(t *testing.T) {
	f := cornerField(t, Undefined())
	r := mustSample(t, f, 0.5, 0.5, t0)
	got, ok := r.Sample.Vector()
	if !ok {
		t.Fatalf("expected IDW over the three defined corners")
	}
	if r.Method != InterpolationInverseDistance {
		t.Fatalf("method = %v, want inverse_distance", r.Method)
	}
	// The cell centre is (almost) equidistant from all corners; the result
	// must stay within the range of the defined corner values.
	if got.U < 1 || got.U > 5 {
		t.Fatalf("IDW value %v outside defined corner range", got.U)
	}

	// Closer to the (0,0) corner, IDW weights it most.
	near := mustSample(t, f, 0.1, 0.1, t0)
	nv, _ := near.Sample.Vector()
	if nv.U >= got.U {
		t.Fatalf("IDW near (0,0) = %v, want below centre value %v", nv.U, got.U)
	}
}

func TestSampleDefinedNodeBesideLandStaysExact(t *testing.T) {
	f := cornerField(t, Undefined())
	r := mustSample(t, f, 0, 0, t0)
	got, ok := r.Sample.Vector()
	if !ok || got.U != 1 || got.V != -1 {
		t.Fatalf("node beside land = %v, want (1, -1)", got)
	}
	if r.Method != InterpolationBilinear {
		t.Fatalf("method = %v, want bilinear (zero-weight corners ignored)", r.Method)
	}
}

func TestSampleAllCornersUndefined(t *testing.T) {
	axes := Axes{Lats: []float64{0, 1}, Lons: []float64{0, 1}, Times: hourly(1)}
	f, err := NewVectorField(axes, []Sample{Undefined(), Undefined(), Undefined(), Undefined()})
	if err != nil {
		t.Fatalf("NewVectorField: %v", err)
	}
	r := mustSample(t, f, 0.3, 0.6, t0)
	if r.Sample.IsDefined() {
		t.Fatalf("expected undefined sample over land, got %v", r.Sample)
	}
}

func TestSampleOutOfDomain(t *testing.T) {
	f := cornerField(t, Defined(7, -7))
	for _, pos := range [][2]float64{{-0.1, 0.5}, {1.1, 0.5}, {0.5, -0.1}, {0.5, 1.1}, {math.NaN(), 0.5}} {
		if _, err := SampleField(f, pos[0], pos[1], t0); !errors.Is(err, ErrOutOfDomain) {
			t.Fatalf("SampleField(%v) error = %v, want ErrOutOfDomain", pos, err)
		}
	}
}

func TestSampleTemporalInterpolation(t *testing.T) {
	axes := Axes{Lats: []float64{0, 1}, Lons: []float64{0, 1}, Times: []time.Time{t0, t0.Add(2 * time.Hour)}}
	f, err := GenerateField(axes, func(_, _ float64, ts time.Time) Sample {
		if ts.Equal(t0) {
			return Defined(1, 0)
		}
		return Defined(3, 0)
	})
	if err != nil {
		t.Fatalf("GenerateField: %v", err)
	}

	r := mustSample(t, f, 0.5, 0.5, t0.Add(30*time.Minute))
	got, _ := r.Sample.Vector()
	if got.U != 1.5 {
		t.Fatalf("temporal interpolation = %v, want 1.5", got.U)
	}
	if r.Stale {
		t.Fatalf("in-range sample flagged stale")
	}
}

func TestSampleClampsOutsideTimeSpan(t *testing.T) {
	axes := Axes{Lats: []float64{0, 1}, Lons: []float64{0, 1}, Times: []time.Time{t0, t0.Add(2 * time.Hour)}}
	f, err := GenerateField(axes, func(_, _ float64, ts time.Time) Sample {
		if ts.Equal(t0) {
			return Defined(1, 0)
		}
		return Defined(3, 0)
	})
	if err != nil {
		t.Fatalf("GenerateField: %v", err)
	}

	before := mustSample(t, f, 0.5, 0.5, t0.Add(-time.Hour))
	if v, _ := before.Sample.Vector(); v.U != 1 || !before.Stale || before.Staleness != time.Hour {
		t.Fatalf("before span: %+v", before)
	}
	after := mustSample(t, f, 0.5, 0.5, t0.Add(5*time.Hour))
	if v, _ := after.Sample.Vector(); v.U != 3 || !after.Stale || after.Staleness != 3*time.Hour {
		t.Fatalf("after span: %+v", after)
	}
}

func TestSampleUsesDefinedLayerWhenOtherUndefined(t *testing.T) {
	axes := Axes{Lats: []float64{0, 1}, Lons: []float64{0, 1}, Times: hourly(2)}
	f, err := GenerateField(axes, func(_, _ float64, ts time.Time) Sample {
		if ts.Equal(t0) {
			return Defined(2, 1)
		}
		return Undefined()
	})
	if err != nil {
		t.Fatalf("GenerateField: %v", err)
	}
	r := mustSample(t, f, 0.5, 0.5, t0.Add(20*time.Minute))
	got, ok := r.Sample.Vector()
	if !ok || got.U != 2 || got.V != 1 || !r.Partial {
		t.Fatalf("partial layer sample = %+v", r)
	}
}

func TestSamplerIsDeterministicUnderConcurrency(t *testing.T) {
	f := cornerField(t, Undefined())
	s := NewSampler(f)
	want, err := s.Sample(0.37, 0.61, t0)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}

	done := make(chan Reading, 16)
	for i := 0; i < cap(done); i++ {
		go func() {
			r, _ := s.Sample(0.37, 0.61, t0)
			done <- r
		}()
	}
	for i := 0; i < cap(done); i++ {
		if got := <-done; got != want {
			t.Fatalf("concurrent sample = %+v, want %+v", got, want)
		}
	}
}
