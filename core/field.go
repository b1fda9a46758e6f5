package core

import (
	"fmt"
	"math"
	"time"
)

// Sample is a single grid value: either a defined velocity or the explicit
// undefined marker used for land and missing-data cells. The velocity can only
// be read through Vector, which forces callers to handle the undefined case.
type Sample struct {
	vec     Vector
	defined bool
}

// Defined returns a sample holding the velocity (u, v) in m/s.
func Defined(u, v float64) Sample {
	return Sample{vec: Vector{U: u, V: v}, defined: true}
}

// Undefined returns the land/no-data marker.
func Undefined() Sample { return Sample{} }

// Vector returns the velocity and whether the sample is defined.
func (s Sample) Vector() (Vector, bool) {
	return s.vec, s.defined
}

// IsDefined reports whether the sample holds a velocity.
func (s Sample) IsDefined() bool { return s.defined }

func (s Sample) String() string {
	if !s.defined {
		return "undefined"
	}
	return fmt.Sprintf("(%g, %g)", s.vec.U, s.vec.V)
}

// Axes are the coordinate axes of a gridded field. Each axis must be strictly
// increasing; spacing may be non-uniform.
type Axes struct {
	Lats  []float64
	Lons  []float64
	Times []time.Time
}

// VectorField is an immutable gridded velocity field indexed by
// (time, latitude, longitude).
type VectorField struct {
	lats    []float64
	lons    []float64
	times   []time.Time
	offsets []float64 // seconds since times[0]
	cells   []Sample
}

// NewVectorField validates the axes and builds a field from samples laid out
// time-major, then latitude, then longitude:
// samples[(t*len(Lats)+i)*len(Lons)+j]. The inputs are copied.
func NewVectorField(axes Axes, samples []Sample) (*VectorField, error) {
	if err := validateAxes(axes); err != nil {
		return nil, err
	}
	want := len(axes.Times) * len(axes.Lats) * len(axes.Lons)
	if len(samples) != want {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrInvalidField, len(samples), want)
	}
	for idx, s := range samples {
		if !s.defined {
			continue
		}
		if math.IsNaN(s.vec.U) || math.IsNaN(s.vec.V) || math.IsInf(s.vec.U, 0) || math.IsInf(s.vec.V, 0) {
			return nil, fmt.Errorf("%w: sample %d is not finite; use Undefined()", ErrInvalidField, idx)
		}
	}

	f := &VectorField{
		lats:    append([]float64(nil), axes.Lats...),
		lons:    append([]float64(nil), axes.Lons...),
		times:   append([]time.Time(nil), axes.Times...),
		offsets: make([]float64, len(axes.Times)),
		cells:   append([]Sample(nil), samples...),
	}
	for k, t := range f.times {
		f.offsets[k] = t.Sub(f.times[0]).Seconds()
	}
	return f, nil
}

// GenerateField builds a field by evaluating fn at every grid node.
func GenerateField(axes Axes, fn func(lat, lon float64, t time.Time) Sample) (*VectorField, error) {
	if err := validateAxes(axes); err != nil {
		return nil, err
	}
	samples := make([]Sample, 0, len(axes.Times)*len(axes.Lats)*len(axes.Lons))
	for _, t := range axes.Times {
		for _, lat := range axes.Lats {
			for _, lon := range axes.Lons {
				samples = append(samples, fn(lat, lon, t))
			}
		}
	}
	return NewVectorField(axes, samples)
}

// UniformField returns a field with the same velocity at every node.
func UniformField(axes Axes, u, v float64) (*VectorField, error) {
	return GenerateField(axes, func(float64, float64, time.Time) Sample {
		return Defined(u, v)
	})
}

func validateAxes(axes Axes) error {
	if len(axes.Lats) == 0 || len(axes.Lons) == 0 || len(axes.Times) == 0 {
		return fmt.Errorf("%w: every axis needs at least one value", ErrInvalidField)
	}
	if err := strictlyIncreasing("latitude", axes.Lats); err != nil {
		return err
	}
	if err := strictlyIncreasing("longitude", axes.Lons); err != nil {
		return err
	}
	if axes.Lats[0] < -90 || axes.Lats[len(axes.Lats)-1] > 90 {
		return fmt.Errorf("%w: latitude axis outside [-90, 90]", ErrInvalidField)
	}
	if axes.Lons[0] < -180 || axes.Lons[len(axes.Lons)-1] > 180 {
		return fmt.Errorf("%w: longitude axis outside [-180, 180]", ErrInvalidField)
	}
	for k := 1; k < len(axes.Times); k++ {
		if !axes.Times[k].After(axes.Times[k-1]) {
			return fmt.Errorf("%w: time axis not strictly increasing at index %d", ErrInvalidField, k)
		}
	}
	return nil
}

func strictlyIncreasing(name string, axis []float64) error {
	for k, x := range axis {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: %s axis value %d is not finite", ErrInvalidField, name, k)
		}
		if k > 0 && !(x > axis[k-1]) {
			return fmt.Errorf("%w: %s axis not strictly increasing at index %d", ErrInvalidField, name, k)
		}
	}
	return nil
}

// At returns the stored sample at the given indices.
func (f *VectorField) At(timeIdx, latIdx, lonIdx int) Sample {
	return f.cells[(timeIdx*len(f.lats)+latIdx)*len(f.lons)+lonIdx]
}

// Axes returns a copy of the field's axes.
func (f *VectorField) Axes() Axes {
	return Axes{
		Lats:  append([]float64(nil), f.lats...),
		Lons:  append([]float64(nil), f.lons...),
		Times: append([]time.Time(nil), f.times...),
	}
}

// Bounds returns the spatial envelope of the field.
func (f *VectorField) Bounds() Bounds {
	return Bounds{
		MinLat: f.lats[0],
		MaxLat: f.lats[len(f.lats)-1],
		MinLon: f.lons[0],
		MaxLon: f.lons[len(f.lons)-1],
	}
}

// Contains reports whether (lat, lon) lies inside the spatial envelope.
func (f *VectorField) Contains(lat, lon float64) bool {
	return f.Bounds().Contains(lat, lon)
}

// TimeSpan returns the first and last time layers.
func (f *VectorField) TimeSpan() (start, end time.Time) {
	return f.times[0], f.times[len(f.times)-1]
}

// Dims returns the number of time, latitude and longitude nodes.
func (f *VectorField) Dims() (nTimes, nLats, nLons int) {
	return len(f.times), len(f.lats), len(f.lons)
}

// UndefinedFraction returns the share of grid cells marked undefined.
func (f *VectorField) UndefinedFraction() float64 {
	if len(f.cells) == 0 {
		return 0
	}
	n := 0
	for _, s := range f.cells {
		if !s.defined {
			n++
		}
	}
	return float64(n) / float64(len(f.cells))
}
