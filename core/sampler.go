package core

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Interpolation identifies how a reading was produced.
type Interpolation int

const (
	InterpolationNone Interpolation = iota
	InterpolationBilinear
	// InterpolationInverseDistance is the fallback used when some enclosing
	// grid corners are undefined.
	InterpolationInverseDistance
)

func (m Interpolation) String() string {
	switch m {
	case InterpolationBilinear:
		return "bilinear"
	case InterpolationInverseDistance:
		return "inverse_distance"
	default:
		return "none"
	}
}

// Reading is the result of sampling a field at a point in space and time.
type Reading struct {
	Sample Sample
	Method Interpolation

	// Stale is set when the query time fell outside the field's time layers
	// and was clamped to the nearest layer. Staleness is the clamp distance.
	Stale     bool
	Staleness time.Duration

	// Partial is set when one of the two bracketing time layers was
	// undefined at this position and only the other layer was used.
	Partial bool
}

// Sampler performs spatio-temporal interpolation over a VectorField.
// It holds no mutable state and is safe for concurrent use.
type Sampler struct {
	field *VectorField
}

// NewSampler wraps a field for sampling.
func NewSampler(field *VectorField) *Sampler {
	return &Sampler{field: field}
}

// Field returns the underlying field.
func (s *Sampler) Field() *VectorField { return s.field }

// Sample returns the interpolated velocity at (lat, lon, t). Positions outside
// the spatial envelope fail with ErrOutOfDomain; land/no-data resolves to an
// undefined Sample, never to zero velocity.
func (s *Sampler) Sample(lat, lon float64, t time.Time) (Reading, error) {
	return SampleField(s.field, lat, lon, t)
}

// SampleField is the functional form of Sampler.Sample.
func SampleField(f *VectorField, lat, lon float64, t time.Time) (Reading, error) {
	if f == nil {
		return Reading{}, fmt.Errorf("%w: nil field", ErrInvalidField)
	}
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return Reading{}, fmt.Errorf("%w: non-finite position", ErrOutOfDomain)
	}
	latB, ok := locate(f.lats, lat)
	if !ok {
		return Reading{}, fmt.Errorf("%w: latitude %.6f outside [%.6f, %.6f]", ErrOutOfDomain, lat, f.lats[0], f.lats[len(f.lats)-1])
	}
	lonB, ok := locate(f.lons, lon)
	if !ok {
		return Reading{}, fmt.Errorf("%w: longitude %.6f outside [%.6f, %.6f]", ErrOutOfDomain, lon, f.lons[0], f.lons[len(f.lons)-1])
	}

	var r Reading
	timeB, staleness := f.locateTime(t)
	if staleness > 0 {
		r.Stale = true
		r.Staleness = staleness
	}

	lower, lowerMethod := f.spatial(timeB.lo, latB, lonB, lat, lon)
	if timeB.lo == timeB.hi || timeB.frac == 0 {
		r.Sample, r.Method = lower, lowerMethod
		return r, nil
	}

	upper, upperMethod := f.spatial(timeB.hi, latB, lonB, lat, lon)
	r.Method = lowerMethod
	if upperMethod > r.Method {
		r.Method = upperMethod
	}

	a, aok := lower.Vector()
	b, bok := upper.Vector()
	switch {
	case aok && bok:
		w := timeB.frac
		r.Sample = Defined(a.U*(1-w)+b.U*w, a.V*(1-w)+b.V*w)
	case aok:
		r.Sample, r.Partial, r.Method = lower, true, lowerMethod
	case bok:
		r.Sample, r.Partial, r.Method = upper, true, upperMethod
	default:
		r.Sample, r.Method = Undefined(), InterpolationNone
	}
	return r, nil
}

type bracket struct {
	lo, hi int
	frac   float64
}

// locate finds the grid interval enclosing x. Exact node hits collapse to a
// single index so that node values are returned without interpolation error.
func locate(axis []float64, x float64) (bracket, bool) {
	n := len(axis)
	if x < axis[0] || x > axis[n-1] {
		return bracket{}, false
	}
	idx := sort.SearchFloat64s(axis, x)
	if axis[idx] == x {
		return bracket{lo: idx, hi: idx}, true
	}
	lo := idx - 1
	return bracket{lo: lo, hi: idx, frac: (x - axis[lo]) / (axis[idx] - axis[lo])}, true
}

// locateTime brackets t between time layers, clamping outside the covered span.
func (f *VectorField) locateTime(t time.Time) (bracket, time.Duration) {
	last := len(f.times) - 1
	if t.Before(f.times[0]) {
		return bracket{lo: 0, hi: 0}, f.times[0].Sub(t)
	}
	if t.After(f.times[last]) {
		return bracket{lo: last, hi: last}, t.Sub(f.times[last])
	}
	b, _ := locate(f.offsets, t.Sub(f.times[0]).Seconds())
	return b, 0
}

type corner struct {
	i, j int
	w    float64
}

// spatial interpolates one time layer. Bilinear weights are used when every
// contributing corner is defined; otherwise inverse-distance weighting over
// the defined corners of the enclosing cell.
func (f *VectorField) spatial(k int, latB, lonB bracket, lat, lon float64) (Sample, Interpolation) {
	corners := [4]corner{
		{latB.lo, lonB.lo, (1 - latB.frac) * (1 - lonB.frac)},
		{latB.lo, lonB.hi, (1 - latB.frac) * lonB.frac},
		{latB.hi, lonB.lo, latB.frac * (1 - lonB.frac)},
		{latB.hi, lonB.hi, latB.frac * lonB.frac},
	}

	var u, v float64
	complete := true
	for _, c := range corners {
		if c.w == 0 {
			continue
		}
		vec, ok := f.At(k, c.i, c.j).Vector()
		if !ok {
			complete = false
			break
		}
		u += vec.U * c.w
		v += vec.V * c.w
	}
	if complete {
		return Defined(u, v), InterpolationBilinear
	}
	return f.inverseDistance(k, corners, lat, lon)
}

func (f *VectorField) inverseDistance(k int, corners [4]corner, lat, lon float64) (Sample, Interpolation) {
	cosLat := math.Cos(degToRad(lat))
	var u, v, wsum float64
	for n, c := range corners {
		if duplicateCorner(corners[:n], c) {
			continue
		}
		vec, ok := f.At(k, c.i, c.j).Vector()
		if !ok {
			continue
		}
		dy := (lat - f.lats[c.i]) * MetersPerDegreeLat
		dx := (lon - f.lons[c.j]) * MetersPerDegreeLat * cosLat
		d2 := dx*dx + dy*dy
		if d2 == 0 {
			return Defined(vec.U, vec.V), InterpolationInverseDistance
		}
		w := 1 / d2
		u += vec.U * w
		v += vec.V * w
		wsum += w
	}
	if wsum == 0 {
		return Undefined(), InterpolationNone
	}
	return Defined(u/wsum, v/wsum), InterpolationInverseDistance
}

func duplicateCorner(seen []corner, c corner) bool {
	for _, s := range seen {
		if s.i == c.i && s.j == c.j {
			return true
		}
	}
	return false
}
