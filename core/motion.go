package core

import (
	"time"

	"github.com/signalsfoundry/drift-predictor/model"
)

// VelocityModel combines the forcing velocities acting on an object into the
// object's drift velocity.
type VelocityModel interface {
	Velocity(current, wind Vector) Vector
}

// LinearDrift is the linear superposition of current and wind forcing scaled
// by an object profile's coefficients.
type LinearDrift struct {
	DragFactor float64
	WindFactor float64
}

// NewLinearDrift builds the drift model for a profile.
func NewLinearDrift(p model.ObjectProfile) LinearDrift {
	return LinearDrift{DragFactor: p.DragFactor, WindFactor: p.WindFactor}
}

// Velocity returns drag*current + wind_factor*wind.
func (m LinearDrift) Velocity(current, wind Vector) Vector {
	return current.Scale(m.DragFactor).Add(wind.Scale(m.WindFactor))
}

// forcing samples one field and holds its last known velocity so a step over
// undefined data can dead-reckon instead of aborting.
type forcing struct {
	sampler *Sampler
	last    Vector
}

// at returns the velocity to use for a step. held reports that the sample was
// undefined and the last known velocity (zero before any defined sample) was
// reused. A nil forcing contributes zero velocity.
func (f *forcing) at(lat, lon float64, t time.Time) (vec Vector, held bool, r Reading, err error) {
	if f == nil || f.sampler == nil {
		return Vector{}, false, Reading{}, nil
	}
	r, err = f.sampler.Sample(lat, lon, t)
	if err != nil {
		return Vector{}, false, r, err
	}
	if v, ok := r.Sample.Vector(); ok {
		f.last = v
		return v, false, r, nil
	}
	return f.last, true, r, nil
}

func newForcing(field *VectorField) *forcing {
	if field == nil {
		return nil
	}
	return &forcing{sampler: NewSampler(field)}
}
