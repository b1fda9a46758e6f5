package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/drift-predictor/model"
)

// Diagnostics summarises how an integration went.
type Diagnostics struct {
	Truncated        bool
	TruncationReason model.TruncationReason

	TotalSteps int
	// DegradedSteps counts steps that dead-reckoned over undefined samples.
	DegradedSteps int
	// StaleSteps counts steps whose samples were clamped in time.
	StaleSteps int

	// DegenerateGeometry is set when the longitude divisor was clamped near a pole.
	DegenerateGeometry bool
	ClampedSteps       int
}

// DegradedRatio returns DegradedSteps / TotalSteps, or 0 when no step was taken.
func (d Diagnostics) DegradedRatio() float64 {
	if d.TotalSteps == 0 {
		return 0
	}
	return float64(d.DegradedSteps) / float64(d.TotalSteps)
}

// Trajectory is the immutable result of an integration. Accessors return copies.
type Trajectory struct {
	objectType     string
	startTime      time.Time
	requestedHours float64

	points       []model.TrajectoryPoint
	stepBearings []float64 // degrees, one per step that moved
	distanceKm   float64

	diag Diagnostics
}

// ObjectType returns the profile id the trajectory was computed for.
func (t *Trajectory) ObjectType() string { return t.objectType }

// StartTime returns the incident time.
func (t *Trajectory) StartTime() time.Time { return t.startTime }

// RequestedHours returns the requested drift duration.
func (t *Trajectory) RequestedHours() float64 { return t.requestedHours }

// Points returns the reported points in elapsed order.
func (t *Trajectory) Points() []model.TrajectoryPoint {
	return append([]model.TrajectoryPoint(nil), t.points...)
}

// Len returns the number of reported points.
func (t *Trajectory) Len() int { return len(t.points) }

// Start returns the first point (the incident position).
func (t *Trajectory) Start() model.TrajectoryPoint { return t.points[0] }

// Final returns the last point.
func (t *Trajectory) Final() model.TrajectoryPoint { return t.points[len(t.points)-1] }

// ElapsedHours returns the elapsed time of the last point.
func (t *Trajectory) ElapsedHours() float64 { return t.Final().ElapsedHours }

// DistanceKm returns the cumulative great-circle distance over all integration steps.
func (t *Trajectory) DistanceKm() float64 { return t.distanceKm }

// Diagnostics returns the integration diagnostics.
func (t *Trajectory) Diagnostics() Diagnostics { return t.diag }

// Truncated reports whether integration stopped before the requested duration.
func (t *Trajectory) Truncated() bool { return t.diag.Truncated }

// DegradedSteps returns how many steps used dead-reckoning.
func (t *Trajectory) DegradedSteps() int { return t.diag.DegradedSteps }

// StepBearings returns the heading of every integration step that moved,
// in degrees clockwise from north.
func (t *Trajectory) StepBearings() []float64 {
	return append([]float64(nil), t.stepBearings...)
}

// BearingChanges returns the signed heading change between consecutive moving
// steps, in degrees within (-180, 180].
func (t *Trajectory) BearingChanges() []float64 {
	if len(t.stepBearings) < 2 {
		return nil
	}
	out := make([]float64, 0, len(t.stepBearings)-1)
	for i := 1; i < len(t.stepBearings); i++ {
		d := math.Mod(t.stepBearings[i]-t.stepBearings[i-1], 360)
		if d > 180 {
			d -= 360
		} else if d <= -180 {
			d += 360
		}
		out = append(out, d)
	}
	return out
}

// PositionAt linearly interpolates the reported points at the given elapsed
// hours. ok is false outside [0, ElapsedHours()].
func (t *Trajectory) PositionAt(hours float64) (model.Position, bool) {
	if hours < 0 || hours > t.ElapsedHours() || math.IsNaN(hours) {
		return model.Position{}, false
	}
	for i := 1; i < len(t.points); i++ {
		a, b := t.points[i-1], t.points[i]
		if hours > b.ElapsedHours {
			continue
		}
		span := b.ElapsedHours - a.ElapsedHours
		if span == 0 {
			return b.Position(), true
		}
		f := (hours - a.ElapsedHours) / span
		return model.Position{
			Lat: a.Lat + (b.Lat-a.Lat)*f,
			Lon: a.Lon + (b.Lon-a.Lon)*f,
		}, true
	}
	return t.Start().Position(), true
}
