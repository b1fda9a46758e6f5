package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/drift-predictor/model"
	"github.com/signalsfoundry/drift-predictor/timectrl"
)

// IntegratorConfig holds the numerical settings of the drift integrator.
type IntegratorConfig struct {
	// Step is the fixed integration step.
	// Default: 15 minutes
	Step time.Duration

	// ReportInterval is the spacing of reported trajectory points,
	// independent of Step.
	// Default: 1 hour
	ReportInterval time.Duration

	// StaleTolerance is how far past the last time layer of a field
	// integration may continue on clamped data before the trajectory is
	// truncated.
	// Default: 0
	StaleTolerance time.Duration
}

// DefaultIntegratorConfig returns an IntegratorConfig with the default settings.
func DefaultIntegratorConfig() IntegratorConfig {
	return IntegratorConfig{
		Step:           15 * time.Minute,
		ReportInterval: time.Hour,
	}
}

// ApplyDefaults fills zero or negative durations with defaults.
func (c IntegratorConfig) ApplyDefaults() IntegratorConfig {
	d := DefaultIntegratorConfig()
	if c.Step <= 0 {
		c.Step = d.Step
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = d.ReportInterval
	}
	if c.StaleTolerance < 0 {
		c.StaleTolerance = 0
	}
	return c
}

// Request is the input of one integration.
type Request struct {
	Start     model.Position
	StartTime time.Time
	Duration  time.Duration
	Profile   model.ObjectProfile

	Current *VectorField
	// Wind is optional; a nil wind field contributes no forcing.
	Wind *VectorField

	// Step and ReportInterval override the integrator's configuration when positive.
	Step           time.Duration
	ReportInterval time.Duration
}

// Integrator time-steps a start position through current and wind fields
// using forward Euler. It holds only configuration and is safe for
// concurrent use.
type Integrator struct {
	cfg IntegratorConfig
}

// NewIntegrator constructs an integrator; zero config fields take defaults.
func NewIntegrator(cfg IntegratorConfig) *Integrator {
	return &Integrator{cfg: cfg.ApplyDefaults()}
}

// Config returns the effective configuration.
func (in *Integrator) Config() IntegratorConfig { return in.cfg }

// Integrate runs a drift integration with the default configuration.
func Integrate(ctx context.Context, req Request) (*Trajectory, error) {
	return NewIntegrator(IntegratorConfig{}).Integrate(ctx, req)
}

// Integrate advances req.Start through the fields for req.Duration.
//
// Invalid inputs and profiles fail before any stepping. Leaving a field's
// spatial envelope, running past its time coverage, or ctx cancellation
// (checked once per step) end the run early with a truncated trajectory
// rather than an error.
func (in *Integrator) Integrate(ctx context.Context, req Request) (*Trajectory, error) {
	if err := req.Profile.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if !ValidCoordinates(req.Start.Lat, req.Start.Lon) {
		return nil, fmt.Errorf("%w: start position (%v, %v) is not a valid coordinate", ErrInvalidRequest, req.Start.Lat, req.Start.Lon)
	}
	if req.Current == nil {
		return nil, fmt.Errorf("%w: current field is required", ErrInvalidRequest)
	}
	if req.StartTime.IsZero() {
		return nil, fmt.Errorf("%w: start time is required", ErrInvalidRequest)
	}

	step, report := in.cfg.Step, in.cfg.ReportInterval
	if req.Step > 0 {
		step = req.Step
	}
	if req.ReportInterval > 0 {
		report = req.ReportInterval
	}
	sched, err := timectrl.NewSchedule(req.StartTime, step, report, req.Duration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	current := newForcing(req.Current)
	var wind *forcing
	if req.Wind != nil && req.Profile.WindFactor > 0 {
		wind = newForcing(req.Wind)
	}
	coverageEnd := in.coverageEnd(req.Current, wind)
	drift := NewLinearDrift(req.Profile)

	traj := &Trajectory{
		objectType:     req.Profile.ID,
		startTime:      req.StartTime,
		requestedHours: timectrl.Hours(req.Duration),
		points: []model.TrajectoryPoint{{
			ElapsedHours: 0,
			Lat:          req.Start.Lat,
			Lon:          req.Start.Lon,
			Timestamp:    req.StartTime,
		}},
	}

	lat, lon := req.Start.Lat, req.Start.Lon
	elapsed := time.Duration(0)
	lowConfidence := false

	truncate := func(reason model.TruncationReason) {
		traj.diag.Truncated = true
		traj.diag.TruncationReason = reason
	}

	for !sched.Done(elapsed) {
		if ctx != nil && ctx.Err() != nil {
			truncate(model.TruncationCancelled)
			break
		}

		next, reportNow := sched.Next(elapsed)
		if sched.At(next).After(coverageEnd) {
			truncate(model.TruncationTimeCoverage)
			break
		}

		now := sched.At(elapsed)
		vc, heldCurrent, rc, err := current.at(lat, lon, now)
		if err != nil {
			truncate(model.TruncationOutOfDomain)
			break
		}
		vw, heldWind, rw, err := wind.at(lat, lon, now)
		if err != nil {
			truncate(model.TruncationOutOfDomain)
			break
		}

		vel := drift.Velocity(vc, vw)
		dLat, dLon, clamped := DisplacementDegrees(vel, (next - elapsed).Seconds(), lat)

		newLat := lat + dLat
		if newLat > 90 || newLat < -90 {
			newLat = math.Max(-90, math.Min(90, newLat))
			clamped = true
		}
		newLon := NormalizeLongitude(lon + dLon)

		if d := HaversineKm(lat, lon, newLat, newLon); d > 0 {
			traj.distanceKm += d
			traj.stepBearings = append(traj.stepBearings, InitialBearingDeg(lat, lon, newLat, newLon))
		}

		traj.diag.TotalSteps++
		if heldCurrent || heldWind {
			traj.diag.DegradedSteps++
			lowConfidence = true
		}
		if rc.Stale || rw.Stale {
			traj.diag.StaleSteps++
		}
		if clamped {
			traj.diag.DegenerateGeometry = true
			traj.diag.ClampedSteps++
		}

		lat, lon, elapsed = newLat, newLon, next

		if reportNow {
			traj.points = append(traj.points, point(sched, elapsed, lat, lon, lowConfidence))
			lowConfidence = false
		}
	}

	if traj.diag.Truncated && elapsed > 0 && timectrl.Hours(elapsed) > traj.Final().ElapsedHours {
		traj.points = append(traj.points, point(sched, elapsed, lat, lon, lowConfidence))
	}
	return traj, nil
}

// coverageEnd is the latest instant a step may end at: the earliest last
// time layer among the active fields plus the stale tolerance.
func (in *Integrator) coverageEnd(current *VectorField, wind *forcing) time.Time {
	_, end := current.TimeSpan()
	if wind != nil {
		if _, windEnd := wind.sampler.Field().TimeSpan(); windEnd.Before(end) {
			end = windEnd
		}
	}
	return end.Add(in.cfg.StaleTolerance)
}

func point(sched timectrl.Schedule, elapsed time.Duration, lat, lon float64, lowConfidence bool) model.TrajectoryPoint {
	return model.TrajectoryPoint{
		ElapsedHours:  timectrl.Hours(elapsed),
		Lat:           lat,
		Lon:           lon,
		Timestamp:     sched.At(elapsed),
		LowConfidence: lowConfidence,
	}
}
