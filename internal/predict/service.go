// Package predict runs drift predictions end to end: profile lookup, tile
// retrieval through the field cache, integration and search pattern
// recommendation.
package predict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/drift-predictor/core"
	"github.com/signalsfoundry/drift-predictor/internal/fieldcache"
	"github.com/signalsfoundry/drift-predictor/internal/logging"
	"github.com/signalsfoundry/drift-predictor/internal/observability"
	"github.com/signalsfoundry/drift-predictor/kb"
	"github.com/signalsfoundry/drift-predictor/model"
	"github.com/signalsfoundry/drift-predictor/timectrl"
)

// ProfileLookup resolves object types. *kb.Registry satisfies it.
type ProfileLookup interface {
	Lookup(id string) (model.ObjectProfile, error)
}

// TileGetter returns the field tile for a key. *fieldcache.Cache satisfies it.
type TileGetter interface {
	Get(ctx context.Context, key fieldcache.TileKey) (*core.VectorField, error)
}

// Recorder receives one observation per prediction. *observability.DriftCollector
// satisfies it.
type Recorder interface {
	ObservePrediction(observability.PredictionObservation)
}

// Request is one prediction request.
type Request struct {
	ObjectType string
	Start      model.Position
	StartTime  time.Time
	Duration   time.Duration

	// Step and ReportInterval override the service defaults when positive.
	Step           time.Duration
	ReportInterval time.Duration
}

// Prediction is the result of a successful Predict.
type Prediction struct {
	ID             string
	Request        Request
	Profile        model.ObjectProfile
	Trajectory     *core.Trajectory
	Recommendation model.Recommendation
	// WindApplied is false when the profile ignores wind or no wind tile was
	// available.
	WindApplied bool
	ComputedAt  time.Time
}

// Config holds service settings.
type Config struct {
	Integrator core.IntegratorConfig
	Thresholds core.RecommenderThresholds
	Tiling     fieldcache.Tiling
	// RequireWind fails predictions whose wind tile cannot be fetched
	// instead of continuing on current alone.
	RequireWind bool
	// MaxDuration rejects longer requests. Zero means no limit.
	MaxDuration time.Duration
}

// DefaultConfig returns the default service settings.
func DefaultConfig() Config {
	return Config{
		Integrator:  core.DefaultIntegratorConfig(),
		Thresholds:  core.DefaultRecommenderThresholds(),
		Tiling:      fieldcache.DefaultTiling(),
		MaxDuration: 240 * time.Hour,
	}
}

// Option customises a Service.
type Option func(*Service)

// WithRecorder attaches prediction metrics.
func WithRecorder(r Recorder) Option { return func(s *Service) { s.metrics = r } }

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l logging.Logger) Option { return func(s *Service) { s.log = l } }

// WithClock sets the clock used to stamp predictions.
func WithClock(c timectrl.Clock) Option { return func(s *Service) { s.clock = c } }

// Service is safe for concurrent use.
type Service struct {
	cfg         Config
	profiles    ProfileLookup
	tiles       TileGetter
	integrator  *core.Integrator
	recommender *core.Recommender

	metrics Recorder
	log     logging.Logger
	clock   timectrl.Clock
}

// NewService wires a prediction service.
func NewService(profiles ProfileLookup, tiles TileGetter, cfg Config, opts ...Option) *Service {
	cfg.Tiling = cfg.Tiling.ApplyDefaults()
	s := &Service{
		cfg:         cfg,
		profiles:    profiles,
		tiles:       tiles,
		integrator:  core.NewIntegrator(cfg.Integrator),
		recommender: core.NewRecommender(cfg.Thresholds),
		log:         logging.Noop(),
		clock:       timectrl.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Profiles returns the profile lookup backing the service.
func (s *Service) Profiles() ProfileLookup { return s.profiles }

// Predict computes a trajectory and search recommendation. Errors match
// core.ErrInvalidProfile, core.ErrInvalidRequest or core.ErrCacheFetchFailed;
// truncation is not an error.
func (s *Service) Predict(ctx context.Context, req Request) (pred *Prediction, err error) {
	log := logging.FromContextOr(ctx, s.log).With(logging.String("object_type", req.ObjectType))
	ctx, span := observability.StartSpan(ctx, "predict",
		attribute.String("drift.object_type", req.ObjectType),
		attribute.Float64("drift.duration_hours", req.Duration.Hours()),
	)
	start := time.Now()
	defer func() {
		observability.EndSpan(span, err)
		if err != nil {
			s.record(observability.PredictionObservation{ObjectType: req.ObjectType, Outcome: observability.OutcomeError})
			log.Warn(ctx, "prediction failed", logging.Err(err))
		}
	}()

	profile, err := s.profiles.Lookup(req.ObjectType)
	if err != nil {
		if errors.Is(err, kb.ErrProfileNotFound) {
			return nil, fmt.Errorf("%w: %w", core.ErrInvalidProfile, err)
		}
		return nil, err
	}
	if s.cfg.MaxDuration > 0 && req.Duration > s.cfg.MaxDuration {
		return nil, fmt.Errorf("%w: duration %s exceeds limit %s", core.ErrInvalidRequest, req.Duration, s.cfg.MaxDuration)
	}
	if !core.ValidCoordinates(req.Start.Lat, req.Start.Lon) {
		return nil, fmt.Errorf("%w: start position (%v, %v) is not a valid coordinate", core.ErrInvalidRequest, req.Start.Lat, req.Start.Lon)
	}

	current, err := s.tiles.Get(ctx, s.cfg.Tiling.KeyFor(fieldcache.KindCurrent, req.Start.Lat, req.Start.Lon, req.StartTime))
	if err != nil {
		return nil, err
	}
	var wind *core.VectorField
	if profile.WindFactor > 0 {
		wind, err = s.tiles.Get(ctx, s.cfg.Tiling.KeyFor(fieldcache.KindWind, req.Start.Lat, req.Start.Lon, req.StartTime))
		if err != nil {
			if s.cfg.RequireWind || ctx.Err() != nil {
				return nil, err
			}
			log.Warn(ctx, "wind tile unavailable; predicting on current only", logging.Err(err))
			wind, err = nil, nil
		}
	}

	ictx, ispan := observability.StartSpan(ctx, "integrate")
	traj, err := s.integrator.Integrate(ictx, core.Request{
		Start:          req.Start,
		StartTime:      req.StartTime,
		Duration:       req.Duration,
		Profile:        profile,
		Current:        current,
		Wind:           wind,
		Step:           req.Step,
		ReportInterval: req.ReportInterval,
	})
	observability.EndSpan(ispan, err)
	if err != nil {
		return nil, err
	}

	rec := s.recommender.Recommend(traj)
	if profile.SurvivalHours > 0 {
		rec.SurvivalHoursRemaining = profile.SurvivalHours - traj.ElapsedHours()
	}

	pred = &Prediction{
		ID:             uuid.NewString(),
		Request:        req,
		Profile:        profile,
		Trajectory:     traj,
		Recommendation: rec,
		WindApplied:    wind != nil,
		ComputedAt:     s.clock.Now(),
	}

	diag := traj.Diagnostics()
	obs := observability.PredictionObservation{
		ObjectType:    profile.ID,
		Outcome:       observability.OutcomeOK,
		Duration:      time.Since(start),
		DegradedSteps: diag.DegradedSteps,
		Pattern:       rec.Pattern.String(),
	}
	if diag.Truncated {
		obs.Outcome = observability.OutcomeTruncated
		obs.TruncationReason = diag.TruncationReason.String()
		log.Warn(ctx, "trajectory truncated",
			logging.String("reason", diag.TruncationReason.String()),
			logging.Float64("elapsed_hours", traj.ElapsedHours()),
			logging.Float64("requested_hours", traj.RequestedHours()))
	}
	s.record(obs)

	span.SetAttributes(
		attribute.String("drift.prediction_id", pred.ID),
		attribute.String("drift.pattern", rec.Pattern.String()),
		attribute.Int("drift.degraded_steps", diag.DegradedSteps),
	)
	log.Info(ctx, "prediction complete",
		logging.String("prediction_id", pred.ID),
		logging.String("pattern", rec.Pattern.String()),
		logging.Float64("radius_km", rec.RadiusKm),
		logging.Float64("distance_km", traj.DistanceKm()),
		logging.Int("degraded_steps", diag.DegradedSteps),
		logging.Bool("wind_applied", pred.WindApplied),
		logging.Duration("elapsed", time.Since(start)))
	return pred, nil
}

func (s *Service) record(o observability.PredictionObservation) {
	if s.metrics != nil {
		s.metrics.ObservePrediction(o)
	}
}
