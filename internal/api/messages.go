package api

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/drift-predictor/core"
	"github.com/signalsfoundry/drift-predictor/internal/predict"
	"github.com/signalsfoundry/drift-predictor/model"
	"github.com/signalsfoundry/drift-predictor/timectrl"
)

// Predict request fields:
//
//	object_type              string, required
//	lat, lon                 number, required
//	start_time               RFC 3339 string, required
//	duration_hours           number > 0, required
//	step_minutes             number, optional
//	report_interval_minutes  number, optional

// PredictRequestFromStruct decodes a Predict request. Errors match
// core.ErrInvalidRequest.
func PredictRequestFromStruct(in *structpb.Struct) (predict.Request, error) {
	var req predict.Request
	if in == nil {
		return req, fmt.Errorf("%w: request is required", core.ErrInvalidRequest)
	}
	f := in.GetFields()

	var err error
	if req.ObjectType, err = requiredString(f, "object_type"); err != nil {
		return req, err
	}
	if req.Start.Lat, err = requiredNumber(f, "lat"); err != nil {
		return req, err
	}
	if req.Start.Lon, err = requiredNumber(f, "lon"); err != nil {
		return req, err
	}
	raw, err := requiredString(f, "start_time")
	if err != nil {
		return req, err
	}
	if req.StartTime, err = time.Parse(time.RFC3339, raw); err != nil {
		return req, fmt.Errorf("%w: start_time: %v", core.ErrInvalidRequest, err)
	}
	hours, err := requiredNumber(f, "duration_hours")
	if err != nil {
		return req, err
	}
	if !(hours > 0) {
		return req, fmt.Errorf("%w: duration_hours must be positive", core.ErrInvalidRequest)
	}
	if hours >= timectrl.MaxHours {
		return req, fmt.Errorf("%w: duration_hours is too large", core.ErrInvalidRequest)
	}
	req.Duration = timectrl.FromHours(hours)

	if req.Step, err = optionalMinutes(f, "step_minutes"); err != nil {
		return req, err
	}
	if req.ReportInterval, err = optionalMinutes(f, "report_interval_minutes"); err != nil {
		return req, err
	}
	return req, nil
}

// PredictRequestToStruct is the client-side inverse of PredictRequestFromStruct.
func PredictRequestToStruct(req predict.Request) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"object_type":    req.ObjectType,
		"lat":            req.Start.Lat,
		"lon":            req.Start.Lon,
		"start_time":     req.StartTime.UTC().Format(time.RFC3339),
		"duration_hours": timectrl.Hours(req.Duration),
	}
	if req.Step > 0 {
		m["step_minutes"] = req.Step.Minutes()
	}
	if req.ReportInterval > 0 {
		m["report_interval_minutes"] = req.ReportInterval.Minutes()
	}
	return structpb.NewStruct(m)
}

// PredictionToStruct encodes a prediction result.
func PredictionToStruct(p *predict.Prediction) (*structpb.Struct, error) {
	traj := p.Trajectory
	diag := traj.Diagnostics()

	points := make([]interface{}, 0, traj.Len())
	for _, pt := range traj.Points() {
		points = append(points, map[string]interface{}{
			"elapsed_hours":  pt.ElapsedHours,
			"lat":            pt.Lat,
			"lon":            pt.Lon,
			"timestamp":      pt.Timestamp.UTC().Format(time.RFC3339),
			"low_confidence": pt.LowConfidence,
		})
	}

	rec := p.Recommendation
	return structpb.NewStruct(map[string]interface{}{
		"prediction_id":   p.ID,
		"object_type":     p.Profile.ID,
		"computed_at":     p.ComputedAt.UTC().Format(time.RFC3339Nano),
		"wind_applied":    p.WindApplied,
		"start_time":      traj.StartTime().UTC().Format(time.RFC3339),
		"requested_hours": traj.RequestedHours(),
		"elapsed_hours":   traj.ElapsedHours(),
		"distance_km":     traj.DistanceKm(),
		"points":          points,
		"diagnostics": map[string]interface{}{
			"truncated":           diag.Truncated,
			"truncation_reason":   diag.TruncationReason.String(),
			"total_steps":         diag.TotalSteps,
			"degraded_steps":      diag.DegradedSteps,
			"stale_steps":         diag.StaleSteps,
			"degenerate_geometry": diag.DegenerateGeometry,
		},
		"recommendation": map[string]interface{}{
			"pattern":                  rec.Pattern.String(),
			"radius_km":                rec.RadiusKm,
			"center_lat":               rec.Center.Lat,
			"center_lon":               rec.Center.Lon,
			"bearing_deg":              rec.BearingDeg,
			"rationale":                rec.Rationale,
			"survival_hours_remaining": rec.SurvivalHoursRemaining,
		},
	})
}

// ProfileToStruct encodes one object profile.
func ProfileToStruct(p model.ObjectProfile) (*structpb.Struct, error) {
	return structpb.NewStruct(profileMap(p))
}

// ProfilesToStruct encodes a profile listing as {"profiles": [...]}.
func ProfilesToStruct(profiles []model.ObjectProfile) (*structpb.Struct, error) {
	list := make([]interface{}, 0, len(profiles))
	for _, p := range profiles {
		list = append(list, profileMap(p))
	}
	return structpb.NewStruct(map[string]interface{}{"profiles": list})
}

func profileMap(p model.ObjectProfile) map[string]interface{} {
	return map[string]interface{}{
		"id":             p.ID,
		"description":    p.Description,
		"drag_factor":    p.DragFactor,
		"wind_factor":    p.WindFactor,
		"survival_hours": p.SurvivalHours,
	}
}

func requiredString(f map[string]*structpb.Value, key string) (string, error) {
	v, ok := f[key]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", core.ErrInvalidRequest, key)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok || s.StringValue == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", core.ErrInvalidRequest, key)
	}
	return s.StringValue, nil
}

func requiredNumber(f map[string]*structpb.Value, key string) (float64, error) {
	v, ok := f[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", core.ErrInvalidRequest, key)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || math.IsNaN(n.NumberValue) || math.IsInf(n.NumberValue, 0) {
		return 0, fmt.Errorf("%w: %s must be a finite number", core.ErrInvalidRequest, key)
	}
	return n.NumberValue, nil
}

// maxMinutes is the first minute count that no longer fits in a time.Duration.
const maxMinutes = float64(math.MaxInt64) / float64(time.Minute)

func optionalMinutes(f map[string]*structpb.Value, key string) (time.Duration, error) {
	if _, ok := f[key]; !ok {
		return 0, nil
	}
	m, err := requiredNumber(f, key)
	if err != nil {
		return 0, err
	}
	if m < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", core.ErrInvalidRequest, key)
	}
	if m >= maxMinutes {
		return 0, fmt.Errorf("%w: %s is too large", core.ErrInvalidRequest, key)
	}
	return time.Duration(math.Round(m * float64(time.Minute))), nil
}
