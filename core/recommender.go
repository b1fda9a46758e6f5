package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/drift-predictor/model"
)

// RecommenderThresholds are the decision thresholds of the search pattern policy.
type RecommenderThresholds struct {
	// DegradedRatio above which data gaps dominate and ExpandingSquare is used.
	// Default: 0.3
	DegradedRatio float64
	// MinDegradedRadiusKm is the floor of the ExpandingSquare radius under degraded data.
	// Default: 2
	MinDegradedRadiusKm float64
	// DegradedRadiusFactor scales cumulative distance under degraded data.
	// Default: 0.5
	DegradedRadiusFactor float64

	// LinearVariance is the circular variance (rad²) below which drift counts as linear.
	// Default: 0.1
	LinearVariance float64
	// LinearMinDistanceKm is the minimum distance for the linear-drift rule.
	// Default: 5
	LinearMinDistanceKm float64
	// SweepRadiusFactor scales cumulative distance into the ParallelSweep half-width.
	// Default: 0.25
	SweepRadiusFactor float64
	// ParallelTrackMinKm switches linear drifts longer than this to
	// ParallelTrack. Zero disables the rule.
	// Default: 0
	ParallelTrackMinKm float64

	// SectorMaxHours is the elapsed time below which SectorSearch is used.
	// Default: 1
	SectorMaxHours float64
	// SectorMarginKm is added to the distance covered for SectorSearch.
	// Default: 0.5
	SectorMarginKm float64

	// BaselineRadiusFactor and BaselineRadiusKm give the default ExpandingSquare radius.
	// Defaults: 0.3 and 1
	BaselineRadiusFactor float64
	BaselineRadiusKm     float64
}

// DefaultRecommenderThresholds returns the standard policy thresholds.
func DefaultRecommenderThresholds() RecommenderThresholds {
	return RecommenderThresholds{
		DegradedRatio:        0.3,
		MinDegradedRadiusKm:  2,
		DegradedRadiusFactor: 0.5,
		LinearVariance:       0.1,
		LinearMinDistanceKm:  5,
		SweepRadiusFactor:    0.25,
		SectorMaxHours:       1,
		SectorMarginKm:       0.5,
		BaselineRadiusFactor: 0.3,
		BaselineRadiusKm:     1,
	}
}

// Recommender maps a completed trajectory to a search pattern. Rules are
// evaluated in order and the first match wins:
//
//  1. degraded step ratio above threshold: ExpandingSquare
//  2. low bearing variance and enough distance: ParallelSweep (or ParallelTrack)
//  3. less than SectorMaxHours elapsed: SectorSearch
//  4. otherwise: ExpandingSquare baseline
type Recommender struct {
	th RecommenderThresholds
}

// NewRecommender builds a recommender with the given thresholds.
func NewRecommender(th RecommenderThresholds) *Recommender {
	return &Recommender{th: th}
}

// Thresholds returns the active thresholds.
func (r *Recommender) Thresholds() RecommenderThresholds { return r.th }

// Recommend applies the policy with default thresholds.
func Recommend(t *Trajectory) model.Recommendation {
	return NewRecommender(DefaultRecommenderThresholds()).Recommend(t)
}

// Recommend is a pure function of the trajectory and the thresholds.
func (r *Recommender) Recommend(t *Trajectory) model.Recommendation {
	th := r.th
	diag := t.Diagnostics()
	distance := t.DistanceKm()
	final := t.Final()

	rec := model.Recommendation{Center: final.Position()}

	if ratio := diag.DegradedRatio(); ratio > th.DegradedRatio {
		rec.Pattern = model.ExpandingSquare
		rec.RadiusKm = math.Max(th.MinDegradedRadiusKm, distance*th.DegradedRadiusFactor)
		rec.Rationale = fmt.Sprintf(
			"high uncertainty from data gaps: %d of %d steps (%.0f%%) dead-reckoned, above %.0f%% threshold",
			diag.DegradedSteps, diag.TotalSteps, ratio*100, th.DegradedRatio*100)
		return rec
	}

	variance, mean, ok := CircularVariance(t.StepBearings())
	if ok && variance < th.LinearVariance && distance > th.LinearMinDistanceKm {
		rec.BearingDeg = mean
		if th.ParallelTrackMinKm > 0 && distance > th.ParallelTrackMinKm {
			rec.Pattern = model.ParallelTrack
			rec.RadiusKm = distance * th.SweepRadiusFactor
			rec.Rationale = fmt.Sprintf(
				"near-linear drift (bearing variance %.3f rad² < %.3f) over %.1f km, longer than %.1f km track threshold; track along %.0f°",
				variance, th.LinearVariance, distance, th.ParallelTrackMinKm, mean)
			return rec
		}
		rec.Pattern = model.ParallelSweep
		rec.RadiusKm = distance * th.SweepRadiusFactor
		rec.Rationale = fmt.Sprintf(
			"near-linear drift (bearing variance %.3f rad² < %.3f) over %.1f km > %.1f km; sweep along %.0f°",
			variance, th.LinearVariance, distance, th.LinearMinDistanceKm, mean)
		return rec
	}

	if hours := t.ElapsedHours(); hours < th.SectorMaxHours {
		rec.Pattern = model.SectorSearch
		rec.RadiusKm = distance + th.SectorMarginKm
		rec.Rationale = fmt.Sprintf(
			"recent incident: %.2f h elapsed < %.1f h; radius is %.2f km drifted plus %.1f km margin",
			hours, th.SectorMaxHours, distance, th.SectorMarginKm)
		return rec
	}

	rec.Pattern = model.ExpandingSquare
	rec.RadiusKm = distance*th.BaselineRadiusFactor + th.BaselineRadiusKm
	rec.Rationale = fmt.Sprintf(
		"baseline: no specific condition matched after %.1f h and %.1f km of drift",
		t.ElapsedHours(), distance)
	return rec
}

// CircularVariance returns the circular variance -2·ln(R) in rad² of a set of
// bearings in degrees, where R is the mean resultant length, together with
// the circular mean bearing in [0, 360). ok is false for an empty set.
func CircularVariance(bearingsDeg []float64) (variance, meanDeg float64, ok bool) {
	if len(bearingsDeg) == 0 {
		return 0, 0, false
	}
	var sumSin, sumCos float64
	for _, b := range bearingsDeg {
		rad := degToRad(b)
		sumSin += math.Sin(rad)
		sumCos += math.Cos(rad)
	}
	n := float64(len(bearingsDeg))
	rBar := math.Hypot(sumSin, sumCos) / n
	if rBar > 1 {
		rBar = 1
	}
	if rBar == 0 {
		return math.Inf(1), 0, true
	}
	meanDeg = math.Mod(radToDeg(math.Atan2(sumSin, sumCos))+360, 360)
	return math.Max(0, -2*math.Log(rBar)), meanDeg, true
}
