package timectrl

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidSchedule is returned for non-positive step, report or duration values.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Schedule describes a fixed-step integration run with an independent
// reporting cadence. All arithmetic is done on integer durations so that the
// sequence of instants is exact and reproducible.
//
// Step boundaries fall on multiples of Step from the start; report instants
// fall on multiples of Report. Where a report instant lands inside a step the
// step is split so that the report is hit exactly. The final instant is always
// Duration.
type Schedule struct {
	Start    time.Time
	Step     time.Duration
	Report   time.Duration
	Duration time.Duration
}

// NewSchedule validates and returns a schedule.
func NewSchedule(start time.Time, step, report, duration time.Duration) (Schedule, error) {
	if step <= 0 {
		return Schedule{}, fmt.Errorf("%w: step must be positive, got %s", ErrInvalidSchedule, step)
	}
	if report <= 0 {
		return Schedule{}, fmt.Errorf("%w: report interval must be positive, got %s", ErrInvalidSchedule, report)
	}
	if duration <= 0 {
		return Schedule{}, fmt.Errorf("%w: duration must be positive, got %s", ErrInvalidSchedule, duration)
	}
	return Schedule{Start: start, Step: step, Report: report, Duration: duration}, nil
}

// Next returns the end of the step that begins at elapsed and whether that
// instant must be reported.
func (s Schedule) Next(elapsed time.Duration) (next time.Duration, report bool) {
	next = (elapsed/s.Step + 1) * s.Step
	if r := (elapsed/s.Report + 1) * s.Report; r < next {
		next = r
	}
	if next > s.Duration {
		next = s.Duration
	}
	return next, next%s.Report == 0 || next == s.Duration
}

// Done reports whether elapsed has reached the end of the run.
func (s Schedule) Done(elapsed time.Duration) bool {
	return elapsed >= s.Duration
}

// At returns the absolute time of an elapsed offset.
func (s Schedule) At(elapsed time.Duration) time.Time {
	return s.Start.Add(elapsed)
}

// Steps returns the number of steps a full run takes.
func (s Schedule) Steps() int {
	n := 0
	for elapsed := time.Duration(0); !s.Done(elapsed); n++ {
		elapsed, _ = s.Next(elapsed)
	}
	return n
}

// Hours converts a duration to fractional hours.
func Hours(d time.Duration) float64 {
	return float64(d) / float64(time.Hour)
}

// MaxHours is the first hour count that no longer fits in a time.Duration.
const MaxHours = float64(math.MaxInt64) / float64(time.Hour)

// FromHours converts fractional hours to a duration, rounded to the nearest
// nanosecond. Values outside ±MaxHours saturate.
func FromHours(h float64) time.Duration {
	switch {
	case h >= MaxHours:
		return math.MaxInt64
	case h <= -MaxHours:
		return math.MinInt64
	}
	return time.Duration(math.Round(h * float64(time.Hour)))
}
