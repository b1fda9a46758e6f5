package timectrl

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestManualClockSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	newNow := start.Add(42 * time.Second)
	c.SetTime(newNow)

	if got := c.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestManualClockAdvanceNotifiesListeners(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	var seen []time.Time
	c.AddListener(func(now time.Time) { seen = append(seen, now) })

	c.Advance(time.Minute)
	c.Advance(time.Minute)

	if len(seen) != 2 {
		t.Fatalf("listener calls = %d, want 2", len(seen))
	}
	if want := start.Add(2 * time.Minute); !seen[1].Equal(want) || !c.Now().Equal(want) {
		t.Fatalf("after two advances got %v / %v, want %v", seen[1], c.Now(), want)
	}
}

func TestNewScheduleRejectsNonPositive(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name                   string
		step, report, duration time.Duration
	}{
		{"zero step", 0, time.Hour, time.Hour},
		{"zero report", time.Minute, 0, time.Hour},
		{"negative duration", time.Minute, time.Hour, -time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSchedule(start, tc.step, tc.report, tc.duration); !errors.Is(err, ErrInvalidSchedule) {
				t.Fatalf("NewSchedule error = %v, want ErrInvalidSchedule", err)
			}
		})
	}
}

func TestScheduleAlignedStepsReportOnInterval(t *testing.T) {
	s, err := NewSchedule(time.Time{}, 15*time.Minute, time.Hour, 2*time.Hour)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}

	var reports []time.Duration
	steps := 0
	for elapsed := time.Duration(0); !s.Done(elapsed); steps++ {
		var report bool
		elapsed, report = s.Next(elapsed)
		if report {
			reports = append(reports, elapsed)
		}
	}

	if steps != 8 {
		t.Fatalf("steps = %d, want 8", steps)
	}
	if s.Steps() != 8 {
		t.Fatalf("Steps() = %d, want 8", s.Steps())
	}
	if len(reports) != 2 || reports[0] != time.Hour || reports[1] != 2*time.Hour {
		t.Fatalf("reports = %v, want [1h 2h]", reports)
	}
}

func TestScheduleSplitsStepsAtReportInstants(t *testing.T) {
	// 25-minute steps with 30-minute reports over 70 minutes:
	// 25, 30, 50, 60, 70.
	s, err := NewSchedule(time.Time{}, 25*time.Minute, 30*time.Minute, 70*time.Minute)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}

	want := []struct {
		at     time.Duration
		report bool
	}{
		{25 * time.Minute, false},
		{30 * time.Minute, true},
		{50 * time.Minute, false},
		{60 * time.Minute, true},
		{70 * time.Minute, true},
	}

	elapsed := time.Duration(0)
	for i, w := range want {
		next, report := s.Next(elapsed)
		if next != w.at || report != w.report {
			t.Fatalf("step %d: Next(%s) = (%s, %v), want (%s, %v)", i, elapsed, next, report, w.at, w.report)
		}
		elapsed = next
	}
	if !s.Done(elapsed) {
		t.Fatalf("schedule not done at %s", elapsed)
	}
}

func TestHoursRoundTrip(t *testing.T) {
	if got := Hours(90 * time.Minute); got != 1.5 {
		t.Fatalf("Hours(90m) = %v, want 1.5", got)
	}
	if got := FromHours(0.25); got != 15*time.Minute {
		t.Fatalf("FromHours(0.25) = %v, want 15m", got)
	}
}

func TestFromHoursSaturates(t *testing.T) {
	if got := FromHours(1e12); got != time.Duration(math.MaxInt64) {
		t.Fatalf("FromHours(1e12) = %v, want max duration", got)
	}
	if got := FromHours(-1e12); got != time.Duration(math.MinInt64) {
		t.Fatalf("FromHours(-1e12) = %v, want min duration", got)
	}
	if got := FromHours(MaxHours / 2); got <= 0 {
		t.Fatalf("FromHours(MaxHours/2) = %v, want positive", got)
	}
}
