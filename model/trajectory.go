package model

import "time"

// Position is a geographic position in decimal degrees.
type Position struct {
	Lat float64
	Lon float64
}

// TrajectoryPoint is one reported position along a drift trajectory.
type TrajectoryPoint struct {
	ElapsedHours float64
	Lat          float64
	Lon          float64
	Timestamp    time.Time

	// LowConfidence is set when any integration step since the previous
	// reported point had to dead-reckon over missing data.
	LowConfidence bool
}

// Position returns the point's coordinates.
func (p TrajectoryPoint) Position() Position {
	return Position{Lat: p.Lat, Lon: p.Lon}
}

// TruncationReason explains why an integration stopped before the requested duration.
type TruncationReason int

const (
	TruncationNone TruncationReason = iota
	TruncationOutOfDomain
	TruncationTimeCoverage
	TruncationCancelled
)

func (r TruncationReason) String() string {
	switch r {
	case TruncationNone:
		return "none"
	case TruncationOutOfDomain:
		return "out_of_domain"
	case TruncationTimeCoverage:
		return "time_coverage"
	case TruncationCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
