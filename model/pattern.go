package model

// SearchPattern is one of the fixed search patterns a recommendation can name.
type SearchPattern int

const (
	SectorSearch SearchPattern = iota
	ExpandingSquare
	ParallelSweep
	ParallelTrack
)

func (p SearchPattern) String() string {
	switch p {
	case SectorSearch:
		return "SectorSearch"
	case ExpandingSquare:
		return "ExpandingSquare"
	case ParallelSweep:
		return "ParallelSweep"
	case ParallelTrack:
		return "ParallelTrack"
	default:
		return "Unknown"
	}
}

// Recommendation is the search plan derived from a trajectory.
type Recommendation struct {
	Pattern  SearchPattern
	RadiusKm float64
	// Center is where the search should be anchored: the trajectory's final position.
	Center Position
	// BearingDeg is the track direction for sweep/track patterns, clockwise from north.
	BearingDeg float64
	// Rationale names the condition that selected the pattern.
	Rationale string
	// SurvivalHoursRemaining is advisory; negative values mean the profile's
	// survival window has already elapsed.
	SurvivalHoursRemaining float64
}
