package core

import "errors"

var (
	// ErrOutOfDomain is returned when a position lies outside a field's
	// spatial envelope. Integration stops and the trajectory is truncated.
	ErrOutOfDomain = errors.New("position outside field domain")
	// ErrUndefinedSample marks a land or no-data cell. The integrator recovers
	// by dead-reckoning; it is surfaced only through diagnostics.
	ErrUndefinedSample = errors.New("undefined field sample")
	// ErrInvalidProfile is returned for an unknown object type or
	// out-of-range coefficients. It is raised before integration begins.
	ErrInvalidProfile = errors.New("invalid object profile")
	// ErrCacheFetchFailed wraps upstream tile fetch failures.
	ErrCacheFetchFailed = errors.New("field tile fetch failed")
	// ErrDegenerateGeometry marks pole proximity where the longitude divisor
	// was clamped. Not fatal.
	ErrDegenerateGeometry = errors.New("degenerate geometry near pole")
	// ErrInvalidRequest is returned for malformed integration inputs.
	ErrInvalidRequest = errors.New("invalid drift request")
	// ErrInvalidField is returned when a vector field's axes or samples are malformed.
	ErrInvalidField = errors.New("invalid vector field")
)
