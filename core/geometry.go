package core

import (
	"math"

	"github.com/signalsfoundry/drift-predictor/model"
)

// EarthRadiusKm is the mean Earth radius used for all great-circle
// calculations (kilometres).
const EarthRadiusKm = 6371.0

// MetersPerDegreeLat converts metres of northward displacement to degrees
// of latitude. The same constant is used, scaled by cos(latitude), for
// eastward displacement.
const MetersPerDegreeLat = 111574.0

const (
	metersPerNauticalMile = 1852.0
	knotsToMetersPerSec   = metersPerNauticalMile / 3600.0
)

// Vector is a horizontal velocity in metres per second.
// U is positive eastward, V is positive northward.
type Vector struct {
	U, V float64
}

// Add returns v + other.
func (v Vector) Add(other Vector) Vector {
	return Vector{U: v.U + other.U, V: v.V + other.V}
}

// Scale returns v scaled by f.
func (v Vector) Scale(f float64) Vector {
	return Vector{U: v.U * f, V: v.V * f}
}

// Speed returns the magnitude of the vector.
func (v Vector) Speed() float64 {
	return math.Hypot(v.U, v.V)
}

func degToRad(d float64) float64 { return d * math.Pi / 180.0 }
func radToDeg(r float64) float64 { return r * 180.0 / math.Pi }

// ValidCoordinates reports whether lat/lon are finite and inside
// [-90, 90] x [-180, 180].
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// NormalizeLongitude wraps lon into [-180, 180). Values already inside
// [-180, 180] are returned unchanged so that a position on a +180 grid edge
// stays inside the grid.
func NormalizeLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// HaversineKm returns the great-circle distance between two positions in kilometres.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := degToRad(lat1)
	phi2 := degToRad(lat2)
	dPhi := degToRad(lat2 - lat1)
	dLambda := degToRad(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// InitialBearingDeg returns the initial great-circle bearing from the first
// position to the second, in degrees clockwise from north within [0, 360).
func InitialBearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := degToRad(lat1)
	phi2 := degToRad(lat2)
	dLambda := degToRad(lon2 - lon1)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return math.Mod(radToDeg(math.Atan2(y, x))+360, 360)
}

// DestinationPoint returns the position reached by travelling distanceKm from
// (lat, lon) along the given initial bearing.
func DestinationPoint(lat, lon, bearingDeg, distanceKm float64) model.Position {
	delta := distanceKm / EarthRadiusKm
	theta := degToRad(bearingDeg)
	phi1 := degToRad(lat)
	lambda1 := degToRad(lon)

	sinPhi2 := math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta)
	phi2 := math.Asin(sinPhi2)
	y := math.Sin(theta) * math.Sin(delta) * math.Cos(phi1)
	x := math.Cos(delta) - math.Sin(phi1)*sinPhi2
	lambda2 := lambda1 + math.Atan2(y, x)

	return model.Position{Lat: radToDeg(phi2), Lon: NormalizeLongitude(radToDeg(lambda2))}
}

// Bounds is an axis-aligned latitude/longitude box.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether the position lies inside the box (edges inclusive).
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// BoundingBox returns a box extending radiusKm from the centre in each
// cardinal direction, clamped to valid coordinates.
func BoundingBox(centerLat, centerLon, radiusKm float64) Bounds {
	dLat := radiusKm * 1000 / MetersPerDegreeLat
	cosLat := math.Cos(degToRad(centerLat))
	dLon := 180.0
	if cosLat > MinCosLatitude {
		dLon = math.Min(180, radiusKm*1000/(MetersPerDegreeLat*cosLat))
	}
	return Bounds{
		MinLat: math.Max(-90, centerLat-dLat),
		MaxLat: math.Min(90, centerLat+dLat),
		MinLon: math.Max(-180, centerLon-dLon),
		MaxLon: math.Min(180, centerLon+dLon),
	}
}

// MinCosLatitude is the smallest cos(latitude) used as a divisor when
// converting eastward metres to degrees. It engages within ~0.06° of a pole.
const MinCosLatitude = 1e-3

// DisplacementDegrees converts a velocity held for seconds at latitude lat
// into degrees of latitude and longitude. clamped reports whether the
// cos(latitude) divisor had to be clamped near a pole.
func DisplacementDegrees(v Vector, seconds, lat float64) (dLat, dLon float64, clamped bool) {
	cosLat := math.Cos(degToRad(lat))
	if cosLat < MinCosLatitude {
		cosLat = MinCosLatitude
		clamped = true
	}
	dLat = v.V * seconds / MetersPerDegreeLat
	dLon = v.U * seconds / (MetersPerDegreeLat * cosLat)
	return dLat, dLon, clamped
}

// KnotsToMetersPerSecond converts a speed in knots to m/s.
func KnotsToMetersPerSecond(knots float64) float64 { return knots * knotsToMetersPerSec }

// MetersPerSecondToKnots converts a speed in m/s to knots.
func MetersPerSecondToKnots(ms float64) float64 { return ms / knotsToMetersPerSec }

// NauticalMilesToKm converts nautical miles to kilometres.
func NauticalMilesToKm(nm float64) float64 { return nm * metersPerNauticalMile / 1000 }

// KmToNauticalMiles converts kilometres to nautical miles.
func KmToNauticalMiles(km float64) float64 { return km * 1000 / metersPerNauticalMile }
