package core

import (
	"math"
	"testing"
)

func TestHaversineKmKnownDistance(t *testing.T) {
	// One degree of longitude on the equator.
	got := HaversineKm(0, 0, 0, 1)
	want := EarthRadiusKm * math.Pi / 180
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("HaversineKm = %v, want %v", got, want)
	}
	if d := HaversineKm(52.5, 4.2, 52.5, 4.2); d != 0 {
		t.Fatalf("distance to self = %v, want 0", d)
	}
}

func TestInitialBearingDegCardinals(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"north", 0, 0, 1, 0, 0},
		{"east", 0, 0, 0, 1, 90},
		{"south", 1, 0, 0, 0, 180},
		{"west", 0, 1, 0, 0, 270},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := InitialBearingDeg(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("bearing = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDestinationPointRoundTrip(t *testing.T) {
	dest := DestinationPoint(52.5, 4.2, 45, 10)
	if d := HaversineKm(52.5, 4.2, dest.Lat, dest.Lon); math.Abs(d-10) > 1e-6 {
		t.Fatalf("distance to destination = %v km, want 10", d)
	}
	if b := InitialBearingDeg(52.5, 4.2, dest.Lat, dest.Lon); math.Abs(b-45) > 1e-6 {
		t.Fatalf("bearing to destination = %v, want 45", b)
	}
}

func TestNormalizeLongitude(t *testing.T) {
	cases := map[float64]float64{
		0:    0,
		179:  179,
		180:  180,
		-180: -180,
		190:  -170,
		-190: 170,
		540:  -180,
	}
	for in, want := range cases {
		if got := NormalizeLongitude(in); math.Abs(got-want) > 1e-12 {
			t.Fatalf("NormalizeLongitude(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestDisplacementDegreesClampsNearPole(t *testing.T) {
	v := Vector{U: 0.1}
	_, dLon, clamped := DisplacementDegrees(v, 900, 89.99)
	if !clamped {
		t.Fatalf("expected divisor clamp at 89.99°")
	}
	want := 0.1 * 900 / (MetersPerDegreeLat * MinCosLatitude)
	if math.Abs(dLon-want) > 1e-12 {
		t.Fatalf("dLon = %v, want %v", dLon, want)
	}

	dLat, dLon, clamped := DisplacementDegrees(Vector{U: 1, V: 1}, 3600, 0)
	if clamped {
		t.Fatalf("unexpected clamp at the equator")
	}
	if math.Abs(dLat-3600/MetersPerDegreeLat) > 1e-15 || math.Abs(dLon-3600/MetersPerDegreeLat) > 1e-15 {
		t.Fatalf("equator displacement = (%v, %v)", dLat, dLon)
	}
}

func TestBoundingBoxContainsCentre(t *testing.T) {
	b := BoundingBox(52.5, 4.2, 20)
	if !b.Contains(52.5, 4.2) {
		t.Fatalf("bounding box %+v does not contain its centre", b)
	}
	if b.MaxLat-b.MinLat <= 0 || b.MaxLon-b.MinLon <= b.MaxLat-b.MinLat {
		t.Fatalf("unexpected box shape at 52.5°N: %+v", b)
	}
}

func TestUnitConversions(t *testing.T) {
	if got := KnotsToMetersPerSecond(1); math.Abs(got-0.514444) > 1e-6 {
		t.Fatalf("1 kn = %v m/s", got)
	}
	if got := MetersPerSecondToKnots(KnotsToMetersPerSecond(3.5)); math.Abs(got-3.5) > 1e-12 {
		t.Fatalf("knots round trip = %v", got)
	}
	if got := NauticalMilesToKm(1); got != 1.852 {
		t.Fatalf("1 nm = %v km", got)
	}
	if got := KmToNauticalMiles(1.852); math.Abs(got-1) > 1e-12 {
		t.Fatalf("1.852 km = %v nm", got)
	}
}

func TestValidCoordinates(t *testing.T) {
	if !ValidCoordinates(90, -180) {
		t.Fatalf("edge coordinates should be valid")
	}
	if ValidCoordinates(90.1, 0) || ValidCoordinates(0, 181) || ValidCoordinates(math.NaN(), 0) {
		t.Fatalf("out-of-range coordinates accepted")
	}
}
