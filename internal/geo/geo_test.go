package geo

import (
	"math"
	"testing"

	"med-shift-bot/internal/models"
)

func TestDistanceMetersSymmetry(t *testing.T) {
	tests := []struct {
		name string
		a, b models.Coordinate
	}{
		{
			name: "Bangkok to Chiang Mai",
			a:    models.Coordinate{Latitude: 13.7563, Longitude: 100.5018},
			b:    models.Coordinate{Latitude: 18.7883, Longitude: 98.9853},
		},
		{
			name: "Across the equator",
			a:    models.Coordinate{Latitude: -1.5, Longitude: 10.0},
			b:    models.Coordinate{Latitude: 2.5, Longitude: -10.0},
		},
		{
			name: "Near the antimeridian",
			a:    models.Coordinate{Latitude: 0, Longitude: 179.9},
			b:    models.Coordinate{Latitude: 0, Longitude: -179.9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ab := DistanceMeters(tt.a, tt.b)
			ba := DistanceMeters(tt.b, tt.a)
			if ab != ba {
				t.Errorf("DistanceMeters not symmetric: %v vs %v", ab, ba)
			}
			if ab < 0 || math.IsNaN(ab) || math.IsInf(ab, 0) {
				t.Errorf("DistanceMeters = %v, want finite non-negative", ab)
			}
		})
	}
}

func TestDistanceMetersIdenticalPoints(t *testing.T) {
	p := models.Coordinate{Latitude: 13.7563, Longitude: 100.5018}
	if d := DistanceMeters(p, p); d > 1e-6 {
		t.Errorf("DistanceMeters(p, p) = %v, want ~0", d)
	}
}

func TestDistanceMetersKnownValues(t *testing.T) {
	// One degree of latitude is ~111.19 km on a 6371 km sphere.
	a := models.Coordinate{Latitude: 0, Longitude: 0}
	b := models.Coordinate{Latitude: 1, Longitude: 0}
	got := DistanceMeters(a, b)
	want := 111194.9
	if math.Abs(got-want) > 50 {
		t.Errorf("DistanceMeters(0N, 1N) = %v, want ~%v", got, want)
	}
}

func TestDistanceMetersMonotonic(t *testing.T) {
	origin := models.Coordinate{Latitude: 0, Longitude: 0}
	prev := 0.0
	for _, lat := range []float64{0.001, 0.01, 0.1, 1, 5, 20} {
		d := DistanceMeters(origin, models.Coordinate{Latitude: lat, Longitude: 0})
		if d <= prev {
			t.Fatalf("distance at lat %v = %v, not greater than %v", lat, d, prev)
		}
		prev = d
	}
}
