// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geo

import (
	"math"
	"testing"
	"time"
)

func TestCoordinate_Valid(t *testing.T) {
	tests := []struct {
		name  string
		lat   float64
		lon   float64
		valid bool
	}{
		{"São Paulo", -23.5505, -46.6333, true},
		{"north pole", 90, 0, true},
		{"date line", 0, 180, true},
		{"latitude too large", 90.1, 0, false},
		{"longitude too small", 0, -180.1, false},
		{"NaN latitude", math.NaN(), 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Coordinate{Latitude: tc.lat, Longitude: tc.lon}
			if c.Valid() != tc.valid {
				t.Errorf("expected validity to be %t, got %t", tc.valid, c.Valid())
			}
		})
	}
}

func TestCoordinate_DistanceMeters(t *testing.T) {
	saoPaulo := Coordinate{Latitude: -23.5505, Longitude: -46.6333}
	rio := Coordinate{Latitude: -22.9068, Longitude: -43.1729}
	dist := saoPaulo.DistanceMeters(rio)
	// roughly 360km as the crow flies
	if dist < 350000 || dist > 370000 {
		t.Errorf("expected distance between São Paulo and Rio to be ~360km, got %f", dist)
	}
	if saoPaulo.DistanceMeters(saoPaulo) != 0 {
		t.Error("expected distance to self to be zero")
	}
}

func TestNewRegion(t *testing.T) {
	coord := Coordinate{Latitude: -23.5505, Longitude: -46.6333}
	t.Run("fix region uses the fix zoom", func(t *testing.T) {
		r := NewRegion(coord, ZoomFix, 0.5)
		if r.Latitude != coord.Latitude || r.Longitude != coord.Longitude {
			t.Errorf("expected region to be centered on %f,%f, got %f,%f", coord.Latitude, coord.Longitude,
				r.Latitude, r.Longitude)
		}
		if r.LatitudeDelta != 0.03 {
			t.Errorf("expected latitude delta to be 0.03, got %f", r.LatitudeDelta)
		}
		if r.LongitudeDelta != 0.015 {
			t.Errorf("expected longitude delta to be 0.015, got %f", r.LongitudeDelta)
		}
	})
	t.Run("non-positive aspect is treated as square", func(t *testing.T) {
		r := NewRegion(coord, ZoomTap, 0)
		if r.LongitudeDelta != r.LatitudeDelta {
			t.Errorf("expected square region, got %f/%f", r.LatitudeDelta, r.LongitudeDelta)
		}
	})
}

func TestSample(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSample(Coordinate{Latitude: 1, Longitude: 2, Accuracy: 5}, at, "test")
	if s.Timestamp != at.UnixMilli() {
		t.Errorf("expected timestamp to be %d, got %d", at.UnixMilli(), s.Timestamp)
	}
	if !s.Time().Equal(at) {
		t.Errorf("expected time to be %s, got %s", at, s.Time())
	}
	if s.Age(at.Add(time.Minute)) != time.Minute {
		t.Errorf("expected age to be 1m, got %s", s.Age(at.Add(time.Minute)))
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate(-23.55051234, 4); got != -23.5505 {
		t.Errorf("expected -23.5505, got %f", got)
	}
}
