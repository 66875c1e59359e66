// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geo holds the location data model: coordinates, samples and map regions.
package geo

import (
	"math"
	"time"

	"github.com/wneessen/whereami/internal/vartype"
)

const (
	EarthRadius    = 6371000.0 // meters
	TruncPrecision = 6
)

// Coordinate represents a geographic coordinate with accuracy metadata. Altitude, heading
// and speed are optional since not every source reports them.
type Coordinate struct {
	Latitude  float64            `json:"latitude"`
	Longitude float64            `json:"longitude"`
	Accuracy  float64            `json:"accuracy"`
	Altitude  vartype.VarFloat64 `json:"altitude"`
	Heading   vartype.VarFloat64 `json:"heading"`
	Speed     vartype.VarFloat64 `json:"speed"`
}

// Valid checks if the coordinate is valid according to the EPSG logic
func (c Coordinate) Valid() bool {
	return !math.IsNaN(c.Latitude) && !math.IsNaN(c.Longitude) &&
		c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// DistanceMeters returns the great-circle distance between two coordinates using the
// Haversine formula.
func (c Coordinate) DistanceMeters(other Coordinate) float64 {
	dLat := (c.Latitude - other.Latitude) * math.Pi / 180
	dLon := (c.Longitude - other.Longitude) * math.Pi / 180
	lat1 := c.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Asin(math.Sqrt(h))
}

// Sample is a single acquisition event. Samples are replaced wholesale, never mutated.
type Sample struct {
	Coords    Coordinate `json:"coords"`
	Timestamp int64      `json:"timestamp"`
	Source    string     `json:"source"`
}

// NewSample returns a Sample for the given coordinate taken at time at.
func NewSample(coords Coordinate, at time.Time, source string) Sample {
	return Sample{Coords: coords, Timestamp: at.UnixMilli(), Source: source}
}

// Time returns the sample timestamp as time.Time.
func (s Sample) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Age returns how old the sample is relative to now.
func (s Sample) Age(now time.Time) time.Duration {
	return now.Sub(s.Time())
}

// Zoom is the zoom intent a Region is derived with.
type Zoom float64

const (
	// ZoomFix is used for regions centered on a location fix.
	ZoomFix Zoom = 0.03
	// ZoomTap is used for regions centered on a tapped map point.
	ZoomTap Zoom = 0.01
)

// Region is a map viewport: a center plus the visible span in degrees.
type Region struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LatitudeDelta  float64 `json:"latitudeDelta"`
	LongitudeDelta float64 `json:"longitudeDelta"`
}

// NewRegion derives a viewport centered on coord. aspect is the viewport width divided by
// its height; non-positive values count as a square viewport.
func NewRegion(coord Coordinate, zoom Zoom, aspect float64) Region {
	if aspect <= 0 {
		aspect = 1
	}
	return Region{
		Latitude:       coord.Latitude,
		Longitude:      coord.Longitude,
		LatitudeDelta:  float64(zoom),
		LongitudeDelta: float64(zoom) * aspect,
	}
}

// Truncate cuts x to the given number of decimal places.
func Truncate(x float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Trunc(x*p) / p
}
