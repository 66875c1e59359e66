// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package gpsd implements a device.Sensor reading single fixes from a gpsd daemon.
package gpsd

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"

	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/geo"
	"github.com/wneessen/whereami/internal/gpspoll"
)

const name = "gpsd"

type Sensor struct {
	client *gpspoll.Client
	clock  clockwork.Clock
}

func New(client *gpspoll.Client, clock clockwork.Clock) *Sensor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sensor{client: client, clock: clock}
}

func (s *Sensor) Name() string {
	return name
}

// RequestPermission always grants access. gpsd has no permission concept, anyone who can
// connect may read the fixes.
func (s *Sensor) RequestPermission(context.Context) (bool, error) {
	return true, nil
}

// Fix polls gpsd for a single TPV report. gpsd accuracy does not depend on a requested level,
// so highAccuracy is ignored.
func (s *Sensor) Fix(ctx context.Context, _ bool) (geo.Sample, error) {
	fix, err := s.client.Poll(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return geo.Sample{}, err
		}
		return geo.Sample{}, failure.Wrap(failure.PositionUnavailable, err)
	}
	if !fix.Has2DFix() {
		return geo.Sample{}, failure.New(failure.PositionUnavailable, "gpsd has no 2D fix (mode %d)", fix.Mode)
	}

	coords := geo.Coordinate{
		Latitude:  geo.Truncate(fix.Lat, geo.TruncPrecision),
		Longitude: geo.Truncate(fix.Lon, geo.TruncPrecision),
		Accuracy:  geo.Truncate(fix.Acc, geo.TruncPrecision),
		Altitude:  fix.Alt,
		Heading:   fix.Track,
		Speed:     fix.Speed,
	}
	at := fix.Time
	if at.IsZero() {
		at = s.clock.Now()
	}
	return geo.NewSample(coords, at, name), nil
}
