// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package file implements a device.Sensor that reads a pinned position from a local file. It
// serves stationary machines without any positioning hardware.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/geo"
)

const name = "file"

// DefaultAccuracy is reported when the file does not state an accuracy. A hand-entered
// position is treated like a street address.
const DefaultAccuracy = 25

var ErrNoCoordinates = errors.New("no valid coordinates found in location file")

// Sensor reads "lat,lon[,accuracy]" from the first usable line of a file. Empty lines and
// lines starting with # are ignored.
type Sensor struct {
	path  string
	clock clockwork.Clock
}

func New(path string, clock clockwork.Clock) *Sensor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sensor{path: path, clock: clock}
}

func (s *Sensor) Name() string {
	return name
}

// Available reports whether the location file exists.
func (s *Sensor) Available(context.Context) bool {
	if s.path == "" {
		return false
	}
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// RequestPermission maps the file permissions to the permission step. An unreadable file
// counts as denied access.
func (s *Sensor) RequestPermission(context.Context) (bool, error) {
	fh, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open location file %q: %w", s.path, err)
	}
	_ = fh.Close()
	return true, nil
}

// Fix re-reads the file on every call, so edits are picked up without a restart.
func (s *Sensor) Fix(_ context.Context, _ bool) (geo.Sample, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return geo.Sample{}, failure.Wrap(failure.PermissionDenied, err)
		}
		return geo.Sample{}, failure.Wrap(failure.PositionUnavailable,
			fmt.Errorf("failed to read location file %q: %w", s.path, err))
	}

	coords, err := parse(string(data))
	if err != nil {
		return geo.Sample{}, failure.Wrap(failure.PositionUnavailable,
			fmt.Errorf("location file %q: %w", s.path, err))
	}
	return geo.NewSample(coords, s.clock.Now(), name), nil
}

func parse(data string) (geo.Coordinate, error) {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 2 || len(fields) > 3 {
			continue
		}

		values := make([]float64, len(fields))
		valid := true
		for i, field := range fields {
			val, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				valid = false
				break
			}
			values[i] = val
		}
		if !valid {
			continue
		}

		coords := geo.Coordinate{
			Latitude:  values[0],
			Longitude: values[1],
			Accuracy:  DefaultAccuracy,
		}
		if len(values) == 3 && values[2] > 0 {
			coords.Accuracy = values[2]
		}
		if !coords.Valid() {
			continue
		}
		return coords, nil
	}
	return geo.Coordinate{}, ErrNoCoordinates
}
