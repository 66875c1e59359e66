// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package gpspoll implements a single-shot gpsd client that returns the first TPV report.
package gpspoll

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/whereami/internal/vartype"
)

const (
	DefaultHost = "localhost"
	DefaultPort = "2947"

	fallbackAccuracy3DFix = 10  // ~10 m typical consumer GPS in open sky
	fallbackAccuracy2DFix = 25  // worse than 3D, but still accurate enough
	fallbackAccuracyNoFix = 1e6 // effectively unusable
	watchTimeout          = time.Second * 2
)

// ErrNoReport is returned when gpsd closed the stream before sending a TPV report.
var ErrNoReport = errors.New("no TPV response received from GPSd")

// Client is a minimal GPSd client
type Client struct {
	Addr string
}

// Fix represents a single GPS fix from gpsd.
type Fix struct {
	Lat   float64
	Lon   float64
	Acc   float64
	Alt   vartype.VarFloat64
	Track vartype.VarFloat64
	Speed vartype.VarFloat64
	Mode  gpsd.Mode
	Time  time.Time
}

// tpvReport extends the go-gpsd report with the fields it does not decode and with pointers
// for the values gpsd omits when it does not know them.
type tpvReport struct {
	gpsd.TPVReport
	Eph   float64  `json:"eph"`
	Alt   *float64 `json:"alt"`
	Track *float64 `json:"track"`
	Speed *float64 `json:"speed"`
}

// New constructs a new Client for the given host and port.
func New(host, port string) *Client {
	if host == "" {
		host = DefaultHost
	}
	if port == "" {
		port = DefaultPort
	}
	return &Client{
		Addr: net.JoinHostPort(host, port),
	}
}

// Reachable reports whether a gpsd daemon accepts connections on the client address.
func (c *Client) Reachable(ctx context.Context) bool {
	dialer := &net.Dialer{Timeout: watchTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Poll connects to gpsd, enables WATCH mode and returns the first TPV report. The connection
// is closed before returning.
func (c *Client) Poll(ctx context.Context) (Fix, error) {
	var zero Fix

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return zero, fmt.Errorf("gpspoll: dial gpsd: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	// Respect context deadline if present, otherwise we add a safety net so we don't hang
	// forever if ctx has no deadline.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(watchTimeout))
	}

	if _, err = fmt.Fprint(conn, `?WATCH={"enable":true,"json":true}`+"\n"); err != nil {
		return zero, fmt.Errorf("gpspoll: write WATCH: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		var report tpvReport
		if err = json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue
		}
		if report.Class != "TPV" {
			continue
		}

		return Fix{
			Lat:   report.Lat,
			Lon:   report.Lon,
			Acc:   horizontalAccuracyMeters(report),
			Alt:   vartype.FromPointer(report.Alt),
			Track: vartype.FromPointer(report.Track),
			Speed: vartype.FromPointer(report.Speed),
			Mode:  report.Mode,
			Time:  report.Time,
		}, nil
	}

	if err = scanner.Err(); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() && ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("failed to scan GPSd response: %w", err)
	}

	return zero, ErrNoReport
}

// Has2DFix reports whether the fix has at least a 2D fix.
func (f Fix) Has2DFix() bool {
	return f.Mode >= gpsd.Mode2D
}

func horizontalAccuracyMeters(tpv tpvReport) float64 {
	switch {
	case tpv.Eph > 0:
		return tpv.Eph
	case tpv.Epx > 0 && tpv.Epy > 0:
		// sqrt(epx² + epy²)
		return math.Hypot(tpv.Epx, tpv.Epy)
	default:
		return horizontalAccuracyFallback(tpv.Mode)
	}
}

func horizontalAccuracyFallback(mode gpsd.Mode) float64 {
	switch mode {
	case gpsd.Mode3D:
		return fallbackAccuracy3DFix
	case gpsd.Mode2D:
		return fallbackAccuracy2DFix
	default:
		return fallbackAccuracyNoFix
	}
}
