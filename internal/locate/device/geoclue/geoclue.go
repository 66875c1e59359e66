// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geoclue implements a device.Sensor backed by the GeoClue2 service on the D-Bus
// system bus.
package geoclue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/jonboulle/clockwork"

	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/geo"
	"github.com/wneessen/whereami/internal/vartype"
)

const (
	BusName       = "org.freedesktop.GeoClue2"
	managerPath   = "/org/freedesktop/GeoClue2/Manager"
	managerIface  = BusName + ".Manager"
	clientIface   = BusName + ".Client"
	locationIface = BusName + ".Location"
	propsIface    = "org.freedesktop.DBus.Properties"

	// GeoClue accuracy levels
	AccuracyLevelStreet uint32 = 6
	AccuracyLevelExact  uint32 = 8

	accessDenied     = "org.freedesktop.DBus.Error.AccessDenied"
	signalBufferSize = 4
	stopTimeout      = time.Second * 2
	name             = "geoclue"
)

// Sensor reads single fixes from GeoClue2. Every fix uses its own GeoClue client, which is
// stopped once the fix was read.
type Sensor struct {
	desktopID string
	clock     clockwork.Clock
}

// New returns a GeoClue sensor. desktopID is the desktop file name GeoClue uses to look up
// the application's location permission.
func New(desktopID string, clock clockwork.Clock) *Sensor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sensor{desktopID: desktopID, clock: clock}
}

// Available reports whether GeoClue2 is running or activatable on the system bus.
func Available(ctx context.Context) (available bool) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return false
	}
	defer func() {
		_ = conn.Close()
	}()

	for _, method := range []string{"org.freedesktop.DBus.ListNames", "org.freedesktop.DBus.ListActivatableNames"} {
		var names []string
		if err = conn.BusObject().CallWithContext(ctx, method, 0).Store(&names); err != nil {
			continue
		}
		if slices.Contains(names, BusName) {
			return true
		}
	}
	return false
}

func (s *Sensor) Name() string {
	return name
}

// RequestPermission starts and immediately stops a GeoClue client. GeoClue asks its agent for
// the permission on start and rejects the call if it was not granted.
func (s *Sensor) RequestPermission(ctx context.Context) (bool, error) {
	session, err := s.open(ctx, AccuracyLevelStreet)
	if err != nil {
		return false, err
	}
	defer session.close()

	if err = session.start(ctx); err != nil {
		if IsAccessDenied(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Fix starts a GeoClue client and waits for the first location update.
func (s *Sensor) Fix(ctx context.Context, highAccuracy bool) (geo.Sample, error) {
	session, err := s.open(ctx, AccuracyLevel(highAccuracy))
	if err != nil {
		return geo.Sample{}, err
	}
	defer session.close()

	signals := make(chan *dbus.Signal, signalBufferSize)
	session.conn.Signal(signals)
	defer session.conn.RemoveSignal(signals)
	if err = session.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(session.client.Path()),
		dbus.WithMatchInterface(clientIface),
		dbus.WithMatchMember("LocationUpdated"),
	); err != nil {
		return geo.Sample{}, failure.Wrap(failure.PositionUnavailable, fmt.Errorf("failed to subscribe to location updates: %w", err))
	}

	if err = session.start(ctx); err != nil {
		if IsAccessDenied(err) {
			return geo.Sample{}, failure.Wrap(failure.PermissionDenied, err)
		}
		return geo.Sample{}, failure.Wrap(failure.PositionUnavailable, err)
	}

	path, err := session.waitForLocation(ctx, signals)
	if err != nil {
		return geo.Sample{}, err
	}

	var props map[string]dbus.Variant
	if err = session.conn.Object(BusName, path).CallWithContext(ctx, propsIface+".GetAll", 0,
		locationIface).Store(&props); err != nil {
		return geo.Sample{}, failure.Wrap(failure.PositionUnavailable, fmt.Errorf("failed to read location: %w", err))
	}
	return SampleFromProperties(props, s.clock.Now())
}

// AccuracyLevel returns the GeoClue accuracy level to request.
func AccuracyLevel(highAccuracy bool) uint32 {
	if highAccuracy {
		return AccuracyLevelExact
	}
	return AccuracyLevelStreet
}

// IsAccessDenied reports whether err is a D-Bus AccessDenied error.
func IsAccessDenied(err error) bool {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		return dbusErr.Name == accessDenied
	}
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) {
		return dbusErrPtr.Name == accessDenied
	}
	return false
}

// SampleFromProperties converts the properties of a GeoClue Location object into a sample.
// GeoClue reports unknown altitude as -DBL_MAX and unknown speed and heading as negative values.
func SampleFromProperties(props map[string]dbus.Variant, now time.Time) (geo.Sample, error) {
	lat, okLat := float(props, "Latitude")
	lon, okLon := float(props, "Longitude")
	if !okLat || !okLon {
		return geo.Sample{}, failure.New(failure.PositionUnavailable, "GeoClue location has no coordinates")
	}
	coords := geo.Coordinate{
		Latitude:  geo.Truncate(lat, geo.TruncPrecision),
		Longitude: geo.Truncate(lon, geo.TruncPrecision),
	}
	if acc, ok := float(props, "Accuracy"); ok {
		coords.Accuracy = acc
	}
	if alt, ok := float(props, "Altitude"); ok && alt > -1e300 {
		coords.Altitude = vartype.NewVariable(alt)
	}
	if heading, ok := float(props, "Heading"); ok && heading >= 0 {
		coords.Heading = vartype.NewVariable(heading)
	}
	if speed, ok := float(props, "Speed"); ok && speed >= 0 {
		coords.Speed = vartype.NewVariable(speed)
	}

	at := now
	if ts, ok := props["Timestamp"]; ok {
		if parts, ok := ts.Value().([]any); ok && len(parts) == 2 {
			sec, okSec := parts[0].(uint64)
			usec, okUsec := parts[1].(uint64)
			if okSec && okUsec && sec > 0 {
				at = time.Unix(int64(sec), int64(usec)*int64(time.Microsecond))
			}
		}
	}
	return geo.NewSample(coords, at, name), nil
}

func float(props map[string]dbus.Variant, key string) (float64, bool) {
	v, ok := props[key]
	if !ok {
		return 0, false
	}
	f, ok := v.Value().(float64)
	return f, ok
}

// session is a GeoClue client on its own system bus connection.
type session struct {
	conn   *dbus.Conn
	client dbus.BusObject
}

func (s *Sensor) open(ctx context.Context, level uint32) (*session, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, failure.Wrap(failure.CapabilityMissing, fmt.Errorf("failed to connect to system bus: %w", err))
	}

	var clientPath dbus.ObjectPath
	if err = conn.Object(BusName, managerPath).CallWithContext(ctx, managerIface+".GetClient", 0).
		Store(&clientPath); err != nil {
		_ = conn.Close()
		if IsAccessDenied(err) {
			return nil, failure.Wrap(failure.PermissionDenied, err)
		}
		return nil, failure.Wrap(failure.PositionUnavailable, fmt.Errorf("failed to get geoclue client: %w", err))
	}

	client := conn.Object(BusName, clientPath)
	props := map[string]any{
		"DesktopId":              s.desktopID,
		"RequestedAccuracyLevel": level,
	}
	for prop, value := range props {
		if err = client.CallWithContext(ctx, propsIface+".Set", 0, clientIface, prop,
			dbus.MakeVariant(value)).Err; err != nil {
			_ = conn.Close()
			return nil, failure.Wrap(failure.PositionUnavailable, fmt.Errorf("failed to set %s: %w", prop, err))
		}
	}
	return &session{conn: conn, client: client}, nil
}

func (s *session) start(ctx context.Context) error {
	return s.client.CallWithContext(ctx, clientIface+".Start", 0).Err
}

// waitForLocation returns the path of the current location object, either from the client
// property or from the next LocationUpdated signal.
func (s *session) waitForLocation(ctx context.Context, signals <-chan *dbus.Signal) (dbus.ObjectPath, error) {
	if v, err := s.client.GetProperty(clientIface + ".Location"); err == nil {
		if path, ok := v.Value().(dbus.ObjectPath); ok && path.IsValid() && path != "/" {
			return path, nil
		}
	}
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return "", failure.New(failure.PositionUnavailable, "system bus connection closed")
			}
			if sig.Name != clientIface+".LocationUpdated" || len(sig.Body) != 2 {
				continue
			}
			if path, ok := sig.Body[1].(dbus.ObjectPath); ok {
				return path, nil
			}
		}
	}
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	_ = s.client.CallWithContext(ctx, clientIface+".Stop", 0).Err
	_ = s.conn.Close()
}
