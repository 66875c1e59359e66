// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package browser implements the browser geolocation variant. Like web browsers do, it sends
// the visible WiFi access points and the public IP to an ICHNAEA compatible geolocate API.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	stdhttp "net/http"

	"github.com/jonboulle/clockwork"

	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/geo"
	"github.com/wneessen/whereami/internal/http"
	"github.com/wneessen/whereami/internal/locate"
	"github.com/wneessen/whereami/internal/logger"
)

const (
	DefaultEndpoint = "https://api.beacondb.net/v1/geolocate"
	name            = "browser"
)

// Scanner lists the WiFi access points in range.
type Scanner interface {
	AccessPoints() ([]WirelessNetwork, error)
}

type Provider struct {
	endpoint string
	http     *http.Client
	scanner  Scanner
	clock    clockwork.Clock
	logger   *logger.Logger
}

type APIResult struct {
	Location struct {
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lng"`
	} `json:"location"`
	Accuracy float64 `json:"accuracy"`
}

type WirelessNetwork struct {
	LastSeen       int64  `json:"age"`
	MACAddress     string `json:"macAddress"`
	SignalStrength int32  `json:"signalStrength"`
}

type request struct {
	ConsiderIP   bool              `json:"considerIp"`
	Accesspoints []WirelessNetwork `json:"wifiAccessPoints,omitempty"`
}

// New returns a browser variant provider. scanner may be nil on systems without WiFi, the
// lookup then only considers the IP address.
func New(client *http.Client, endpoint string, scanner Scanner, log *logger.Logger, clock clockwork.Clock) *Provider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Provider{
		endpoint: endpoint,
		http:     client,
		scanner:  scanner,
		clock:    clock,
		logger:   log,
	}
}

func (p *Provider) Name() string {
	return name
}

func (p *Provider) Variant() locate.Variant {
	return locate.VariantBrowser
}

// Acquire looks up the current position. WiFi access points are only scanned when high
// accuracy was requested; a failing scan falls back to the IP based lookup.
func (p *Provider) Acquire(ctx context.Context, opts locate.Options) (geo.Sample, error) {
	if p.endpoint == "" {
		return geo.Sample{}, failure.New(failure.CapabilityMissing, "no geolocation endpoint configured")
	}

	req := request{ConsiderIP: true}
	if opts.HighAccuracy && p.scanner != nil {
		aps, err := p.scanner.AccessPoints()
		if err != nil {
			p.logger.Debug("WiFi scan failed, falling back to IP based lookup", logger.Err(err))
		}
		req.Accesspoints = aps
	}

	body := bytes.NewBuffer(nil)
	if err := json.NewEncoder(body).Encode(req); err != nil {
		return geo.Sample{}, fmt.Errorf("failed to encode wifi list to JSON: %w", err)
	}

	result := new(APIResult)
	if _, err := p.http.Post(ctx, p.endpoint, result, body,
		map[string]string{"Content-Type": "application/json"}); err != nil {
		return geo.Sample{}, classify(err)
	}
	p.logger.Debug("geolocate API answered", slog.Int("access_points", len(req.Accesspoints)),
		slog.Float64("accuracy", result.Accuracy))

	coords := geo.Coordinate{
		Latitude:  geo.Truncate(result.Location.Latitude, geo.TruncPrecision),
		Longitude: geo.Truncate(result.Location.Longitude, geo.TruncPrecision),
		Accuracy:  geo.Truncate(result.Accuracy, geo.TruncPrecision),
	}
	if !coords.Valid() || (coords.Latitude == 0 && coords.Longitude == 0) {
		return geo.Sample{}, failure.New(failure.PositionUnavailable, "geolocate API returned no usable position")
	}
	return geo.NewSample(coords, p.clock.Now(), name), nil
}

// classify maps geolocate API errors to location failure kinds.
func classify(err error) error {
	var statusErr *http.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return failure.Wrap(failure.Timeout, err)
	case errors.As(err, &statusErr):
		switch statusErr.Code {
		case stdhttp.StatusUnauthorized, stdhttp.StatusForbidden:
			return failure.Wrap(failure.PermissionDenied, err)
		case stdhttp.StatusNotFound:
			return failure.New(failure.PositionUnavailable, "%s", "no position found for this network")
		}
	}
	return failure.Wrap(failure.PositionUnavailable, err)
}
