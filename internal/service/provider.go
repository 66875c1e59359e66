// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/wneessen/whereami/internal/config"
	"github.com/wneessen/whereami/internal/geocode"
	geocodeearth "github.com/wneessen/whereami/internal/geocode/provider/geocode-earth"
	"github.com/wneessen/whereami/internal/geocode/provider/locationiq"
	"github.com/wneessen/whereami/internal/geocode/provider/opencage"
	nominatim "github.com/wneessen/whereami/internal/geocode/provider/osm-nominatim"
	"github.com/wneessen/whereami/internal/gpspoll"
	"github.com/wneessen/whereami/internal/locate"
	"github.com/wneessen/whereami/internal/locate/browser"
	"github.com/wneessen/whereami/internal/locate/device"
	locfile "github.com/wneessen/whereami/internal/locate/device/file"
	"github.com/wneessen/whereami/internal/locate/device/geoclue"
	gpsdsensor "github.com/wneessen/whereami/internal/locate/device/gpsd"
	"github.com/wneessen/whereami/internal/logger"
)

const nominatimMaxRate = 1

// detectProvider selects the location provider once, in order of preference: GeoClue2 on the
// system bus, a local gpsd and finally the network based browser lookup. A configured location
// file overrides all of them.
func (s *Service) detectProvider(ctx context.Context) locate.Provider {
	return locate.Select(ctx, s.logger, s.locationCandidates()...)
}

func (s *Service) locationCandidates() []locate.Candidate {
	var candidates []locate.Candidate

	if !s.config.Location.DisableDevice {
		fileSensor := locfile.New(s.config.Location.File, s.clock)
		gpsClient := gpspoll.New(s.config.Location.GPSDHost, strconv.Itoa(s.config.Location.GPSDPort))
		candidates = append(candidates,
			locate.Candidate{
				Name:   "file",
				Detect: fileSensor.Available,
				Build: func() (locate.Provider, error) {
					return device.New(fileSensor), nil
				},
			},
			locate.Candidate{
				Name:   "geoclue",
				Detect: geoclue.Available,
				Build: func() (locate.Provider, error) {
					return device.New(geoclue.New(DesktopID, s.clock)), nil
				},
			},
			locate.Candidate{
				Name:   "gpsd",
				Detect: gpsClient.Reachable,
				Build: func() (locate.Provider, error) {
					return device.New(gpsdsensor.New(gpsClient, s.clock)), nil
				},
			},
		)
	}

	candidates = append(candidates, locate.Candidate{
		Name: "browser",
		Build: func() (locate.Provider, error) {
			var scanner browser.Scanner
			wifiScanner, err := browser.NewWifiScanner()
			if err != nil {
				s.logger.Debug("wifi scanning unavailable, using IP based lookup only", logger.Err(err))
			} else {
				scanner = wifiScanner
				s.closers = append(s.closers, wifiScanner)
			}
			return browser.New(s.httpClient, s.config.Location.Endpoint, scanner, s.logger, s.clock), nil
		},
	})

	return candidates
}

// selectGeocodeProvider builds the configured geocoder behind a rate limiter. A missing API key
// is reported as ConfigurationMissing failure.
func (s *Service) selectGeocodeProvider() (geocode.Geocoder, error) {
	var (
		coder geocode.Geocoder
		err   error
	)
	lang := s.translator.Language()
	perSecond := s.config.Geocoder.RateLimit

	switch strings.ToLower(s.config.Geocoder.Provider) {
	case config.ProviderLocationIQ:
		coder, err = locationiq.New(s.httpClient, lang, s.config.Geocoder.APIKey)
	case config.ProviderOpenCage:
		coder, err = opencage.New(s.httpClient, lang, s.config.Geocoder.APIKey)
	case config.ProviderGeocodeEarth:
		coder, err = geocodeearth.New(s.httpClient, lang, s.config.Geocoder.APIKey)
	case config.ProviderNominatim:
		coder = nominatim.New(s.httpClient, lang)
		// The public instance allows one request per second at most
		if perSecond <= 0 || perSecond > nominatimMaxRate {
			perSecond = nominatimMaxRate
		}
	default:
		return nil, fmt.Errorf("unsupported geocoder type: %s", s.config.Geocoder.Provider)
	}
	if err != nil {
		return nil, err
	}

	return geocode.NewRateLimited(coder, perSecond), nil
}
