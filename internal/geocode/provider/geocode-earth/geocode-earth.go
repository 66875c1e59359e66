// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocodeearth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/geocode"
	"github.com/wneessen/whereami/internal/http"
)

const (
	APIEndpoint = "https://api.geocode.earth/v1/reverse"
	name        = "geocode-earth"
)

type GeocodeEarth struct {
	apikey string
	http   *http.Client
	lang   language.Tag
}

type Response struct {
	Features []Feature `json:"features"`
	Type     string    `json:"type"`
}

type Feature struct {
	Properties Properties `json:"properties"`
	Type       string     `json:"type"`
}

type Properties struct {
	Label         string `json:"label"`
	Locality      string `json:"locality"`
	LocalAdmin    string `json:"localadmin"`
	County        string `json:"county"`
	Country       string `json:"country"`
	HouseNumber   string `json:"housenumber"`
	Neighbourhood string `json:"neighbourhood"`
	Borough       string `json:"borough"`
	Postcode      string `json:"postalcode"`
	Street        string `json:"street"`
	Region        string `json:"region"`
	RegionCode    string `json:"region_a"`
}

// New returns a geocode.earth geocoder. A missing API key is a configuration error.
func New(client *http.Client, lang language.Tag, apikey string) (*GeocodeEarth, error) {
	if strings.TrimSpace(apikey) == "" {
		return nil, failure.New(failure.ConfigurationMissing, "geocode.earth requires an API key")
	}
	return &GeocodeEarth{
		apikey: apikey,
		lang:   lang,
		http:   client,
	}, nil
}

func (g *GeocodeEarth) Name() string {
	return name
}

func (g *GeocodeEarth) Reverse(ctx context.Context, lat, lon float64) (geocode.Address, error) {
	var response Response

	query := url.Values{}
	query.Set("api_key", g.apikey)
	query.Set("point.lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("point.lon", strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("size", "1")
	query.Set("lang", g.lang.String())

	if _, err := g.http.Get(ctx, APIEndpoint, &response, query, nil); err != nil {
		return geocode.Address{}, fmt.Errorf("failed to retrieve address details from geocode.earth API: %w",
			geocode.Classify(err))
	}
	if len(response.Features) < 1 {
		return geocode.Address{}, failure.New(failure.MalformedResponse, "geocode.earth returned no address for coordinates")
	}

	result := response.Features[0].Properties
	if result.Label == "" {
		return geocode.Address{}, failure.New(failure.MalformedResponse, "geocode.earth response is missing a label")
	}
	address := geocode.Address{
		DisplayName:   result.Label,
		Road:          geocode.Optional(result.Street),
		Neighbourhood: geocode.FirstOf(result.Neighbourhood, result.Borough),
		City:          geocode.FirstOf(result.Locality, result.LocalAdmin, result.County),
		State:         geocode.Optional(result.Region),
		Postcode:      geocode.Optional(result.Postcode),
	}
	address.Formatted = geocode.Format(address, result.HouseNumber)

	return address, nil
}
