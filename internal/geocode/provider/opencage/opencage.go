// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package opencage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/language"

	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/geocode"
	"github.com/wneessen/whereami/internal/http"
)

const (
	APIEndpoint = "https://api.opencagedata.com/geocode/v1/json"
	name        = "opencage"
)

type OpenCage struct {
	apikey string
	http   *http.Client
	lang   language.Tag
}

type Response struct {
	Results      []Result `json:"results"`
	TotalResults int      `json:"total_results"`
}

type Result struct {
	Components Components `json:"components"`
	Formatted  string     `json:"formatted"`
	Geometry   Geometry   `json:"geometry"`
}

type Components struct {
	NomalizedCity string `json:"_normalized_city"`
	City          string `json:"city"`
	Country       string `json:"country"`
	CountryCode   string `json:"country_code"`
	HouseNumber   string `json:"house_number"`
	Neighbourhood string `json:"neighbourhood"`
	Postcode      string `json:"postcode"`
	Road          string `json:"road"`
	State         string `json:"state"`
	StateCode     string `json:"state_code"`
	Suburb        string `json:"suburb"`
	Town          string `json:"town"`
	Village       string `json:"village"`
}

type Geometry struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

// New returns an OpenCage geocoder. A missing API key is a configuration error.
func New(client *http.Client, lang language.Tag, apikey string) (*OpenCage, error) {
	if strings.TrimSpace(apikey) == "" {
		return nil, failure.New(failure.ConfigurationMissing, "OpenCage requires an API key")
	}
	return &OpenCage{
		apikey: apikey,
		lang:   lang,
		http:   client,
	}, nil
}

func (o *OpenCage) Name() string {
	return name
}

func (o *OpenCage) Reverse(ctx context.Context, lat, lon float64) (geocode.Address, error) {
	var response Response

	query := url.Values{}
	query.Set("key", o.apikey)
	query.Set("q", fmt.Sprintf("%f,%f", lat, lon))
	query.Set("no_annotations", "1")
	query.Set("no_record", "1")
	query.Set("language", o.lang.String())

	if _, err := o.http.Get(ctx, APIEndpoint, &response, query, nil); err != nil {
		return geocode.Address{}, fmt.Errorf("failed to retrieve address details from OpenCage API: %w",
			geocode.Classify(err))
	}
	if len(response.Results) == 0 || response.Results[0].Formatted == "" {
		return geocode.Address{}, failure.New(failure.MalformedResponse,
			"OpenCage returned no formatted address for coordinates (results: %d)", response.TotalResults)
	}

	result := response.Results[0]
	components := result.Components
	return geocode.Address{
		Formatted:     result.Formatted,
		DisplayName:   result.Formatted,
		Road:          geocode.Optional(components.Road),
		Neighbourhood: geocode.FirstOf(components.Neighbourhood, components.Suburb),
		City:          geocode.FirstOf(components.NomalizedCity, components.City, components.Town, components.Village),
		State:         geocode.Optional(components.State),
		Postcode:      geocode.Optional(components.Postcode),
	}, nil
}
