// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package locationiq

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
	APIEndpoint = "https://us1.locationiq.com/v1/reverse"
	name        = "locationiq"
)

type LocationIQ struct {
	apikey string
	http   *http.Client
	lang   language.Tag
}

type Response struct {
	DisplayName string     `json:"display_name"`
	Lat         string     `json:"lat"`
	Lon         string     `json:"lon"`
	Address     Components `json:"address"`
}

type Components struct {
	HouseNumber   string `json:"house_number"`
	Road          string `json:"road"`
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	State         string `json:"state"`
	Postcode      string `json:"postcode"`
	Country       string `json:"country"`
	CountryCode   string `json:"country_code"`
}

// New returns a LocationIQ geocoder. A missing API key is a configuration error.
func New(client *http.Client, lang language.Tag, apikey string) (*LocationIQ, error) {
	if strings.TrimSpace(apikey) == "" {
		return nil, failure.New(failure.ConfigurationMissing, "LocationIQ requires an API key")
	}
	return &LocationIQ{
		apikey: apikey,
		lang:   lang,
		http:   client,
	}, nil
}

func (l *LocationIQ) Name() string {
	return name
}

func (l *LocationIQ) Reverse(ctx context.Context, lat, lon float64) (geocode.Address, error) {
	var response Response

	query := url.Values{}
	query.Set("key", l.apikey)
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("format", "json")
	query.Set("normalizeaddress", "1")
	query.Set("accept-language", l.lang.String())

	if _, err := l.http.Get(ctx, APIEndpoint, &response, query, nil); err != nil {
		return geocode.Address{}, fmt.Errorf("failed to retrieve address details from LocationIQ API: %w",
			geocode.Classify(err))
	}
	if response.DisplayName == "" {
		return geocode.Address{}, failure.New(failure.MalformedResponse, "LocationIQ response is missing display_name")
	}

	result := response.Address
	address := geocode.Address{
		DisplayName:   response.DisplayName,
		Road:          geocode.Optional(result.Road),
		Neighbourhood: geocode.FirstOf(result.Neighbourhood, result.Suburb),
		City:          geocode.FirstOf(result.City, result.Town, result.Village),
		State:         geocode.Optional(result.State),
		Postcode:      geocode.Optional(result.Postcode),
	}
	address.Formatted = geocode.Format(address, result.HouseNumber)

	return address, nil
}
