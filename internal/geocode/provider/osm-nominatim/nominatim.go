// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package nominatim

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/text/language"

	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/geocode"
	"github.com/wneessen/whereami/internal/http"
)

const (
	APIReverseEndpoint = "https://nominatim.openstreetmap.org/reverse"
	name               = "osm-nominatim"
)

// Nominatim resolves addresses through the public OpenStreetMap Nominatim instance. It needs no
// API key, but the usage policy allows at most one request per second.
type Nominatim struct {
	http *http.Client
	lang language.Tag
}

type ReverseResult struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
	Error       string  `json:"error"`
}

type Address struct {
	HouseNumber   string `json:"house_number"`
	Road          string `json:"road"`
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	CityDistrict  string `json:"city_district"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	Municipality  string `json:"municipality"`
	State         string `json:"state"`
	Postcode      string `json:"postcode"`
	Country       string `json:"country"`
}

func New(client *http.Client, lang language.Tag) *Nominatim {
	return &Nominatim{
		lang: lang,
		http: client,
	}
}

func (n *Nominatim) Name() string {
	return name
}

func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (geocode.Address, error) {
	var result ReverseResult

	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("addressdetails", "1")
	query.Set("accept-language", n.lang.String())

	if _, err := n.http.Get(ctx, APIReverseEndpoint, &result, query, nil); err != nil {
		return geocode.Address{}, fmt.Errorf("failed to fetch reverse address details from Nominatim API: %w",
			geocode.Classify(err))
	}
	// Nominatim answers 200 with an error message when nothing is found at the coordinates
	if result.Error != "" {
		return geocode.Address{}, failure.New(failure.MalformedResponse, "Nominatim found no address: %s",
			result.Error)
	}
	if result.DisplayName == "" {
		return geocode.Address{}, failure.New(failure.MalformedResponse, "Nominatim response is missing display_name")
	}

	details := result.Address
	address := geocode.Address{
		DisplayName:   result.DisplayName,
		Road:          geocode.Optional(details.Road),
		Neighbourhood: geocode.FirstOf(details.Neighbourhood, details.Suburb, details.CityDistrict),
		City:          geocode.FirstOf(details.City, details.Town, details.Village, details.Municipality),
		State:         geocode.Optional(details.State),
		Postcode:      geocode.Optional(details.Postcode),
	}
	address.Formatted = geocode.Format(address, details.HouseNumber)

	return address, nil
}
