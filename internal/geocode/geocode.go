// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geocode implements reverse geocoding of coordinates into addresses.
package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/http"
	"github.com/wneessen/whereami/internal/vartype"
)

// Address is the result of a reverse geocoding lookup. Formatted and DisplayName are always
// present, the structured components are unset when the upstream service did not report them.
type Address struct {
	Formatted     string            `json:"formatted"`
	DisplayName   string            `json:"display_name"`
	Road          vartype.VarString `json:"road"`
	Neighbourhood vartype.VarString `json:"neighbourhood"`
	City          vartype.VarString `json:"city"`
	State         vartype.VarString `json:"state"`
	Postcode      vartype.VarString `json:"postcode"`
}

// Text returns the address as a single line for the clipboard and the bar. The formatted
// address is preferred over the display name.
func (a Address) Text() string {
	if a.Formatted != "" {
		return a.Formatted
	}
	return a.DisplayName
}

// Geocoder converts coordinates into an Address. Implementations issue exactly one outbound
// request per call.
type Geocoder interface {
	Name() string
	Reverse(ctx context.Context, lat, lon float64) (Address, error)
}

// Classify maps an error returned by the http client to the failure taxonomy. The geocoder has
// no timeout of its own, so an expired transport deadline counts as a network error.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var statusErr *http.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.Is(err, http.ErrRequest):
		return failure.Wrap(failure.NetworkError, err)
	case errors.As(err, &statusErr):
		upstream := failure.Upstream(statusErr.Code)
		upstream.Err = err
		return upstream
	case errors.Is(err, http.ErrDecode):
		return failure.Wrap(failure.MalformedResponse, err)
	default:
		return failure.Wrap(failure.Unknown, err)
	}
}

// Optional returns an unset variable for an empty string.
func Optional(val string) vartype.VarString {
	if val == "" {
		return vartype.VarString{}
	}
	return vartype.NewVariable(val)
}

// FirstOf returns the first non-empty value as set variable.
func FirstOf(vals ...string) vartype.VarString {
	for _, val := range vals {
		if val != "" {
			return vartype.NewVariable(val)
		}
	}
	return vartype.VarString{}
}

// Format composes "<road>, <house number>, <city> - <state>" from the parts that are present
// and falls back to the display name. OSM based services report these parts, but no single
// formatted line.
func Format(addr Address, houseNumber string) string {
	parts := make([]string, 0, 3)
	if road, ok := addr.Road.Get(); ok {
		parts = append(parts, road)
	}
	if houseNumber != "" {
		parts = append(parts, houseNumber)
	}
	if city, ok := addr.City.Get(); ok {
		parts = append(parts, city)
	}
	formatted := strings.Join(parts, ", ")
	if state, ok := addr.State.Get(); ok {
		if formatted == "" {
			formatted = state
		} else {
			formatted += " - " + state
		}
	}
	if formatted == "" {
		return addr.DisplayName
	}
	return formatted
}
