// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package acquire

import (
	"errors"
	"time"

	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/geo"
	"github.com/wneessen/whereami/internal/geocode"
)

// Phase is the current stage of the acquisition workflow.
type Phase int

const (
	Idle Phase = iota
	Locating
	Geocoding
	Ready
	Failed
)

var phaseNames = map[Phase]string{
	Idle:      "idle",
	Locating:  "locating",
	Geocoding: "geocoding",
	Ready:     "ready",
	Failed:    "failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Busy reports whether an operation is in flight.
func (p Phase) Busy() bool {
	return p == Locating || p == Geocoding
}

// Intent is a user request dispatched into the Machine.
type Intent string

const (
	IntentRequestLocation Intent = "request_location"
	IntentMapTap          Intent = "map_tap"
	IntentRetry           Intent = "retry"
	IntentDismiss         Intent = "dismiss"
	IntentReset           Intent = "reset"
)

var (
	// ErrBusy is returned when a location or map-tap intent arrives while an operation is in
	// flight.
	ErrBusy = errors.New("an acquisition is already in progress")
	// ErrInvalidTransition is returned when an intent is not valid in the current phase.
	ErrInvalidTransition = errors.New("intent is not valid in the current phase")
	// ErrInvalidCoordinate is returned for map taps outside the WGS84 range.
	ErrInvalidCoordinate = errors.New("coordinate is out of range")
	// ErrNoAddress is returned when an address is requested before one was resolved.
	ErrNoAddress = errors.New("no address resolved yet")
)

// ErrorInfo describes the failure that moved the Machine into the Failed phase.
type ErrorInfo struct {
	Kind    failure.Kind `json:"kind"`
	Message string       `json:"message"`
	Stage   Phase        `json:"stage"`
	Status  int          `json:"status,omitempty"`
	At      time.Time    `json:"at"`
}

// State is the acquisition state. Values behind the pointers are never mutated, a State
// returned by Snapshot can be read without synchronization.
type State struct {
	Phase   Phase            `json:"phase"`
	Sample  *geo.Sample      `json:"sample"`
	Address *geocode.Address `json:"address"`
	Error   *ErrorInfo       `json:"error"`
	Region  *geo.Region      `json:"region"`
	// Notice is a persistent message, set when the Machine was built with a configuration
	// error.
	Notice    string    `json:"notice,omitempty"`
	Seq       uint64    `json:"seq"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Result returns the short outcome name of an intent error, used as metric label.
func Result(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrInvalidCoordinate):
		return "invalid_coordinate"
	case failure.IsKind(err, failure.ConfigurationMissing):
		return "configuration_missing"
	default:
		return "error"
	}
}
