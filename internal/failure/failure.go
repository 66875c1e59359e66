// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package failure implements the error taxonomy shared by the location providers, the geocoders
// and the acquisition state machine.
package failure

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure of a location or address acquisition.
type Kind int

const (
	Unknown Kind = iota
	PermissionDenied
	PositionUnavailable
	Timeout
	CapabilityMissing
	NetworkError
	UpstreamError
	MalformedResponse
	ConfigurationMissing
)

var kindNames = map[Kind]string{
	Unknown:              "unknown",
	PermissionDenied:     "permission_denied",
	PositionUnavailable:  "position_unavailable",
	Timeout:              "timeout",
	CapabilityMissing:    "capability_missing",
	NetworkError:         "network_error",
	UpstreamError:        "upstream_error",
	MalformedResponse:    "malformed_response",
	ConfigurationMissing: "configuration_missing",
}

// String returns the snake_case name of the Kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[Unknown]
}

// MarshalText satisfies encoding.TextMarshaler so kinds render as names in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is a classified failure. Status is only set for UpstreamError.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

// New returns a new Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err as the given kind. A nil err yields nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Upstream returns an UpstreamError for a non-successful HTTP status code.
func Upstream(status int) *Error {
	return &Error{Kind: UpstreamError, Status: status, Message: fmt.Sprintf("upstream returned HTTP %d", status)}
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so errors.Is(err, failure.New(Timeout, ""))
// matches any timeout failure.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of err. Context deadlines count as Timeout, anything unclassified
// as Unknown.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Unknown
}

// StatusOf returns the upstream HTTP status code of err, or 0 if there is none.
func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
