// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// tapRequest is the body of POST /api/tap. Pointers keep a tap on the equator or the prime
// meridian distinguishable from a missing field.
type tapRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

type clipboardResponse struct {
	Copied string `json:"copied"`
}

type healthResponse struct {
	Status string `json:"status"`
	Phase  string `json:"phase"`
}

// State returns the current view model.
func (s *Server) State(c echo.Context) error {
	return c.JSON(http.StatusOK, s.presenter.View(s.machine.Snapshot()))
}

func (s *Server) RequestLocation(c echo.Context) error {
	if err := s.machine.RequestLocation(c.Request().Context()); err != nil {
		return err
	}
	return s.accepted(c)
}

func (s *Server) MapTap(c echo.Context) error {
	req := new(tapRequest)
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPayload, bindMessage(err))
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	if err := s.machine.MapTap(c.Request().Context(), *req.Latitude, *req.Longitude); err != nil {
		return err
	}
	return s.accepted(c)
}

func (s *Server) Retry(c echo.Context) error {
	if err := s.machine.Retry(c.Request().Context()); err != nil {
		return err
	}
	return s.accepted(c)
}

func (s *Server) Dismiss(c echo.Context) error {
	if err := s.machine.Dismiss(); err != nil {
		return err
	}
	return s.State(c)
}

func (s *Server) Reset(c echo.Context) error {
	s.machine.Reset()
	return s.State(c)
}

// CopyAddress writes the resolved address to the clipboard.
func (s *Server) CopyAddress(c echo.Context) error {
	addr, err := s.machine.Address()
	if err != nil {
		return err
	}
	text := addr.Text()
	if err = s.clipboard.Write(c.Request().Context(), text); err != nil {
		return fmt.Errorf("%w: %w", ErrClipboard, err)
	}
	return c.JSON(http.StatusOK, clipboardResponse{Copied: text})
}

func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Phase: s.machine.Snapshot().Phase.String()})
}

// accepted answers an intent that started background work with the state right after the
// transition.
func (s *Server) accepted(c echo.Context) error {
	return c.JSON(http.StatusAccepted, s.presenter.View(s.machine.Snapshot()))
}

func bindMessage(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return fmt.Sprintf("%v", he.Message)
	}
	return err.Error()
}
