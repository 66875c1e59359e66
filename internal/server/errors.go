// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wneessen/whereami/internal/acquire"
	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/logger"
)

var (
	// ErrInvalidPayload is returned for request bodies that cannot be bound or validated.
	ErrInvalidPayload = errors.New("invalid request payload")
	// ErrClipboard wraps failures of the clipboard helper.
	ErrClipboard = errors.New("failed to copy to clipboard")
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// NewHTTPErrorHandler maps intent and domain errors to status codes and renders them as
// {"error": "<message>"}.
func NewHTTPErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, resp := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, resp)
	}
}

func resolveError(err error, log *logger.Logger, c echo.Context) (int, errorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	switch {
	case errors.Is(err, acquire.ErrBusy), errors.Is(err, acquire.ErrInvalidTransition),
		errors.Is(err, acquire.ErrNoAddress):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	case errors.Is(err, acquire.ErrInvalidCoordinate), errors.Is(err, ErrInvalidPayload):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error()}
	case failure.IsKind(err, failure.ConfigurationMissing):
		return http.StatusServiceUnavailable, errorResponse{
			Error: err.Error(),
			Kind:  failure.ConfigurationMissing.String(),
		}
	case errors.Is(err, ErrClipboard):
		return http.StatusBadGateway, errorResponse{Error: err.Error()}
	}

	log.Error("unhandled error", slog.String("method", c.Request().Method),
		slog.String("path", c.Path()), logger.Err(err))
	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}
