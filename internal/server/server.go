// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package server exposes the acquisition state and user intents over HTTP for map clients.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wneessen/whereami/internal/acquire"
	"github.com/wneessen/whereami/internal/clipboard"
	"github.com/wneessen/whereami/internal/geocode"
	"github.com/wneessen/whereami/internal/logger"
	"github.com/wneessen/whereami/internal/presenter"
)

const ShutdownTimeout = time.Second * 5

// Controller is the part of the acquisition Machine the HTTP surface drives.
type Controller interface {
	RequestLocation(ctx context.Context) error
	MapTap(ctx context.Context, lat, lon float64) error
	Retry(ctx context.Context) error
	Dismiss() error
	Reset()
	Snapshot() acquire.State
	Address() (geocode.Address, error)
}

type Server struct {
	echo      *echo.Echo
	machine   Controller
	presenter *presenter.Presenter
	clipboard clipboard.Writer
	logger    *logger.Logger
}

// New builds the echo instance with all routes registered. gatherer may be nil, in which
// case the default Prometheus registry is served on /metrics.
func New(machine Controller, pres *presenter.Presenter, clip clipboard.Writer, gatherer prometheus.Gatherer,
	log *logger.Logger,
) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	srv := &Server{
		echo:      echo.New(),
		machine:   machine,
		presenter: pres,
		clipboard: clip,
		logger:    log,
	}

	e := srv.echo
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			attrs := []any{
				slog.String("method", v.Method), slog.String("uri", v.URI),
				slog.Int("status", v.Status), slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, logger.Err(v.Error))
			}
			log.Debug("http request", attrs...)
			return nil
		},
	}))

	api := e.Group("/api")
	api.GET("/state", srv.State)
	api.POST("/location", srv.RequestLocation)
	api.POST("/tap", srv.MapTap)
	api.POST("/retry", srv.Retry)
	api.POST("/dismiss", srv.Dismiss)
	api.POST("/reset", srv.Reset)
	api.POST("/clipboard", srv.CopyAddress)

	e.GET("/health", srv.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return srv
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled, then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.echo.Start(addr)
	}()
	s.logger.Info("http server started", slog.String("addr", addr))

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
