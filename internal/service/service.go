// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wneessen/whereami/internal/acquire"
	"github.com/wneessen/whereami/internal/clipboard"
	"github.com/wneessen/whereami/internal/config"
	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/http"
	"github.com/wneessen/whereami/internal/i18n"
	"github.com/wneessen/whereami/internal/locate"
	"github.com/wneessen/whereami/internal/logger"
	"github.com/wneessen/whereami/internal/metrics"
	"github.com/wneessen/whereami/internal/presenter"
	"github.com/wneessen/whereami/internal/server"
)

const (
	DesktopID = "whereami"

	subscriptionSize = 8
)

type Service struct {
	config     *config.Config
	clipboard  clipboard.Writer
	clock      clockwork.Clock
	httpClient *http.Client
	logger     *logger.Logger
	machine    *acquire.Machine
	metrics    *metrics.Metrics
	presenter  *presenter.Presenter
	registry   *prometheus.Registry
	scheduler  gocron.Scheduler
	translator *i18n.Translator

	// selectProvider runs the platform detection, replaceable in tests
	selectProvider func(ctx context.Context) locate.Provider
	// watchSleep re-locates after a system resume, nil disables it
	watchSleep func(ctx context.Context)
	signalSrc  signalSource
	closers    []io.Closer

	outputLock sync.Mutex
	output     io.Writer
}

func New(conf *config.Config, log *logger.Logger) (*Service, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	translator, err := i18n.New(conf.Locale)
	if err != nil {
		return nil, fmt.Errorf("failed to create translator: %w", err)
	}

	clock := clockwork.NewRealClock()
	pres, err := presenter.New(conf, translator, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	clip, err := clipboard.New(conf.Clipboard.Command)
	if err != nil {
		return nil, fmt.Errorf("failed to create clipboard writer: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service := &Service{
		config:     conf,
		clipboard:  clip,
		clock:      clock,
		httpClient: http.New(log),
		logger:     log,
		metrics:    metrics.New(registry),
		presenter:  pres,
		registry:   registry,
		scheduler:  scheduler,
		translator: translator,
		signalSrc:  stdLibSignalSource{},
		output:     os.Stdout,
	}
	service.selectProvider = service.detectProvider
	service.watchSleep = service.monitorSleepResume
	return service, nil
}

// Run builds the acquisition machine and drives it until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	geocoder, err := s.selectGeocodeProvider()
	var configErr error
	switch {
	case failure.IsKind(err, failure.ConfigurationMissing):
		configErr = errors.New(s.config.MissingAPIKey())
	case err != nil:
		return fmt.Errorf("failed to create geocode provider: %w", err)
	}

	locator := locate.NewLocator(s.selectProvider(ctx), s.logger, s.clock)
	options := []acquire.Option{
		acquire.WithClock(s.clock),
		acquire.WithObserver(s.metrics),
		acquire.WithAspect(s.config.Map.Aspect),
		acquire.WithLocateOptions(locate.Options{
			HighAccuracy: !s.config.Location.DisableHighAccuracy,
			Timeout:      s.config.Location.Timeout,
			MaxAge:       s.config.Location.MaxAge,
		}),
	}
	if configErr != nil {
		options = append(options, acquire.WithConfigError(configErr))
	}
	s.machine = acquire.New(locator, geocoder, s.logger, options...)

	// Render every state change
	sub, unsub := s.machine.Subscribe(subscriptionSize)
	go s.processStateUpdates(ctx, sub)

	// Start scheduled jobs
	if err = s.createScheduledJob(ctx, s.config.Intervals.Output, s.printOutput, "output_job"); err != nil {
		return err
	}
	if s.config.Intervals.Refresh > 0 {
		if err = s.createScheduledJob(ctx, s.config.Intervals.Refresh, s.refreshLocation,
			"location_refresh_job"); err != nil {
			return err
		}
	}
	s.scheduler.Start()

	// Bar click handlers
	sigChan := make(chan os.Signal, 1)
	s.signalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
	go s.HandleSignals(ctx, sigChan)

	if s.watchSleep != nil {
		go s.watchSleep(ctx)
	}

	serverErr := make(chan error, 1)
	if s.config.Server.Listen != "" {
		srv := server.New(s.machine, s.presenter, s.clipboard, s.registry, s.logger)
		go func() {
			serverErr <- srv.Run(ctx, s.config.Server.Listen)
		}()
	}

	if !s.config.Location.DisableLocateOnStart {
		s.requestLocation(ctx)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
		if runErr != nil {
			runErr = fmt.Errorf("http server failed: %w", runErr)
		}
	}

	s.signalSrc.Stop(sigChan)
	unsub()
	s.machine.Wait()
	for _, closer := range s.closers {
		if err = closer.Close(); err != nil {
			s.logger.Error("failed to close resource", logger.Err(err))
		}
	}
	if err = s.scheduler.Shutdown(); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to shut down scheduler: %w", err))
	}
	return runErr
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// processStateUpdates prints a bar line for every state the machine publishes.
func (s *Service) processStateUpdates(ctx context.Context, sub <-chan acquire.State) {
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-sub:
			if !ok {
				return
			}
			s.logger.Debug("received state update", slog.String("phase", state.Phase.String()),
				slog.Uint64("seq", state.Seq))
			s.render(state)
		}
	}
}

// printOutput re-prints the current state, so the relative times in the tooltip stay fresh.
func (s *Service) printOutput(context.Context) {
	if s.machine == nil {
		return
	}
	s.render(s.machine.Snapshot())
}

func (s *Service) render(state acquire.State) {
	if s.config.Output.DisableWaybar {
		return
	}
	output, err := s.presenter.Waybar(state)
	if err != nil {
		s.logger.Error("failed to render output template", logger.Err(err))
		return
	}

	s.outputLock.Lock()
	defer s.outputLock.Unlock()
	if err = json.NewEncoder(s.output).Encode(output); err != nil {
		s.logger.Error("failed to encode output", logger.Err(err))
	}
}

// refreshLocation is the configured periodic re-location. A busy machine simply skips the run.
func (s *Service) refreshLocation(ctx context.Context) {
	s.requestLocation(ctx)
}

func (s *Service) requestLocation(ctx context.Context) {
	err := s.machine.RequestLocation(ctx)
	switch {
	case err == nil:
	case errors.Is(err, acquire.ErrBusy):
		s.logger.Debug("location request skipped, acquisition in progress")
	default:
		s.logger.Warn("location request rejected", logger.Err(err))
	}
}

// copyAddress writes the resolved address to the clipboard.
func (s *Service) copyAddress(ctx context.Context) error {
	addr, err := s.machine.Address()
	if err != nil {
		return err
	}
	text := addr.Text()
	if err = s.clipboard.Write(ctx, text); err != nil {
		return fmt.Errorf("failed to copy address: %w", err)
	}
	s.logger.Info(s.translator.Get("copied"), slog.String("address", text))
	return nil
}
