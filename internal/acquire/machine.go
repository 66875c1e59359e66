// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package acquire implements the acquisition state machine. It owns the location, address and
// error state and drives the location provider and the geocoder through the transitions
// Idle → Locating → Geocoding → Ready, with Failed reachable from every busy phase.
package acquire

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/geo"
	"github.com/wneessen/whereami/internal/geocode"
	"github.com/wneessen/whereami/internal/locate"
	"github.com/wneessen/whereami/internal/logger"
)

const (
	// TapAccuracy is the nominal accuracy in meters of a sample synthesized from a map tap.
	TapAccuracy = 5.0
	// SourceMapTap is the sample source of map taps.
	SourceMapTap = "map-tap"
)

// Observer receives measurements of the Machine. Implementations must not block.
type Observer interface {
	ObserveIntent(intent Intent, result string)
	ObserveTransition(phase Phase)
	ObserveFailure(kind failure.Kind)
	ObserveDuration(operation string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveIntent(Intent, string)          {}
func (nopObserver) ObserveTransition(Phase)               {}
func (nopObserver) ObserveFailure(failure.Kind)           {}
func (nopObserver) ObserveDuration(string, time.Duration) {}

// Option configures a Machine.
type Option func(*Machine)

// WithClock sets the clock used for timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Machine) { m.clock = clock }
}

// WithObserver sets the Observer notified about intents, transitions and failures.
func WithObserver(observer Observer) Option {
	return func(m *Machine) { m.observer = observer }
}

// WithLocateOptions sets the options passed to the location provider.
func WithLocateOptions(opts locate.Options) Option {
	return func(m *Machine) { m.opts = opts }
}

// WithAspect sets the viewport aspect ratio (width/height) regions are derived with.
func WithAspect(aspect float64) Option {
	return func(m *Machine) { m.aspect = aspect }
}

// WithConfigError builds the Machine in the configuration missing mode: the error is shown as
// persistent notice and every acquisition intent is rejected.
func WithConfigError(err error) Option {
	return func(m *Machine) { m.configErr = err }
}

// pendingOp is the last attempted operation, re-issued on retry.
type pendingOp struct {
	stage  Phase
	coords geo.Coordinate
}

// Machine is the acquisition state machine. Intents are validated and applied under a lock,
// the blocking provider and geocoder calls run in background goroutines. Each operation
// carries the sequence number current at its start and its completion is dropped if the
// sequence moved on in the meantime.
type Machine struct {
	locator  locate.Provider
	geocoder geocode.Geocoder
	logger   *logger.Logger
	clock    clockwork.Clock
	observer Observer
	opts     locate.Options
	aspect   float64

	mu        sync.Mutex
	state     State
	pending   *pendingOp
	configErr error

	bus *bus
	wg  sync.WaitGroup
}

// New returns a Machine in the Idle phase.
func New(locator locate.Provider, geocoder geocode.Geocoder, log *logger.Logger, options ...Option) *Machine {
	m := &Machine{
		locator:  locator,
		geocoder: geocoder,
		logger:   log,
		clock:    clockwork.NewRealClock(),
		observer: nopObserver{},
		aspect:   1,
		bus:      newBus(),
	}
	for _, option := range options {
		option(m)
	}
	if m.configErr != nil {
		m.configErr = failure.Wrap(failure.ConfigurationMissing, m.configErr)
		m.state.Notice = m.configErr.Error()
		m.logger.Warn("acquisition disabled due to missing configuration", logger.Err(m.configErr))
	}
	m.state.UpdatedAt = m.clock.Now()
	return m
}

// RequestLocation acquires the current position and resolves its address. It is valid from
// Idle, Ready and Failed and returns ErrBusy while an operation is in flight.
func (m *Machine) RequestLocation(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.accept(IntentRequestLocation); err != nil {
		return err
	}
	m.startLocating(ctx)
	return nil
}

// MapTap resolves the address of a tapped map point. It skips the location provider and
// synthesizes a sample with TapAccuracy.
func (m *Machine) MapTap(ctx context.Context, lat, lon float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coords := geo.Coordinate{Latitude: lat, Longitude: lon, Accuracy: TapAccuracy}
	if !coords.Valid() {
		m.observer.ObserveIntent(IntentMapTap, Result(ErrInvalidCoordinate))
		return ErrInvalidCoordinate
	}
	if err := m.accept(IntentMapTap); err != nil {
		return err
	}

	sample := geo.NewSample(coords, m.clock.Now(), SourceMapTap)
	region := geo.NewRegion(coords, geo.ZoomTap, m.aspect)
	m.state.Seq++
	m.state.Sample = &sample
	m.state.Region = &region
	m.state.Address = nil
	m.state.Error = nil
	m.startGeocoding(ctx, coords)
	return nil
}

// Retry re-issues the operation that failed. It is only valid from Failed.
func (m *Machine) Retry(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.configErr != nil {
		m.observer.ObserveIntent(IntentRetry, Result(m.configErr))
		return m.configErr
	}
	if m.state.Phase != Failed || m.pending == nil {
		m.observer.ObserveIntent(IntentRetry, Result(ErrInvalidTransition))
		return ErrInvalidTransition
	}
	m.observer.ObserveIntent(IntentRetry, Result(nil))

	if m.pending.stage == Locating {
		m.startLocating(ctx)
		return nil
	}
	m.state.Seq++
	m.state.Error = nil
	m.startGeocoding(ctx, m.pending.coords)
	return nil
}

// Dismiss clears the error banner and returns to Idle. The last sample stays on the map.
func (m *Machine) Dismiss() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Phase != Failed {
		m.observer.ObserveIntent(IntentDismiss, Result(ErrInvalidTransition))
		return ErrInvalidTransition
	}
	m.observer.ObserveIntent(IntentDismiss, Result(nil))
	m.pending = nil
	m.state.Error = nil
	m.transition(Idle)
	return nil
}

// Reset returns to Idle from any phase and clears all acquired data. An operation still in
// flight completes in the background but its result is discarded.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.observer.ObserveIntent(IntentReset, Result(nil))
	m.pending = nil
	m.state = State{
		Notice: m.state.Notice,
		Seq:    m.state.Seq + 1,
	}
	m.transition(Idle)
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Address returns the resolved address, or ErrNoAddress.
func (m *Machine) Address() (geocode.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Address == nil {
		return geocode.Address{}, ErrNoAddress
	}
	return *m.state.Address, nil
}

// Subscribe returns a channel receiving the current state and every subsequent change, and a
// function to cancel the subscription. Slow subscribers only see the latest state.
func (m *Machine) Subscribe(size int) (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bus.subscribe(size, m.state)
}

// Wait blocks until all operations in flight have completed.
func (m *Machine) Wait() {
	m.wg.Wait()
}

// accept validates an acquisition intent. Must be called with m.mu held.
func (m *Machine) accept(intent Intent) error {
	var err error
	switch {
	case m.configErr != nil:
		err = m.configErr
	case m.state.Phase.Busy():
		err = ErrBusy
	}
	m.observer.ObserveIntent(intent, Result(err))
	if err != nil {
		m.logger.Debug("intent rejected", slog.String("intent", string(intent)),
			slog.String("phase", m.state.Phase.String()), logger.Err(err))
	}
	return err
}

// startLocating enters Locating and starts the provider call. Must be called with m.mu held.
func (m *Machine) startLocating(ctx context.Context) {
	m.state.Seq++
	m.state.Error = nil
	m.pending = &pendingOp{stage: Locating}
	m.transition(Locating)

	seq := m.state.Seq
	m.wg.Add(1)
	go m.locate(context.WithoutCancel(ctx), seq)
}

// startGeocoding enters Geocoding and starts the geocoder call. Must be called with m.mu held.
func (m *Machine) startGeocoding(ctx context.Context, coords geo.Coordinate) {
	m.pending = &pendingOp{stage: Geocoding, coords: coords}
	m.transition(Geocoding)

	seq := m.state.Seq
	m.wg.Add(1)
	go m.geocode(context.WithoutCancel(ctx), seq, coords)
}

func (m *Machine) locate(ctx context.Context, seq uint64) {
	defer m.wg.Done()

	start := m.clock.Now()
	sample, err := m.locator.Acquire(ctx, m.opts)
	m.observer.ObserveDuration("locate", m.clock.Since(start))

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stale(seq, "locate") {
		return
	}
	if err != nil {
		m.fail(Locating, err)
		return
	}

	region := geo.NewRegion(sample.Coords, geo.ZoomFix, m.aspect)
	m.state.Sample = &sample
	m.state.Region = &region
	m.state.Address = nil
	m.logger.Debug("location acquired", slog.String("source", sample.Source),
		slog.Float64("lat", sample.Coords.Latitude), slog.Float64("lon", sample.Coords.Longitude),
		slog.Float64("accuracy", sample.Coords.Accuracy))
	m.startGeocoding(ctx, sample.Coords)
}

func (m *Machine) geocode(ctx context.Context, seq uint64, coords geo.Coordinate) {
	defer m.wg.Done()

	start := m.clock.Now()
	address, err := m.geocoder.Reverse(ctx, coords.Latitude, coords.Longitude)
	m.observer.ObserveDuration("geocode", m.clock.Since(start))

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stale(seq, "geocode") {
		return
	}
	if err != nil {
		m.fail(Geocoding, err)
		return
	}

	m.pending = nil
	m.state.Address = &address
	m.transition(Ready)
}

// stale reports whether the operation started with seq was superseded. Must be called with
// m.mu held.
func (m *Machine) stale(seq uint64, operation string) bool {
	if m.state.Seq == seq {
		return false
	}
	m.logger.Debug("discarding stale completion", slog.String("operation", operation),
		slog.Uint64("seq", seq), slog.Uint64("current_seq", m.state.Seq))
	return true
}

// fail records err and enters Failed. Sample and region are kept. Must be called with m.mu
// held.
func (m *Machine) fail(stage Phase, err error) {
	kind := failure.KindOf(err)
	m.state.Error = &ErrorInfo{
		Kind:    kind,
		Message: err.Error(),
		Stage:   stage,
		Status:  failure.StatusOf(err),
		At:      m.clock.Now(),
	}
	m.observer.ObserveFailure(kind)
	m.logger.Error("acquisition failed", slog.String("stage", stage.String()),
		slog.String("kind", kind.String()), logger.Err(err))
	m.transition(Failed)
}

// transition sets the phase and publishes the new state. Must be called with m.mu held.
func (m *Machine) transition(phase Phase) {
	m.state.Phase = phase
	m.state.UpdatedAt = m.clock.Now()
	m.observer.ObserveTransition(phase)
	m.logger.Debug("state transition", slog.String("phase", phase.String()), slog.Uint64("seq", m.state.Seq))
	m.bus.publish(m.state)
}
