// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package locate abstracts over the ways the current position can be acquired. A single
// Provider is selected once at startup and wrapped into a Locator that enforces the
// acquisition options.
package locate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/geo"
	"github.com/wneessen/whereami/internal/logger"
)

// Variant identifies the kind of geolocation capability behind a Provider.
type Variant int

const (
	// VariantBrowser resolves the position the way web browsers do: nearby WiFi access points
	// and the public IP are sent to a network geolocation service.
	VariantBrowser Variant = iota
	// VariantDevice reads the position from a local positioning service that requires an
	// explicit permission step.
	VariantDevice
	// VariantNone is used when the platform has no geolocation capability at all.
	VariantNone
)

func (v Variant) String() string {
	switch v {
	case VariantBrowser:
		return "browser"
	case VariantDevice:
		return "device"
	default:
		return "none"
	}
}

// Options controls a single acquisition.
type Options struct {
	HighAccuracy bool
	// Timeout bounds the acquisition, zero means no timeout.
	Timeout time.Duration
	// MaxAge allows reusing a previous fix that is no older than MaxAge. Zero always
	// acquires a fresh fix.
	MaxAge time.Duration
}

// Provider acquires a single position fix.
type Provider interface {
	Name() string
	Variant() Variant
	Acquire(ctx context.Context, opts Options) (geo.Sample, error)
}

// Locator wraps the selected Provider. It enforces the timeout and maximum age options and
// classifies any error the provider returns.
type Locator struct {
	provider Provider
	clock    clockwork.Clock
	logger   *logger.Logger

	mu   sync.Mutex
	last *geo.Sample
}

// NewLocator returns a Locator for the given provider.
func NewLocator(provider Provider, log *logger.Logger, clock clockwork.Clock) *Locator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Locator{
		provider: provider,
		clock:    clock,
		logger:   log,
	}
}

func (l *Locator) Name() string {
	return l.provider.Name()
}

func (l *Locator) Variant() Variant {
	return l.provider.Variant()
}

// Acquire returns a position fix. Errors are always *failure.Error values with one of the
// location failure kinds.
func (l *Locator) Acquire(ctx context.Context, opts Options) (geo.Sample, error) {
	if cached, ok := l.cached(opts.MaxAge); ok {
		l.logger.Debug("reusing cached location fix", slog.String("source", cached.Source),
			slog.Duration("age", cached.Age(l.clock.Now())))
		return cached, nil
	}

	acquireCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := l.clock.Now()
	sample, err := l.provider.Acquire(acquireCtx, opts)
	if err != nil {
		if errors.Is(acquireCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return geo.Sample{}, failure.New(failure.Timeout, "no position within %s", opts.Timeout)
		}
		return geo.Sample{}, classify(err)
	}
	if !sample.Coords.Valid() {
		return geo.Sample{}, failure.New(failure.PositionUnavailable, "provider %s returned invalid coordinates",
			l.provider.Name())
	}

	l.mu.Lock()
	l.last = &sample
	l.mu.Unlock()
	l.logger.Debug("acquired location fix", slog.String("source", sample.Source),
		slog.Float64("accuracy", sample.Coords.Accuracy), slog.Duration("took", l.clock.Since(start)))
	return sample, nil
}

func (l *Locator) cached(maxAge time.Duration) (geo.Sample, bool) {
	if maxAge <= 0 {
		return geo.Sample{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil || l.last.Age(l.clock.Now()) > maxAge {
		return geo.Sample{}, false
	}
	return *l.last, true
}

// classify makes sure err carries a location failure kind.
func classify(err error) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return failure.Wrap(failure.Timeout, err)
	}
	return failure.Wrap(failure.Unknown, err)
}

// Candidate is a Provider that can be selected if it is detected on the platform.
type Candidate struct {
	Name   string
	Detect func(ctx context.Context) bool
	Build  func() (Provider, error)
}

// Select runs platform detection over the ordered candidates and returns the first provider
// that is detected and can be built. If no candidate is usable, the returned provider fails
// every acquisition with CapabilityMissing.
func Select(ctx context.Context, log *logger.Logger, candidates ...Candidate) Provider {
	for _, candidate := range candidates {
		if candidate.Detect != nil && !candidate.Detect(ctx) {
			log.Debug("geolocation capability not detected", slog.String("candidate", candidate.Name))
			continue
		}
		provider, err := candidate.Build()
		if err != nil {
			log.Warn("failed to initialize geolocation provider", slog.String("candidate", candidate.Name),
				logger.Err(err))
			continue
		}
		log.Info("selected geolocation provider", slog.String("provider", provider.Name()),
			slog.String("variant", provider.Variant().String()))
		return provider
	}
	log.Warn("no geolocation capability available on this platform")
	return Unavailable{}
}

// Unavailable is the Provider of a platform without any geolocation capability.
type Unavailable struct{}

func (Unavailable) Name() string { return "unavailable" }

func (Unavailable) Variant() Variant { return VariantNone }

func (Unavailable) Acquire(context.Context, Options) (geo.Sample, error) {
	return geo.Sample{}, failure.New(failure.CapabilityMissing, "%s", "no geolocation capability available")
}

// String implements fmt.Stringer for log output.
func (o Options) String() string {
	return fmt.Sprintf("high_accuracy=%t timeout=%s max_age=%s", o.HighAccuracy, o.Timeout, o.MaxAge)
}
