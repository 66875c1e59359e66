// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package device implements the device geolocation variant: a local positioning service that
// has to grant permission before it hands out a position.
package device

import (
	"context"
	"errors"
	"sync"

	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/geo"
	"github.com/wneessen/whereami/internal/locate"
)

// Sensor is a local positioning service.
type Sensor interface {
	Name() string
	// RequestPermission asks the platform for location access. It reports false if the
	// access was denied.
	RequestPermission(ctx context.Context) (bool, error)
	Fix(ctx context.Context, highAccuracy bool) (geo.Sample, error)
}

// Provider adapts a Sensor to the locate.Provider interface.
type Provider struct {
	sensor Sensor

	mu      sync.Mutex
	granted bool
}

func New(sensor Sensor) *Provider {
	return &Provider{sensor: sensor}
}

func (p *Provider) Name() string {
	return p.sensor.Name()
}

func (p *Provider) Variant() locate.Variant {
	return locate.VariantDevice
}

// Acquire requests permission on first use and then reads a single fix from the sensor. A
// denied permission is reported as PermissionDenied.
func (p *Provider) Acquire(ctx context.Context, opts locate.Options) (geo.Sample, error) {
	if err := p.ensurePermission(ctx); err != nil {
		return geo.Sample{}, err
	}
	sample, err := p.sensor.Fix(ctx, opts.HighAccuracy)
	if err != nil {
		if failure.IsKind(err, failure.PermissionDenied) {
			p.revoke()
		}
		return geo.Sample{}, err
	}
	return sample, nil
}

func (p *Provider) ensurePermission(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.granted {
		return nil
	}

	granted, err := p.sensor.RequestPermission(ctx)
	if err != nil {
		var fe *failure.Error
		if errors.As(err, &fe) {
			return err
		}
		return failure.Wrap(failure.PositionUnavailable, err)
	}
	if !granted {
		return failure.New(failure.PermissionDenied, "location access for %s was denied", p.sensor.Name())
	}
	p.granted = true
	return nil
}

// revoke forgets a granted permission, so the next acquisition asks again.
func (p *Provider) revoke() {
	p.mu.Lock()
	p.granted = false
	p.mu.Unlock()
}
