// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wneessen/whereami/internal/logger"
)

const (
	login1Path      = dbus.ObjectPath("/org/freedesktop/login1")
	login1Interface = "org.freedesktop.login1.Manager"
	sleepMember     = "PrepareForSleep"

	resumeDebounce   = 2 * time.Second
	signalBufferSize = 8

	busRetryDelay      = 5 * time.Second
	networkWakeupDelay = 10 * time.Second
)

// monitorSleepResume requests a new location whenever the system resumes from suspend, since a
// laptop has usually been carried somewhere else in the meantime. Lost bus connections are
// re-established until ctx is cancelled.
func (s *Service) monitorSleepResume(ctx context.Context) {
	var lastResume time.Time
	for {
		if err := s.watchResume(ctx, &lastResume); err != nil {
			s.logger.Debug("sleep monitoring interrupted", logger.Err(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(busRetryDelay):
		}
	}
}

// watchResume subscribes to PrepareForSleep on a fresh system bus connection and handles
// signals until the connection drops or ctx is cancelled.
func (s *Service) watchResume(ctx context.Context, lastResume *time.Time) error {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			s.logger.Error("failed to close system bus connection", logger.Err(err))
		}
	}()

	if err = conn.AddMatchSignal(
		dbus.WithMatchObjectPath(login1Path),
		dbus.WithMatchInterface(login1Interface),
		dbus.WithMatchMember(sleepMember),
	); err != nil {
		return err
	}
	signals := make(chan *dbus.Signal, signalBufferSize)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)
	s.logger.Debug("watching for system resume", slog.String("interface", login1Interface),
		slog.String("member", sleepMember))

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			if !isResume(sig) {
				continue
			}
			now := s.clock.Now()
			if now.Sub(*lastResume) < resumeDebounce {
				continue
			}
			*lastResume = now
			go s.handleResume(ctx)
		}
	}
}

func (s *Service) handleResume(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-s.clock.After(networkWakeupDelay):
	}
	s.logger.Debug("resumed from sleep, requesting a new location")
	s.requestLocation(ctx)
}

// isResume reports whether sig is a PrepareForSleep(false) signal, which logind emits after
// the system woke up.
func isResume(sig *dbus.Signal) bool {
	if sig == nil || sig.Name != login1Interface+"."+sleepMember || len(sig.Body) != 1 {
		return false
	}
	sleeping, ok := sig.Body[0].(bool)
	return ok && !sleeping
}
