// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wneessen/whereami/internal/acquire"
	"github.com/wneessen/whereami/internal/logger"
)

type signalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// stdLibSignalSource is the production implementation.
type stdLibSignalSource struct{}

func (stdLibSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (stdLibSignalSource) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// HandleSignals maps bar clicks to intents. SIGUSR1 requests a new location, or retries the
// failed operation. SIGUSR2 copies the address to the clipboard.
func (s *Service) HandleSignals(ctx context.Context, sigChan chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGUSR1:
				s.locateOrRetry(ctx)
			case syscall.SIGUSR2:
				if err := s.copyAddress(ctx); err != nil {
					s.logger.Warn("failed to copy address", logger.Err(err))
				}
			default:
				s.logger.Debug("ignoring signal", slog.String("signal", sig.String()))
			}
		}
	}
}

func (s *Service) locateOrRetry(ctx context.Context) {
	if s.machine.Snapshot().Phase != acquire.Failed {
		s.requestLocation(ctx)
		return
	}
	err := s.machine.Retry(ctx)
	switch {
	case err == nil:
	case errors.Is(err, acquire.ErrInvalidTransition):
		// the failure was resolved in the meantime
		s.requestLocation(ctx)
	default:
		s.logger.Warn("retry rejected", logger.Err(err))
	}
}
