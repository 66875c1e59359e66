// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/wneessen/whereami/internal/failure"
)

// RateLimited gates calls to the wrapped Geocoder. Calls wait for a token instead of failing,
// so a burst of map taps does not run into the upstream quota.
type RateLimited struct {
	coder   Geocoder
	limiter *rate.Limiter
}

// NewRateLimited wraps coder with a limiter allowing perSecond requests per second. A
// non-positive perSecond disables the limit.
func NewRateLimited(coder Geocoder, perSecond float64) *RateLimited {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &RateLimited{
		coder:   coder,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (r *RateLimited) Name() string {
	return "rate limited " + r.coder.Name()
}

func (r *RateLimited) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Address{}, failure.Wrap(failure.NetworkError, err)
	}
	return r.coder.Reverse(ctx, lat, lon)
}
