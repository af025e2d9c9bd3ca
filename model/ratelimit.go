package model

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimitedModel waits on a token bucket before every provider call.
type rateLimitedModel struct {
	next    Model
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter allowing requestsPerSecond calls with the
// given burst. A non-positive rate disables limiting and returns nil.
func NewRateLimiter(requestsPerSecond float64, burst int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// WithRateLimit wraps next so every ChatWithTools call first waits for a
// token from limiter. Waiting honours ctx, so a run deadline also bounds the
// time spent queued. A nil limiter returns next unchanged.
func WithRateLimit(next Model, limiter *rate.Limiter) Model {
	if next == nil || limiter == nil {
		return next
	}
	return &rateLimitedModel{next: next, limiter: limiter}
}

// ChatWithTools implements Model.
func (m *rateLimitedModel) ChatWithTools(ctx context.Context, req Request) (*Response, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return m.next.ChatWithTools(ctx, req)
}

// Info implements Model.
func (m *rateLimitedModel) Info() Info { return m.next.Info() }
