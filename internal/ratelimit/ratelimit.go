// Package ratelimit enforces the outbound request budget for each receipt
// provider. One Limiter is shared by every worker that talks to a provider,
// so the budget holds across the whole process, not per call site.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/whalewatch/whaletx/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter wraps a token bucket for one provider.
type Limiter struct {
	limiter  *rate.Limiter
	provider string
}

// New allows rps requests per second with the given burst. A burst below 1
// is raised to 1 so Wait can always make progress.
func New(rps float64, burst int, provider string) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		provider: provider,
	}
}

// Wait blocks until one token is available or ctx is done. Reserve is used
// rather than Wait so a canceled context returns its token.
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token for %s", l.provider)
	}
	delay := r.Delay()
	if delay > 0 {
		metrics.RateLimitWaits.WithLabelValues(l.provider).Inc()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}
	return nil
}

// Registry hands out one shared Limiter per provider name.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter

	defaultRPS   float64
	defaultBurst int
}

func NewRegistry(defaultRPS float64, defaultBurst int) *Registry {
	if defaultRPS <= 0 {
		defaultRPS = 3
	}
	if defaultBurst < 1 {
		defaultBurst = 1
	}
	return &Registry{
		limiters:     make(map[string]*Limiter),
		defaultRPS:   defaultRPS,
		defaultBurst: defaultBurst,
	}
}

// For returns the limiter for provider, creating it with the registry
// defaults on first use.
func (r *Registry) For(provider string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[provider]; ok {
		return l
	}
	l := New(r.defaultRPS, r.defaultBurst, provider)
	r.limiters[provider] = l
	return l
}

// Configure installs a provider-specific budget, replacing any limiter
// created with defaults. Called once at startup from config.
func (r *Registry) Configure(provider string, rps float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[provider] = New(rps, burst, provider)
}
