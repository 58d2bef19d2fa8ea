// Package fetch retrieves transaction receipts with provider failover. The
// ordered provider list per chain runs primary paid RPCs first, public RPCs
// next, and a block-explorer API last. Every provider sits behind a shared
// token-bucket rate limiter and a circuit breaker.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/whalewatch/whaletx/internal/circuitbreaker"
	"github.com/whalewatch/whaletx/internal/domain/model"
	"github.com/whalewatch/whaletx/internal/metrics"
	"github.com/whalewatch/whaletx/internal/ratelimit"
	"github.com/whalewatch/whaletx/internal/retry"
)

// ErrReceiptNotFound means every reachable provider agreed the transaction
// does not exist (yet). Distinct from ErrProvidersExhausted: not-found is an
// answer, exhaustion is the absence of one.
var ErrReceiptNotFound = errors.New("receipt not found")

// ErrProvidersExhausted means no provider produced an answer. Callers treat
// this as "try later", never as a classification input.
var ErrProvidersExhausted = errors.New("all receipt providers exhausted")

// ReceiptProvider is one upstream source of receipts. Implementations return
// ErrReceiptNotFound for a well-formed "no such transaction" answer.
type ReceiptProvider interface {
	Name() string
	FetchReceipt(ctx context.Context, chain model.Chain, txHash string) (*model.Receipt, error)
}

const (
	defaultMaxAttempts    = 3
	defaultBackoffInitial = 1500 * time.Millisecond
	defaultBackoffMax     = 6 * time.Second
	defaultCallTimeout    = 15 * time.Second
)

// Fetcher is the resilient receipt fetch layer. Safe for concurrent use;
// limiter and breaker state is shared across all workers.
type Fetcher struct {
	providers map[model.Chain][]ReceiptProvider
	limiters  *ratelimit.Registry
	logger    *slog.Logger

	maxAttempts    int
	backoffInitial time.Duration
	backoffMax     time.Duration
	callTimeout    time.Duration
	sleepFn        func(ctx context.Context, d time.Duration) error

	breakerMu sync.Mutex
	breakers  map[string]*circuitbreaker.Breaker
}

type Option func(*Fetcher)

// WithAttempts overrides per-provider attempt count and backoff schedule.
func WithAttempts(maxAttempts int, initial, max time.Duration) Option {
	return func(f *Fetcher) {
		if maxAttempts > 0 {
			f.maxAttempts = maxAttempts
		}
		if initial > 0 {
			f.backoffInitial = initial
		}
		if max > 0 {
			f.backoffMax = max
		}
	}
}

// WithCallTimeout bounds each individual provider call.
func WithCallTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.callTimeout = d
		}
	}
}

func New(providers map[model.Chain][]ReceiptProvider, limiters *ratelimit.Registry, logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		providers:      providers,
		limiters:       limiters,
		logger:         logger.With("component", "fetch"),
		maxAttempts:    defaultMaxAttempts,
		backoffInitial: defaultBackoffInitial,
		backoffMax:     defaultBackoffMax,
		callTimeout:    defaultCallTimeout,
		breakers:       make(map[string]*circuitbreaker.Breaker),
		sleepFn: func(ctx context.Context, d time.Duration) error {
			select {
			case <-time.After(d):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// FetchReceipt walks the chain's provider list in order. Per provider it
// performs up to maxAttempts calls with exponential backoff; skip-provider
// failures (rate limit, HTML body, open breaker) advance immediately.
// Not-found answers still consult the remaining providers (a lagging node may
// simply not have the tx yet); only when every reachable provider agrees does
// the fetch return ErrReceiptNotFound.
func (f *Fetcher) FetchReceipt(ctx context.Context, chain model.Chain, txHash string) (*model.Receipt, error) {
	providers := f.providers[chain]
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured for chain %s", ErrProvidersExhausted, chain)
	}

	var notFound bool
	var lastErr error
	for _, provider := range providers {
		receipt, err := f.fetchFromProvider(ctx, provider, chain, txHash)
		if err == nil {
			return receipt, nil
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if errors.Is(err, ErrReceiptNotFound) {
			notFound = true
			continue
		}
		lastErr = err
	}

	if notFound {
		return nil, ErrReceiptNotFound
	}
	metrics.FetchExhaustedTotal.WithLabelValues(chain.String()).Inc()
	f.logger.Error("all providers exhausted", "chain", chain, "tx_hash", txHash, "last_err", lastErr)
	return nil, fmt.Errorf("%w: %v", ErrProvidersExhausted, lastErr)
}

func (f *Fetcher) fetchFromProvider(ctx context.Context, provider ReceiptProvider, chain model.Chain, txHash string) (*model.Receipt, error) {
	breaker := f.breakerFor(provider.Name())
	if err := breaker.Allow(); err != nil {
		metrics.FetchFailuresTotal.WithLabelValues(chain.String(), provider.Name(), "breaker_open").Inc()
		return nil, retry.SkipProvider(err)
	}

	backoff := f.backoffInitial
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if err := f.limiters.For(provider.Name()).Wait(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		receipt, err := f.callOnce(ctx, provider, chain, txHash)
		metrics.FetchAttemptsTotal.WithLabelValues(chain.String(), provider.Name()).Inc()
		metrics.FetchLatency.WithLabelValues(chain.String(), provider.Name()).Observe(time.Since(start).Seconds())

		if err == nil {
			breaker.RecordSuccess()
			return receipt, nil
		}
		if errors.Is(err, ErrReceiptNotFound) {
			// A healthy provider answered; nothing to retry.
			breaker.RecordSuccess()
			return nil, err
		}

		lastErr = err
		breaker.RecordFailure()
		decision := retry.Classify(err)
		metrics.FetchFailuresTotal.WithLabelValues(chain.String(), provider.Name(), string(decision.Class)).Inc()

		switch {
		case decision.IsSkipProvider():
			f.logger.Warn("skipping provider", "provider", provider.Name(), "tx_hash", txHash, "reason", decision.Reason)
			return nil, err
		case decision.IsTransient() && attempt < f.maxAttempts:
			f.logger.Warn("retrying provider", "provider", provider.Name(), "tx_hash", txHash,
				"attempt", attempt, "backoff", backoff, "err", err)
			if sleepErr := f.sleepFn(ctx, backoff); sleepErr != nil {
				return nil, sleepErr
			}
			backoff = min(backoff*2, f.backoffMax)
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

func (f *Fetcher) callOnce(ctx context.Context, provider ReceiptProvider, chain model.Chain, txHash string) (*model.Receipt, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()
	return provider.FetchReceipt(callCtx, chain, txHash)
}

func (f *Fetcher) breakerFor(provider string) *circuitbreaker.Breaker {
	f.breakerMu.Lock()
	defer f.breakerMu.Unlock()
	b, ok := f.breakers[provider]
	if !ok {
		b = circuitbreaker.New(circuitbreaker.Config{})
		f.breakers[provider] = b
	}
	return b
}
