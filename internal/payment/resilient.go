package payment

import (
	"context"
	"errors"
	"time"

	"mindcare-booking/pkg/apperror"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type ResilienceConfig struct {
	Timeout         time.Duration
	MaxRetries      uint64
	RetryBase       time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// errPending lets a still-pending confirmation be polled through the retry
// loop without counting against the breaker.
var errPending = errors.New("payment still pending")

// ResilientProvider bounds every provider call with a per-attempt timeout,
// exponential retry and a circuit breaker. Exhausted retries and an open
// breaker surface as apperror.ErrProvider.
type ResilientProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker[any]
	cfg     ResilienceConfig
	log     *zap.Logger
}

func NewResilientProvider(inner Provider, cfg ResilienceConfig, log *zap.Logger) *ResilientProvider {
	log = log.With(zap.String("provider", inner.Name()))

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "payment-" + inner.Name(),
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errPending) || isPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Payment circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &ResilientProvider{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		cfg:     cfg,
		log:     log,
	}
}

func (p *ResilientProvider) Name() string { return p.inner.Name() }

func (p *ResilientProvider) CreateIntent(ctx context.Context, amountCents int64, currency string) (Intent, error) {
	out, err := p.call(ctx, "create payment intent", func(ctx context.Context) (any, error) {
		return p.inner.CreateIntent(ctx, amountCents, currency)
	})
	if err != nil {
		return Intent{}, err
	}
	return out.(Intent), nil
}

// Confirm polls a pending charge until it settles or retries run out, in
// which case it reports ResultPending without an error.
func (p *ResilientProvider) Confirm(ctx context.Context, intentID string) (Result, error) {
	out, err := p.call(ctx, "confirm payment", func(ctx context.Context) (any, error) {
		res, err := p.inner.Confirm(ctx, intentID)
		if err == nil && res.Status == ResultPending {
			return res, errPending
		}
		return res, err
	})
	if errors.Is(err, errPending) {
		return Result{Status: ResultPending}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return out.(Result), nil
}

func (p *ResilientProvider) Refund(ctx context.Context, intentID string, amountCents int64) error {
	_, err := p.call(ctx, "refund payment", func(ctx context.Context) (any, error) {
		return nil, p.inner.Refund(ctx, intentID, amountCents)
	})
	return err
}

func (p *ResilientProvider) call(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	var (
		out      any
		attempts int
	)

	backoff := retry.WithMaxRetries(p.cfg.MaxRetries, retry.NewExponential(p.cfg.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		res, err := p.breaker.Execute(func() (any, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
			defer cancel()
			return fn(attemptCtx)
		})
		if err == nil {
			out = res
			return nil
		}

		if isPermanent(err) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return err
		}
		if !errors.Is(err, errPending) {
			p.log.Warn("Payment provider call failed",
				zap.String("op", op),
				zap.Int("attempt", attempts),
				zap.Error(err),
			)
		}
		return retry.RetryableError(err)
	})

	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, errPending):
		return nil, errPending
	case errors.Is(err, ErrIntentNotFound):
		return nil, apperror.NotFound(op, "payment intent not found at provider")
	case ctx.Err() != nil:
		return nil, apperror.Provider(op, ctx.Err())
	default:
		p.log.Error("Payment provider gave up",
			zap.String("op", op),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return nil, apperror.Provider(op, err)
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrIntentNotFound)
}
