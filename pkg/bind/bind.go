// Package bind acquires a listening endpoint, retrying failed attempts with a
// capped exponential backoff.
package bind

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/etwodev/beacon/config"
	"github.com/etwodev/beacon/pkg/backoff"
	"github.com/etwodev/beacon/pkg/fault"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// ErrNoAttempts is returned, wrapped in a BindFatal, when the policy allows zero attempts.
var ErrNoAttempts = errors.New("max retries is zero, no bind attempted")

// Policy is the part of the server configuration that drives binding.
type Policy struct {
	Address      string
	MaxRetries   uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// PolicyFrom extracts the bind policy from a server configuration.
func PolicyFrom(cfg config.Config) Policy {
	return Policy{
		Address:      cfg.Address,
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialDelayDuration(),
		MaxDelay:     cfg.MaxDelayDuration(),
	}
}

// AttemptFunc performs one bind attempt against address.
type AttemptFunc[T any] func(ctx context.Context, address string) (T, error)

// ListenFunc opens a stream listener. net.ListenConfig.Listen satisfies it.
type ListenFunc func(ctx context.Context, network, address string) (net.Listener, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier runs bind attempts under a Policy.
type Retrier struct {
	policy Policy
	logger zerolog.Logger
	listen ListenFunc
	sleep  SleepFunc
}

// Option allows configuring the Retrier during creation.
type Option func(*Retrier)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Retrier) { r.logger = l }
}

// WithListen replaces the listen primitive used by Listen.
func WithListen(fn ListenFunc) Option {
	return func(r *Retrier) { r.listen = fn }
}

// WithSleep replaces the backoff wait.
func WithSleep(fn SleepFunc) Option {
	return func(r *Retrier) { r.sleep = fn }
}

func New(p Policy, opts ...Option) *Retrier {
	var lc net.ListenConfig
	r := &Retrier{
		policy: p,
		logger: zerolog.Nop(),
		listen: lc.Listen,
		sleep:  Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Listen binds a TCP listener on the policy address.
func (r *Retrier) Listen(ctx context.Context) (net.Listener, error) {
	return Do(ctx, r, func(ctx context.Context, address string) (net.Listener, error) {
		return r.listen(ctx, "tcp", address)
	})
}

// Do runs attempt up to MaxRetries times, waiting between failures. The first
// wait is InitialDelay; each later wait doubles, capped at MaxDelay. The result
// of the first successful attempt is returned. When every attempt fails, or ctx
// ends during a wait, the error is a *fault.Error of kind BindFatal whose Err
// aggregates every BindTransient seen so far.
func Do[T any](ctx context.Context, r *Retrier, attempt AttemptFunc[T]) (T, error) {
	var zero T
	p := r.policy

	if p.MaxRetries == 0 {
		return zero, fault.New(fault.BindFatal, "bind", p.Address, ErrNoAttempts)
	}

	b := backoff.New(p.InitialDelay, p.MaxDelay)
	var errs error

	for n := uint(1); n <= p.MaxRetries; n++ {
		v, err := attempt(ctx, p.Address)
		if err == nil {
			r.logger.Info().
				Str("Address", p.Address).
				Uint("Attempt", n).
				Msg("Server listening")
			return v, nil
		}

		errs = multierr.Append(errs, &fault.Error{
			Kind:    fault.BindTransient,
			Op:      "bind",
			Addr:    p.Address,
			Attempt: n,
			Err:     err,
		})

		r.logger.Warn().
			Str("Function", "Bind").
			Uint("Attempt", n).
			Str("Address", p.Address).
			Err(err).
			Dur("Delay", b.Current()).
			Msg("Could not bind")

		if n == p.MaxRetries {
			return zero, &fault.Error{Kind: fault.BindFatal, Op: "bind", Addr: p.Address, Attempt: n, Err: errs}
		}

		if err := r.sleep(ctx, b.Next()); err != nil {
			return zero, &fault.Error{Kind: fault.BindFatal, Op: "bind", Addr: p.Address, Attempt: n, Err: multierr.Append(err, errs)}
		}
	}

	return zero, fault.New(fault.BindFatal, "bind", p.Address, errs)
}

// Sleep waits for d, returning early with ctx.Err() if ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
