// Package beacon is a TCP listener that binds with capped exponential backoff and
// answers every inbound chunk of data with a fixed response.
package beacon

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/etwodev/beacon/config"
	"github.com/etwodev/beacon/pkg/bind"
	"github.com/etwodev/beacon/pkg/engine"
	"github.com/etwodev/beacon/pkg/fault"
	"github.com/etwodev/beacon/pkg/handler"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
)

// Server binds the configured address and hands each accepted connection to its
// own handler task. Handler tasks share nothing but the immutable Handler.
//
// With MaxConnections at zero every connection gets a fresh goroutine and the
// number of tasks is unbounded. A positive MaxConnections routes tasks through an
// ants pool of that size; accepting stalls while the pool is full.
type Server struct {
	cfg         config.Config
	logger      zerolog.Logger
	handler     *handler.Handler
	bindOpts    []bind.Option
	listener    net.Listener
	addr        net.Addr
	pool        *ants.Pool
	connections map[net.Conn]struct{}
	mu          sync.Mutex
	wg          sync.WaitGroup
	quit        chan struct{}
	quitOnce    sync.Once
	ready       chan struct{}
}

// Option allows configuring the Server during creation.
type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithBindOptions passes options through to the bind retrier, e.g. a custom sleep.
func WithBindOptions(opts ...bind.Option) Option {
	return func(s *Server) { s.bindOpts = append(s.bindOpts, opts...) }
}

// New returns a Server for cfg. The configuration is validated and then held
// unchanged for the lifetime of the Server.
func New(cfg config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:         cfg,
		logger:      zerolog.Nop(),
		connections: make(map[net.Conn]struct{}),
		quit:        make(chan struct{}),
		ready:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.handler = handler.New([]byte(cfg.Response),
		handler.WithBufferSize(cfg.BufferSize),
		handler.WithLogger(s.logger),
	)

	if cfg.MaxConnections > 0 && cfg.Engine == config.EngineGoroutine {
		pool, err := ants.NewPool(cfg.MaxConnections, ants.WithPanicHandler(func(p any) {
			s.logger.Error().
				Str("Function", "pool").
				Interface("Panic", p).
				Msg("Connection handler panicked")
		}))
		if err != nil {
			return nil, err
		}
		s.pool = pool
	}

	return s, nil
}

// Config returns the configuration the Server was built with.
func (s *Server) Config() config.Config {
	return s.cfg
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or nil before Ready is closed.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run binds the listener and serves connections until a fatal error or Shutdown.
// ctx bounds the bind phase only; once serving, Run stops through Shutdown.
//
// A bind that exhausts its retries returns a BindFatal error and nothing is
// served. Any accept error not caused by Shutdown is returned as AcceptFatal:
// the listener is treated as broken and no further connections are accepted.
// Run returns nil after Shutdown, and Shutdown does not return before Run has.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	select {
	case <-s.quit:
		s.mu.Unlock()
		return nil
	default:
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	retrier := bind.New(bind.PolicyFrom(s.cfg), append([]bind.Option{bind.WithLogger(s.logger)}, s.bindOpts...)...)

	if s.cfg.Engine == config.EngineEventLoop {
		return s.runEventLoop(ctx, retrier)
	}

	ln, err := retrier.Listen(ctx)
	if err != nil {
		return s.bindFailed(err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr()
	s.mu.Unlock()

	// Shutdown may have run while binding.
	select {
	case <-s.quit:
		_ = ln.Close()
		return nil
	default:
	}
	close(s.ready)

	return s.acceptLoop(ln)
}

func (s *Server) bindFailed(err error) error {
	select {
	case <-s.quit:
		return nil
	default:
	}
	s.logger.Error().
		Str("Function", "Run").
		Str("Address", s.cfg.Address).
		Err(err).
		Msg("Failed to bind after multiple attempts")
	return err
}

// acceptLoop accepts connections until the listener fails or is closed by Shutdown.
func (s *Server) acceptLoop(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
			}
			s.logger.Error().
				Str("Function", "acceptLoop").
				Err(err).
				Msg("Accept failed")
			return fault.New(fault.AcceptFatal, "accept", ln.Addr().String(), err)
		}

		s.logger.Info().
			Str("Remote", conn.RemoteAddr().String()).
			Msg("New connection")

		s.mu.Lock()
		select {
		case <-s.quit:
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		default:
		}
		s.connections[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		task := func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.connections, conn)
				s.mu.Unlock()
			}()

			s.handler.Handle(conn)
		}

		if s.pool == nil {
			go task()
			continue
		}

		if err := s.pool.Submit(task); err != nil {
			s.logger.Warn().
				Str("Function", "acceptLoop").
				Str("Remote", conn.RemoteAddr().String()).
				Err(err).
				Msg("Failed to schedule connection")
			s.mu.Lock()
			delete(s.connections, conn)
			s.mu.Unlock()
			_ = conn.Close()
			s.wg.Done()
		}
	}
}

func (s *Server) runEventLoop(ctx context.Context, retrier *bind.Retrier) error {
	e := engine.New([]byte(s.cfg.Response),
		engine.WithLogger(s.logger),
		engine.WithMulticore(s.cfg.EnableMulticore),
		engine.WithMaxConnections(s.cfg.MaxConnections),
	)

	running, err := bind.Do(ctx, retrier, e.Boot)
	if err != nil {
		return s.bindFailed(err)
	}

	addr, err := running.Addr()
	if err != nil {
		s.logger.Warn().
			Str("Function", "runEventLoop").
			Err(err).
			Msg("Failed to read bound address, using configured address")
		if resolved, rerr := net.ResolveTCPAddr("tcp", s.cfg.Address); rerr == nil {
			addr = resolved
		}
	}
	s.mu.Lock()
	s.addr = addr
	s.mu.Unlock()
	close(s.ready)

	select {
	case err := <-running.Done():
		if err != nil {
			return fault.New(fault.AcceptFatal, "accept", s.cfg.Address, err)
		}
		return nil
	case <-s.quit:
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeoutDuration())
		defer cancel()
		if err := running.Stop(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	}
}

// closeAllConnections closes all active client connections.
func (s *Server) closeAllConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.connections {
		_ = conn.Close()
	}
}

// Shutdown stops accepting, closes the listener and every live connection, then
// waits for handler tasks and Run to return or ctx to end. In eventloop mode the
// engine is stopped by Run, so the wait covers the event loops too. It is safe to call more than
// once and before Run has bound.
func (s *Server) Shutdown(ctx context.Context) error {
	s.quitOnce.Do(func() {
		close(s.quit)
		s.logger.Warn().Str("Function", "Shutdown").Msg("Shutting server down...")

		s.mu.Lock()
		ln := s.listener
		s.mu.Unlock()
		if ln != nil {
			_ = ln.Close()
		}
		s.closeAllConnections()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if s.pool != nil {
			s.pool.Release()
		}
		return nil
	}
}
