// Package engine serves the fixed response from gnet event loops instead of one
// goroutine per connection. Connections follow the same state machine as the
// handler package; the loops do the reading and the connection bookkeeping.
package engine

import (
	"context"
	"errors"
	"net"
	"os"
	"sync/atomic"

	beaconlog "github.com/etwodev/beacon/log"
	"github.com/etwodev/beacon/pkg/fault"
	"github.com/etwodev/beacon/pkg/handler"
	"github.com/google/uuid"
	"github.com/panjf2000/gnet/v2"
	"github.com/rs/zerolog"
)

var ErrExitedBeforeBoot = errors.New("engine exited before boot")

type connInfo struct {
	id       string
	admitted bool
}

type Engine struct {
	gnet.BuiltinEventEngine
	response          []byte
	multicore         bool
	maxConnections    int64
	activeConnections int64
	logger            zerolog.Logger
	booted            chan gnet.Engine
}

// Option allows configuring the Engine during creation.
type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithMulticore(enabled bool) Option {
	return func(e *Engine) { e.multicore = enabled }
}

// WithMaxConnections closes connections opened past n. Zero means no limit.
func WithMaxConnections(n int) Option {
	return func(e *Engine) { e.maxConnections = int64(n) }
}

func New(response []byte, opts ...Option) *Engine {
	e := &Engine{
		response: append([]byte(nil), response...),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Running is a booted engine.
type Running struct {
	eng  gnet.Engine
	done chan error
}

// Done yields the engine's exit error once it stops.
func (r *Running) Done() <-chan error {
	return r.done
}

// Stop shuts the event loops down and closes every connection.
func (r *Running) Stop(ctx context.Context) error {
	return r.eng.Stop(ctx)
}

// Addr returns the address the engine's listener is bound to, which differs
// from the configured one when that asked for port 0.
func (r *Running) Addr() (net.Addr, error) {
	fd, err := r.eng.Dup()
	if err != nil {
		return nil, err
	}
	f := os.NewFile(uintptr(fd), "gnet-listener")
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	return ln.Addr(), nil
}

// Boot starts gnet on address and blocks until the engine is serving or the bind
// fails. Its signature fits bind.AttemptFunc, so the bind retry policy applies
// to the event loop engine unchanged.
func (e *Engine) Boot(ctx context.Context, address string) (*Running, error) {
	booted := make(chan gnet.Engine, 1)
	e.booted = booted
	done := make(chan error, 1)

	go func() {
		done <- gnet.Run(e, "tcp://"+address,
			gnet.WithMulticore(e.multicore),
			gnet.WithLogger(beaconlog.NewGnetLogger(e.logger)),
		)
	}()

	select {
	case eng := <-booted:
		return &Running{eng: eng, done: done}, nil
	case err := <-done:
		if err == nil {
			err = ErrExitedBeforeBoot
		}
		return nil, err
	case <-ctx.Done():
		go func() {
			select {
			case eng := <-booted:
				_ = eng.Stop(context.Background())
			case <-done:
			}
		}()
		return nil, ctx.Err()
	}
}

func (e *Engine) OnBoot(eng gnet.Engine) gnet.Action {
	e.booted <- eng
	return gnet.None
}

func (e *Engine) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	info := &connInfo{id: uuid.NewString()}
	c.SetContext(info)

	if n := atomic.AddInt64(&e.activeConnections, 1); e.maxConnections > 0 && n > e.maxConnections {
		atomic.AddInt64(&e.activeConnections, -1)
		e.logger.Warn().
			Str("Conn", info.id).
			Str("Remote", c.RemoteAddr().String()).
			Int64("MaxConnections", e.maxConnections).
			Msg("Connection limit reached, closing")
		return nil, gnet.Close
	}
	info.admitted = true

	e.logger.Info().
		Str("Conn", info.id).
		Str("Remote", c.RemoteAddr().String()).
		Msg("New connection")
	return nil, gnet.None
}

func (e *Engine) OnClose(c gnet.Conn, err error) gnet.Action {
	info, _ := c.Context().(*connInfo)
	if info == nil || !info.admitted {
		return gnet.None
	}
	atomic.AddInt64(&e.activeConnections, -1)

	logger := e.logger.With().Str("Conn", info.id).Str("Remote", c.RemoteAddr().String()).Logger()
	if err != nil {
		logger.Warn().
			Str("Function", "OnClose").
			Err(fault.New(fault.ConnectionIO, "read", c.RemoteAddr().String(), err)).
			Msg("Connection closed with error")
		return gnet.None
	}
	logger.Info().Msg("Connection closed by peer")
	return gnet.None
}

// OnTraffic treats everything buffered on c as one read and answers it once.
func (e *Engine) OnTraffic(c gnet.Conn) gnet.Action {
	buf, err := c.Next(-1)
	if handler.Next(handler.Reading, len(buf), err) == handler.Closed {
		e.logger.Warn().
			Str("Function", "OnTraffic").
			Err(fault.New(fault.ConnectionIO, "read", c.RemoteAddr().String(), err)).
			Msg("Failed to read from connection")
		return gnet.Close
	}

	_, err = c.Write(e.response)
	if handler.Next(handler.Responding, 0, err) == handler.Closed {
		e.logger.Warn().
			Err(fault.New(fault.ConnectionIO, "write", c.RemoteAddr().String(), err)).
			Msg("Failed to send response")
		return gnet.Close
	}
	return gnet.None
}

// ActiveConnections returns the number of admitted, still open connections.
func (e *Engine) ActiveConnections() int64 {
	return atomic.LoadInt64(&e.activeConnections)
}
