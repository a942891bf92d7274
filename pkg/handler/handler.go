// Package handler serves one accepted connection: every non-empty read is
// answered with the same fixed response until the peer closes or I/O fails.
package handler

import (
	"net"

	"github.com/etwodev/beacon/pkg/fault"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const DefaultBufferSize = 1024

// Handler holds the immutable per-server settings shared by every connection.
// It keeps no per-connection state, so one Handler may serve many connections
// concurrently.
type Handler struct {
	response   []byte
	bufferSize int
	logger     zerolog.Logger
}

// Option allows configuring the Handler during creation.
type Option func(*Handler)

func WithLogger(l zerolog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithBufferSize sets the read buffer size. Values below 1 keep the default.
func WithBufferSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// New returns a Handler that answers with a private copy of response.
func New(response []byte, opts ...Option) *Handler {
	h := &Handler{
		response:   append([]byte(nil), response...),
		bufferSize: DefaultBufferSize,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Response returns a copy of the fixed response.
func (h *Handler) Response() []byte {
	return append([]byte(nil), h.response...)
}

// Handle runs the read/respond loop on conn until it reaches Closed, then closes
// conn. The caller must not use conn afterwards. Failures end this connection
// only and are logged, never returned.
func (h *Handler) Handle(conn net.Conn) {
	remote := remoteAddr(conn)
	logger := h.logger.With().
		Str("Conn", uuid.NewString()).
		Str("Remote", remote).
		Logger()

	defer func() {
		_ = conn.Close()
	}()

	buf := make([]byte, h.bufferSize)
	state := Reading

	for {
		switch state {
		case Reading:
			n, err := conn.Read(buf)
			state = Next(Reading, n, err)
			if state != Closed {
				continue
			}
			if PeerClosed(n, err) {
				logger.Info().Msg("Connection closed by peer")
			} else {
				logger.Warn().
					Str("Function", "Handle").
					Err(fault.New(fault.ConnectionIO, "read", remote, err)).
					Msg("Failed to read from connection")
			}
			return

		case Responding:
			_, err := conn.Write(h.response)
			state = Next(Responding, 0, err)
			if state == Closed {
				logger.Warn().
					Str("Function", "Handle").
					Err(fault.New(fault.ConnectionIO, "write", remote, err)).
					Msg("Failed to send response")
				return
			}

		default:
			return
		}
	}
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
