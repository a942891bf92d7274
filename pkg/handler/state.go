package handler

import (
	"errors"
	"io"
)

// State is a position in the per-connection read/respond loop.
type State int

const (
	Reading State = iota
	Responding
	Closed
)

func (s State) String() string {
	switch s {
	case Reading:
		return "READING"
	case Responding:
		return "RESPONDING"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Next returns the state that follows s after an I/O call that moved n bytes
// and returned err.
//
// From Reading, any data moves to Responding regardless of err; the error is seen
// again on the following read. No data means the peer closed or the read failed,
// both of which end the connection. From Responding, a failed write ends the
// connection and a successful one goes back to Reading. Closed is terminal.
func Next(s State, n int, err error) State {
	switch s {
	case Reading:
		if n > 0 {
			return Responding
		}
		return Closed
	case Responding:
		if err != nil {
			return Closed
		}
		return Reading
	default:
		return Closed
	}
}

// PeerClosed reports whether a read result means an orderly close by the peer
// rather than an I/O failure.
func PeerClosed(n int, err error) bool {
	return n == 0 && (err == nil || errors.Is(err, io.EOF))
}
