// Package fault defines the tagged errors produced by the listener. Each error
// carries a Kind so callers can tell a recoverable condition from a terminal one
// without string matching.
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// BindTransient is a single failed bind attempt. It is absorbed by the retry loop.
	BindTransient Kind = iota + 1
	// BindFatal means every bind attempt failed or the attempt sequence was cancelled.
	BindFatal
	// AcceptFatal is an accept failure on a bound listener. It stops the accept loop.
	AcceptFatal
	// ConnectionIO is a read or write failure local to one connection.
	ConnectionIO
)

func (k Kind) String() string {
	switch k {
	case BindTransient:
		return "BindTransient"
	case BindFatal:
		return "BindFatal"
	case AcceptFatal:
		return "AcceptFatal"
	case ConnectionIO:
		return "ConnectionIO"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a failure tagged with its Kind.
type Error struct {
	Kind    Kind
	Op      string // bind, accept, read, write
	Addr    string // local address for bind/accept, remote address for connection I/O
	Attempt uint   // 1-based bind attempt, zero when not applicable
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op + " " + e.Addr
	if e.Attempt > 0 {
		msg += fmt.Sprintf(" (attempt %d)", e.Attempt)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error of the given kind.
func New(kind Kind, op, addr string, err error) *Error {
	return &Error{Kind: kind, Op: op, Addr: addr, Err: err}
}

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	for err != nil {
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Kind == kind {
			return true
		}
		err = fe.Err
	}
	return false
}
