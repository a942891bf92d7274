package handler

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNext(t *testing.T) {
	failure := errors.New("i/o failure")

	tests := []struct {
		name     string
		from     State
		n        int
		err      error
		expected State
	}{
		{"read data", Reading, 4, nil, Responding},
		{"read data with eof", Reading, 4, io.EOF, Responding},
		{"read zero bytes", Reading, 0, nil, Closed},
		{"read eof", Reading, 0, io.EOF, Closed},
		{"read error", Reading, 0, failure, Closed},
		{"write ok", Responding, 0, nil, Reading},
		{"write error", Responding, 0, failure, Closed},
		{"closed is terminal", Closed, 10, nil, Closed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Next(tt.from, tt.n, tt.err))
		})
	}
}

func TestPeerClosed(t *testing.T) {
	assert.True(t, PeerClosed(0, io.EOF))
	assert.True(t, PeerClosed(0, nil))
	assert.False(t, PeerClosed(0, errors.New("reset")))
	assert.False(t, PeerClosed(3, io.EOF))
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{Reading, "READING"},
		{Responding, "RESPONDING"},
		{Closed, "CLOSED"},
		{State(9), "UNKNOWN"},
	}

	for _, test := range tests {
		if got := test.state.String(); got != test.expected {
			t.Errorf("State %d: expected %s, got %s", test.state, test.expected, got)
		}
	}
}
