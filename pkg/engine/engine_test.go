package engine

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var response = []byte("Whats up?\n")

func freeAddress(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func boot(t *testing.T, e *Engine) (*Running, string) {
	t.Helper()
	addr := freeAddress(t)
	running, err := e.Boot(context.Background(), addr)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = running.Stop(ctx)
	})
	return running, addr
}

func TestEngineAnswersEachMessage(t *testing.T) {
	e := New(response, WithMulticore(false))
	_, addr := boot(t, e)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	for i := 0; i < 3; i++ {
		_, err = conn.Write([]byte("ping"))
		require.NoError(t, err)

		got := make([]byte, len(response))
		_, err = io.ReadFull(conn, got)
		require.NoError(t, err)
		assert.Equal(t, response, got)
	}
}

func TestRunningAddrReportsBoundPort(t *testing.T) {
	e := New(response, WithMulticore(false))
	running, err := e.Boot(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = running.Stop(ctx)
	})

	addr, err := running.Addr()
	require.NoError(t, err)
	tcpAddr, ok := addr.(*net.TCPAddr)
	require.True(t, ok, "unexpected address type %T", addr)
	require.NotZero(t, tcpAddr.Port)

	conn, err := net.DialTimeout("tcp", addr.String(), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	got := make([]byte, len(response))
	_, err = io.ReadFull(conn, got)
	require.NoError(t, err)
	assert.Equal(t, response, got)
}

func TestEngineBootFailsWhenAddressTaken(t *testing.T) {
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()

	e := New(response)
	_, err = e.Boot(context.Background(), blocker.Addr().String())
	assert.Error(t, err)
}

func TestEngineConnectionLimit(t *testing.T) {
	e := New(response, WithMaxConnections(1))
	_, addr := boot(t, e)

	first, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer first.Close()
	require.NoError(t, first.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = first.Write([]byte("ping"))
	require.NoError(t, err)
	got := make([]byte, len(response))
	_, err = io.ReadFull(first, got)
	require.NoError(t, err)

	second, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.SetDeadline(time.Now().Add(5*time.Second)))

	// The over-limit connection is closed by the server without a response.
	_, err = io.ReadFull(second, make([]byte, 1))
	assert.Error(t, err)
	assert.Equal(t, int64(1), e.ActiveConnections())
}

func TestEngineBootCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(response)
	running, err := e.Boot(ctx, freeAddress(t))
	if err == nil {
		// Boot raced the cancellation and won.
		_ = running.Stop(context.Background())
		return
	}
	assert.ErrorIs(t, err, context.Canceled)
}
