package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDoublesUpToCap(t *testing.T) {
	b := New(time.Second, 5*time.Second)

	var got []time.Duration
	for i := 0; i < 6; i++ {
		got = append(got, b.Next())
	}

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}
	assert.Equal(t, expected, got)
	assert.Equal(t, uint(6), b.Attempts())
}

func TestNextMatchesClosedForm(t *testing.T) {
	initial, max := 250*time.Millisecond, 3*time.Second
	b := New(initial, max)

	for k := 1; k <= 20; k++ {
		want := initial << (k - 1)
		if want > max || want <= 0 {
			want = max
		}
		assert.Equal(t, want, b.Next(), "delay %d", k)
	}
}

func TestCapIsSticky(t *testing.T) {
	b := New(time.Second, 2*time.Second)
	for i := 0; i < 100; i++ {
		assert.LessOrEqual(t, b.Next(), 2*time.Second)
	}
	assert.Equal(t, 2*time.Second, b.Current())
}

func TestZeroInitialDelay(t *testing.T) {
	b := New(0, 5*time.Second)
	for i := 0; i < 4; i++ {
		assert.Equal(t, time.Duration(0), b.Next())
	}
}

func TestMaxBelowInitial(t *testing.T) {
	b := New(4*time.Second, time.Second)
	assert.Equal(t, 4*time.Second, b.Next())
	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, time.Second, b.Next())
}

func TestNoOverflowNearMaxDuration(t *testing.T) {
	max := time.Duration(1<<62 + 1)
	b := New(1<<61, max)
	b.Next()
	b.Next()
	assert.Equal(t, max, b.Next())
}
