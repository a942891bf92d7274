package backoff

import "time"

// Backoff tracks the delay sequence of one retry run: the delay starts at the
// initial value and doubles after every wait, never growing past the ceiling.
// It is not safe for concurrent use and is meant to be discarded when the run ends.
type Backoff struct {
	current time.Duration
	max     time.Duration
	attempt uint
}

func New(initial, max time.Duration) *Backoff {
	if initial < 0 {
		initial = 0
	}
	if max < 0 {
		max = 0
	}
	return &Backoff{current: initial, max: max}
}

// Next returns the delay to wait now and advances to the following one.
// The first call always yields the initial delay, even when it exceeds max;
// the ceiling applies from the first growth step on.
func (b *Backoff) Next() time.Duration {
	d := b.current
	b.attempt++
	if b.current > b.max/2 {
		b.current = b.max
	} else {
		b.current *= 2
	}
	return d
}

// Current returns the delay the next call to Next will yield.
func (b *Backoff) Current() time.Duration {
	return b.current
}

// Attempts returns how many delays have been handed out.
func (b *Backoff) Attempts() uint {
	return b.attempt
}
