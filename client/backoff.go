package client

import "time"

// Backoff is the reconnect policy for the realtime socket: the delay
// doubles per consecutive failure up to Max, and reconnecting stops
// after MaxAttempts. A successful reconnect resets the sequence and is
// followed by a full Sync, since broadcasts missed while offline are
// gone for good.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int

	attempt int
}

// DefaultBackoff mirrors the reference client: 1s base, 30s ceiling,
// ten attempts.
func DefaultBackoff() *Backoff {
	return &Backoff{Base: time.Second, Max: 30 * time.Second, MaxAttempts: 10}
}

// Next returns the delay before the upcoming reconnect attempt, or
// false when the attempt budget is spent.
func (b *Backoff) Next() (time.Duration, bool) {
	if b.MaxAttempts > 0 && b.attempt >= b.MaxAttempts {
		return 0, false
	}
	shift := b.attempt
	if shift > 20 {
		shift = 20
	}
	d := b.Base << shift
	if b.Base <= 0 {
		d = time.Second
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	b.attempt++
	return d, true
}

// Reset restarts the sequence after a successful reconnect.
func (b *Backoff) Reset() {
	b.attempt = 0
}
