package backoff

import (
	"math/rand/v2"
	"time"
)

// Backoff yields exponentially growing delays with ±10% jitter.
type Backoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	current         time.Duration
}

func New(initial, max time.Duration, multiplier float64) *Backoff {
	if multiplier < 1 {
		multiplier = 1
	}
	return &Backoff{InitialInterval: initial, MaxInterval: max, Multiplier: multiplier}
}

func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.InitialInterval
	} else {
		b.current = time.Duration(float64(b.current) * b.Multiplier)
	}
	if b.MaxInterval > 0 && b.current > b.MaxInterval {
		b.current = b.MaxInterval
	}
	jitter := time.Duration((rand.Float64()*0.2 - 0.1) * float64(b.current))
	return b.current + jitter
}

func (b *Backoff) Reset() { b.current = 0 }
