package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const growFactor = 1.5

// State keeps the progress of one retry loop
type State struct {
	Attempt int
	Base    time.Duration
	Max     time.Duration
}

// ComputeDelay returns min(base*1.5^attempt, max) + jitter()
func ComputeDelay(attempt int, base, max time.Duration, jitter func() time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(base) * math.Pow(growFactor, float64(attempt))
	res := max
	if d < float64(max) {
		res = time.Duration(d)
	}
	if jitter != nil {
		res += jitter()
	}
	return res
}

// DefaultJitter returns a random duration in [0, 1s)
func DefaultJitter() time.Duration {
	// `rand` here is used just for backoff jitter
	return time.Duration(rand.Int63n(int64(time.Second)))
}

// NoJitter is used in tests to make delays predictable
func NoJitter() time.Duration {
	return 0
}

// BackOff implements backoff.BackOff with ComputeDelay growth
type BackOff struct {
	base       time.Duration
	max        time.Duration
	maxRetries int
	attempt    int
	jitter     func() time.Duration
}

var _ backoff.BackOff = (*BackOff)(nil)

// NewBackOff creates backoff for goapp.InvokeWithBackoff
func NewBackOff(base, max time.Duration, maxRetries int) *BackOff {
	return &BackOff{base: base, max: max, maxRetries: maxRetries, jitter: DefaultJitter}
}

// NextBackOff implements backoff.BackOff
func (b *BackOff) NextBackOff() time.Duration {
	if b.attempt >= b.maxRetries {
		return backoff.Stop
	}
	res := ComputeDelay(b.attempt, b.base, b.max, b.jitter)
	b.attempt++
	return res
}

// Reset implements backoff.BackOff
func (b *BackOff) Reset() {
	b.attempt = 0
}
