package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/utils"
	"github.com/cenkalti/backoff/v4"
)

// Kind is a retry policy class of an error
type Kind int

const (
	// KindTransient - retry with standard backoff
	KindTransient Kind = iota
	// KindRateLimit - retry with scaled backoff
	KindRateLimit
	// KindPermanent - do not retry
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindRateLimit:
		return "rate-limit"
	case KindPermanent:
		return "permanent"
	}
	return "transient"
}

// Opts configures Do
type Opts struct {
	name            string
	maxAttempts     int
	base            time.Duration
	max             time.Duration
	rateLimitFactor float64
	classify        func(error) Kind
	jitter          func() time.Duration
	sleep           func(context.Context, time.Duration) error
}

// DefaultOpts returns 3 attempts, 2s base and 30s max delay
func DefaultOpts() *Opts {
	return &Opts{name: "call", maxAttempts: 3, base: 2 * time.Second, max: 30 * time.Second,
		rateLimitFactor: 2, classify: Classify, jitter: DefaultJitter, sleep: sleep}
}

func (o *Opts) WithName(name string) *Opts {
	o.name = name
	return o
}

func (o *Opts) WithMaxAttempts(n int) *Opts {
	if n < 1 {
		n = 1
	}
	o.maxAttempts = n
	return o
}

func (o *Opts) WithDelays(base, max time.Duration) *Opts {
	o.base, o.max = base, max
	return o
}

func (o *Opts) WithClassifier(f func(error) Kind) *Opts {
	o.classify = f
	return o
}

func (o *Opts) WithJitter(f func() time.Duration) *Opts {
	o.jitter = f
	return o
}

func (o *Opts) WithSleep(f func(context.Context, time.Duration) error) *Opts {
	o.sleep = f
	return o
}

// Permanent marks err as not retryable
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do invokes op until it succeeds, fails permanently or attempts are exhausted.
// Rate limited failures wait twice as long; exhausting them returns utils.ErrRateLimitExceeded.
func Do[T any](ctx context.Context, op func(context.Context) (T, error), opts *Opts) (T, error) {
	if opts == nil {
		opts = DefaultOpts()
	}
	maxAttempts := opts.maxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	st := &State{Base: opts.base, Max: opts.max}
	var res T
	var err error
	for ; st.Attempt < maxAttempts; st.Attempt++ {
		res, err = op(ctx)
		if err == nil {
			return res, nil
		}
		kind := opts.classify(err)
		if kind == KindPermanent {
			return res, err
		}
		if st.Attempt+1 >= maxAttempts {
			if kind == KindRateLimit {
				return res, fmt.Errorf("%w: %v", utils.ErrRateLimitExceeded, err)
			}
			return res, err
		}
		wait := ComputeDelay(st.Attempt, st.Base, st.Max, opts.jitter)
		if kind == KindRateLimit {
			wait = time.Duration(float64(wait) * opts.rateLimitFactor)
		}
		goapp.Log.Warn().Err(err).Str("name", opts.name).Str("kind", kind.String()).Int("attempt", st.Attempt+1).
			Dur("wait", wait).Msg("retry")
		if sErr := opts.sleep(ctx, wait); sErr != nil {
			return res, fmt.Errorf("can't wait for retry (%v): %w", sErr, err)
		}
	}
	return res, err
}

// Classify maps err to a retry policy
func Classify(err error) Kind {
	if err == nil {
		return KindPermanent
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, utils.ErrExtractionFailed) ||
		errors.Is(err, utils.ErrTooLarge) {
		return KindPermanent
	}
	code := utils.HTTPCode(err)
	if code == 429 || IsRateLimitMsg(err.Error()) {
		return KindRateLimit
	}
	var pe *backoff.PermanentError
	if errors.As(err, &pe) || (code >= 400 && code < 500 && code != 408) {
		return KindPermanent
	}
	return KindTransient
}

// IsRateLimitMsg checks for quota or rate limit markers in message
func IsRateLimitMsg(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "429") || strings.Contains(m, "quota") || strings.Contains(m, "rate limit")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	return sleep(ctx, d)
}
