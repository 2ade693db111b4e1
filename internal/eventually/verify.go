package eventually

import (
	"fmt"
	"time"
)

// Probe queries remote state. It is invoked once per attempt and may return
// an error instead of a value (network fault, remote 4xx/5xx). The probe
// owns any connections it opens; Verify never cleans up after it.
type Probe func() (any, error)

// Policy defaults. A 1-second fixed wait with a cap of 30 attempts bounds a
// verification to roughly half a minute. Slow operations (node replacement,
// large group deploys) raise MaxAttempts explicitly at the call site.
const (
	DefaultWaitInterval = time.Second
	DefaultMaxAttempts  = 30
)

// Policy governs a single verification call.
type Policy struct {
	// WaitInterval is the fixed delay between attempts.
	// Zero means DefaultWaitInterval.
	WaitInterval time.Duration

	// MaxAttempts caps probe invocations. Zero means DefaultMaxAttempts.
	MaxAttempts int

	// Retryable decides whether a probe fault is a transient condition
	// worth another attempt, or a definitive rejection that aborts the
	// verification immediately. Nil treats every fault as retryable;
	// call sites should prefer an explicit classifier so genuine defects
	// are not masked by the retry loop.
	Retryable func(error) bool

	// Sleep replaces the inter-attempt delay function. Nil means
	// time.Sleep. Tests inject a recorder here so the attempt loop can be
	// exercised without real waiting.
	Sleep func(time.Duration)
}

func (p Policy) withDefaults() Policy {
	if p.WaitInterval <= 0 {
		p.WaitInterval = DefaultWaitInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Sleep == nil {
		p.Sleep = time.Sleep
	}
	return p
}

// Outcome is the successful result of a verification: the first probed
// value that satisfied the matcher, and how long it took to get there.
type Outcome struct {
	Value    any
	Attempts int
	Elapsed  time.Duration
}

// Verify invokes probe until matcher is satisfied or the attempt budget is
// exhausted.
//
// Each attempt either yields a value, which is handed to the matcher, or a
// fault, which is handed to the policy's classifier. A satisfied matcher
// returns immediately with no further probing and no sleep. A non-retryable
// fault propagates immediately, wrapping the original error so errors.Is
// and errors.As still see it. Anything else consumes one attempt and, if
// budget remains, sleeps WaitInterval before the next probe.
//
// On exhaustion the returned error is a *VerificationError carrying the
// matcher's expected-side description, the last observed value or fault,
// and the attempt accounting. The probe is invoked at most MaxAttempts
// times and the loop sleeps at most MaxAttempts-1 times.
func Verify(probe Probe, matcher Matcher, policy Policy) (*Outcome, error) {
	policy = policy.withDefaults()
	start := time.Now()

	var lastMismatch *Mismatch
	var lastValue any
	var lastErr error

	for attempt := 1; ; attempt++ {
		value, err := probe()
		if err != nil {
			if policy.Retryable != nil && !policy.Retryable(err) {
				return nil, fmt.Errorf("non-retryable fault on attempt %d: %w", attempt, err)
			}
			lastErr = err
			lastValue = nil
			lastMismatch = nil
		} else {
			mm := matcher.Match(value)
			if mm == nil {
				return &Outcome{
					Value:    value,
					Attempts: attempt,
					Elapsed:  time.Since(start),
				}, nil
			}
			lastMismatch = mm
			lastValue = value
			lastErr = nil
		}

		if attempt >= policy.MaxAttempts {
			return nil, newVerificationError(matcher, lastMismatch, lastValue, lastErr, attempt, policy.WaitInterval, time.Since(start))
		}

		policy.Sleep(policy.WaitInterval)
	}
}
