package eventually

import (
	"fmt"
	"strings"
	"time"
)

// VerificationError is returned when the attempt budget runs out before the
// matcher is ever satisfied. It carries enough context to diagnose the
// failure without re-running: what was expected, what was last observed,
// and how much budget was spent getting there.
type VerificationError struct {
	// Expected is the matcher's description of a satisfying value.
	Expected string

	// Actual describes the last observation: the final mismatch, or the
	// final retryable fault if the last attempt errored.
	Actual string

	// LastValue is the final probed value, nil if the last attempt
	// raised a fault instead.
	LastValue any

	// LastErr is the final retryable fault, nil if the last attempt
	// returned a value.
	LastErr error

	// Attempts, WaitInterval, and Elapsed account for the spent budget,
	// so a reader can tell "too slow, raise the cap" from "genuinely
	// broken".
	Attempts     int
	WaitInterval time.Duration
	Elapsed      time.Duration
}

func newVerificationError(matcher Matcher, mm *Mismatch, lastValue any, lastErr error, attempts int, interval, elapsed time.Duration) *VerificationError {
	actual := ""
	switch {
	case lastErr != nil:
		actual = fmt.Sprintf("probe fault: %v", lastErr)
	case mm != nil:
		actual = mm.Description
	default:
		actual = "no observation recorded"
	}
	return &VerificationError{
		Expected:     matcher.Describe(),
		Actual:       actual,
		LastValue:    lastValue,
		LastErr:      lastErr,
		Attempts:     attempts,
		WaitInterval: interval,
		Elapsed:      elapsed,
	}
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "condition not met after %d attempt(s) (interval %s, elapsed %s)\n", e.Attempts, e.WaitInterval, e.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s", e.Actual)
	return buf.String()
}

// Unwrap exposes the final retryable fault, if the last attempt errored.
func (e *VerificationError) Unwrap() error {
	return e.LastErr
}
