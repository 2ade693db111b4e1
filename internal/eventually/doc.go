// Package eventually implements the retry-until-condition-holds protocol
// that every cluster check in this repository is built on.
//
// A Marathon-like orchestrator converges asynchronously: submitting an app
// definition returns long before tasks are placed, started, and reported
// healthy. Checks therefore never assert on a single observation. Instead
// they hand a Probe (a zero-argument remote-state query) and a Matcher
// (a pure predicate with a descriptive failure message) to Verify, which
// re-invokes the probe on a fixed interval until the matcher is satisfied
// or the attempt budget runs out.
//
// The loop is a race to first success, not a fixed-duration wait:
//
//	app, err := eventually.Verify(func() (any, error) {
//	    return client.GetApp(ctx, appID)
//	}, eventually.HasFields(map[string]any{
//	    "tasksRunning": 1,
//	    "tasksHealthy": 1,
//	}), eventually.Policy{MaxAttempts: 30, Retryable: marathon.Retryable})
//
// Faults raised by the probe are classified by Policy.Retryable. A fault
// classified as non-retryable (for example an HTTP 422 telling us the app
// definition itself is invalid) aborts verification immediately and
// propagates the original error, so "the system told us definitively no"
// is never confused with "the system has not yet converged".
//
// Attempts within one Verify call are strictly sequential and never
// overlap. Verify holds no state across calls; independent checks may run
// Verify concurrently as long as each passes its own Policy value.
package eventually
