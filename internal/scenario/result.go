package scenario

import "time"

// TraceEvent records one executed step for the final report.
type TraceEvent struct {
	Step     int    `json:"step"`
	Action   string `json:"action"`
	Target   string `json:"target,omitempty"`
	Outcome  string `json:"outcome"` // "ok" or "failed"
	Attempts int    `json:"attempts,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Result is the outcome of running one scenario.
type Result struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// Pass is true when every step succeeded.
	Pass bool `json:"pass"`

	// Trace lists executed steps in order. A failed step is the last
	// entry; later steps never run.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failure messages, empty when Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Elapsed is total wall-clock run time.
	Elapsed time.Duration `json:"elapsed"`
}

// NewResult creates a passing result for the named scenario.
func NewResult(name string) *Result {
	return &Result{
		Scenario: name,
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError records a failure message and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// AddTrace appends a step record.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
