package testutil

import "sync"

// ProbeStep is one scripted probe observation: a value or a fault.
type ProbeStep struct {
	Value any
	Err   error
}

// ScriptedProbe plays back a fixed sequence of observations, one per call.
// Once the script is exhausted the final step repeats forever, which models
// a remote system that has settled into a steady state.
//
// Thread-safety: Next and Calls are safe for concurrent use, though the
// verifier invokes a probe strictly sequentially.
type ScriptedProbe struct {
	mu    sync.Mutex
	steps []ProbeStep
	calls int
}

// NewScriptedProbe creates a probe that returns the given steps in order.
// At least one step is required.
func NewScriptedProbe(steps ...ProbeStep) *ScriptedProbe {
	if len(steps) == 0 {
		panic("testutil: scripted probe needs at least one step")
	}
	return &ScriptedProbe{steps: steps}
}

// Next returns the next scripted observation.
func (p *ScriptedProbe) Next() (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	if i >= len(p.steps) {
		i = len(p.steps) - 1
	}
	p.calls++
	step := p.steps[i]
	return step.Value, step.Err
}

// Calls returns how many times Next has been invoked.
func (p *ScriptedProbe) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
