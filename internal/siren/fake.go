package siren

import (
	"context"
	"sync"
)

// Fake is an in-process Siren used by the orchestrator's tests and by
// the daemon's standalone mode. Tests drive it by calling Emit.
type Fake struct {
	mu         sync.Mutex
	state      State
	events     chan Event
	closed     bool
	stateCodes []int
}

// NewFake returns a Fake in StateUnknown, matching the real front-end's
// initial state before Init.
func NewFake() *Fake {
	return &Fake{events: make(chan Event, 32)}
}

func (f *Fake) Init(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateUnknown {
		f.state = StateInited
	}
	return nil
}

func (f *Fake) StartSiren(open bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if open && (f.state == StateInited || f.state == StateStopped) {
		f.state = StateStarted
	} else if !open && f.state == StateStarted {
		f.state = StateStopped
	}
}

func (f *Fake) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetState records a forwarded tuning code, for test assertions.
func (f *Fake) SetState(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateCodes = append(f.stateCodes, code)
}

// StateCodes returns every code recorded by SetState, in call order.
func (f *Fake) StateCodes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.stateCodes))
	copy(out, f.stateCodes)
	return out
}

// SleptCount reports how many times SetState(StateSleep) was called.
func (f *Fake) SleptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.stateCodes {
		if c == StateSleep {
			n++
		}
	}
	return n
}

func (f *Fake) Events() <-chan Event {
	return f.events
}

// Emit pushes an event as though the wake-word/VAD engine had produced
// it. No-op once Close has been called.
func (f *Fake) Emit(e Event) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return
	}
	f.events <- e
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.events)
	return nil
}
