// Package opctrl implements the Operation Controller (SPEC_FULL.md
// §4.E): a single-slot tracker of the one operation that may be in
// flight between the speech client and the cloud at any time.
package opctrl

import (
	"sync"
	"time"

	"github.com/rokid/voicecore/internal/protocol"
	"github.com/rokid/voicecore/internal/speecherr"
)

// Operation is one client-side request/response lifecycle, end to end.
type Operation struct {
	ID     int64
	Status protocol.OpStatus
	Err    speecherr.Kind
}

func (op *Operation) terminal() bool {
	if op == nil {
		return true
	}
	switch op.Status {
	case protocol.OpEnd, protocol.OpCancelled, protocol.OpError:
		return true
	default:
		return false
	}
}

// Controller holds the single active Operation. It is not a queue by
// construction: a new operation may only be installed when the slot is
// empty (SPEC_FULL.md §9 Design Notes).
type Controller struct {
	mu     sync.Mutex
	cond   *sync.Cond
	op     *Operation
	closed bool

	lastActivity time.Time
	budget       time.Duration
}

// DefaultTimeout is the implementation-constant op timeout budget.
const DefaultTimeout = 10 * time.Second

// New returns a Controller with the given timeout budget.
func New(budget time.Duration) *Controller {
	c := &Controller{budget: budget, lastActivity: time.Now()}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// NewOp installs a new operation. Callers must have already verified the
// slot is empty (e.g. via CurrentOp).
func (c *Controller) NewOp(id int64, status protocol.OpStatus) *Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.op = &Operation{ID: id, Status: status}
	c.lastActivity = time.Now()
	c.cond.Broadcast()
	return c.op
}

// CurrentOp returns a snapshot of the slot, or nil if empty.
func (c *Controller) CurrentOp() *Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CurrentOpLocked()
}

// CurrentOpLocked is CurrentOp for a caller that already holds the lock
// returned by Locker, as part of a single check-then-wait critical
// section (e.g. Poll inspecting both the op slot and the response
// queue before deciding whether to block).
func (c *Controller) CurrentOpLocked() *Operation {
	if c.op == nil {
		return nil
	}
	cp := *c.op
	return &cp
}

// RemoveFrontOp empties the slot. Precondition: the operation is in a
// terminal state and has already been surfaced through poll.
func (c *Controller) RemoveFrontOp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RemoveFrontOpLocked()
}

// RemoveFrontOpLocked is RemoveFrontOp for a caller already holding the
// lock returned by Locker.
func (c *Controller) RemoveFrontOpLocked() {
	c.op = nil
	c.cond.Broadcast()
}

// FinishOp marks the current operation done (server sent final);
// status transitions to END.
func (c *Controller) FinishOp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.op != nil {
		c.op.Status = protocol.OpEnd
	}
	c.cond.Broadcast()
}

// SetStatus transitions the current operation's status, used for the
// START -> STREAMING transition on first response.
func (c *Controller) SetStatus(status protocol.OpStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.op != nil {
		c.op.Status = status
	}
	c.cond.Broadcast()
}

// CancelOp marks the current operation CANCELLED if id is 0 or matches
// the current operation's id; otherwise it is a no-op.
func (c *Controller) CancelOp(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.op != nil && (id == 0 || c.op.ID == id) {
		c.op.Status = protocol.OpCancelled
		c.cond.Broadcast()
	}
}

// SetOpError transitions the current operation to ERROR, recording err.
func (c *Controller) SetOpError(err speecherr.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.op != nil {
		c.op.Status = protocol.OpError
		c.op.Err = err
	}
	c.cond.Broadcast()
}

// WaitOpFinish blocks until the operation for id transitions to a
// terminal state, disappears, or the controller is closed.
func (c *Controller) WaitOpFinish(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for !c.closed && c.op != nil && c.op.ID == id && !c.op.terminal() {
		c.cond.Wait()
	}
}

// Broadcast wakes every waiter without otherwise changing state, used
// after the response queue gains a new entry.
func (c *Controller) Broadcast() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cond.Broadcast()
}

// RefreshOpTime resets the last-activity timestamp used by OpTimeout.
func (c *Controller) RefreshOpTime() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = time.Now()
}

// OpTimeout returns the time remaining before the current operation
// times out, floored at zero.
func (c *Controller) OpTimeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := c.budget - time.Since(c.lastActivity)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Closed reports whether the controller has been released.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ClosedLocked is Closed for a caller already holding the lock returned
// by Locker.
func (c *Controller) ClosedLocked() bool {
	return c.closed
}

// Locker returns the mutex guarding the controller's own state. Callers
// that must check the controller and some other piece of state (e.g.
// the response queue) as a single atomic check-then-wait operation
// share this lock instead of acquiring two independent ones, so that a
// concurrent Broadcast cannot land in the gap between the check and the
// wait and be lost (SPEC_FULL.md §5: one mutex guards the response
// queue, controller op mutation, and the wait together, matching the
// original poll()'s single resp_mutex).
func (c *Controller) Locker() sync.Locker {
	return &c.mu
}

// Lock acquires the controller's shared lock directly. Paired with
// Unlock and Wait by callers building their own check-then-wait loop
// across the controller and another lock-sharing structure.
func (c *Controller) Lock() {
	c.mu.Lock()
}

// Unlock releases the controller's shared lock.
func (c *Controller) Unlock() {
	c.mu.Unlock()
}

// Wait blocks on the controller's condition variable a single time.
// The caller must hold the lock (via Lock or Locker); Wait releases it
// for the duration of the sleep and reacquires it before returning, so
// the caller's condition check and the wait happen under one
// continuous critical section. Callers loop, re-checking their own
// condition after each wake.
func (c *Controller) Wait() {
	c.cond.Wait()
}

// Close unblocks every waiter permanently; used during release.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cond.Broadcast()
}
