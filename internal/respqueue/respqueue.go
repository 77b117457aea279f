// Package respqueue implements the Response Queue (SPEC_FULL.md §4.D):
// the response-side mirror of reqqueue.VoiceQueue, carrying interim,
// final, and error results for the single active operation.
package respqueue

import (
	"sync"

	"github.com/rokid/voicecore/internal/protocol"
	"github.com/rokid/voicecore/internal/speecherr"
)

type respEntry struct {
	popType protocol.RespPopType
	payload protocol.ResultIn
	err     speecherr.Kind
}

// Queue holds the results for at most one active operation at a time.
// It is guarded by a lock shared with the opctrl.Controller tracking
// the same operation, so that Poll can check the controller's op
// status and this queue's contents as one atomic check-then-wait
// section (SPEC_FULL.md §5).
type Queue struct {
	mu      sync.Locker
	id      int64
	entries []respEntry
	closed  bool
}

// New returns an empty, open Queue guarded by mu.
func New(mu sync.Locker) *Queue {
	return &Queue{mu: mu}
}

// Start records that the operation for id has begun producing results.
func (q *Queue) Start(id int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.id = id
	q.entries = append(q.entries, respEntry{popType: protocol.RespPopStart})
}

// Stream enqueues an interim result for id.
func (q *Queue) Stream(id int64, in protocol.ResultIn) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.id != id {
		return
	}
	q.entries = append(q.entries, respEntry{popType: protocol.RespPopInter, payload: in})
}

// End enqueues the final result for id.
func (q *Queue) End(id int64, in protocol.ResultIn) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.id != id {
		return
	}
	q.entries = append(q.entries, respEntry{popType: protocol.RespPopEnd, payload: in})
}

// Erase enqueues a terminal error result for id, carrying the server
// error kind.
func (q *Queue) Erase(id int64, err speecherr.Kind) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.id != id {
		return
	}
	q.entries = append(q.entries, respEntry{popType: protocol.RespPopError, err: err})
}

// Pop dequeues the front entry. Returns protocol.RespPopEmpty if nothing
// is queued or the queue has been closed. On a terminal pop (END,
// CANCELLED or ERROR) the active id is cleared.
func (q *Queue) Pop() (id int64, in protocol.ResultIn, err speecherr.Kind, popType protocol.RespPopType) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.PopLocked()
}

// PopLocked is Pop for a caller already holding the shared lock, as
// part of a single check-then-wait critical section.
func (q *Queue) PopLocked() (id int64, in protocol.ResultIn, err speecherr.Kind, popType protocol.RespPopType) {
	if q.closed || len(q.entries) == 0 {
		return 0, protocol.ResultIn{}, speecherr.Success, protocol.RespPopEmpty
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	id = q.id
	popType = e.popType
	in = e.payload
	err = e.err
	if popType == protocol.RespPopEnd || popType == protocol.RespPopError || popType == protocol.RespPopCancelled {
		q.id = 0
	}
	return id, in, err, popType
}

// Empty reports whether the queue currently has no pending entries.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries) == 0
}

// DropPending removes any queued entries for id without surfacing them,
// used when poll short-circuits a CANCELLED/ERROR operation directly
// from controller status.
func (q *Queue) DropPending(id int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.DropPendingLocked(id)
}

// DropPendingLocked is DropPending for a caller already holding the
// shared lock.
func (q *Queue) DropPendingLocked(id int64) {
	if q.id == id {
		q.entries = q.entries[:0]
		q.id = 0
	}
}

// Close marks the queue closed: subsequent mutators are no-ops and Pop
// always returns protocol.RespPopEmpty.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.entries = nil
	q.id = 0
}
