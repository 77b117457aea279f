// Package reqqueue implements the Request Stream Queue (SPEC_FULL.md
// §4.C): the voice-session FIFO with its absent/OPEN/CLOSING state
// machine, and the parallel plain FIFO used for text requests.
package reqqueue

import (
	"sync"

	"github.com/rokid/voicecore/internal/protocol"
)

type voiceEntry struct {
	kind    protocol.ReqKind
	payload []byte
}

// VoiceQueue holds at most one active voice session at a time, matching
// the single-session invariant in SPEC_FULL.md §3. Pop is non-blocking;
// callers that need to wait for work coordinate externally via a
// condition variable, mirroring the speech client's own send thread.
// VoiceQueue is guarded by a lock shared with the send loop's condition
// variable, so that a producer's mutation-plus-signal cannot land in
// the gap between the consumer's check and its wait (SPEC_FULL.md §5).
type VoiceQueue struct {
	mu      sync.Locker
	id      int64
	arg     string
	entries []voiceEntry
	closed  bool
}

// NewVoiceQueue returns an empty, open VoiceQueue guarded by mu.
func NewVoiceQueue(mu sync.Locker) *VoiceQueue {
	return &VoiceQueue{mu: mu}
}

// Start reserves the voice slot for id. Fails if another session is
// already open or the queue is closed.
func (q *VoiceQueue) Start(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.id != 0 {
		return false
	}
	q.id = id
	q.entries = append(q.entries, voiceEntry{kind: protocol.KindVoiceStart})
	return true
}

// SetArg stores the VOICE_START option bundle for id.
func (q *VoiceQueue) SetArg(id int64, value string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.id != id {
		return false
	}
	q.arg = value
	return true
}

// Stream enqueues a voice-data chunk for id. Fails if id is not the open
// session.
func (q *VoiceQueue) Stream(id int64, chunk []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.id != id || len(chunk) == 0 {
		return false
	}
	q.entries = append(q.entries, voiceEntry{kind: protocol.KindVoiceData, payload: chunk})
	return true
}

// End enqueues the VOICE_END sentinel for id.
func (q *VoiceQueue) End(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.id != id {
		return false
	}
	q.entries = append(q.entries, voiceEntry{kind: protocol.KindVoiceEnd})
	return true
}

// Erase cancels the session for id: any queued-but-unsent frames are
// dropped and replaced with a single CANCELLED sentinel. Fails if id is
// not the open session.
func (q *VoiceQueue) Erase(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.id == 0 || q.id != id {
		return false
	}
	q.entries = q.entries[:0]
	q.entries = append(q.entries, voiceEntry{kind: protocol.KindCancelled})
	return true
}

// Clear cancels whatever session is currently open, if any, returning
// its id (0 if none was open).
func (q *VoiceQueue) Clear() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.id == 0 {
		return 0
	}
	id := q.id
	q.entries = q.entries[:0]
	q.entries = append(q.entries, voiceEntry{kind: protocol.KindCancelled})
	return id
}

// Pop dequeues the front entry. Returns popType protocol.PopEmpty when
// nothing is queued or the queue has been closed.
func (q *VoiceQueue) Pop() (id int64, payload []byte, arg string, popType protocol.PopType) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.PopLocked()
}

// PopLocked is Pop for a caller already holding the shared lock, as
// part of a single check-then-wait critical section.
func (q *VoiceQueue) PopLocked() (id int64, payload []byte, arg string, popType protocol.PopType) {
	if q.closed || len(q.entries) == 0 {
		return 0, nil, "", protocol.PopEmpty
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	id = q.id
	switch e.kind {
	case protocol.KindVoiceStart:
		popType = protocol.PopVoiceStart
		arg = q.arg
	case protocol.KindVoiceData:
		popType = protocol.PopVoiceData
		payload = e.payload
	case protocol.KindVoiceEnd:
		popType = protocol.PopVoiceEnd
		q.id = 0
		q.arg = ""
	case protocol.KindCancelled:
		popType = protocol.PopCancelled
		q.id = 0
		q.arg = ""
	}
	return id, payload, arg, popType
}

// Empty reports whether the queue currently has no pending entries.
func (q *VoiceQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries) == 0
}

// Close marks the queue closed: subsequent mutators fail and Pop always
// returns PopEmpty.
func (q *VoiceQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.entries = nil
	q.id = 0
	q.arg = ""
}
