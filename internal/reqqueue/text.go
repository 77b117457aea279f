package reqqueue

import (
	"sync"

	"github.com/rokid/voicecore/internal/protocol"
)

// TextEntry is one queued text request. Kind is mutated in place to
// KindCancelled when the request is cancelled before it is sent,
// matching the reference implementation's in-place cancellation of
// not-yet-sent text requests.
type TextEntry struct {
	ID   int64
	Kind protocol.ReqKind
	Text string
}

// TextFIFO is the plain ordered queue of pending TEXT requests, guarded
// by a lock shared with the send loop's condition variable (the same
// lock VoiceQueue shares), so a Push racing the send loop's
// check-then-wait cannot be lost.
type TextFIFO struct {
	mu     sync.Locker
	items  []*TextEntry
	closed bool
}

// NewTextFIFO returns an empty, open TextFIFO guarded by mu.
func NewTextFIFO(mu sync.Locker) *TextFIFO {
	return &TextFIFO{mu: mu}
}

// Push appends a new text request. Fails if the queue is closed.
func (f *TextFIFO) Push(id int64, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.items = append(f.items, &TextEntry{ID: id, Kind: protocol.KindText, Text: text})
	return true
}

// PopFront removes and returns the front entry, or nil if empty/closed.
func (f *TextFIFO) PopFront() *TextEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PopFrontLocked()
}

// PopFrontLocked is PopFront for a caller already holding the shared
// lock, as part of a single check-then-wait critical section.
func (f *TextFIFO) PopFrontLocked() *TextEntry {
	if f.closed || len(f.items) == 0 {
		return nil
	}
	e := f.items[0]
	f.items = f.items[1:]
	return e
}

// CancelByID marks the matching not-yet-sent entry CANCELLED in place,
// without removing it from the queue. Returns false if no matching
// entry is found.
func (f *TextFIFO) CancelByID(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.items {
		if e.ID == id {
			e.Kind = protocol.KindCancelled
			return true
		}
	}
	return false
}

// CancelAll marks every pending entry CANCELLED in place.
func (f *TextFIFO) CancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.items {
		e.Kind = protocol.KindCancelled
	}
}

// Empty reports whether the queue currently has no pending entries.
func (f *TextFIFO) Empty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items) == 0
}

// Close marks the queue closed: subsequent Push calls fail and PopFront
// always returns nil.
func (f *TextFIFO) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.items = nil
}
