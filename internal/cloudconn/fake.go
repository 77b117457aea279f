package cloudconn

import (
	"context"
	"sync"
	"time"

	"github.com/rokid/voicecore/internal/protocol"
)

// FakeConnection is an in-process Connection used by the speech client's
// own tests and by the daemon's --fake-cloud mode. Sent requests are
// observable via Sent(); responses are injected via Inject. Initialize
// reopens a fresh inbound/released pair when called after a Release
// (including a Release that follows a Break), so a FakeConnection can
// stand in across a reconnect; after a Break alone, Initialize leaves
// the closed inbound channel in place.
type FakeConnection struct {
	mu       sync.Mutex
	bufSize  int
	sent     chan *protocol.SpeechRequest
	inbound  chan *protocol.SpeechResponse
	released chan struct{}
}

// NewFakeConnection returns a FakeConnection with the given inbound buffer
// size.
func NewFakeConnection(bufSize int) *FakeConnection {
	f := &FakeConnection{bufSize: bufSize, sent: make(chan *protocol.SpeechRequest, 64)}
	f.reopen()
	return f
}

func (f *FakeConnection) reopen() {
	f.inbound = make(chan *protocol.SpeechResponse, f.bufSize)
	f.released = make(chan struct{})
}

func (f *FakeConnection) Initialize(ctx context.Context, bufSize int, serviceName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.released:
		f.reopen()
	default:
	}
	return nil
}

func (f *FakeConnection) Send(req *protocol.SpeechRequest, timeout time.Duration) SendResult {
	f.mu.Lock()
	released, sent := f.released, f.sent
	f.mu.Unlock()

	select {
	case <-released:
		return SendConnectionNotAvailable
	default:
	}
	cp := *req
	select {
	case sent <- &cp:
		return SendSuccess
	case <-released:
		return SendConnectionNotAvailable
	}
}

func (f *FakeConnection) Recv(timeout time.Duration) (*protocol.SpeechResponse, RecvResult) {
	f.mu.Lock()
	inbound, released := f.inbound, f.released
	f.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp, ok := <-inbound:
		if !ok {
			return nil, RecvBroken
		}
		return resp, RecvSuccess
	case <-released:
		return nil, RecvNotReady
	case <-timer.C:
		return nil, RecvTimeout
	}
}

func (f *FakeConnection) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.released:
	default:
		close(f.released)
	}
}

// Inject pushes a response as though the cloud had sent it.
func (f *FakeConnection) Inject(resp *protocol.SpeechResponse) {
	f.mu.Lock()
	inbound, released := f.inbound, f.released
	f.mu.Unlock()
	select {
	case inbound <- resp:
	case <-released:
	}
}

// Sent exposes the channel of frames the speech client has sent, for
// test assertions.
func (f *FakeConnection) Sent() <-chan *protocol.SpeechRequest {
	return f.sent
}

// Break simulates a broken connection: Recv callers waiting right now
// observe RecvBroken rather than blocking further.
func (f *FakeConnection) Break() {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.inbound)
}
