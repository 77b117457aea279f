// Package cloudconn implements the Connection collaborator (SPEC_FULL.md
// §4.B): an opaque framed full-duplex transport to the cloud speech
// service. Frames are JSON-encoded SpeechRequest/SpeechResponse values
// sent as individual gorilla/websocket messages; see DESIGN.md for why
// this implementation departs from the distilled spec's literal
// "length-prefixed protobuf" wording.
package cloudconn

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rokid/voicecore/internal/protocol"
)

// SendResult is the outcome of a Connection.Send call.
type SendResult int

const (
	SendSuccess SendResult = iota
	SendConnectionNotAvailable
	SendTimeout
	SendBroken
	SendUnknown
)

// RecvResult is the outcome of a Connection.Recv call.
type RecvResult int

const (
	RecvSuccess RecvResult = iota
	RecvTimeout
	RecvBroken
	RecvNotReady
	RecvUnknown
)

// Connection is the transport collaborator used by the speech client's
// send and receive worker goroutines.
type Connection interface {
	Initialize(ctx context.Context, bufSize int, serviceName string) error
	Send(req *protocol.SpeechRequest, timeout time.Duration) SendResult
	Recv(timeout time.Duration) (*protocol.SpeechResponse, RecvResult)
	Release()
}

// WSConnection is a Connection backed by a gorilla/websocket dial,
// grounded on the teacher's internal/transcript/assemblyai.go Connect /
// handleMessages / sendAudioData / Close pattern: one goroutine pumps
// inbound frames from the socket into a channel that Recv drains, Send
// writes outbound frames on the caller's own goroutine, and a stop
// channel unblocks Recv on Release.
type WSConnection struct {
	url    string
	header map[string]string

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	stopCh  chan struct{}
	inbound chan *protocol.SpeechResponse

	log *log.Logger
}

// NewWSConnection returns a Connection that will dial url on Initialize.
func NewWSConnection(url string, header map[string]string) *WSConnection {
	return &WSConnection{
		url:    url,
		header: header,
		log:    log.New(log.Writer(), "[cloudconn] ", log.LstdFlags),
	}
}

func (c *WSConnection) Initialize(ctx context.Context, bufSize int, serviceName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.closed {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	hdr := make(http.Header, len(c.header))
	for k, v := range c.header {
		hdr.Set(k, v)
	}
	conn, _, err := dialer.DialContext(ctx, c.url, hdr)
	if err != nil {
		return fmt.Errorf("%s: dial: %w", serviceName, err)
	}

	c.conn = conn
	c.stopCh = make(chan struct{})
	c.inbound = make(chan *protocol.SpeechResponse, bufSize)
	c.closed = false
	go c.readLoop()
	return nil
}

func (c *WSConnection) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			c.log.Printf("recovered panic in read loop: %v", r)
		}
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.log.Printf("read error: %v", err)
			close(c.inbound)
			return
		}
		var resp protocol.SpeechResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			c.log.Printf("malformed frame: %v", err)
			continue
		}
		select {
		case c.inbound <- &resp:
		case <-c.stopCh:
			return
		}
	}
}

func (c *WSConnection) Send(req *protocol.SpeechRequest, timeout time.Duration) SendResult {
	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()

	if closed || conn == nil {
		return SendConnectionNotAvailable
	}

	data, err := json.Marshal(req)
	if err != nil {
		return SendUnknown
	}
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if websocket.IsCloseError(err) || websocket.IsUnexpectedCloseError(err) {
			return SendBroken
		}
		return SendUnknown
	}
	return SendSuccess
}

func (c *WSConnection) Recv(timeout time.Duration) (*protocol.SpeechResponse, RecvResult) {
	c.mu.Lock()
	closed := c.closed
	inbound := c.inbound
	stopCh := c.stopCh
	c.mu.Unlock()

	if closed {
		return nil, RecvNotReady
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-inbound:
		if !ok {
			return nil, RecvBroken
		}
		return resp, RecvSuccess
	case <-stopCh:
		return nil, RecvNotReady
	case <-timer.C:
		return nil, RecvTimeout
	}
}

func (c *WSConnection) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.stopCh != nil {
		close(c.stopCh)
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
