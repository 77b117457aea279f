// Package speechclient implements the Speech Client (SPEC_FULL.md §4.F):
// the full-duplex cloud protocol engine coordinating the Config Store,
// Connection, Request Stream Queue, Response Queue, and Operation
// Controller, and exposing put_text/start_voice/put_voice/end_voice/
// cancel/config/poll plus the send and receive worker goroutines.
package speechclient

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/rokid/voicecore/internal/cloudconn"
	"github.com/rokid/voicecore/internal/opctrl"
	"github.com/rokid/voicecore/internal/protocol"
	"github.com/rokid/voicecore/internal/reqqueue"
	"github.com/rokid/voicecore/internal/respqueue"
	"github.com/rokid/voicecore/internal/speecherr"
	"github.com/rokid/voicecore/internal/voiceconfig"
)

// sendTimeout bounds a single frame send, matching the reference
// implementation's WS_SEND_TIMEOUT.
const sendTimeout = 10 * time.Second

// Result is a single value surfaced by Poll.
type Result struct {
	ID     int64
	Type   protocol.ResultType
	Err    speecherr.Kind
	ASR    string
	NLP    string
	Action string
	Extra  string
}

type voiceStartArgs struct {
	Framework map[string]string `json:"framework,omitempty"`
	Skill     map[string]string `json:"skill,omitempty"`
}

func encodeOptions(fw, sk map[string]string) string {
	if len(fw) == 0 && len(sk) == 0 {
		return ""
	}
	b, err := json.Marshal(voiceStartArgs{Framework: fw, Skill: sk})
	if err != nil {
		return ""
	}
	return string(b)
}

// Client is the Speech Client. All public methods are safe to call
// concurrently; calls before Prepare or after Release are no-ops or
// return -1, matching SPEC_FULL.md §4.F's public contract.
type Client struct {
	mu          sync.Mutex
	initialized bool
	nextID      int64

	conn        cloudconn.Connection
	cfg         *voiceconfig.Store
	timeout     time.Duration
	serviceName string

	voiceQ *reqqueue.VoiceQueue
	textQ  *reqqueue.TextFIFO
	respQ  *respqueue.Queue
	ctrl   *opctrl.Controller

	reqMu   sync.Mutex
	reqCond *sync.Cond

	wg  sync.WaitGroup
	log *log.Logger
}

// New returns a Client bound to conn for transport and cfg for the
// per-request configuration replayed on every request frame. serviceName
// is passed through to Connection.Initialize on Prepare; an empty string
// falls back to "speech".
func New(conn cloudconn.Connection, cfg *voiceconfig.Store, serviceName string) *Client {
	if serviceName == "" {
		serviceName = "speech"
	}
	c := &Client{
		conn:        conn,
		cfg:         cfg,
		timeout:     opctrl.DefaultTimeout,
		serviceName: serviceName,
		log:         log.New(log.Writer(), "[speechclient] ", log.LstdFlags),
	}
	c.reqCond = sync.NewCond(&c.reqMu)
	return c
}

func (c *Client) isInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Prepare starts the send and receive worker goroutines and initializes
// the Connection. Idempotent.
func (c *Client) Prepare(ctx context.Context) bool {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()

	if err := c.conn.Initialize(ctx, 64, c.serviceName); err != nil {
		c.log.Printf("prepare: %v", err)
		return false
	}

	c.ctrl = opctrl.New(c.timeout)
	c.voiceQ = reqqueue.NewVoiceQueue(&c.reqMu)
	c.textQ = reqqueue.NewTextFIFO(&c.reqMu)
	c.respQ = respqueue.New(c.ctrl.Locker())

	c.mu.Lock()
	c.nextID = 0
	c.initialized = true
	c.mu.Unlock()

	c.wg.Add(2)
	go c.sendLoop()
	go c.recvLoop()
	return true
}

// Release flips the initialized latch false, releases the Connection,
// closes the queues and controller (unblocking every producer and
// consumer with a terminal value), and joins the worker goroutines.
// Idempotent.
func (c *Client) Release() {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return
	}
	c.initialized = false
	c.mu.Unlock()

	c.conn.Release()
	c.voiceQ.Close()
	c.textQ.Close()
	c.respQ.Close()
	c.ctrl.Close()

	c.reqMu.Lock()
	c.reqCond.Broadcast()
	c.reqMu.Unlock()

	c.wg.Wait()
}

func (c *Client) wakeSend() {
	c.reqMu.Lock()
	c.reqCond.Broadcast()
	c.reqMu.Unlock()
}

// PutText enqueues a TEXT request and returns its id, or -1 if the
// client is not prepared or the queue rejected it.
func (c *Client) PutText(text string) int64 {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return -1
	}
	id := c.nextID + 1
	c.nextID = id
	c.mu.Unlock()

	if !c.textQ.Push(id, text) {
		return -1
	}
	c.wakeSend()
	return id
}

// StartVoice reserves the voice slot and returns the new session id, or
// -1 if the client is not prepared or the voice slot is already
// occupied. No state change occurs on failure.
func (c *Client) StartVoice(frameworkOptions, skillOptions map[string]string) int64 {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return -1
	}
	id := c.nextID + 1
	c.mu.Unlock()

	if !c.voiceQ.Start(id) {
		return -1
	}
	c.mu.Lock()
	c.nextID = id
	c.mu.Unlock()

	c.voiceQ.SetArg(id, encodeOptions(frameworkOptions, skillOptions))
	c.wakeSend()
	return id
}

// PutVoice appends a chunk to the open voice session id. Silently
// dropped if id is not the open session, the client is not prepared, or
// data is empty.
func (c *Client) PutVoice(id int64, data []byte) {
	if !c.isInitialized() || len(data) == 0 {
		return
	}
	if c.voiceQ.Stream(id, data) {
		c.wakeSend()
	}
}

// EndVoice appends the END sentinel for the open voice session id.
func (c *Client) EndVoice(id int64) {
	if !c.isInitialized() {
		return
	}
	if c.voiceQ.End(id) {
		c.wakeSend()
	}
}

// Cancel cancels a specific pending/in-flight request (id > 0), or
// everything pending and the current operation (id == 0).
func (c *Client) Cancel(id int64) {
	if !c.isInitialized() {
		return
	}
	if id > 0 {
		if c.voiceQ.Erase(id) {
			c.wakeSend()
			return
		}
		if c.textQ.CancelByID(id) {
			return
		}
		c.ctrl.CancelOp(id)
		c.ctrl.Broadcast()
		return
	}

	if cancelledID := c.voiceQ.Clear(); cancelledID > 0 {
		c.wakeSend()
	}
	c.textQ.CancelAll()
	c.ctrl.CancelOp(0)
	c.ctrl.Broadcast()
}

// Config forwards a key/value pair to the Config Store.
func (c *Client) Config(key, value string) {
	c.cfg.Set(key, value)
}

// Poll blocks until the next result is available, or returns false once
// the client has been released and no operation remains. The
// status check, the response-queue pop, and the wait all run under the
// controller's single shared lock (SPEC_FULL.md §5: one resp_mutex
// guards all three), so a concurrent genResultByResp's enqueue-then-
// broadcast can never land in an unguarded gap between this check and
// this wait and be lost.
func (c *Client) Poll() (*Result, bool) {
	c.ctrl.Lock()
	defer c.ctrl.Unlock()
	for {
		if op := c.ctrl.CurrentOpLocked(); op != nil {
			switch op.Status {
			case protocol.OpCancelled:
				c.respQ.DropPendingLocked(op.ID)
				c.ctrl.RemoveFrontOpLocked()
				return &Result{ID: op.ID, Type: protocol.ResultCancelled, Err: speecherr.Success}, true
			case protocol.OpError:
				c.respQ.DropPendingLocked(op.ID)
				c.ctrl.RemoveFrontOpLocked()
				return &Result{ID: op.ID, Type: protocol.ResultError, Err: op.Err}, true
			}
		}

		id, in, errKind, popType := c.respQ.PopLocked()
		if popType != protocol.RespPopEmpty {
			res := &Result{ID: id, ASR: in.ASR, NLP: in.NLP, Action: in.Action, Extra: in.Extra, Err: errKind}
			switch popType {
			case protocol.RespPopStart:
				res.Type = protocol.ResultStart
			case protocol.RespPopInter:
				res.Type = protocol.ResultInter
			case protocol.RespPopEnd:
				res.Type = protocol.ResultEnd
			case protocol.RespPopError:
				res.Type = protocol.ResultError
			case protocol.RespPopCancelled:
				res.Type = protocol.ResultCancelled
			}
			if res.Type.IsTerminal() {
				c.ctrl.RemoveFrontOpLocked()
			}
			return res, true
		}

		if c.ctrl.ClosedLocked() {
			return nil, false
		}
		c.ctrl.Wait()
	}
}
