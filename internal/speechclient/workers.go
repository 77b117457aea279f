package speechclient

import (
	"encoding/json"

	"github.com/rokid/voicecore/internal/cloudconn"
	"github.com/rokid/voicecore/internal/opctrl"
	"github.com/rokid/voicecore/internal/protocol"
	"github.com/rokid/voicecore/internal/speecherr"
	"github.com/rokid/voicecore/internal/voiceconfig"
)

// pendingReq is the piece of work dequeued from either the voice queue
// or the text FIFO, normalized for do_ctl_change_op / do_request.
type pendingReq struct {
	id    int64
	kind  protocol.ReqKind
	text  string
	voice []byte
	arg   string
}

// sendLoop holds c.reqMu continuously across the check of both request
// queues and the wait on c.reqCond, so that a PutVoice/PutText/Cancel
// landing between "queues are empty" and "now asleep" is never missed:
// wakeSend's Broadcast is only ever issued by a caller also holding
// reqMu, via the queues' own Push/Start/Stream/etc, so it cannot fire
// in an unguarded gap.
func (c *Client) sendLoop() {
	defer c.wg.Done()
	for {
		c.reqMu.Lock()
		var req *pendingReq
		for {
			if !c.isInitialized() {
				c.reqMu.Unlock()
				return
			}
			req = c.nextPendingReqLocked()
			if req != nil {
				break
			}
			c.reqCond.Wait()
		}
		c.reqMu.Unlock()

		if !c.doCtlChangeOp(req) {
			continue
		}
		if last := c.doRequest(req); last {
			c.ctrl.WaitOpFinish(req.id)
		}
	}
}

// nextPendingReqLocked prefers the voice queue over the text FIFO,
// matching the send thread's stated preference in SPEC_FULL.md §4.F.
// Callers must already hold c.reqMu.
func (c *Client) nextPendingReqLocked() *pendingReq {
	if id, payload, arg, popType := c.voiceQ.PopLocked(); popType != protocol.PopEmpty {
		switch popType {
		case protocol.PopVoiceStart:
			return &pendingReq{id: id, kind: protocol.KindVoiceStart, arg: arg}
		case protocol.PopVoiceData:
			return &pendingReq{id: id, kind: protocol.KindVoiceData, voice: payload}
		case protocol.PopVoiceEnd:
			return &pendingReq{id: id, kind: protocol.KindVoiceEnd}
		case protocol.PopCancelled:
			return &pendingReq{id: id, kind: protocol.KindCancelled}
		}
	}
	if te := c.textQ.PopFrontLocked(); te != nil {
		return &pendingReq{id: te.ID, kind: te.Kind, text: te.Text}
	}
	return nil
}

// doCtlChangeOp reflects a dequeued request onto the operation
// controller, following the decision table in SPEC_FULL.md §4.F.
func (c *Client) doCtlChangeOp(req *pendingReq) bool {
	cur := c.ctrl.CurrentOp()
	switch req.kind {
	case protocol.KindText, protocol.KindVoiceStart:
		c.ctrl.NewOp(req.id, protocol.OpStart)
		return true
	case protocol.KindVoiceData, protocol.KindVoiceEnd:
		return cur != nil && cur.ID == req.id
	case protocol.KindCancelled:
		if cur != nil && cur.ID == req.id {
			c.ctrl.CancelOp(req.id)
			c.ctrl.Broadcast()
			return true
		}
		if cur == nil {
			c.ctrl.NewOp(req.id, protocol.OpCancelled)
			c.ctrl.Broadcast()
			return false
		}
		return false
	default:
		return false
	}
}

// doRequest serializes and sends req, returning whether this was the
// last frame of the request stream (gating the next operation behind
// wait_op_finish).
func (c *Client) doRequest(req *pendingReq) bool {
	wire := c.buildWireRequest(req)
	sendRes := c.conn.Send(wire, sendTimeout)
	if sendRes != cloudconn.SendSuccess {
		errKind := speecherr.Unknown
		if sendRes == cloudconn.SendConnectionNotAvailable {
			errKind = speecherr.ServiceUnavailable
		}
		c.ctrl.SetOpError(errKind)
		c.ctrl.Broadcast()
		return false
	}

	c.ctrl.RefreshOpTime()
	return req.kind == protocol.KindText || req.kind == protocol.KindVoiceEnd || req.kind == protocol.KindCancelled
}

func (c *Client) buildWireRequest(req *pendingReq) *protocol.SpeechRequest {
	wire := &protocol.SpeechRequest{ID: req.id}
	switch req.kind {
	case protocol.KindText:
		wire.Type = protocol.ReqText
		wire.ASR = req.text
		c.applyReqConfig(wire)
	case protocol.KindVoiceStart:
		wire.Type = protocol.ReqStart
		c.applyReqConfig(wire)
		if req.arg != "" {
			var opts voiceStartArgs
			if err := json.Unmarshal([]byte(req.arg), &opts); err == nil {
				wire.FrameworkOptions = opts.Framework
				wire.SkillOptions = opts.Skill
			}
		}
	case protocol.KindVoiceData:
		wire.Type = protocol.ReqVoice
		wire.Voice = req.voice
	case protocol.KindVoiceEnd, protocol.KindCancelled:
		wire.Type = protocol.ReqEnd
	}
	return wire
}

func (c *Client) applyReqConfig(wire *protocol.SpeechRequest) {
	wire.Lang = c.cfg.GetOr(voiceconfig.KeyLang, "zh")
	wire.Codec = c.cfg.GetOr(voiceconfig.KeyCodec, "pcm")
	wire.VT = c.cfg.GetOr(voiceconfig.KeyVT, "")
}

func (c *Client) recvLoop() {
	defer c.wg.Done()
	for {
		if !c.isInitialized() {
			return
		}

		timeout := c.ctrl.OpTimeout()
		if timeout <= 0 {
			timeout = opctrl.DefaultTimeout
		}
		resp, recvRes := c.conn.Recv(timeout)
		switch recvRes {
		case cloudconn.RecvNotReady:
			return
		case cloudconn.RecvSuccess:
			c.ctrl.RefreshOpTime()
			c.genResultByResp(resp)
		case cloudconn.RecvTimeout:
			if c.ctrl.OpTimeout() == 0 {
				c.ctrl.SetOpError(speecherr.Timeout)
				c.ctrl.Broadcast()
			}
		case cloudconn.RecvBroken:
			c.ctrl.SetOpError(speecherr.ServiceUnavailable)
			c.ctrl.Broadcast()
		default:
			c.ctrl.SetOpError(speecherr.Unknown)
			c.ctrl.Broadcast()
		}
	}
}

// genResultByResp only processes responses whose id matches the current
// op and whose status is neither CANCELLED nor ERROR, per SPEC_FULL.md
// §4.F.
func (c *Client) genResultByResp(resp *protocol.SpeechResponse) {
	op := c.ctrl.CurrentOp()
	if op == nil || op.ID != resp.ID || op.Status == protocol.OpCancelled || op.Status == protocol.OpError {
		return
	}

	if op.Status == protocol.OpStart {
		c.respQ.Start(resp.ID)
		c.ctrl.SetStatus(protocol.OpStreaming)
	}

	errKind := speecherr.FromServerCode(resp.Result)
	if errKind == speecherr.Success {
		in := protocol.ResultIn{ASR: resp.ASR, NLP: resp.NLP, Action: resp.Action, Extra: resp.Extra}
		if resp.Finish {
			c.respQ.End(resp.ID, in)
			c.ctrl.FinishOp()
		} else {
			c.respQ.Stream(resp.ID, in)
		}
	} else {
		c.respQ.Erase(resp.ID, errKind)
		c.ctrl.FinishOp()
	}
	c.ctrl.Broadcast()
}
