package speechclient

import (
	"context"
	"testing"
	"time"

	"github.com/rokid/voicecore/internal/cloudconn"
	"github.com/rokid/voicecore/internal/protocol"
	"github.com/rokid/voicecore/internal/speecherr"
	"github.com/rokid/voicecore/internal/voiceconfig"
)

func newTestClient(t *testing.T) (*Client, *cloudconn.FakeConnection) {
	t.Helper()
	conn := cloudconn.NewFakeConnection(16)
	cfg := voiceconfig.New()
	c := New(conn, cfg, "speech")
	if !c.Prepare(context.Background()) {
		t.Fatalf("Prepare failed")
	}
	t.Cleanup(c.Release)
	return c, conn
}

func waitSent(t *testing.T, conn *cloudconn.FakeConnection) *protocol.SpeechRequest {
	t.Helper()
	select {
	case req := <-conn.Sent():
		return req
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for a sent frame")
		return nil
	}
}

func pollOnce(t *testing.T, c *Client) *Result {
	t.Helper()
	done := make(chan *Result, 1)
	go func() {
		res, ok := c.Poll()
		if !ok {
			done <- nil
			return
		}
		done <- res
	}()
	select {
	case res := <-done:
		return res
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for Poll")
		return nil
	}
}

func TestPutTextBeforePrepareReturnsMinusOne(t *testing.T) {
	conn := cloudconn.NewFakeConnection(4)
	c := New(conn, voiceconfig.New(), "speech")
	if id := c.PutText("hi"); id != -1 {
		t.Fatalf("expected -1 before Prepare, got %d", id)
	}
}

func TestPrepareIsIdempotent(t *testing.T) {
	c, _ := newTestClient(t)
	if !c.Prepare(context.Background()) {
		t.Fatalf("second Prepare call should also report true")
	}
}

func TestPutTextSendsAndPolls(t *testing.T) {
	c, conn := newTestClient(t)

	id := c.PutText("hello")
	if id <= 0 {
		t.Fatalf("expected a positive id, got %d", id)
	}

	sent := waitSent(t, conn)
	if sent.Type != protocol.ReqText || sent.ASR != "hello" {
		t.Fatalf("unexpected wire frame: %+v", sent)
	}

	conn.Inject(&protocol.SpeechResponse{ID: id, ASR: "hello", Finish: true})

	if first := pollOnce(t, c); first == nil || first.Type != protocol.ResultStart {
		t.Fatalf("expected ResultStart before the final result, got %+v", first)
	}
	res := pollOnce(t, c)
	if res == nil || res.Type != protocol.ResultEnd || res.ASR != "hello" {
		t.Fatalf("unexpected poll result: %+v", res)
	}
}

func TestStartVoicePutVoiceEndVoice(t *testing.T) {
	c, conn := newTestClient(t)

	id := c.StartVoice(nil, nil)
	if id <= 0 {
		t.Fatalf("expected a positive id, got %d", id)
	}
	start := waitSent(t, conn)
	if start.Type != protocol.ReqStart {
		t.Fatalf("expected START frame first, got %+v", start)
	}

	c.PutVoice(id, []byte("chunk"))
	data := waitSent(t, conn)
	if data.Type != protocol.ReqVoice || string(data.Voice) != "chunk" {
		t.Fatalf("unexpected voice frame: %+v", data)
	}

	c.EndVoice(id)
	end := waitSent(t, conn)
	if end.Type != protocol.ReqEnd {
		t.Fatalf("expected END frame, got %+v", end)
	}

	conn.Inject(&protocol.SpeechResponse{ID: id, ASR: "done", Finish: true})
	if first := pollOnce(t, c); first == nil || first.Type != protocol.ResultStart {
		t.Fatalf("expected ResultStart before the final result, got %+v", first)
	}
	res := pollOnce(t, c)
	if res == nil || res.Type != protocol.ResultEnd {
		t.Fatalf("unexpected poll result: %+v", res)
	}
}

func TestStartVoiceRejectsSecondSession(t *testing.T) {
	c, conn := newTestClient(t)

	first := c.StartVoice(nil, nil)
	waitSent(t, conn)

	second := c.StartVoice(nil, nil)
	if second != -1 {
		t.Fatalf("expected -1 for a second concurrent voice session, got %d", second)
	}
	_ = first
}

func TestPutVoiceIgnoresEmptyChunk(t *testing.T) {
	c, conn := newTestClient(t)
	id := c.StartVoice(nil, nil)
	waitSent(t, conn)

	c.PutVoice(id, nil)
	select {
	case req := <-conn.Sent():
		t.Fatalf("expected no frame for an empty chunk, got %+v", req)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestCancelByIDCancelsInFlightOp(t *testing.T) {
	c, conn := newTestClient(t)

	id := c.PutText("hello")
	waitSent(t, conn)

	c.Cancel(id)

	res := pollOnce(t, c)
	if res == nil || res.Type != protocol.ResultCancelled {
		t.Fatalf("expected ResultCancelled, got %+v", res)
	}
}

func TestCancelZeroClearsPendingText(t *testing.T) {
	c, conn := newTestClient(t)

	id := c.PutText("hello")
	waitSent(t, conn)
	c.PutText("queued behind the in-flight op")

	c.Cancel(0)

	res := pollOnce(t, c)
	if res == nil || res.ID != id || res.Type != protocol.ResultCancelled {
		t.Fatalf("expected the in-flight op cancelled first, got %+v", res)
	}
}

func TestConfigForwardsToStore(t *testing.T) {
	cfg := voiceconfig.New()
	conn := cloudconn.NewFakeConnection(4)
	c := New(conn, cfg, "speech")
	c.Config("custom", "value")
	if v, ok := cfg.Get("custom"); !ok || v != "value" {
		t.Fatalf("expected Config to forward into the store, got %q ok=%v", v, ok)
	}
}

func TestApplyReqConfigDefaultsAndOverrides(t *testing.T) {
	c, conn := newTestClient(t)

	c.Config(voiceconfig.KeyLang, "en")
	id := c.PutText("hi")
	sent := waitSent(t, conn)
	if sent.ID != id || sent.Lang != "en" || sent.Codec != "pcm" {
		t.Fatalf("expected overridden lang and default codec, got %+v", sent)
	}
}

func TestServerErrorSurfacesAsResultError(t *testing.T) {
	c, conn := newTestClient(t)

	id := c.PutText("hi")
	waitSent(t, conn)

	conn.Inject(&protocol.SpeechResponse{ID: id, Result: 6, Finish: true})

	if first := pollOnce(t, c); first == nil || first.Type != protocol.ResultStart {
		t.Fatalf("expected ResultStart before the error result, got %+v", first)
	}
	res := pollOnce(t, c)
	if res == nil || res.Type != protocol.ResultError || res.Err != speecherr.ServerInternal {
		t.Fatalf("expected ServerInternal error result, got %+v", res)
	}
}

func TestReleaseUnblocksPoll(t *testing.T) {
	c, _ := newTestClient(t)
	done := make(chan bool, 1)
	go func() {
		_, ok := c.Poll()
		done <- ok
	}()
	c.Release()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected Poll to return ok=false after Release")
		}
	case <-time.After(time.Second):
		t.Fatalf("Poll did not unblock after Release")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	c, _ := newTestClient(t)
	c.Release()
	c.Release()
}
