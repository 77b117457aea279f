package respqueue

import (
	"sync"
	"testing"

	"github.com/rokid/voicecore/internal/protocol"
	"github.com/rokid/voicecore/internal/speecherr"
)

func TestPopOrderStartInterEnd(t *testing.T) {
	q := New(&sync.Mutex{})
	q.Start(1)
	q.Stream(1, protocol.ResultIn{ASR: "hi"})
	q.End(1, protocol.ResultIn{ASR: "hello"})

	_, _, _, popType := q.Pop()
	if popType != protocol.RespPopStart {
		t.Fatalf("expected START, got %v", popType)
	}
	_, in, _, popType := q.Pop()
	if popType != protocol.RespPopInter || in.ASR != "hi" {
		t.Fatalf("expected INTER asr=hi, got type=%v in=%+v", popType, in)
	}
	_, in, _, popType = q.Pop()
	if popType != protocol.RespPopEnd || in.ASR != "hello" {
		t.Fatalf("expected END asr=hello, got type=%v in=%+v", popType, in)
	}
}

func TestStreamAndEndRejectWrongID(t *testing.T) {
	q := New(&sync.Mutex{})
	q.Start(1)
	q.Stream(2, protocol.ResultIn{ASR: "wrong"})
	q.End(2, protocol.ResultIn{ASR: "wrong"})

	_, _, _, popType := q.Pop()
	if popType != protocol.RespPopStart {
		t.Fatalf("expected only the START entry, got %v", popType)
	}
	if _, _, _, popType := q.Pop(); popType != protocol.RespPopEmpty {
		t.Fatalf("expected nothing queued for a mismatched id, got %v", popType)
	}
}

func TestEraseCarriesErrorKind(t *testing.T) {
	q := New(&sync.Mutex{})
	q.Start(1)
	q.Erase(1, speecherr.Timeout)
	q.Pop() // drain START
	_, _, err, popType := q.Pop()
	if popType != protocol.RespPopError || err != speecherr.Timeout {
		t.Fatalf("expected ERROR/Timeout, got type=%v err=%v", popType, err)
	}
}

func TestTerminalPopClearsActiveID(t *testing.T) {
	q := New(&sync.Mutex{})
	q.Start(1)
	q.End(1, protocol.ResultIn{})
	q.Pop() // START
	q.Pop() // END, clears id
	q.Start(2)
	_, _, _, popType := q.Pop()
	if popType != protocol.RespPopStart {
		t.Fatalf("expected a fresh START for id 2, got %v", popType)
	}
}

func TestDropPendingRemovesOnlyMatchingID(t *testing.T) {
	q := New(&sync.Mutex{})
	q.Start(1)
	q.Stream(1, protocol.ResultIn{ASR: "x"})
	q.DropPending(2)
	if q.Empty() {
		t.Fatalf("DropPending with a mismatched id must not clear the queue")
	}
	q.DropPending(1)
	if !q.Empty() {
		t.Fatalf("DropPending with a matching id must clear the queue")
	}
}

func TestCloseRejectsEverything(t *testing.T) {
	q := New(&sync.Mutex{})
	q.Start(1)
	q.Close()
	q.Stream(1, protocol.ResultIn{ASR: "x"})
	if _, _, _, popType := q.Pop(); popType != protocol.RespPopEmpty {
		t.Fatalf("expected RespPopEmpty after Close, got %v", popType)
	}
}
