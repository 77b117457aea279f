package siren

import (
	"context"
	"testing"
)

func TestInitTransitionsUnknownToInited(t *testing.T) {
	f := NewFake()
	if f.State() != StateUnknown {
		t.Fatalf("expected StateUnknown before Init")
	}
	if err := f.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if f.State() != StateInited {
		t.Fatalf("expected StateInited after Init")
	}
}

func TestStartSirenTransitions(t *testing.T) {
	f := NewFake()
	f.Init(context.Background())
	f.StartSiren(true)
	if f.State() != StateStarted {
		t.Fatalf("expected StateStarted, got %v", f.State())
	}
	f.StartSiren(false)
	if f.State() != StateStopped {
		t.Fatalf("expected StateStopped, got %v", f.State())
	}
	f.StartSiren(true)
	if f.State() != StateStarted {
		t.Fatalf("expected StateStarted again after STOPPED->open, got %v", f.State())
	}
}

func TestStartSirenOpenIgnoredBeforeInit(t *testing.T) {
	f := NewFake()
	f.StartSiren(true)
	if f.State() != StateUnknown {
		t.Fatalf("expected open to be ignored before Init, got %v", f.State())
	}
}

func TestEmitAndEvents(t *testing.T) {
	f := NewFake()
	f.Emit(Event{Type: WakePre})
	ev := <-f.Events()
	if ev.Type != WakePre {
		t.Fatalf("expected WakePre, got %v", ev.Type)
	}
}

func TestSetStateRecordsCodes(t *testing.T) {
	f := NewFake()
	f.SetState(StateSleep)
	f.SetState(42)
	f.SetState(StateSleep)
	if f.SleptCount() != 2 {
		t.Fatalf("expected 2 sleep codes, got %d", f.SleptCount())
	}
	codes := f.StateCodes()
	if len(codes) != 3 || codes[1] != 42 {
		t.Fatalf("unexpected codes: %v", codes)
	}
}

func TestCloseStopsEmit(t *testing.T) {
	f := NewFake()
	f.Close()
	f.Emit(Event{Type: WakePre})
	_, ok := <-f.Events()
	if ok {
		t.Fatalf("expected Events channel to be closed")
	}
}

func TestFlagHas(t *testing.T) {
	f := FlagVoice | FlagVT
	if !f.Has(FlagVoice) || !f.Has(FlagVT) {
		t.Fatalf("expected both flags set")
	}
	if FlagVoice.Has(FlagVT) {
		t.Fatalf("expected FlagVoice alone to not have FlagVT")
	}
}
