// Package callback defines the host callback sink contract
// (SPEC_FULL.md §6) the orchestrator dispatches results through.
package callback

import (
	"log"

	"github.com/rokid/voicecore/internal/protocol"
)

// Sink is implemented by the host application. Every method is a
// one-way notification; the orchestrator never waits on a return value
// beyond the call itself.
type Sink interface {
	VoiceEvent(id int64, event protocol.VoiceEvent)
	IntermediateResult(id int64, resultType protocol.ResultType, asr string)
	VoiceCommand(id int64, asr, nlp, action string)
	SpeechError(id int64, err error)
}

// Recording is a Sink that appends every call to an in-memory log, used
// by the orchestrator's own tests to assert on dispatch order.
type Recording struct {
	Calls []Call
}

// Call is one recorded Sink invocation.
type Call struct {
	Method string
	ID     int64
	Event  protocol.VoiceEvent
	Type   protocol.ResultType
	ASR    string
	NLP    string
	Action string
	Err    error
}

func (r *Recording) VoiceEvent(id int64, event protocol.VoiceEvent) {
	r.Calls = append(r.Calls, Call{Method: "voice_event", ID: id, Event: event})
}

func (r *Recording) IntermediateResult(id int64, resultType protocol.ResultType, asr string) {
	r.Calls = append(r.Calls, Call{Method: "intermediate_result", ID: id, Type: resultType, ASR: asr})
}

func (r *Recording) VoiceCommand(id int64, asr, nlp, action string) {
	r.Calls = append(r.Calls, Call{Method: "voice_command", ID: id, ASR: asr, NLP: nlp, Action: action})
}

func (r *Recording) SpeechError(id int64, err error) {
	r.Calls = append(r.Calls, Call{Method: "speech_error", ID: id, Err: err})
}

// LoggingSink is the Sink used by the standalone daemon when no host
// process embeds this module as a library: it has nowhere else to
// deliver callbacks, so it logs them, following the teacher's
// package-prefixed *log.Logger convention.
type LoggingSink struct {
	log *log.Logger
}

// NewLoggingSink returns a Sink that logs every call.
func NewLoggingSink() *LoggingSink {
	return &LoggingSink{log: log.New(log.Writer(), "[callback] ", log.LstdFlags)}
}

func (s *LoggingSink) VoiceEvent(id int64, event protocol.VoiceEvent) {
	s.log.Printf("voice_event id=%d event=%s", id, event)
}

func (s *LoggingSink) IntermediateResult(id int64, resultType protocol.ResultType, asr string) {
	s.log.Printf("intermediate_result id=%d type=%s asr=%q", id, resultType, asr)
}

func (s *LoggingSink) VoiceCommand(id int64, asr, nlp, action string) {
	s.log.Printf("voice_command id=%d asr=%q action=%q", id, asr, action)
}

func (s *LoggingSink) SpeechError(id int64, err error) {
	s.log.Printf("speech_error id=%d err=%v", id, err)
}
