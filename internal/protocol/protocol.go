// Package protocol defines the wire types exchanged with the cloud speech
// service, and the internal request/result/status enums the rest of the
// speech client is built around.
package protocol

// RequestType is the kind of frame sent to the cloud.
type RequestType int

const (
	ReqText RequestType = iota
	ReqStart
	ReqVoice
	ReqEnd
)

func (t RequestType) String() string {
	switch t {
	case ReqText:
		return "TEXT"
	case ReqStart:
		return "START"
	case ReqVoice:
		return "VOICE"
	case ReqEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// SpeechRequest is a single frame sent over the Connection to the cloud.
// Only the fields relevant to Type are populated by the sender.
type SpeechRequest struct {
	ID               int64             `json:"id"`
	Type             RequestType       `json:"type"`
	ASR              string            `json:"asr,omitempty"`
	Voice            []byte            `json:"voice,omitempty"`
	Lang             string            `json:"lang,omitempty"`
	Codec            string            `json:"codec,omitempty"`
	VT               string            `json:"vt,omitempty"`
	FrameworkOptions map[string]string `json:"framework_options,omitempty"`
	SkillOptions     map[string]string `json:"skill_options,omitempty"`
}

// SpeechResponse is a single frame received over the Connection from the
// cloud.
type SpeechResponse struct {
	ID     int64  `json:"id"`
	Result int32  `json:"result"`
	Finish bool   `json:"finish"`
	ASR    string `json:"asr,omitempty"`
	NLP    string `json:"nlp,omitempty"`
	Action string `json:"action,omitempty"`
	Extra  string `json:"extra,omitempty"`
}

// ReqKind is the internal tagged-variant kind of a queued request, as
// distinct from RequestType (the wire type): ReqKind additionally
// distinguishes VoiceStart/Cancelled, which do not have their own wire
// RequestType (VoiceStart is sent as ReqStart, Cancelled as ReqEnd).
type ReqKind int

const (
	KindText ReqKind = iota
	KindVoiceStart
	KindVoiceData
	KindVoiceEnd
	KindCancelled
)

func (k ReqKind) String() string {
	switch k {
	case KindText:
		return "TEXT"
	case KindVoiceStart:
		return "VOICE_START"
	case KindVoiceData:
		return "VOICE_DATA"
	case KindVoiceEnd:
		return "VOICE_END"
	case KindCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// OpStatus is the lifecycle status of an Operation Controller slot.
type OpStatus int

const (
	OpStart OpStatus = iota
	OpStreaming
	OpEnd
	OpCancelled
	OpError
)

func (s OpStatus) String() string {
	switch s {
	case OpStart:
		return "START"
	case OpStreaming:
		return "STREAMING"
	case OpEnd:
		return "END"
	case OpCancelled:
		return "CANCELLED"
	case OpError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ResultType is the kind of a Result delivered by poll.
type ResultType int

const (
	ResultStart ResultType = iota
	ResultInter
	ResultEnd
	ResultCancelled
	ResultError
)

func (t ResultType) String() string {
	switch t {
	case ResultStart:
		return "START"
	case ResultInter:
		return "INTER"
	case ResultEnd:
		return "END"
	case ResultCancelled:
		return "CANCELLED"
	case ResultError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether a ResultType ends the operation it belongs to.
func (t ResultType) IsTerminal() bool {
	return t >= ResultEnd
}

// ResultIn is the payload attached to a Result, built from a SpeechResponse.
type ResultIn struct {
	ASR    string
	NLP    string
	Action string
	Extra  string
}

// PopType is the value returned by a queue's pop operation.
type PopType int

const (
	PopEmpty     PopType = -1
	PopVoiceData PopType = 0
	PopVoiceStart PopType = 1
	PopVoiceEnd  PopType = 2
	PopCancelled PopType = 3
)

// RespPopType mirrors PopType on the response-queue side.
type RespPopType int

const (
	RespPopEmpty     RespPopType = -1
	RespPopInter     RespPopType = 0
	RespPopStart     RespPopType = 1
	RespPopEnd       RespPopType = 2
	RespPopCancelled RespPopType = 3
	RespPopError     RespPopType = 4
)

// VoiceEvent is the event kind delivered through the callback sink's
// voice_event call.
type VoiceEvent int

const (
	VoiceComing VoiceEvent = iota
	VoiceStart
	VoiceLocalWake
	VoiceAccept
	VoiceReject
	VoiceFake
	VoiceCancel
	VoiceSleep
	// VoiceEnd is defined for wire compatibility but is never emitted by
	// the orchestrator; see the resolved open question in SPEC_FULL.md §4.G.
	VoiceEnd
)

func (e VoiceEvent) String() string {
	switch e {
	case VoiceComing:
		return "VOICE_COMING"
	case VoiceStart:
		return "VOICE_START"
	case VoiceLocalWake:
		return "VOICE_LOCAL_WAKE"
	case VoiceAccept:
		return "VOICE_ACCEPT"
	case VoiceReject:
		return "VOICE_REJECT"
	case VoiceFake:
		return "VOICE_FAKE"
	case VoiceCancel:
		return "VOICE_CANCEL"
	case VoiceSleep:
		return "VOICE_SLEEP"
	case VoiceEnd:
		return "VOICE_END"
	default:
		return "UNKNOWN"
	}
}

// TransformActivation maps a server activation verdict string to a
// VoiceEvent. Only "fake" and "reject" are special-cased; every other
// string (including unrecognized ones) is treated as an accept so normal
// ASR/NLP dispatch proceeds.
func TransformActivation(activation string) VoiceEvent {
	switch activation {
	case "fake":
		return VoiceFake
	case "reject":
		return VoiceReject
	default:
		return VoiceAccept
	}
}

// IsArbitratedAway reports whether an activation verdict suppresses
// user-visible ASR/NLP dispatch.
func IsArbitratedAway(activation string) bool {
	return activation == "fake" || activation == "reject"
}
