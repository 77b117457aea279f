// Package session implements the Session Orchestrator (SPEC_FULL.md
// §4.G): the state machine that consumes siren front-end events, drives
// the Speech Client, arbitrates "fake"/"reject" wakes, and dispatches
// results to the host callback sink. Grounded on the teacher's
// internal/agent/session.go Session.Start shape (two goroutines, one
// per async input stream, mutex-guarded fields).
package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/rokid/voicecore/internal/callback"
	"github.com/rokid/voicecore/internal/protocol"
	"github.com/rokid/voicecore/internal/siren"
	"github.com/rokid/voicecore/internal/speecherr"
	"github.com/rokid/voicecore/internal/speechclient"
	"github.com/rokid/voicecore/internal/voiceconfig"
)

// speechState is the orchestrator's view of the Speech Client's
// lifecycle, driven entirely by NetworkStateChange.
type speechState int

const (
	speechUnknown speechState = iota
	speechPrepared
	speechReleased
)

// Orchestrator coordinates the siren front-end, the Speech Client, and
// the host callback sink. All public methods are safe for concurrent
// use.
type Orchestrator struct {
	siren  siren.Siren
	speech *speechclient.Client
	cfg    *voiceconfig.Store
	sink   callback.Sink
	log    *log.Logger

	mu               sync.Mutex
	sirenState       siren.State
	speechSt         speechState
	sirenRequestOpen bool
	activeID         int64
	pendingVT        *siren.VT
	stack            string
	asrFinished      bool
	activation       string
	closed           bool

	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// New returns an Orchestrator wired to the given collaborators.
func New(s siren.Siren, speech *speechclient.Client, cfg *voiceconfig.Store, sink callback.Sink) *Orchestrator {
	return &Orchestrator{
		siren:  s,
		speech: speech,
		cfg:    cfg,
		sink:   sink,
		log:    log.New(log.Writer(), "[session] ", log.LstdFlags),
	}
}

// Init installs the siren event callback and starts the event thread.
// Idempotent.
func (o *Orchestrator) Init(ctx context.Context) error {
	o.mu.Lock()
	if o.sirenState != siren.StateUnknown {
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	if err := o.siren.Init(ctx); err != nil {
		return fmt.Errorf("session: siren init: %w", err)
	}

	o.mu.Lock()
	o.sirenState = siren.StateInited
	o.ctx, o.cancel = context.WithCancel(ctx)
	runCtx := o.ctx
	o.mu.Unlock()

	o.wg.Add(1)
	go o.eventLoop(runCtx)
	return nil
}

// StartSiren requests the front-end open or close its audio stream. A
// requested-open that arrives before the Speech Client is prepared is
// remembered and honored the moment NetworkStateChange(true) succeeds.
func (o *Orchestrator) StartSiren(open bool) {
	o.mu.Lock()
	o.sirenRequestOpen = open
	ready := o.speechSt == speechPrepared
	o.mu.Unlock()

	if !open {
		o.siren.StartSiren(false)
		o.mu.Lock()
		o.sirenState = siren.StateStopped
		o.mu.Unlock()
		return
	}
	if ready {
		o.siren.StartSiren(true)
		o.mu.Lock()
		o.sirenState = siren.StateStarted
		o.mu.Unlock()
	}
}

// SetSirenState forwards a front-end tuning code.
func (o *Orchestrator) SetSirenState(code int) {
	o.siren.SetState(code)
}

// NetworkStateChange drives the Speech Client's prepare/release cycle.
// On connect, the client is prepared and, if the siren was already
// requested open, it is started now that the pipeline is ready. On
// disconnect, the siren is stopped and the client released.
func (o *Orchestrator) NetworkStateChange(ctx context.Context, connected bool) {
	if connected {
		if !o.speech.Prepare(ctx) {
			o.log.Printf("network_state_change: prepare failed")
			return
		}
		o.mu.Lock()
		o.speechSt = speechPrepared
		requestedOpen := o.sirenRequestOpen
		o.mu.Unlock()

		if requestedOpen {
			o.siren.StartSiren(true)
			o.mu.Lock()
			o.sirenState = siren.StateStarted
			o.mu.Unlock()
		}

		o.wg.Add(1)
		go o.responseLoop()
		return
	}

	o.siren.StartSiren(false)
	o.mu.Lock()
	o.sirenState = siren.StateStopped
	o.speechSt = speechReleased
	o.mu.Unlock()
	o.speech.Release()
}

// UpdateStack updates the foreground application id carried as the
// "stack" option on the next start_voice.
func (o *Orchestrator) UpdateStack(appID string) {
	o.mu.Lock()
	o.stack = appID
	o.mu.Unlock()
	o.cfg.Set(voiceconfig.KeyStack, appID)
}

// UpdateConfig persists the device credential bundle. Missing fields
// are stored as-is; per SPEC_FULL.md §4.H this is a silent failure that
// only surfaces the next time NetworkStateChange(true) tries to
// prepare against the cloud.
func (o *Orchestrator) UpdateConfig(deviceID, deviceTypeID, key, secret string) {
	o.cfg.Set(voiceconfig.KeyDeviceID, deviceID)
	o.cfg.Set(voiceconfig.KeyDeviceTypeID, deviceTypeID)
	o.cfg.Set(voiceconfig.KeyKey, key)
	o.cfg.Set("secret", secret)
}

// Close tears the orchestrator down: stops the event thread, releases
// the Speech Client, closes the siren, and joins both loops. Idempotent.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	cancel := o.cancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.speech.Release()
	_ = o.siren.Close()
	o.wg.Wait()
}

func (o *Orchestrator) cloudVADEnabled() bool {
	v := o.cfg.GetOr(voiceconfig.KeyCloudVAD, "false")
	enabled, _ := strconv.ParseBool(v)
	return enabled
}

// noSessionID is the sentinel id used for callbacks that precede or
// outlive any active voice session (WAKE_PRE, WAKE_CMD, session-less
// SLEEP), matching the -1 used throughout SPEC_FULL.md §8's scenarios.
const noSessionID int64 = -1

func (o *Orchestrator) eventLoop(ctx context.Context) {
	defer o.wg.Done()
	events := o.siren.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			o.handleEvent(ev)
		}
	}
}

// handleEvent implements the event-semantics table in SPEC_FULL.md §4.G.
func (o *Orchestrator) handleEvent(ev siren.Event) {
	switch ev.Type {
	case siren.WakePre:
		o.sink.VoiceEvent(noSessionID, protocol.VoiceComing)

	case siren.WakeCmd:
		o.sink.VoiceEvent(noSessionID, protocol.VoiceLocalWake)

	case siren.VADStart:
		o.handleVADStart()

	case siren.VADData:
		o.handleVADData(ev)

	case siren.VADEnd:
		o.handleVADEnd()

	case siren.VADCancel:
		o.handleVADCancel()

	case siren.VoicePrint:
		if ev.Flag.Has(siren.FlagVT) {
			vt := ev.VT
			o.mu.Lock()
			o.pendingVT = &vt
			o.mu.Unlock()
		}

	case siren.Sleep:
		if !o.cloudVADEnabled() {
			o.mu.Lock()
			id := o.activeID
			o.mu.Unlock()
			if id == 0 {
				id = noSessionID
			}
			o.sink.VoiceEvent(id, protocol.VoiceSleep)
		}
	}
}

func (o *Orchestrator) handleVADStart() {
	o.mu.Lock()
	if o.activeID != 0 {
		o.mu.Unlock()
		return
	}
	vt := o.pendingVT
	o.pendingVT = nil
	stack := o.stack
	o.mu.Unlock()

	fw := buildVoiceOptions(vt, stack)
	id := o.speech.StartVoice(fw, nil)
	if id <= 0 {
		o.log.Printf("vad_start: start_voice rejected (voice slot occupied)")
		return
	}

	o.mu.Lock()
	o.activeID = id
	o.asrFinished = false
	o.activation = ""
	o.mu.Unlock()

	o.sink.VoiceEvent(id, protocol.VoiceStart)
}

func (o *Orchestrator) handleVADData(ev siren.Event) {
	o.mu.Lock()
	id := o.activeID
	o.mu.Unlock()
	if id == 0 || !ev.Flag.Has(siren.FlagVoice) {
		return
	}
	o.speech.PutVoice(id, ev.Payload)
}

// handleVADEnd never emits a VOICE_END callback; see SPEC_FULL.md §4.G's
// resolved open question.
func (o *Orchestrator) handleVADEnd() {
	o.mu.Lock()
	id := o.activeID
	cloudVAD := o.cloudVADEnabled()
	o.mu.Unlock()
	if id == 0 || cloudVAD {
		return
	}
	o.speech.EndVoice(id)
	o.clearSession(id)
}

func (o *Orchestrator) handleVADCancel() {
	o.mu.Lock()
	id := o.activeID
	finished := o.asrFinished
	cloudVAD := o.cloudVADEnabled()
	o.mu.Unlock()
	if id == 0 || finished {
		return
	}
	o.speech.Cancel(id)
	if !cloudVAD {
		o.clearSession(id)
	}
}

// buildVoiceOptions implements the VT-splicing rule in SPEC_FULL.md
// §4.G: voice_trigger/trigger_start/trigger_length/voice_power from a
// pending VT descriptor, plus the current stack, as framework options.
func buildVoiceOptions(vt *siren.VT, stack string) map[string]string {
	opts := make(map[string]string)
	if vt != nil {
		opts[voiceconfig.KeyVoiceTrigger] = hex.EncodeToString(vt.Data)
		opts[voiceconfig.KeyTriggerStart] = strconv.FormatInt(vt.Start, 10)
		opts[voiceconfig.KeyTriggerLength] = strconv.FormatInt(vt.End-vt.Start, 10)
		opts[voiceconfig.KeyVoicePower] = strconv.FormatFloat(vt.Energy, 'f', -1, 64)
	}
	if stack != "" {
		opts[voiceconfig.KeyStack] = stack
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func (o *Orchestrator) responseLoop() {
	defer o.wg.Done()
	for {
		res, ok := o.speech.Poll()
		if !ok {
			return
		}
		o.handleResult(res)
	}
}

// handleResult implements the response-handling rules in SPEC_FULL.md
// §4.G.
func (o *Orchestrator) handleResult(res *speechclient.Result) {
	switch res.Type {
	case protocol.ResultStart:
		o.mu.Lock()
		o.asrFinished = false
		o.activation = ""
		o.mu.Unlock()

	case protocol.ResultInter, protocol.ResultEnd:
		arbitratedAway := o.applyActivation(res)
		if !arbitratedAway {
			if res.Type == protocol.ResultInter {
				o.sink.IntermediateResult(res.ID, res.Type, res.ASR)
			} else {
				o.sink.VoiceCommand(res.ID, res.ASR, res.NLP, res.Action)
			}
		}

	case protocol.ResultCancelled:
		if !o.arbitratedAway() {
			o.sink.VoiceEvent(res.ID, protocol.VoiceCancel)
		}

	case protocol.ResultError:
		if !o.arbitratedAway() {
			o.mu.Lock()
			active := o.activeID == res.ID
			cloudVAD := o.cloudVADEnabled()
			o.mu.Unlock()
			if active && cloudVAD {
				o.siren.SetState(siren.StateSleep)
			}
			o.sink.SpeechError(res.ID, speecherr.New(res.Err, "poll"))
		}
		o.mu.Lock()
		o.activation = ""
		o.mu.Unlock()
	}

	if res.Type.IsTerminal() {
		o.clearSession(res.ID)
	}
}

// applyActivation parses res.Extra for the server's activation verdict.
// It only updates o.activation, emits the corresponding VoiceEvent, and
// commands the siren to sleep when the "activation" field is actually
// present (matching the original's json_object_object_get_ex check) —
// an Extra payload that carries other fields but no verdict must not
// clobber a verdict a prior result already stored. The verdict is
// stored in o.activation for the rest of the session (cleared on START
// and ERROR in handleResult, on VAD_START, and whenever clearSession
// ends the active session), so a verdict carried
// on an earlier INTER still gates a later result that arrives with no
// verdict of its own. Returns whether the session is arbitrated away.
func (o *Orchestrator) applyActivation(res *speechclient.Result) bool {
	if activation, ok := extractActivation(res.Extra); ok {
		o.mu.Lock()
		o.activation = activation
		o.mu.Unlock()

		o.sink.VoiceEvent(res.ID, protocol.TransformActivation(activation))
		if protocol.IsArbitratedAway(activation) {
			o.siren.SetState(siren.StateSleep)
		}
	}

	return o.arbitratedAway()
}

// arbitratedAway reports whether the session's stored activation
// verdict suppresses further dispatch.
func (o *Orchestrator) arbitratedAway() bool {
	o.mu.Lock()
	activation := o.activation
	o.mu.Unlock()
	return protocol.IsArbitratedAway(activation)
}

// extractActivation reports the server's activation verdict and whether
// the "activation" field was present in extra at all, distinguishing a
// present-but-empty verdict from an absent one.
func extractActivation(extra string) (string, bool) {
	if extra == "" {
		return "", false
	}
	var payload struct {
		Activation *string `json:"activation"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(extra)), &payload); err != nil {
		return "", false
	}
	if payload.Activation == nil {
		return "", false
	}
	return *payload.Activation, true
}

func (o *Orchestrator) clearSession(id int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.activeID == id {
		o.activeID = 0
		o.asrFinished = true
		o.activation = ""
	}
}
