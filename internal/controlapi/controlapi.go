// Package controlapi implements the host control HTTP surface
// (SPEC_FULL.md §6.2): a thin net/http adapter exposing the Config
// Surface and basic process lifecycle over JSON, with no session logic
// of its own. Grounded on the teacher's internal/httpserver/server.go
// (plain http.ServeMux, a dedicated health handler registered alongside
// the main mux) rather than its parallel echo-based router.go.
package controlapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/rokid/voicecore/internal/session"
	"github.com/rokid/voicecore/internal/voiceconfig"
)

// Server bundles the control HTTP handler and its dependencies.
type Server struct {
	Router http.Handler

	orch *session.Orchestrator
	cfg  *voiceconfig.Store
	log  *log.Logger
}

// New constructs the control surface's router, wired to orch and cfg.
func New(orch *session.Orchestrator, cfg *voiceconfig.Store) *Server {
	s := &Server{orch: orch, cfg: cfg, log: log.New(log.Writer(), "[controlapi] ", log.LstdFlags)}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/v1/init", s.handleInit)
	mux.HandleFunc("/v1/siren", s.handleSiren)
	mux.HandleFunc("/v1/network", s.handleNetwork)
	mux.HandleFunc("/v1/stack", s.handleStack)
	mux.HandleFunc("/v1/config", s.handleConfig)

	s.Router = mux
	return s
}

type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *Server) writeEnvelope(w http.ResponseWriter, corrID string, err error) {
	w.Header().Set("Content-Type", "application/json")
	env := envelope{OK: err == nil}
	if err != nil {
		env.Error = err.Error()
		s.log.Printf("[%s] error: %v", corrID, err)
	}
	_ = json.NewEncoder(w).Encode(env)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	corrID := uuid.NewString()
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	err := s.orch.Init(r.Context())
	s.writeEnvelope(w, corrID, err)
}

func (s *Server) handleSiren(w http.ResponseWriter, r *http.Request) {
	corrID := uuid.NewString()
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Open bool `json:"open"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeEnvelope(w, corrID, err)
		return
	}
	s.orch.StartSiren(body.Open)
	s.writeEnvelope(w, corrID, nil)
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	corrID := uuid.NewString()
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Connected bool `json:"connected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeEnvelope(w, corrID, err)
		return
	}
	s.orch.NetworkStateChange(r.Context(), body.Connected)
	s.writeEnvelope(w, corrID, nil)
}

func (s *Server) handleStack(w http.ResponseWriter, r *http.Request) {
	corrID := uuid.NewString()
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		AppID string `json:"app_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeEnvelope(w, corrID, err)
		return
	}
	s.orch.UpdateStack(body.AppID)
	s.writeEnvelope(w, corrID, nil)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	corrID := uuid.NewString()
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			OK     bool              `json:"ok"`
			Config map[string]string `json:"config"`
		}{OK: true, Config: s.cfg.RedactedSnapshot()})
	case http.MethodPost:
		var body struct {
			DeviceID     string `json:"device_id"`
			DeviceTypeID string `json:"device_type_id"`
			Key          string `json:"key"`
			Secret       string `json:"secret"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeEnvelope(w, corrID, err)
			return
		}
		s.orch.UpdateConfig(body.DeviceID, body.DeviceTypeID, body.Key, body.Secret)
		s.writeEnvelope(w, corrID, nil)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
