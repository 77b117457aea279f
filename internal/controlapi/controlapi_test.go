package controlapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rokid/voicecore/internal/callback"
	"github.com/rokid/voicecore/internal/cloudconn"
	"github.com/rokid/voicecore/internal/session"
	"github.com/rokid/voicecore/internal/siren"
	"github.com/rokid/voicecore/internal/speechclient"
	"github.com/rokid/voicecore/internal/voiceconfig"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := voiceconfig.New()
	client := speechclient.New(cloudconn.NewFakeConnection(8), cfg, "speech")
	orch := session.New(siren.NewFake(), client, cfg, &callback.Recording{})
	t.Cleanup(orch.Close)
	return New(orch, cfg)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestInit(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodPost, "/v1/init", nil)
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.OK {
		t.Fatalf("expected ok=true, got %+v", env)
	}
}

func TestInit_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/v1/init", nil)
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestSiren_BadJSON(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodPost, "/v1/siren", strings.NewReader("not-json"))
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.OK {
		t.Fatalf("expected ok=false for malformed body")
	}
}

func TestStack(t *testing.T) {
	srv := newTestServer(t)
	body := strings.NewReader(`{"app_id":"music"}`)
	r := httptest.NewRequest(http.MethodPost, "/v1/stack", body)
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if v, _ := srv.cfg.Get(voiceconfig.KeyStack); v != "music" {
		t.Fatalf("expected stack=music, got %q", v)
	}
}

func TestConfig_PostThenGetRedacted(t *testing.T) {
	srv := newTestServer(t)
	post := httptest.NewRequest(http.MethodPost, "/v1/config", strings.NewReader(
		`{"device_id":"d1","device_type_id":"t1","key":"k1","secret":"shh"}`))
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, post)
	if w.Code != http.StatusOK {
		t.Fatalf("post: expected 200, got %d", w.Code)
	}

	get := httptest.NewRequest(http.MethodGet, "/v1/config", nil)
	w2 := httptest.NewRecorder()
	srv.Router.ServeHTTP(w2, get)

	var body struct {
		OK     bool              `json:"ok"`
		Config map[string]string `json:"config"`
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Config["device_id"] != "d1" {
		t.Fatalf("expected device_id=d1, got %+v", body.Config)
	}
	if body.Config["secret"] != "***" {
		t.Fatalf("expected secret redacted, got %q", body.Config["secret"])
	}
}

func TestConfig_UnsupportedMethod(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodDelete, "/v1/config", nil)
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
