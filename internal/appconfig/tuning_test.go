package appconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rokid/voicecore/internal/voiceconfig"
)

func TestLoadSirenTuningMissingFileUsesDefaults(t *testing.T) {
	tuning, err := LoadSirenTuning(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadSirenTuning: %v", err)
	}
	want := defaultTuning()
	if tuning != want {
		t.Fatalf("expected defaults %+v, got %+v", want, tuning)
	}
}

func TestLoadSirenTuningParsesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.json")
	body := `{"wake_sensitivity":0.8,"vad_hangover_ms":500,"cloud_vad":true}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tuning, err := LoadSirenTuning(path)
	if err != nil {
		t.Fatalf("LoadSirenTuning: %v", err)
	}
	want := SirenTuning{WakeSensitivity: 0.8, VADHangoverMS: 500, CloudVAD: true}
	if tuning != want {
		t.Fatalf("expected %+v, got %+v", want, tuning)
	}
}

func TestLoadSirenTuningMalformedJSONFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadSirenTuning(path); err == nil {
		t.Fatalf("expected an error for malformed JSON")
	}
}

func TestSirenTuningApplySetsCloudVADKey(t *testing.T) {
	cfg := voiceconfig.New()
	SirenTuning{CloudVAD: true}.Apply(cfg)
	if v, _ := cfg.Get(voiceconfig.KeyCloudVAD); v != "true" {
		t.Fatalf("expected cloud_vad=true, got %q", v)
	}

	SirenTuning{CloudVAD: false}.Apply(cfg)
	if v, _ := cfg.Get(voiceconfig.KeyCloudVAD); v != "false" {
		t.Fatalf("expected cloud_vad=false, got %q", v)
	}
}
