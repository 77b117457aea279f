package appconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rokid/voicecore/internal/voiceconfig"
)

func TestLoadDeviceIdentityMissingFileIsZeroValue(t *testing.T) {
	id, err := LoadDeviceIdentity(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadDeviceIdentity: %v", err)
	}
	if id != (DeviceIdentity{}) {
		t.Fatalf("expected a zero-value identity, got %+v", id)
	}
}

func TestLoadDeviceIdentityParsesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	body := `{"device_id":"d1","device_type_id":"t1","key":"k1","secret":"s1"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	id, err := LoadDeviceIdentity(path)
	if err != nil {
		t.Fatalf("LoadDeviceIdentity: %v", err)
	}
	want := DeviceIdentity{DeviceID: "d1", DeviceTypeID: "t1", Key: "k1", Secret: "s1"}
	if id != want {
		t.Fatalf("expected %+v, got %+v", want, id)
	}
}

func TestLoadDeviceIdentityMalformedJSONFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadDeviceIdentity(path); err == nil {
		t.Fatalf("expected an error for malformed JSON")
	}
}

func TestDeviceIdentityApplySetsConfigKeys(t *testing.T) {
	id := DeviceIdentity{DeviceID: "d1", DeviceTypeID: "t1", Key: "k1", Secret: "s1"}
	cfg := voiceconfig.New()
	id.Apply(cfg)

	if v, _ := cfg.Get(voiceconfig.KeyDeviceID); v != "d1" {
		t.Fatalf("expected device_id d1, got %q", v)
	}
	if v, _ := cfg.Get(voiceconfig.KeyDeviceTypeID); v != "t1" {
		t.Fatalf("expected device_type_id t1, got %q", v)
	}
	if v, _ := cfg.Get(voiceconfig.KeyKey); v != "k1" {
		t.Fatalf("expected key k1, got %q", v)
	}
	if v, _ := cfg.Get("secret"); v != "s1" {
		t.Fatalf("expected secret s1, got %q", v)
	}
}
