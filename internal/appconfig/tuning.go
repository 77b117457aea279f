package appconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/rokid/voicecore/internal/voiceconfig"
)

// SirenTuning is the front-end tuning profile (SPEC_FULL.md §3): wake
// sensitivity and VAD hangover are opaque knobs this module only loads
// (they are not stored in the Config Store or passed to the siren);
// cloud_vad is the one field the orchestrator itself reads, via the
// Config Store's cloud_vad key.
type SirenTuning struct {
	WakeSensitivity float64 `json:"wake_sensitivity"`
	VADHangoverMS   int     `json:"vad_hangover_ms"`
	CloudVAD        bool    `json:"cloud_vad"`
}

func defaultTuning() SirenTuning {
	return SirenTuning{WakeSensitivity: 0.5, VADHangoverMS: 300}
}

// LoadSirenTuning reads path (JSON, per §6). A missing file yields
// compiled-in defaults rather than an error.
func LoadSirenTuning(path string) (SirenTuning, error) {
	t := defaultTuning()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("appconfig: read siren tuning %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("appconfig: parse siren tuning %s: %w", path, err)
	}
	return t, nil
}

// Apply persists the cloud_vad toggle into cfg, the only field of the
// tuning profile the orchestrator's cloud_vad_enable() check consults.
// The remaining knobs are not written to cfg.
func (t SirenTuning) Apply(cfg *voiceconfig.Store) {
	cfg.Set(voiceconfig.KeyCloudVAD, strconv.FormatBool(t.CloudVAD))
}
