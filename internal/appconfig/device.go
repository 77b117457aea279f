package appconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rokid/voicecore/internal/voiceconfig"
)

// DeviceIdentity is the credential bundle the data model (SPEC_FULL.md
// §3) describes: the on-disk counterpart to update_config, read once at
// startup so the daemon can prepare against the cloud before any host
// call arrives.
type DeviceIdentity struct {
	DeviceID     string `json:"device_id"`
	DeviceTypeID string `json:"device_type_id"`
	Key          string `json:"key"`
	Secret       string `json:"secret"`
}

// LoadDeviceIdentity reads path (JSON, per §6) and returns the decoded
// bundle. A missing file is not an error: the daemon starts without
// credentials and the first network_state_change(true) fails to
// prepare, exactly as §4.H describes for a missing update_config.
func LoadDeviceIdentity(path string) (DeviceIdentity, error) {
	var id DeviceIdentity
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return id, nil
	}
	if err != nil {
		return id, fmt.Errorf("appconfig: read device identity %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &id); err != nil {
		return id, fmt.Errorf("appconfig: parse device identity %s: %w", path, err)
	}
	return id, nil
}

// Apply stores the bundle in cfg under the Config Store's device
// credential keys (device_id, device_type_id, key, secret).
func (id DeviceIdentity) Apply(cfg *voiceconfig.Store) {
	cfg.Set(voiceconfig.KeyDeviceID, id.DeviceID)
	cfg.Set(voiceconfig.KeyDeviceTypeID, id.DeviceTypeID)
	cfg.Set(voiceconfig.KeyKey, id.Key)
	cfg.Set("secret", id.Secret)
}
