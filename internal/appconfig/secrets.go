package appconfig

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Secrets holds process-level secrets and endpoints read from the
// environment, adapted from the teacher's internal/config/config.go
// (godotenv.Load + os.Getenv with warnings on missing keys).
type Secrets struct {
	CloudEndpoint    string
	CloudServiceName string
	ControlAddr      string
}

// LoadSecrets reads .env (if present) then the environment, matching
// the teacher's "load once at process start" convention.
func LoadSecrets() Secrets {
	if err := godotenv.Load(); err != nil {
		log.Printf("appconfig: no .env file found or error loading it: %v", err)
	}

	endpoint := os.Getenv("VOICECORE_CLOUD_ENDPOINT")
	if endpoint == "" {
		log.Println("appconfig: warning: VOICECORE_CLOUD_ENDPOINT not set - network_state_change(true) will fail to prepare")
	}

	service := getEnv("VOICECORE_CLOUD_SERVICE", "speech")
	addr := getEnv("VOICECORE_CONTROL_ADDR", "")

	return Secrets{CloudEndpoint: endpoint, CloudServiceName: service, ControlAddr: addr}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
