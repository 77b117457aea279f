// Command voicecored is the process entrypoint (SPEC_FULL.md §2.1 I):
// wires the Config Store, Connection, Speech Client, siren front-end,
// callback sink, and Session Orchestrator, then serves the host control
// HTTP surface. Grounded on the teacher's cmd/server/main.go bootstrap
// shape (flags/env, construct services, serve, block on signal).
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rokid/voicecore/internal/appconfig"
	"github.com/rokid/voicecore/internal/callback"
	"github.com/rokid/voicecore/internal/cloudconn"
	"github.com/rokid/voicecore/internal/controlapi"
	"github.com/rokid/voicecore/internal/session"
	"github.com/rokid/voicecore/internal/siren"
	"github.com/rokid/voicecore/internal/speechclient"
	"github.com/rokid/voicecore/internal/voiceconfig"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	daemonPath := flag.String("daemon-config", "config/daemon.yaml", "daemon structural config (YAML)")
	devicePath := flag.String("device-config", "config/device.json", "device identity file (JSON)")
	tuningPath := flag.String("tuning-config", "config/siren_tuning.json", "siren tuning profile (JSON)")
	fakeCloud := flag.Bool("fake-cloud", false, "use an in-process fake Connection instead of dialing the cloud")
	flag.Parse()

	secrets := appconfig.LoadSecrets()

	daemonStore, err := appconfig.LoadDaemon(*daemonPath)
	if err != nil {
		log.Fatalf("voicecored: %v", err)
	}
	daemon := daemonStore.Snapshot()

	device, err := appconfig.LoadDeviceIdentity(*devicePath)
	if err != nil {
		log.Fatalf("voicecored: %v", err)
	}
	tuning, err := appconfig.LoadSirenTuning(*tuningPath)
	if err != nil {
		log.Fatalf("voicecored: %v", err)
	}

	cfg := voiceconfig.New()
	device.Apply(cfg)
	tuning.Apply(cfg)

	endpoint := daemon.Cloud.Endpoint
	if endpoint == "" {
		endpoint = secrets.CloudEndpoint
	}
	serviceName := daemon.Cloud.ServiceName
	if serviceName == "" {
		serviceName = secrets.CloudServiceName
	}

	var conn cloudconn.Connection
	if *fakeCloud || daemon.Cloud.FakeCloud {
		log.Printf("voicecored: using fake cloud connection")
		conn = cloudconn.NewFakeConnection(64)
	} else {
		conn = cloudconn.NewWSConnection(endpoint, map[string]string{
			"X-Device-Id": device.DeviceID,
			"X-Key":       device.Key,
		})
	}

	client := speechclient.New(conn, cfg, serviceName)
	orch := session.New(siren.NewFake(), client, cfg, callback.NewLoggingSink())

	controlAddr := daemon.Listen.ControlAddr
	if secrets.ControlAddr != "" {
		controlAddr = secrets.ControlAddr
	}

	ctrl := controlapi.New(orch, cfg)
	server := &http.Server{
		Addr:              controlAddr,
		Handler:           ctrl.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("voicecored: control surface listening on %s", controlAddr)
		serverErrors <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("voicecored: server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("voicecored: shutdown signal received: %v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("voicecored: graceful shutdown failed: %v", err)
		_ = server.Close()
	}
	orch.Close()
}
