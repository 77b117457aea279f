// Package appconfig loads the daemon's three configuration layers
// (SPEC_FULL.md §6.2, §9 Ambient Stack): process secrets from the
// environment, the two spec-mandated on-disk JSON files (device
// identity, siren tuning), and the daemon's own structural YAML file,
// hot-reloaded the way the pack's Shinveam-crow config package does.
package appconfig

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Daemon is the daemon's own structural configuration: listen address,
// cloud endpoint, and log level. Distinct from the two spec-mandated
// JSON files, which keep JSON because §6 names it explicitly.
type Daemon struct {
	Listen struct {
		ControlAddr string `yaml:"control_addr"`
	} `yaml:"listen"`
	Cloud struct {
		Endpoint    string `yaml:"endpoint"`
		ServiceName string `yaml:"service_name"`
		FakeCloud   bool   `yaml:"fake_cloud"`
	} `yaml:"cloud"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func defaultDaemon() Daemon {
	var d Daemon
	d.Listen.ControlAddr = ":8090"
	d.Cloud.ServiceName = "speech"
	d.Log.Level = "info"
	return d
}

// DaemonStore holds the daemon's structural config, reloaded in place on
// file change so callers that snapshot it pick up edits without a
// restart.
type DaemonStore struct {
	mu  sync.RWMutex
	cfg Daemon
}

// LoadDaemon reads path once and starts a debounced fsnotify watch that
// reloads on write/rename, following Shinveam-crow's internal/config
// pattern. If path does not exist, compiled-in defaults are used and no
// watch is started.
func LoadDaemon(path string) (*DaemonStore, error) {
	s := &DaemonStore{cfg: defaultDaemon()}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("appconfig: %s not found, using defaults", path)
		return s, nil
	}

	if err := s.reload(path); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("appconfig: watcher: %v", err)
		return s, nil
	}
	if err := watcher.Add(path); err != nil {
		log.Printf("appconfig: watch %s: %v", path, err)
		_ = watcher.Close()
		return s, nil
	}
	go s.watch(path, watcher)
	return s, nil
}

func (s *DaemonStore) reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("appconfig: read %s: %w", path, err)
	}
	cfg := defaultDaemon()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("appconfig: parse %s: %w", path, err)
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current daemon config.
func (s *DaemonStore) Snapshot() Daemon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *DaemonStore) watch(path string, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	debounce := time.NewTimer(0)
	<-debounce.C

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
				debounce.Reset(500 * time.Millisecond)
			}
		case <-debounce.C:
			if err := s.reload(path); err != nil {
				log.Printf("appconfig: reload failed: %v", err)
			} else {
				log.Printf("appconfig: reloaded %s", path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("appconfig: watch error: %v", err)
		}
	}
}
