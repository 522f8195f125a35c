// ABOUTME: Tests for the YAML configuration loader
// ABOUTME: Covers defaults, overrides, validation errors and tuning conversion
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "player.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "player:\n  name: Kitchen\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Player.Name != "Kitchen" {
		t.Errorf("expected name Kitchen, got %q", cfg.Player.Name)
	}
	if cfg.Player.Volume != 100 {
		t.Errorf("expected default volume 100, got %d", cfg.Player.Volume)
	}
	if cfg.Discovery.GetTimeout() != 10*time.Second {
		t.Errorf("expected default discovery timeout, got %v", cfg.Discovery.GetTimeout())
	}
	if cfg.Logging.File != "sendspin-player.log" {
		t.Errorf("unexpected log file %q", cfg.Logging.File)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
player:
  server: 192.168.1.10:8927
  volume: 40
  playout_offset_ms: -120
logging:
  stream: true
metrics:
  address: ":9100"
playout:
  target_buffer_ms: 300
  catch_up_late_ms: 100
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Player.Server != "192.168.1.10:8927" || cfg.Player.Volume != 40 {
		t.Errorf("unexpected player config %+v", cfg.Player)
	}
	if cfg.Player.GetPlayoutOffset() != -120*time.Millisecond {
		t.Errorf("unexpected playout offset %v", cfg.Player.GetPlayoutOffset())
	}
	if !cfg.Logging.Stream || cfg.Metrics.Address != ":9100" {
		t.Errorf("unexpected logging/metrics %+v %+v", cfg.Logging, cfg.Metrics)
	}

	tuning := cfg.Playout.Tuning()
	if tuning.TargetBuffer != 300*time.Millisecond || tuning.CatchUpLate != 100*time.Millisecond {
		t.Errorf("unexpected tuning %+v", tuning)
	}
	if tuning.LateDrop != 0 {
		t.Errorf("expected unset fields to stay zero, got %v", tuning.LateDrop)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "player: [", "failed to parse"},
		{"volume", "player:\n  volume: 150\n", "volume must be between"},
		{"offset", "player:\n  playout_offset_ms: 1500\n", "playout_offset_ms must be between"},
		{"negative tuning", "playout:\n  late_drop_ms: -1\n", "late_drop_ms cannot be negative"},
		{"catch-up order", "playout:\n  catch_up_late_ms: 50\n  catch_up_target_ms: 60\n", "must be less than"},
		{"discovery", "discovery:\n  timeout: -1\n", "timeout cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
