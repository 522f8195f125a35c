// ABOUTME: Optional YAML configuration file for the player CLI
// ABOUTME: Missing fields take the built-in defaults; flags override the file in main
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Sendspin/sendspin-player/pkg/sendspin"
	"gopkg.in/yaml.v3"
)

// Config represents the complete player configuration
type Config struct {
	Player    PlayerConfig    `yaml:"player"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Playout   PlayoutConfig   `yaml:"playout"`
}

// PlayerConfig identifies the player and its server
type PlayerConfig struct {
	Server          string `yaml:"server"` // host:port or ws:// URL; empty means discover
	Name            string `yaml:"name"`
	ClientID        string `yaml:"client_id"`
	Volume          int    `yaml:"volume"`
	PlayoutOffsetMs int    `yaml:"playout_offset_ms"`
	BufferCapacity  int    `yaml:"buffer_capacity"` // bytes
	ArtworkDir      string `yaml:"artwork_dir"`     // empty uses the temp dir
}

// DiscoveryConfig contains mDNS settings
type DiscoveryConfig struct {
	TimeoutSec int `yaml:"timeout"` // seconds to wait for the first server
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	File   string `yaml:"file"`
	Stream bool   `yaml:"stream"` // log to stdout as well and skip the TUI
}

// MetricsConfig contains the Prometheus endpoint
type MetricsConfig struct {
	Address string `yaml:"address"` // empty disables the endpoint
}

// PlayoutConfig overrides playout tuning in milliseconds. Zero keeps the default.
type PlayoutConfig struct {
	TargetBufferMs     int `yaml:"target_buffer_ms"`
	LateDropMs         int `yaml:"late_drop_ms"`
	CatchUpLateMs      int `yaml:"catch_up_late_ms"`
	CatchUpTargetMs    int `yaml:"catch_up_target_ms"`
	EarlyThresholdMs   int `yaml:"early_threshold_ms"`
	MaxEarlySleepMs    int `yaml:"max_early_sleep_ms"`
	TimeSyncIntervalMs int `yaml:"time_sync_interval_ms"`
	StatsIntervalMs    int `yaml:"stats_interval_ms"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Player: PlayerConfig{
			Volume:         100,
			BufferCapacity: 1048576,
		},
		Discovery: DiscoveryConfig{TimeoutSec: 10},
		Logging:   LoggingConfig{File: "sendspin-player.log"},
	}
}

// Load reads and parses the configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if err := c.Player.Validate(); err != nil {
		return fmt.Errorf("player config: %w", err)
	}

	if c.Discovery.TimeoutSec < 0 {
		return fmt.Errorf("discovery config: timeout cannot be negative, got %d", c.Discovery.TimeoutSec)
	}

	if err := c.Playout.Validate(); err != nil {
		return fmt.Errorf("playout config: %w", err)
	}

	return nil
}

// Validate validates player configuration
func (p *PlayerConfig) Validate() error {
	if p.Volume < 0 || p.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", p.Volume)
	}

	maxMs := int(sendspin.MaxPlayoutOffset.Milliseconds())
	if p.PlayoutOffsetMs < -maxMs || p.PlayoutOffsetMs > maxMs {
		return fmt.Errorf("playout_offset_ms must be between %d and %d, got %d", -maxMs, maxMs, p.PlayoutOffsetMs)
	}

	if p.BufferCapacity < 0 {
		return fmt.Errorf("buffer_capacity cannot be negative, got %d", p.BufferCapacity)
	}

	return nil
}

// Validate rejects negative overrides
func (p *PlayoutConfig) Validate() error {
	fields := map[string]int{
		"target_buffer_ms":      p.TargetBufferMs,
		"late_drop_ms":          p.LateDropMs,
		"catch_up_late_ms":      p.CatchUpLateMs,
		"catch_up_target_ms":    p.CatchUpTargetMs,
		"early_threshold_ms":    p.EarlyThresholdMs,
		"max_early_sleep_ms":    p.MaxEarlySleepMs,
		"time_sync_interval_ms": p.TimeSyncIntervalMs,
		"stats_interval_ms":     p.StatsIntervalMs,
	}
	for name, v := range fields {
		if v < 0 {
			return fmt.Errorf("%s cannot be negative, got %d", name, v)
		}
	}

	if p.CatchUpLateMs > 0 && p.CatchUpTargetMs >= p.CatchUpLateMs {
		return fmt.Errorf("catch_up_target_ms (%d) must be less than catch_up_late_ms (%d)",
			p.CatchUpTargetMs, p.CatchUpLateMs)
	}

	return nil
}

// Tuning converts the overrides; zero fields are filled by the player
func (p *PlayoutConfig) Tuning() sendspin.Tuning {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return sendspin.Tuning{
		TargetBuffer:     ms(p.TargetBufferMs),
		LateDrop:         ms(p.LateDropMs),
		CatchUpLate:      ms(p.CatchUpLateMs),
		CatchUpTarget:    ms(p.CatchUpTargetMs),
		EarlyThreshold:   ms(p.EarlyThresholdMs),
		MaxEarlySleep:    ms(p.MaxEarlySleepMs),
		TimeSyncInterval: ms(p.TimeSyncIntervalMs),
		StatsInterval:    ms(p.StatsIntervalMs),
	}
}

// GetPlayoutOffset returns the playout offset as a time.Duration
func (p *PlayerConfig) GetPlayoutOffset() time.Duration {
	return time.Duration(p.PlayoutOffsetMs) * time.Millisecond
}

// GetTimeout returns the discovery timeout as a time.Duration
func (d *DiscoveryConfig) GetTimeout() time.Duration {
	return time.Duration(d.TimeoutSec) * time.Second
}
