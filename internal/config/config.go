// Package config loads the application configuration. Unlike the
// knowledge base, which is immutable game data, this file holds the
// deployment-specific paths and the tracking tunables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/croverlay/croverlay/internal/tracker"
)

// Config represents the application configuration.
type Config struct {
	// Knowledge file and storage locations
	Paths PathsConfig `toml:"paths"`

	// Tracker tunables
	Tracker TrackerConfig `toml:"tracker"`

	// HTTP/WebSocket server settings
	Server ServerConfig `toml:"server"`

	// Application settings
	App AppConfig `toml:"app"`
}

// PathsConfig contains file locations.
type PathsConfig struct {
	Knowledge string `toml:"knowledge"` // Path to the knowledge TOML file
	Database  string `toml:"database"`  // Path to the SQLite match store
	EventLog  string `toml:"event_log"` // Detection event log appended by the capture pipeline
	TraceDir  string `toml:"trace_dir"` // Directory for recorded match traces
}

// TrackerConfig contains the tracking tunables. All durations are strings
// parsed with time.ParseDuration (e.g. "750ms").
type TrackerConfig struct {
	SpendTolerance          float64 `toml:"spend_tolerance"`           // Anomalous-spend slack in elixir
	HistorySize             int     `toml:"history_size"`              // Retroactive correction window K
	ReorderWindow           string  `toml:"reorder_window"`            // Out-of-order buffering window
	LockThreshold           float64 `toml:"lock_threshold"`            // Per-card confidence to lock the deck
	DueBoost                float64 `toml:"due_boost"`                 // Posterior boost for due candidates
	CycleDeviationTolerance int     `toml:"cycle_deviation_tolerance"` // Off-cycle plays before reset
	InitialElixir           float64 `toml:"initial_elixir"`            // Opponent elixir at match start
}

// ServerConfig contains the listen addresses for the two local servers.
type ServerConfig struct {
	Addr    string `toml:"addr"`     // WebSocket publish address (e.g. ":8765")
	APIAddr string `toml:"api_addr"` // REST API address (e.g. ":8766")
}

// AppConfig contains general application settings.
type AppConfig struct {
	DebugMode bool `toml:"debug_mode"` // Verbose event logging
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	t := tracker.DefaultConfig()
	return &Config{
		Paths: PathsConfig{
			Knowledge: "knowledge.toml",
			Database:  "croverlay.db",
			EventLog:  "detections.jsonl",
			TraceDir:  "traces",
		},
		Tracker: TrackerConfig{
			SpendTolerance:          t.SpendTolerance,
			HistorySize:             t.HistorySize,
			ReorderWindow:           t.ReorderWindow.String(),
			LockThreshold:           t.LockThreshold,
			DueBoost:                t.DueBoost,
			CycleDeviationTolerance: t.CycleDeviationTolerance,
			InitialElixir:           t.InitialElixir,
		},
		Server: ServerConfig{
			Addr:    ":8765",
			APIAddr: ":8766",
		},
		App: AppConfig{
			DebugMode: false,
		},
	}
}

// Load reads the configuration from an explicit path. A missing file
// yields the defaults so a bare checkout still runs.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return config, nil
}

// Save writes the configuration to disk.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Paths.Knowledge == "" {
		return fmt.Errorf("knowledge path cannot be empty")
	}
	if _, err := c.TrackerConfig(); err != nil {
		return err
	}
	return nil
}

// TrackerConfig converts the file representation to the tracker's typed
// configuration and validates it.
func (c *Config) TrackerConfig() (tracker.Config, error) {
	window, err := time.ParseDuration(c.Tracker.ReorderWindow)
	if err != nil {
		return tracker.Config{}, fmt.Errorf("invalid reorder window %q: %w", c.Tracker.ReorderWindow, err)
	}
	cfg := tracker.Config{
		SpendTolerance:          c.Tracker.SpendTolerance,
		HistorySize:             c.Tracker.HistorySize,
		ReorderWindow:           window,
		LockThreshold:           c.Tracker.LockThreshold,
		DueBoost:                c.Tracker.DueBoost,
		CycleDeviationTolerance: c.Tracker.CycleDeviationTolerance,
		InitialElixir:           c.Tracker.InitialElixir,
	}
	if err := cfg.Validate(); err != nil {
		return tracker.Config{}, err
	}
	return cfg, nil
}
