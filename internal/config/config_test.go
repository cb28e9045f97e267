package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}

	tc, err := cfg.TrackerConfig()
	if err != nil {
		t.Fatalf("TrackerConfig failed: %v", err)
	}
	if tc.ReorderWindow != 750*time.Millisecond {
		t.Errorf("Expected default reorder window 750ms, got %v", tc.ReorderWindow)
	}
	if cfg.Server.Addr == "" || cfg.Server.APIAddr == "" {
		t.Error("Expected default listen addresses")
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load of missing file should not error: %v", err)
	}
	if cfg.Paths.Knowledge != "knowledge.toml" {
		t.Errorf("Expected default knowledge path, got %q", cfg.Paths.Knowledge)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "croverlay.toml")
	content := `
[paths]
knowledge = "/etc/croverlay/cards.toml"

[tracker]
history_size = 20
reorder_window = "250ms"

[server]
addr = ":9000"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Paths.Knowledge != "/etc/croverlay/cards.toml" {
		t.Errorf("Override not applied: %q", cfg.Paths.Knowledge)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Override not applied: %q", cfg.Server.Addr)
	}
	// Untouched keys keep their defaults.
	if cfg.Paths.Database != "croverlay.db" {
		t.Errorf("Expected default database path, got %q", cfg.Paths.Database)
	}

	tc, err := cfg.TrackerConfig()
	if err != nil {
		t.Fatalf("TrackerConfig failed: %v", err)
	}
	if tc.HistorySize != 20 {
		t.Errorf("Expected history size 20, got %d", tc.HistorySize)
	}
	if tc.ReorderWindow != 250*time.Millisecond {
		t.Errorf("Expected reorder window 250ms, got %v", tc.ReorderWindow)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths.Knowledge = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for empty knowledge path")
	}

	cfg = DefaultConfig()
	cfg.Tracker.ReorderWindow = "not-a-duration"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for malformed reorder window")
	}

	cfg = DefaultConfig()
	cfg.Tracker.HistorySize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero history size")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "croverlay.toml")
	cfg := DefaultConfig()
	cfg.App.DebugMode = true
	cfg.Tracker.LockThreshold = 0.75

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.App.DebugMode {
		t.Error("DebugMode not preserved")
	}
	if loaded.Tracker.LockThreshold != 0.75 {
		t.Errorf("LockThreshold not preserved: %v", loaded.Tracker.LockThreshold)
	}
}
