package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestPresetsValidate(t *testing.T) {
	for _, name := range []PresetName{PresetConservative, PresetBalanced, PresetAggressive} {
		if err := Preset(name).Validate(); err != nil {
			t.Errorf("preset %s should validate, got %v", name, err)
		}
	}
}

func TestUnknownPresetFallsBackToBalanced(t *testing.T) {
	got := Preset("turbo")
	want := Preset(PresetBalanced)
	if got.Decision.MarginThreshold != want.Decision.MarginThreshold {
		t.Fatalf("unknown preset margin = %v, want balanced %v",
			got.Decision.MarginThreshold, want.Decision.MarginThreshold)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"margin above one", func(c *Config) { c.Engine.Decision.MarginThreshold = 1.5 }},
		{"negative margin", func(c *Config) { c.Engine.Decision.MarginThreshold = -0.1 }},
		{"kelly cap above one", func(c *Config) { c.Engine.Sizing.MaxKellyFraction = 1.2 }},
		{"buy ratio above one", func(c *Config) { c.Engine.Sizing.BuyRatio = 2 }},
		{"confidence mult inverted", func(c *Config) {
			c.Engine.Sizing.MinConfidenceMult = 1.5
			c.Engine.Sizing.MaxConfidenceMult = 1.0
		}},
		{"negative cooldown", func(c *Config) { c.Engine.Cooldown.BuyMinutes = -1 }},
		{"cooldown bounds inverted", func(c *Config) {
			c.Engine.Cooldown.Learning = true
			c.Engine.Cooldown.MinMinutes = 60
			c.Engine.Cooldown.MaxMinutes = 10
		}},
		{"override above one", func(c *Config) { c.Engine.Cooldown.ConfidenceOverride = 1.5 }},
		{"unknown learning mode", func(c *Config) { c.Engine.Learning.Mode = "PSYCHIC" }},
		{"zero initial balance", func(c *Config) { c.Backtest.InitialBalance = 0 }},
		{"zero regime window", func(c *Config) { c.Backtest.RegimeWindow = 0 }},
		{"unknown risk methodology", func(c *Config) { c.Risk.Methodology = "vibes" }},
		{"tiny risk history", func(c *Config) { c.Risk.MinHistory = 1 }},
		{"zero trading interval", func(c *Config) { c.Trading.IntervalSeconds = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Decision.MarginThreshold != 0.25 {
		t.Errorf("margin = %v, want balanced default 0.25", cfg.Engine.Decision.MarginThreshold)
	}
	if cfg.Risk.MinHistory != 30 {
		t.Errorf("min history = %d, want 30", cfg.Risk.MinHistory)
	}
}

func TestLoadReadsTOML(t *testing.T) {
	dir := t.TempDir()
	toml := `
[engine.decision]
margin_threshold = 0.4
top_reasons = 3

[engine.learning]
mode = "GLOBAL"
min_trades_required = 10

[store]
path = "/tmp/test-trader.db"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Decision.MarginThreshold != 0.4 {
		t.Errorf("margin = %v, want 0.4", cfg.Engine.Decision.MarginThreshold)
	}
	if cfg.Engine.Decision.TopReasons != 3 {
		t.Errorf("top reasons = %d, want 3", cfg.Engine.Decision.TopReasons)
	}
	if cfg.Engine.Learning.Mode != LearnGlobal {
		t.Errorf("mode = %s, want GLOBAL", cfg.Engine.Learning.Mode)
	}
	if cfg.Store.Path != "/tmp/test-trader.db" {
		t.Errorf("store path = %s", cfg.Store.Path)
	}
	// Fields the file does not mention keep their defaults.
	if !cfg.Engine.Sizing.UseKelly {
		t.Error("use_kelly default should survive a partial file")
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	toml := `
[engine.decision]
margin_threshold = 2.0
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected validation error for margin 2.0")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("UPBIT_TRADER_DB", "/tmp/env-override.db")
	t.Setenv("UPBIT_TRADER_LOG_LEVEL", "debug")
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "/tmp/env-override.db" {
		t.Errorf("store path = %s, want env override", cfg.Store.Path)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Log.Level)
	}
}
