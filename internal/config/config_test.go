package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sim.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
run:
  seed: 99
  horizon: 5000
fundamental:
  mean: 50000
markets:
  - type: cda
  - type: call
    clear_interval: 250
    clear_ratio: 0.5
agents:
  zi:
    count: 10
    arrival_rate: 0.01
    max_position: 5
    surplus_min: 10
    surplus_max: 60
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Run.Seed != 99 || cfg.Run.Horizon != 5000 {
		t.Errorf("run = %+v, want seed 99 horizon 5000", cfg.Run)
	}
	if cfg.Run.TickSize != 1 {
		t.Errorf("tick size default = %d, want 1", cfg.Run.TickSize)
	}
	if len(cfg.Markets) != 2 || cfg.Markets[1].ClearInterval != 250 {
		t.Errorf("markets = %+v", cfg.Markets)
	}
	if cfg.Agents.ZI.Count != 10 || cfg.Agents.ZI.SurplusMax != 60 {
		t.Errorf("zi = %+v", cfg.Agents.ZI)
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"zero horizon", "run:\n  horizon: 0\n", "horizon"},
		{"bad kappa", "fundamental:\n  kappa: 1.5\n", "kappa"},
		{"bad market type", "markets:\n  - type: dark_pool\n", "unknown type"},
		{"call without interval", "markets:\n  - type: call\n", "clear_interval"},
		{"bad surplus range", "agents:\n  zi:\n    count: 5\n    arrival_rate: 0.01\n    max_position: 5\n    surplus_min: 50\n    surplus_max: 10\n", "surplus"},
		{"tight mm spread", "agents:\n  market_makers:\n    count: 1\n    arrival_rate: 0.01\n    rungs: 2\n    rung_size: 5\n    spread: 1\n", "spread"},
		{"bad log level", "logging:\n  level: loud\n", "logging level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("config accepted, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}
