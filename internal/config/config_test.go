package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/talgya/starholdings/internal/economy"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	mine, ok := cfg.Building("metal_mine")
	if !ok || mine.Params.BaseProduction != 10 || mine.MaxLevel != 15 {
		t.Errorf("metal mine = %+v", mine)
	}
	if yard, _ := cfg.Building("shipyard"); yard.StartLevel != 0 || yard.MaxLevel != 50 {
		t.Errorf("shipyard = %+v", yard)
	}
	if _, ok := cfg.Module("cargo_hold"); !ok {
		t.Error("cargo_hold missing from catalog")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "balance.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
corporation: Nebula Works
start_resources:
  metal: 50
policy:
  claim_duration: 12h
  probe_uses_speed: true
server:
  addr: ":9090"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Corporation != "Nebula Works" {
		t.Errorf("corporation = %q", cfg.Corporation)
	}
	if cfg.StartResources[economy.Metal] != 50 {
		t.Errorf("start metal = %v", cfg.StartResources[economy.Metal])
	}
	if cfg.Policy.ClaimDuration != 12*time.Hour || !cfg.Policy.ProbeUsesSpeed {
		t.Errorf("policy = %+v", cfg.Policy)
	}
	if cfg.Policy.GrantDuration != 8*time.Hour {
		t.Errorf("untouched grant duration = %v", cfg.Policy.GrantDuration)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.Slot != "autosave" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if len(cfg.Buildings) != 6 {
		t.Errorf("buildings = %d", len(cfg.Buildings))
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad discovery", "policy:\n  discovery: 'power >'\n", "discovery"},
		{"refund range", "policy:\n  cancel_refund: 2\n", "cancel refund"},
		{"unknown start module", "start_modules: [warp_core]\n", "warp_core"},
		{"malformed yaml", "corporation: [\n", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
