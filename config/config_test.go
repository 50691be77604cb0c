package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProjectConfig(t *testing.T, dir, content string) {
	t.Helper()
	cfgDir := filepath.Join(dir, ".eleven")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// chdir moves into dir for the duration of the test and isolates HOME so the
// user-level layer stays empty.
func chdir(t *testing.T, dir string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "grok" {
		t.Errorf("Provider = %q, want grok", cfg.Provider)
	}
	if cfg.Model != "grok-beta" {
		t.Errorf("Model = %q, want grok-beta", cfg.Model)
	}
	if cfg.DefaultAgent != "general" {
		t.Errorf("DefaultAgent = %q, want general", cfg.DefaultAgent)
	}
	if !cfg.AutoLog {
		t.Error("AutoLog should default to true")
	}
}

func TestLoadProjectOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeProjectConfig(t, dir, "model: grok-4\ntemperature: 0.7\n")
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "grok-4" {
		t.Errorf("Model = %q, want grok-4", cfg.Model)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", cfg.Temperature)
	}
	// Untouched fields keep their defaults.
	if cfg.Endpoint == "" {
		t.Error("Endpoint default was lost in merge")
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeProjectConfig(t, dir, "model: [unclosed\n")
	chdir(t, dir)

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestResolveProfileDefault(t *testing.T) {
	cfg := defaults()
	p, err := cfg.ResolveProfile("")
	if err != nil {
		t.Fatalf("ResolveProfile: %v", err)
	}
	if p.ID != "general" {
		t.Errorf("ID = %q, want general", p.ID)
	}
	if p.Mode != ModeAgent {
		t.Errorf("Mode = %q, want %q", p.Mode, ModeAgent)
	}
	if p.Model != cfg.Model {
		t.Errorf("Model = %q, want config default %q", p.Model, cfg.Model)
	}
	if p.Persona == "" {
		t.Error("Persona must not be empty")
	}
}

func TestResolveProfileExplicitSelection(t *testing.T) {
	cfg := defaults()
	p, err := cfg.ResolveProfile("review")
	if err != nil {
		t.Fatalf("ResolveProfile: %v", err)
	}
	if p.Mode != ModeCodeReview {
		t.Errorf("Mode = %q, want %q", p.Mode, ModeCodeReview)
	}
}

func TestResolveProfileUnknownIsHardError(t *testing.T) {
	cfg := defaults()
	_, err := cfg.ResolveProfile("ghost")
	if err == nil {
		t.Fatal("expected error for unknown profile")
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("error should name the bad id: %v", err)
	}
}

func TestResolveProfileOverrideLayer(t *testing.T) {
	cfg := defaults()
	cfg.Agents = map[string]ProfileOverride{
		"debug": {Model: "grok-4", Persona: "terse debugger"},
	}
	p, err := cfg.ResolveProfile("debug")
	if err != nil {
		t.Fatalf("ResolveProfile: %v", err)
	}
	if p.Model != "grok-4" {
		t.Errorf("Model = %q, want override grok-4", p.Model)
	}
	if p.Persona != "terse debugger" {
		t.Errorf("Persona = %q, want override", p.Persona)
	}
	// The built-in mode survives a partial override.
	if p.Mode != ModeDebug {
		t.Errorf("Mode = %q, want %q", p.Mode, ModeDebug)
	}
}

func TestResolveProfileUnknownOverrideIDFailsFast(t *testing.T) {
	cfg := defaults()
	cfg.Agents = map[string]ProfileOverride{
		"securty": {Model: "grok-4"}, // typo must not be ignored
	}
	if _, err := cfg.ResolveProfile(""); err == nil {
		t.Fatal("expected error for unknown override id")
	}
}

func TestResolveProfileBadModeRejected(t *testing.T) {
	cfg := defaults()
	cfg.Agents = map[string]ProfileOverride{
		"general": {Mode: "yolo"},
	}
	if _, err := cfg.ResolveProfile("general"); err == nil {
		t.Fatal("expected error for invalid interaction mode")
	}
}

func TestListProfilesStableOrder(t *testing.T) {
	cfg := defaults()
	first := cfg.ListProfiles()
	second := cfg.ListProfiles()
	if len(first) == 0 {
		t.Fatal("no profiles listed")
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("ordering not stable: %v vs %v", first[i].ID, second[i].ID)
		}
	}
	for i := 1; i < len(first); i++ {
		if first[i-1].ID >= first[i].ID {
			t.Fatalf("ids not sorted: %q before %q", first[i-1].ID, first[i].ID)
		}
	}
}
