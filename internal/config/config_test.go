package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"KITTYBG_SIGNATURE", "KITTYBG_SELF_NAME", "KITTYBG_SOCKET_TEMPLATE",
		"KITTYBG_WALK_DEPTH", "KITTYBG_CACHE_TTL", "KITTYBG_BACKGROUND_COLOR",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_HEADERS",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Signature != "kitty" {
		t.Errorf("Signature: got %q, want %q", cfg.Signature, "kitty")
	}
	if cfg.SelfName != "kittybg" {
		t.Errorf("SelfName: got %q, want %q", cfg.SelfName, "kittybg")
	}
	if cfg.SocketTemplate != "unix:/tmp/kitty-%d" {
		t.Errorf("SocketTemplate: got %q", cfg.SocketTemplate)
	}
	if cfg.WalkDepth != 20 {
		t.Errorf("WalkDepth: got %d, want 20", cfg.WalkDepth)
	}
	if cfg.CacheTTL != "600s" {
		t.Errorf("CacheTTL: got %q, want %q", cfg.CacheTTL, "600s")
	}
	if cfg.BackgroundColor != "#141414" {
		t.Errorf("BackgroundColor: got %q, want %q", cfg.BackgroundColor, "#141414")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `signature: alacritty
socket_template: "unix:/run/term-%d"
walk_depth: 5
cache_ttl: "2m"
background_color: "#000000"
`
	if err := os.WriteFile(filepath.Join(dir, ".kittybg.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)
	os.Chdir(dir)
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Signature != "alacritty" {
		t.Errorf("Signature: got %q, want %q", cfg.Signature, "alacritty")
	}
	if cfg.SocketTemplate != "unix:/run/term-%d" {
		t.Errorf("SocketTemplate: got %q", cfg.SocketTemplate)
	}
	if cfg.WalkDepth != 5 {
		t.Errorf("WalkDepth: got %d, want 5", cfg.WalkDepth)
	}
	if cfg.CacheTTLDuration != 2*time.Minute {
		t.Errorf("CacheTTLDuration: got %v, want 2m", cfg.CacheTTLDuration)
	}
	// File values left out keep their defaults
	if cfg.SelfName != "kittybg" {
		t.Errorf("SelfName: got %q, want default", cfg.SelfName)
	}
	if cfg.ConfigFile != ".kittybg.yaml" {
		t.Errorf("ConfigFile: got %q", cfg.ConfigFile)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := `signature: alacritty
cache_ttl: "2m"
`
	if err := os.WriteFile(filepath.Join(dir, ".kittybg.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)
	os.Chdir(dir)
	clearEnv(t)

	t.Setenv("KITTYBG_SIGNATURE", "wezterm")
	t.Setenv("KITTYBG_CACHE_TTL", "30s")
	t.Setenv("KITTYBG_WALK_DEPTH", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Signature != "wezterm" {
		t.Errorf("Signature: got %q, want %q (env should override file)", cfg.Signature, "wezterm")
	}
	if cfg.CacheTTLDuration != 30*time.Second {
		t.Errorf("CacheTTLDuration: got %v, want 30s", cfg.CacheTTLDuration)
	}
	if cfg.WalkDepth != 7 {
		t.Errorf("WalkDepth: got %d, want 7", cfg.WalkDepth)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)
	os.Chdir(dir)
	t.Setenv("HOME", dir)
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ConfigFile != "" {
		t.Errorf("ConfigFile: got %q, want empty", cfg.ConfigFile)
	}
	if cfg.CacheTTLDuration != 600*time.Second {
		t.Errorf("CacheTTLDuration: got %v, want 600s", cfg.CacheTTLDuration)
	}
}

func TestLoadRejectsBadTTL(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)
	os.Chdir(dir)
	t.Setenv("HOME", dir)
	clearEnv(t)

	t.Setenv("KITTYBG_CACHE_TTL", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid cache TTL")
	}
}

func TestInvalidWalkDepthIgnored(t *testing.T) {
	cfg := Defaults()
	t.Setenv("KITTYBG_WALK_DEPTH", "-3")
	mergeEnv(cfg)
	if cfg.WalkDepth != 20 {
		t.Errorf("WalkDepth: got %d, want default 20", cfg.WalkDepth)
	}
}
