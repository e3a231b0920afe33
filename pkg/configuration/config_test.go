package configuration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.cfg")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file was not written: %v", err)
	}
	if got := cfg.settings["Desktop"]["min_window_width"]; got != "300" {
		t.Errorf("expected default min_window_width 300, got %q", got)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if !strings.Contains(string(raw), "[Terminal]") {
		t.Error("generated file should contain the [Terminal] section")
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.cfg")
	content := "; comment\n[Terminal]\ncanned_delay = 50ms\n\n[Custom]\nkey = value\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if got := cfg.settings["Terminal"]["canned_delay"]; got != "50ms" {
		t.Errorf("expected override 50ms, got %q", got)
	}
	// Keys absent from the file still fall back to defaults.
	if got := cfg.settings["Terminal"]["spawn_buffer"]; got != "500ms" {
		t.Errorf("expected default spawn_buffer, got %q", got)
	}
	if got := cfg.settings["Custom"]["key"]; got != "value" {
		t.Errorf("expected custom section value, got %q", got)
	}
}

func TestLocalConfigOverlay(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadConfig(filepath.Join(dir, "settings.cfg"))
	if err != nil {
		t.Fatal(err)
	}
	local := filepath.Join(dir, "settings.local.cfg")
	if err := os.WriteFile(local, []byte("[Session]\nmax_sessions_per_ip = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := cfg.loadLocalConfig(local); err != nil {
		t.Fatalf("loadLocalConfig failed: %v", err)
	}
	if got := cfg.settings["Session"]["max_sessions_per_ip"]; got != "1" {
		t.Errorf("expected overlay value 1, got %q", got)
	}
}

func TestGettersFallBackWithoutConfig(t *testing.T) {
	saved := globalConfig
	globalConfig = nil
	defer func() { globalConfig = saved }()

	if got := GetInt("Desktop", "viewport_width", 42); got != 42 {
		t.Errorf("expected default 42, got %d", got)
	}
	if got := GetList("Server", "allowed_origins", "a, b,,c"); len(got) != 3 {
		t.Errorf("expected 3 list items, got %v", got)
	}
}
