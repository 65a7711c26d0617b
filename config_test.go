package botmaster

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config not written: %v", err)
	}

	// A second load reads the file it just wrote.
	again, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if again != cfg {
		t.Errorf("reloaded config = %+v", again)
	}
}

func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"api_port": 9090}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want the override", cfg.APIPort)
	}
	// Unset fields keep their defaults.
	if cfg.MessageEncoding != "GBK" {
		t.Errorf("MessageEncoding = %q, want default", cfg.MessageEncoding)
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("invalid config parsed without error")
	}
}

func TestLoadBasePrompt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.md")
	if err := os.WriteFile(path, []byte("You are [NAME]."), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadBasePrompt(path); err != nil {
		t.Fatal(err)
	}
	if cfg.BasePrompt != "You are [NAME]." {
		t.Errorf("BasePrompt = %q", cfg.BasePrompt)
	}

	if err := cfg.LoadBasePrompt(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("missing prompt file loaded without error")
	}
}
