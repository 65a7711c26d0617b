package botmaster

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ConnectionPolicy selects how the admission queue treats concurrent
// connects to the same server.
type ConnectionPolicy int

const (
	// PolicyQueued admits one joining bot per server at a time.
	PolicyQueued ConnectionPolicy = iota
	// PolicyAggressive admits every eligible bot immediately.
	PolicyAggressive
)

// Config is the operator-facing configuration, stored as JSON.
type Config struct {
	APIPort              int              `json:"api_port"`
	ConnectionPolicy     ConnectionPolicy `json:"connection_policy"`
	MessageEncoding      string           `json:"message_encoding"`
	QueryIntervalSeconds int              `json:"query_interval_seconds"`
	EnableConsole        bool             `json:"enable_console"`

	// BasePrompt is loaded from a sibling prompt file, not from the
	// config JSON itself.
	BasePrompt string `json:"-"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		APIPort:              7070,
		ConnectionPolicy:     PolicyQueued,
		MessageEncoding:      "GBK",
		QueryIntervalSeconds: 30,
		EnableConsole:        true,
	}
}

// LoadConfig reads the config file, creating it with defaults when it
// does not exist yet.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Warn("config file not found, creating with defaults", "path", path)
		if werr := SaveConfig(path, cfg); werr != nil {
			return cfg, fmt.Errorf("create default config: %w", werr)
		}
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config as indented JSON.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadBasePrompt reads the base system prompt verbatim into the config.
func (c *Config) LoadBasePrompt(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompt file: %w", err)
	}
	c.BasePrompt = string(data)
	return nil
}
