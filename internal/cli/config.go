package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/mstoykov/envconfig"
	"gopkg.in/guregu/null.v3"
)

// Config is the agent configuration. Every field can be set from the
// environment; unset fields keep their defaults.
type Config struct {
	Address      null.String `json:"address" envconfig:"BROWSETRACE_ADDRESS"`
	DatabasePath null.String `json:"database_path" envconfig:"BROWSETRACE_DATABASE_PATH"`
	LogLevel     null.String `json:"log_level" envconfig:"BROWSETRACE_LOG_LEVEL"`
}

// NewConfig returns the defaults.
func NewConfig() Config {
	return Config{
		Address:  null.NewString("127.0.0.1:8123", false),
		LogLevel: null.NewString("info", false),
	}
}

// Apply overlays the set values from cfg onto the receiver.
func (c Config) Apply(cfg Config) Config {
	if cfg.Address.Valid && cfg.Address.String != "" {
		c.Address = cfg.Address
	}
	if cfg.DatabasePath.Valid && cfg.DatabasePath.String != "" {
		c.DatabasePath = cfg.DatabasePath
	}
	if cfg.LogLevel.Valid && cfg.LogLevel.String != "" {
		c.LogLevel = cfg.LogLevel
	}
	return c
}

// GetConfig builds the effective config: defaults overlaid with the
// environment.
func GetConfig() (Config, error) {
	var envConfig Config
	if err := envconfig.Process("", &envConfig); err != nil {
		return Config{}, fmt.Errorf("reading environment config: %w", err)
	}
	return NewConfig().Apply(envConfig), nil
}

// defaultDatabasePath resolves the platform application directory and the
// audit database inside it, creating the directory if needed.
func defaultDatabasePath() (string, error) {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving user home directory: %w", err)
	}

	var applicationDirectory string
	switch runtime.GOOS {
	case "darwin":
		applicationDirectory = filepath.Join(homeDirectory, "Library", "Application Support", "BrowserTrace")
	case "windows":
		applicationDirectory = filepath.Join(homeDirectory, "AppData", "Roaming", "BrowserTrace")
	default: // linux and others
		applicationDirectory = filepath.Join(homeDirectory, ".local", "share", "BrowserTrace")
	}
	if err := os.MkdirAll(applicationDirectory, 0o755); err != nil {
		return "", fmt.Errorf("creating application directory: %w", err)
	}
	return filepath.Join(applicationDirectory, "audits.db"), nil
}
