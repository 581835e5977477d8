package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".parley"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("PARLEY_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("PARLEY_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return home, nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // use defaults if we can't find a config path
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If the file doesn't exist, continue with defaults.

	// Override with environment variables for each group.
	envconfig.Process("PARLEY_PATHS", &cfg.Paths)
	envconfig.Process("PARLEY_MODEL", &cfg.Model)
	envconfig.Process("PARLEY_PROVIDER", &cfg.Provider)
	envconfig.Process("PARLEY_PIPELINE", &cfg.Pipeline)
	envconfig.Process("PARLEY_ANALYSIS", &cfg.Analysis)
	envconfig.Process("PARLEY_CHANNELS_SLACK", &cfg.Channels.Slack)
	envconfig.Process("PARLEY_RELAY", &cfg.Relay)

	if cfg.Paths.DataDir == "" {
		home, err := resolveHomeDir()
		if err == nil {
			cfg.Paths.DataDir = filepath.Join(home, ConfigDir)
		}
	}
	if cfg.Paths.DBPath == "" && cfg.Paths.DataDir != "" {
		cfg.Paths.DBPath = filepath.Join(cfg.Paths.DataDir, "parley.db")
	}

	return cfg, nil
}

// Save writes the config to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
