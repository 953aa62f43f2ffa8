package cliclient

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig is nats3ctl's own configuration: which server to talk to and
// how to render output by default. Persisted under $XDG_CONFIG_HOME.
type LocalConfig struct {
	ServerURL string       `yaml:"server_url"`
	Format    OutputFormat `yaml:"format"`
}

// DefaultLocalConfig is used when no config file exists yet.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{ServerURL: "http://localhost:8080", Format: FormatTable}
}

// LocalConfigPath returns $XDG_CONFIG_HOME/nats3ctl/config.yaml, falling
// back to $HOME/.config when XDG_CONFIG_HOME is unset.
func LocalConfigPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "nats3ctl", "config.yaml"), nil
}

// LoadLocalConfig reads the CLI's own config, returning defaults if the
// file does not exist.
func LoadLocalConfig(path string) (LocalConfig, error) {
	cfg := DefaultLocalConfig()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return LocalConfig{}, fmt.Errorf("opening %q: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return LocalConfig{}, fmt.Errorf("parsing %q: %w", path, err)
	}
	return cfg, nil
}

// SaveLocalConfig writes cfg to path, creating parent directories as needed.
func SaveLocalConfig(path string, cfg LocalConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %q: %w", path, err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()
	return enc.Encode(cfg)
}
