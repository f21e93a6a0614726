package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envConfigDir = "MIX_AGENT_CONFIG_DIR"
	// GlobalName is the document shared by every agent on the host.
	GlobalName = "global"
)

// GlobalConfig holds the settings every agent reads from global.yml.
type GlobalConfig struct {
	CustomerID     string  `yaml:"customer-id"`
	ProjectID      string  `yaml:"project-id"`
	MixEndpoint    string  `yaml:"mix-endpoint" validate:"omitempty,url"`
	MixEndpointKey string  `yaml:"mix-endpoint-key"`
	Env            string  `yaml:"env"`
	Timeout        uint64  `yaml:"timeout"`
	PrintLogJSON   bool    `yaml:"print-log-json"`
	PushLog        bool    `yaml:"push-log"`
	ProbeRate      float64 `yaml:"probe-rate" validate:"gte=0"`
	MetricsAddr    string  `yaml:"metrics-addr" validate:"omitempty,hostname_port"`
	LogDir         string  `yaml:"log-dir"`
}

// DefaultGlobalConfig mirrors the values used when global.yml is absent.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		Env:          "dev",
		Timeout:      5000,
		PrintLogJSON: true,
		PushLog:      true,
	}
}

// TimeoutDuration converts the millisecond timeout into a time.Duration.
func (g GlobalConfig) TimeoutDuration() time.Duration {
	return time.Duration(g.Timeout) * time.Millisecond
}

// Load decodes <dir>/<name>.yml into dst. dst should already carry defaults;
// a missing file leaves it untouched.
func Load(dir, name string, dst any) error {
	path := filepath.Join(dir, name+".yml")

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

func LoadGlobal(dir string) (GlobalConfig, error) {
	cfg := DefaultGlobalConfig()
	if err := Load(dir, GlobalName, &cfg); err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("validate %s config: %w", GlobalName, err)
	}
	return cfg, nil
}

// ResolveDir picks the configuration directory: the explicit flag value, then
// MIX_AGENT_CONFIG_DIR, then a config directory next to the executable.
func ResolveDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if dir := os.Getenv(envConfigDir); dir != "" {
		return dir, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), "config"), nil
}
