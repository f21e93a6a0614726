package config

import "fmt"

const DirectoryAgentName = "mix_agent_directory"

// DirectoryAgentConfig configures the application directory scanner.
type DirectoryAgentConfig struct {
	RootPath string `yaml:"root-path"`
	Cron     string `yaml:"cron"`
}

func DefaultDirectoryAgentConfig() DirectoryAgentConfig {
	return DirectoryAgentConfig{Cron: "0 0 0 * * ?"}
}

func LoadDirectoryAgent(dir string) (DirectoryAgentConfig, error) {
	cfg := DefaultDirectoryAgentConfig()
	if err := Load(dir, DirectoryAgentName, &cfg); err != nil {
		return cfg, fmt.Errorf("load %s config: %w", DirectoryAgentName, err)
	}
	return cfg, nil
}
