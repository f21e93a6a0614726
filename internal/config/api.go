package config

import (
	"fmt"

	"github.com/mixhq/agent/internal/jsonpath"
	"github.com/mixhq/agent/internal/rule"
)

// APIAgentName is the document name and source name of the API agent.
const APIAgentName = "mix_agent_api"

// APIAgentConfig configures the API probing agent.
type APIAgentConfig struct {
	Name    string   `yaml:"name"`
	Cron    string   `yaml:"cron"`
	Auth    Auth     `yaml:"auth"`
	Targets []Target `yaml:"targets"`
}

type Auth struct {
	Enabled bool              `yaml:"enabled"`
	Keys    map[string]string `yaml:"keys"`
	Token   Token             `yaml:"token"`
}

// Token locates the token endpoint and the token inside its response.
// Header names the request header carrying the token; empty means a bearer
// Authorization header.
type Token struct {
	URL      string `yaml:"url"`
	JSONPath string `yaml:"json-path"`
	Header   string `yaml:"header"`
}

type Target struct {
	Name      string            `yaml:"name"`
	URL       string            `yaml:"url" validate:"required,url"`
	Auth      bool              `yaml:"auth"`
	Keywords  map[string]string `yaml:"keywords"`
	Exclude   bool              `yaml:"exclude"`
	Condition *Condition        `yaml:"condition"`
}

// Condition gates a target on a boolean expression over values extracted
// from another endpoint.
type Condition struct {
	URL  string            `yaml:"url" validate:"required,url"`
	Vars map[string]string `yaml:"vars"`
	When string            `yaml:"when" validate:"required"`
}

func DefaultAPIAgentConfig() APIAgentConfig {
	return APIAgentConfig{Cron: "*/15 * * * * ?"}
}

// LoadAPIAgent loads and validates mix_agent_api.yml.
func LoadAPIAgent(dir string) (APIAgentConfig, error) {
	cfg := DefaultAPIAgentConfig()
	if err := Load(dir, APIAgentName, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate %s config: %w", APIAgentName, err)
	}
	return cfg, nil
}

// Validate checks the structure of every active target and pre-parses all
// keyword expressions and path queries so malformed rules stop the agent at
// start-up.
func (c APIAgentConfig) Validate() error {
	if c.Auth.Enabled {
		if c.Auth.Token.URL == "" {
			return fmt.Errorf("auth.token.url is required when auth is enabled")
		}
		if _, err := jsonpath.Compile(c.Auth.Token.JSONPath); err != nil {
			return fmt.Errorf("auth.token.json-path: %w", err)
		}
	}

	for i, target := range c.Targets {
		if target.Exclude {
			continue
		}
		if err := Validate(target); err != nil {
			return fmt.Errorf("targets[%d] %q: %w", i, target.Name, err)
		}
		for keyword, expr := range target.Keywords {
			exp, err := rule.Parse(expr)
			if err != nil {
				return fmt.Errorf("targets[%d] %q keyword %q: %w", i, target.Name, keyword, err)
			}
			if _, err := jsonpath.Compile(exp.Path); err != nil {
				return fmt.Errorf("targets[%d] %q keyword %q: %w", i, target.Name, keyword, err)
			}
		}
		if target.Condition == nil {
			continue
		}
		for name, query := range target.Condition.Vars {
			if _, err := jsonpath.Compile(query); err != nil {
				return fmt.Errorf("targets[%d] %q condition var %q: %w", i, target.Name, name, err)
			}
		}
	}
	return nil
}
