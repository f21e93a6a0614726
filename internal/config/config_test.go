package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleGlobal = `
customer-id: cust-1
project-id: proj-9
mix-endpoint: http://collector.example.com
timeout: 2500
push-log: false
metrics-addr: 127.0.0.1:9320
`

const sampleAPI = `
name: orders
cron: "*/30 * * * * ?"
auth:
  enabled: true
  keys:
    username: probe
    password: secret
  token:
    url: http://auth.example.com/token
    json-path: .data.token
targets:
  - name: list
    url: http://api.example.com/orders
    auth: true
    keywords:
      sort: "N|.data.defaultFunction[0].sort|6.5"
      updated: "T|.data.updated|5m|%Y-%m-%d %H:%M:%S"
    condition:
      url: http://api.example.com/status
      vars:
        level: .level
      when: level > 2
  - name: legacy
    exclude: true
`

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadGlobal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "global.yml", sampleGlobal)

	cfg, err := LoadGlobal(dir)
	if err != nil {
		t.Fatalf("LoadGlobal returned error: %v", err)
	}

	if cfg.CustomerID != "cust-1" || cfg.ProjectID != "proj-9" {
		t.Fatalf("unexpected identity: %+v", cfg)
	}
	if cfg.TimeoutDuration() != 2500*time.Millisecond {
		t.Fatalf("unexpected timeout: %s", cfg.TimeoutDuration())
	}
	if cfg.PushLog {
		t.Fatalf("expected push-log override to be false")
	}
	if !cfg.PrintLogJSON || cfg.Env != "dev" {
		t.Fatalf("expected defaults to survive partial config: %+v", cfg)
	}
}

func TestLoadGlobalMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadGlobal(t.TempDir())
	if err != nil {
		t.Fatalf("LoadGlobal returned error: %v", err)
	}
	if cfg != DefaultGlobalConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadGlobalRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "global.yml", "timeout: [oops")

	if _, err := LoadGlobal(dir); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadAPIAgent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, APIAgentName+".yml", sampleAPI)

	cfg, err := LoadAPIAgent(dir)
	if err != nil {
		t.Fatalf("LoadAPIAgent returned error: %v", err)
	}
	if cfg.Cron != "*/30 * * * * ?" {
		t.Fatalf("unexpected cron: %s", cfg.Cron)
	}
	if !cfg.Auth.Enabled || cfg.Auth.Token.JSONPath != ".data.token" || cfg.Auth.Keys["username"] != "probe" {
		t.Fatalf("unexpected auth: %+v", cfg.Auth)
	}
	if len(cfg.Targets) != 2 {
		t.Fatalf("expected two targets, got %d", len(cfg.Targets))
	}
	first := cfg.Targets[0]
	if first.Condition == nil || first.Condition.When != "level > 2" || first.Condition.Vars["level"] != ".level" {
		t.Fatalf("unexpected condition: %+v", first.Condition)
	}
	if !cfg.Targets[1].Exclude {
		t.Fatalf("expected second target excluded")
	}
}

func TestLoadAPIAgentDefaults(t *testing.T) {
	cfg, err := LoadAPIAgent(t.TempDir())
	if err != nil {
		t.Fatalf("LoadAPIAgent returned error: %v", err)
	}
	if cfg.Cron != "*/15 * * * * ?" {
		t.Fatalf("unexpected default cron: %s", cfg.Cron)
	}
}

func TestAPIAgentValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     APIAgentConfig
		wantErr string
	}{
		{
			name: "malformed keyword",
			cfg: APIAgentConfig{Targets: []Target{{
				Name: "t", URL: "http://example.com", Keywords: map[string]string{"k": "bad"},
			}}},
			wantErr: "keyword \"k\"",
		},
		{
			name: "malformed keyword path",
			cfg: APIAgentConfig{Targets: []Target{{
				Name: "t", URL: "http://example.com", Keywords: map[string]string{"k": "N|data|1"},
			}}},
			wantErr: "path",
		},
		{
			name:    "missing url",
			cfg:     APIAgentConfig{Targets: []Target{{Name: "t"}}},
			wantErr: "targets[0]",
		},
		{
			name: "condition without when",
			cfg: APIAgentConfig{Targets: []Target{{
				Name: "t", URL: "http://example.com", Condition: &Condition{URL: "http://example.com/s"},
			}}},
			wantErr: "When",
		},
		{
			name:    "auth without token url",
			cfg:     APIAgentConfig{Auth: Auth{Enabled: true}},
			wantErr: "auth.token.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	excluded := APIAgentConfig{Targets: []Target{{Name: "off", Exclude: true, Keywords: map[string]string{"k": "bad"}}}}
	if err := excluded.Validate(); err != nil {
		t.Fatalf("expected excluded targets to skip validation: %v", err)
	}
}

func TestLoadDirectoryAgent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DirectoryAgentName+".yml", "root-path: /opt/apps\n")

	cfg, err := LoadDirectoryAgent(dir)
	if err != nil {
		t.Fatalf("LoadDirectoryAgent returned error: %v", err)
	}
	if cfg.RootPath != "/opt/apps" || cfg.Cron != "0 0 0 * * ?" {
		t.Fatalf("unexpected directory config: %+v", cfg)
	}
}

func TestResolveDir(t *testing.T) {
	if dir, _ := ResolveDir("/explicit"); dir != "/explicit" {
		t.Fatalf("expected flag value to win, got %s", dir)
	}

	t.Setenv(envConfigDir, "/from/env")
	if dir, _ := ResolveDir(""); dir != "/from/env" {
		t.Fatalf("expected env value, got %s", dir)
	}

	t.Setenv(envConfigDir, "")
	dir, err := ResolveDir("")
	if err != nil {
		t.Fatalf("ResolveDir returned error: %v", err)
	}
	if filepath.Base(dir) != "config" {
		t.Fatalf("expected executable-relative config dir, got %s", dir)
	}
}
