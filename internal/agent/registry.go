package agent

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"resty.dev/v3"

	"github.com/mixhq/agent/internal/condition"
	"github.com/mixhq/agent/internal/config"
	"github.com/mixhq/agent/internal/metrics"
	"github.com/mixhq/agent/internal/probe"
	"github.com/mixhq/agent/internal/rule"
)

// Environment carries what every agent constructor needs from the process.
type Environment struct {
	ConfigDir  string
	Global     config.GlobalConfig
	HTTPClient *resty.Client
	Logger     *zap.Logger
	Metrics    *metrics.Store
}

// Agent is a configured collector and the schedule it runs on.
type Agent struct {
	Collector Collector
	Cron      string
}

type Factory func(env Environment) (Agent, error)

// Registry maps agent names to their constructors.
type Registry map[string]Factory

// DefaultRegistry lists every agent this binary can run.
func DefaultRegistry() Registry {
	return Registry{
		config.APIAgentName:       NewAPIAgent,
		config.DirectoryAgentName: NewDirectoryAgent,
	}
}

func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r Registry) Build(name string, env Environment) (Agent, error) {
	factory, ok := r[name]
	if !ok {
		return Agent{}, fmt.Errorf("unknown agent %q", name)
	}
	return factory(env)
}

// NewAPIAgent loads mix_agent_api.yml and wires the rule engine.
func NewAPIAgent(env Environment) (Agent, error) {
	cfg, err := config.LoadAPIAgent(env.ConfigDir)
	if err != nil {
		return Agent{}, err
	}
	logger := loggerOrNop(env.Logger)
	client := env.HTTPClient
	if client == nil {
		client = resty.New().SetTimeout(env.Global.TimeoutDuration())
	}

	deps := probe.Dependencies{
		HTTPClient: client,
		Gate:       condition.NewGate(client, logger.Named("condition")),
		Matcher:    rule.NewMatcher(rule.WithLogger(logger.Named("rule"))),
		Logger:     logger.Named("probe"),
	}
	if env.Global.ProbeRate > 0 {
		deps.Limiter = rate.NewLimiter(rate.Limit(env.Global.ProbeRate), 1)
	}
	if env.Metrics != nil {
		deps.Metrics = env.Metrics
	}
	engine := probe.NewEngine(probe.Config{TokenHeader: cfg.Auth.Token.Header}, deps)

	return Agent{
		Collector: NewAPICollector(cfg, engine, probe.NewTokenSource(client), logger),
		Cron:      cfg.Cron,
	}, nil
}

// NewDirectoryAgent loads mix_agent_directory.yml.
func NewDirectoryAgent(env Environment) (Agent, error) {
	cfg, err := config.LoadDirectoryAgent(env.ConfigDir)
	if err != nil {
		return Agent{}, err
	}
	return Agent{
		Collector: NewDirectoryCollector(cfg, loggerOrNop(env.Logger)),
		Cron:      cfg.Cron,
	}, nil
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
