package agent

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mixhq/agent/internal/config"
	"github.com/mixhq/agent/internal/probe"
	"github.com/mixhq/agent/pkg/types"
)

const (
	categoryAPI = "api"
	tagAPI      = "agent-desc|api"
)

// TargetChecker runs the rule engine over a target list.
type TargetChecker interface {
	Check(ctx context.Context, targets []config.Target, token string) []types.TargetResult
}

// TokenAcquirer obtains the bearer token used by authenticated targets.
type TokenAcquirer interface {
	Acquire(ctx context.Context, auth config.Auth) (probe.Token, error)
}

// APICollector probes HTTP JSON endpoints and reports keyword matches.
type APICollector struct {
	cfg    config.APIAgentConfig
	engine TargetChecker
	tokens TokenAcquirer
	logger *zap.Logger
}

func NewAPICollector(cfg config.APIAgentConfig, engine TargetChecker, tokens TokenAcquirer, logger *zap.Logger) *APICollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APICollector{cfg: cfg, engine: engine, tokens: tokens, logger: logger}
}

func (c *APICollector) Name() string { return config.APIAgentName }

// Collect always returns the api report. When the token endpoint cannot be
// reached an agent error report is emitted ahead of it.
func (c *APICollector) Collect(ctx context.Context) ([]Report, error) {
	result := types.Result{
		Name:    c.cfg.Name,
		Auth:    c.cfg.Auth.Enabled,
		Targets: []types.TargetResult{},
	}
	var reports []Report

	if !c.cfg.Auth.Enabled {
		result.Success = true
		result.Status = 200
		result.Targets = c.engine.Check(ctx, c.cfg.Targets, "")
		return append(reports, c.report(categoryAPI, "", types.LevelInfo, result)), nil
	}

	tok, err := c.tokens.Acquire(ctx, c.cfg.Auth)
	switch {
	case err == nil:
		result.Success = true
		result.Status = tok.Status
		result.Message = tok.Body
		result.Targets = c.engine.Check(ctx, c.cfg.Targets, tok.Value)
	case errors.Is(err, probe.ErrTokenStatus):
		c.logger.Error("token request rejected", zap.String("name", c.cfg.Name), zap.Int("status", tok.Status), zap.String("body", tok.Body))
		result.Status = tok.Status
		result.Message = tok.Body
	case errors.Is(err, probe.ErrTokenMalformed):
		c.logger.Error("token response unusable", zap.String("name", c.cfg.Name), zap.Error(err))
		result.Status = tok.Status
		result.Message = err.Error()
	default:
		c.logger.Error("token request failed", zap.String("name", c.cfg.Name), zap.Error(err))
		content := fmt.Sprintf("%s:%s", c.cfg.Name, err)
		reports = append(reports, c.report(CategoryAgent, content, types.LevelError, result))
	}
	return append(reports, c.report(categoryAPI, "", types.LevelInfo, result)), nil
}

func (c *APICollector) report(category, content string, level types.Level, result types.Result) Report {
	return Report{
		Category: category,
		Content:  content,
		Level:    level,
		Tags:     []string{tagAPI},
		Payload:  result,
	}
}
