package condition

import (
	"context"

	"go.uber.org/zap"
	"resty.dev/v3"

	"github.com/mixhq/agent/internal/config"
	"github.com/mixhq/agent/internal/jsonpath"
)

// Gate decides whether a target runs by evaluating its condition against a
// freshly fetched JSON document.
type Gate struct {
	client *resty.Client
	logger *zap.Logger
}

func NewGate(client *resty.Client, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{client: client, logger: logger}
}

// Allow returns false when cond is nil, the document cannot be fetched or
// parsed, or the expression fails to evaluate.
func (g *Gate) Allow(ctx context.Context, cond *config.Condition) bool {
	if cond == nil {
		return false
	}
	logger := g.logger.With(zap.String("url", cond.URL), zap.String("when", cond.When))

	resp, err := g.client.R().SetContext(ctx).Get(cond.URL)
	if err != nil {
		logger.Error("condition fetch failed", zap.Error(err))
		return false
	}

	doc, err := jsonpath.Parse(resp.Bytes())
	if err != nil {
		logger.Error("condition document unreadable", zap.Int("status", resp.StatusCode()), zap.Error(err))
		return false
	}

	result, err := Eval(cond.When, Bind(cond.Vars, doc, logger))
	if err != nil {
		logger.Error("condition evaluation failed", zap.Error(err))
		return false
	}
	logger.Info("condition evaluated", zap.Bool("result", result))
	return result
}
