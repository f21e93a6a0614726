package probe

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"resty.dev/v3"

	"github.com/mixhq/agent/internal/config"
	"github.com/mixhq/agent/internal/jsonpath"
	"github.com/mixhq/agent/internal/metrics"
	"github.com/mixhq/agent/internal/rule"
	"github.com/mixhq/agent/pkg/types"
)

// StatusNetworkFailure is reported for targets whose request never produced
// an HTTP response.
const StatusNetworkFailure = 400

// Gatekeeper decides whether a conditioned target runs this tick.
type Gatekeeper interface {
	Allow(ctx context.Context, cond *config.Condition) bool
}

// Config holds the static configuration for an Engine.
type Config struct {
	// TokenHeader names the header carrying the auth token. Empty sends a
	// bearer Authorization header.
	TokenHeader string
}

// Dependencies allow test overrides for HTTP client, gate, matcher and logging.
type Dependencies struct {
	HTTPClient *resty.Client
	Gate       Gatekeeper
	Matcher    *rule.Matcher
	Limiter    *rate.Limiter
	Logger     *zap.Logger
	Metrics    Recorder
}

// Recorder receives per-target counters.
type Recorder interface {
	RecordTarget(checked bool)
	RecordMatch(matched bool)
}

// Engine fetches targets sequentially and applies their keyword rules.
type Engine struct {
	client      *resty.Client
	gate        Gatekeeper
	matcher     *rule.Matcher
	limiter     *rate.Limiter
	logger      *zap.Logger
	metrics     Recorder
	tokenHeader string
}

func NewEngine(cfg Config, deps Dependencies) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := deps.HTTPClient
	if client == nil {
		client = resty.New()
	}
	matcher := deps.Matcher
	if matcher == nil {
		matcher = rule.NewMatcher(rule.WithLogger(logger))
	}
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Engine{
		client:      client,
		gate:        deps.Gate,
		matcher:     matcher,
		limiter:     deps.Limiter,
		logger:      logger,
		metrics:     rec,
		tokenHeader: cfg.TokenHeader,
	}
}

// Check runs every active target in configuration order. Excluded targets and
// targets whose condition does not hold produce no result.
func (e *Engine) Check(ctx context.Context, targets []config.Target, token string) []types.TargetResult {
	results := make([]types.TargetResult, 0, len(targets))
	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		logger := e.logger.With(zap.String("target", target.Name), zap.String("url", target.URL))
		if target.Exclude {
			logger.Info("target excluded")
			e.recordTarget(false)
			continue
		}
		if target.Condition != nil && (e.gate == nil || !e.gate.Allow(ctx, target.Condition)) {
			logger.Info("target condition not met")
			e.recordTarget(false)
			continue
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				break
			}
		}
		results = append(results, e.checkTarget(ctx, logger, target, token))
		e.recordTarget(true)
	}
	return results
}

func (e *Engine) checkTarget(ctx context.Context, logger *zap.Logger, target config.Target, token string) types.TargetResult {
	result := types.TargetResult{
		Name:        target.Name,
		Auth:        target.Auth,
		MatchResult: []types.MatchResult{},
	}

	req := e.client.R().SetContext(ctx)
	if target.Auth && token != "" {
		if e.tokenHeader == "" {
			req.SetAuthToken(token)
		} else {
			req.SetHeader(e.tokenHeader, token)
		}
	}

	resp, err := req.Get(target.URL)
	if err != nil {
		logger.Error("target request failed", zap.Error(err))
		result.Status = StatusNetworkFailure
		result.Message = err.Error()
		return result
	}

	result.Status = resp.StatusCode()
	if !resp.IsSuccess() {
		logger.Warn("target returned non-success status", zap.Int("status", resp.StatusCode()))
		result.Message = resp.Status() + " " + resp.String()
		return result
	}
	result.Success = true

	doc, err := jsonpath.Parse(resp.Bytes())
	if err != nil {
		logger.Error("target body is not JSON", zap.Error(err))
		result.Message = err.Error()
		return result
	}

	keywords := make([]string, 0, len(target.Keywords))
	for keyword := range target.Keywords {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)

	for _, keyword := range keywords {
		exp, err := rule.Parse(target.Keywords[keyword])
		if err != nil {
			logger.Warn("skipping malformed keyword", zap.String("keyword", keyword), zap.Error(err))
			continue
		}
		mr, ok := e.matcher.Evaluate(keyword, exp, doc)
		if !ok {
			continue
		}
		e.metrics.RecordMatch(mr.Matched)
		result.MatchResult = append(result.MatchResult, mr)
	}
	return result
}

func (e *Engine) recordTarget(checked bool) {
	e.metrics.RecordTarget(checked)
}
