package uplink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"

	"github.com/mixhq/agent/internal/config"
	"github.com/mixhq/agent/internal/metrics"
	"github.com/mixhq/agent/pkg/types"
)

const (
	defaultCollectPath = "/mix/api/v1/monitor/collect"
	endpointKeyHeader  = "X-Mix-Endpoint-Key"
)

var (
	// ErrEndpointMissing is returned when pushing is enabled but no endpoint is configured.
	ErrEndpointMissing = errors.New("mix endpoint not configured")
	// ErrRejected wraps non-2xx collector responses.
	ErrRejected = errors.New("collector rejected envelope")
)

// Config holds the static configuration for an Uplink client.
type Config struct {
	Endpoint    string
	EndpointKey string
	Timeout     time.Duration
	PushLog     bool
	PrintJSON   bool
}

// ConfigFromGlobal maps the shared host configuration onto a client Config.
func ConfigFromGlobal(g config.GlobalConfig) Config {
	return Config{
		Endpoint:    g.MixEndpoint,
		EndpointKey: g.MixEndpointKey,
		Timeout:     g.TimeoutDuration(),
		PushLog:     g.PushLog,
		PrintJSON:   g.PrintLogJSON,
	}
}

// Dependencies allow test overrides for HTTP client, metrics, and logging.
type Dependencies struct {
	HTTPClient  *resty.Client
	Metrics     metrics.ShipmentRecorder
	Logger      *zap.Logger
	CollectPath string
}

// Client posts envelopes to the collector, one at a time.
type Client struct {
	client      *resty.Client
	ownsClient  bool
	collectURL  string
	endpointKey string
	pushLog     bool
	printJSON   bool
	metrics     metrics.ShipmentRecorder
	logger      *zap.Logger

	mu sync.Mutex
}

// NewClient builds an Uplink client from configuration and dependencies.
func NewClient(cfg Config, deps Dependencies) *Client {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	httpClient := deps.HTTPClient
	owns := false
	if httpClient == nil {
		httpClient = resty.New()
		if cfg.Timeout > 0 {
			httpClient.SetTimeout(cfg.Timeout)
		}
		owns = true
	}
	collectPath := deps.CollectPath
	if collectPath == "" {
		collectPath = defaultCollectPath
	}

	collectURL := ""
	if cfg.Endpoint != "" {
		collectURL = joinURL(cfg.Endpoint, collectPath)
	}
	return &Client{
		client:      httpClient,
		ownsClient:  owns,
		collectURL:  collectURL,
		endpointKey: cfg.EndpointKey,
		pushLog:     cfg.PushLog,
		printJSON:   cfg.PrintJSON,
		metrics:     rec,
		logger:      logger,
	}
}

// Ship delivers one envelope. It returns nil without contacting the collector
// when pushing is disabled.
func (c *Client) Ship(ctx context.Context, env types.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	logger := c.logger.With(zap.String("category", env.Category), zap.String("batch_id", env.BatchID))
	if c.printJSON {
		logger.Info("envelope", zap.ByteString("json", payload))
	}
	if !c.pushLog {
		return nil
	}
	if c.collectURL == "" {
		logger.Error("envelope not shipped", zap.Error(ErrEndpointMissing))
		c.metrics.RecordShipment(false)
		return ErrEndpointMissing
	}

	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "mix-agent/"+Version).
		SetBody(payload)
	if c.endpointKey != "" {
		req.SetHeader(endpointKeyHeader, c.endpointKey)
	}

	resp, err := req.Post(c.collectURL)
	if err != nil {
		logger.Error("envelope shipment failed", zap.Error(err))
		c.metrics.RecordShipment(false)
		return fmt.Errorf("ship envelope: %w", err)
	}
	if !resp.IsSuccess() {
		logger.Warn("collector rejected envelope", zap.Int("status", resp.StatusCode()), zap.String("response", resp.String()))
		c.metrics.RecordShipment(false)
		return fmt.Errorf("%w: status %s", ErrRejected, resp.Status())
	}
	logger.Info("envelope shipped", zap.String("response", resp.String()))
	c.metrics.RecordShipment(true)
	return nil
}

// Close releases the HTTP client when the Client created it.
func (c *Client) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

func joinURL(base, path string) string {
	if base == "" {
		return path
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
