package agent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mixhq/agent/internal/metrics"
	"github.com/mixhq/agent/internal/scheduler"
	"github.com/mixhq/agent/internal/uplink"
	"github.com/mixhq/agent/pkg/types"
)

// CategoryAgent marks envelopes describing the agent itself rather than the
// data it collects.
const CategoryAgent = "agent"

// Report is one envelope worth of collected data.
type Report struct {
	Category string
	Content  string
	Level    types.Level
	Tags     []string
	Payload  any
}

// Collector gathers the reports for one tick.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]Report, error)
}

// Shipper delivers a finished envelope.
type Shipper interface {
	Ship(ctx context.Context, env types.Envelope) error
}

// Observer is told how each tick and each shipment went.
type Observer interface {
	ObserveTick(ts time.Time, err error)
	ObserveShipment(ts time.Time, err error)
}

// TickRecorder counts ticks.
type TickRecorder interface {
	RecordTick(ts time.Time, err error)
}

// Dependencies wire a Runner to its envelope builder, shipper and telemetry.
type Dependencies struct {
	Builder          *uplink.Builder
	Shipper          Shipper
	Logger           *zap.Logger
	Metrics          TickRecorder
	Observer         Observer
	SchedulerOptions []scheduler.Option
	Now              func() time.Time
}

// Runner drives one collector on its schedule and ships every report.
type Runner struct {
	collector Collector
	cron      string
	builder   *uplink.Builder
	shipper   Shipper
	logger    *zap.Logger
	metrics   TickRecorder
	observer  Observer
	schedOpts []scheduler.Option
	now       func() time.Time
}

func NewRunner(collector Collector, cron string, deps Dependencies) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	var rec TickRecorder = metrics.NoopRecorder{}
	if deps.Metrics != nil {
		rec = deps.Metrics
	}
	return &Runner{
		collector: collector,
		cron:      cron,
		builder:   deps.Builder,
		shipper:   deps.Shipper,
		logger:    logger.With(zap.String("agent", collector.Name())),
		metrics:   rec,
		observer:  deps.Observer,
		schedOpts: deps.SchedulerOptions,
		now:       now,
	}
}

// Run blocks until ctx is cancelled. A schedule that cannot be parsed leaves
// the agent idle after its first tick.
func (r *Runner) Run(ctx context.Context) error {
	opts := append([]scheduler.Option{scheduler.WithLogger(r.logger)}, r.schedOpts...)
	err := scheduler.New(r.cron, opts...).Run(ctx, r.Tick)

	var cfgErr *scheduler.ConfigError
	if errors.As(err, &cfgErr) {
		r.logger.Error("agent idle until restart", zap.Error(err))
		if r.observer != nil {
			r.observer.ObserveTick(r.now(), err)
		}
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

// Tick runs the collector once and ships what it produced. A collector
// failure is shipped as an agent error envelope.
func (r *Runner) Tick(ctx context.Context) {
	logger := r.logger.With(zap.String("tick_id", uuid.NewString()))
	started := r.now()
	logger.Info("collect started")

	reports, err := r.collector.Collect(ctx)
	if err != nil {
		logger.Error("collect failed", zap.Error(err))
		reports = append(reports, Report{
			Category: CategoryAgent,
			Content:  err.Error(),
			Level:    types.LevelError,
		})
	}

	for _, report := range reports {
		env := r.builder.Build(report.Category, report.Content, report.Level, report.Tags, report.Payload)
		shipErr := r.shipper.Ship(ctx, env)
		if shipErr != nil {
			logger.Warn("report not delivered", zap.String("category", report.Category), zap.Error(shipErr))
		}
		if r.observer != nil {
			r.observer.ObserveShipment(r.now(), shipErr)
		}
	}

	finished := r.now()
	r.metrics.RecordTick(finished, err)
	if r.observer != nil {
		r.observer.ObserveTick(finished, err)
	}
	logger.Info("collect finished", zap.Int("reports", len(reports)), zap.Duration("took", finished.Sub(started)))
}
