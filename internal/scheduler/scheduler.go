package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultTickResolution = 500 * time.Millisecond

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ConfigError reports a schedule expression that could not be parsed.
type ConfigError struct {
	Spec string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid schedule %q: %v", e.Spec, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Parse accepts five or six field cron expressions (seconds first when six),
// Quartz style "?" in the day fields, and descriptors such as "@every 30s".
func Parse(spec string) (cron.Schedule, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, &ConfigError{Spec: spec, Err: err}
	}
	return schedule, nil
}

// Scheduler runs a single action on a cron schedule. The action runs
// synchronously, so a slow run delays the next one instead of overlapping it.
type Scheduler struct {
	spec           string
	tickResolution time.Duration
	now            func() time.Time
	logger         *zap.Logger

	mu       sync.Mutex
	schedule cron.Schedule
	next     time.Time
}

type Option func(*Scheduler)

func WithTickResolution(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickResolution = d
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(spec string, opts ...Option) *Scheduler {
	s := &Scheduler{
		spec:           spec,
		tickResolution: defaultTickResolution,
		now:            time.Now,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes action once immediately, then on every fire time of the
// schedule until ctx is cancelled. An unparsable schedule is reported after
// the first run and nothing else is executed.
func (s *Scheduler) Run(ctx context.Context, action func(context.Context)) error {
	action(ctx)

	schedule, err := Parse(s.spec)
	if err != nil {
		s.logger.Error("schedule rejected", zap.String("cron", s.spec), zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.schedule = schedule
	s.next = schedule.Next(s.now())
	next := s.next
	s.mu.Unlock()
	s.logger.Info("schedule started", zap.String("cron", s.spec), zap.Time("next", next))

	ticker := time.NewTicker(s.tickResolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx, s.now(), action)
		}
	}
}

// Next returns the next fire time, or the zero time before Run parsed the
// schedule.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Scheduler) tick(ctx context.Context, now time.Time, action func(context.Context)) bool {
	s.mu.Lock()
	if s.schedule == nil || now.Before(s.next) {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	action(ctx)

	s.mu.Lock()
	s.next = s.schedule.Next(s.now())
	s.mu.Unlock()
	return true
}
