package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/rpimonitor/internal/errors"
	"codeberg.org/mutker/rpimonitor/internal/logger"
	"codeberg.org/mutker/rpimonitor/internal/metric"
	"codeberg.org/mutker/rpimonitor/internal/publish"
	"codeberg.org/mutker/rpimonitor/internal/sampler"
)

// Unbounded makes the scheduler run until cancelled.
const Unbounded = -1

// State is the scheduler lifecycle: Idle, Running, Terminated.
type State int32

const (
	Idle State = iota
	Running
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Config controls the tick cadence.
type Config struct {
	// Iterations is the number of ticks to run, or Unbounded.
	Iterations int
	// Delay is waited after every tick except the last.
	Delay time.Duration
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Iterations < Unbounded {
		return errFactory.WithData(errors.ErrInvalidNumber, c.Iterations)
	}
	if c.Delay < 0 {
		return errFactory.WithData(errors.ErrInvalidDelay, c.Delay)
	}
	return nil
}

// Scheduler drives sample then publish, one tick at a time.
type Scheduler struct {
	cfg       Config
	registry  *metric.Registry
	sampler   *sampler.Sampler
	publisher publish.Publisher
	log       logger.Logger
	sleep     func(ctx context.Context, d time.Duration) error

	state atomic.Int32
	ticks atomic.Int64
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithSleep replaces the inter-tick wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) { s.sleep = sleep }
}

func New(
	cfg Config,
	registry *metric.Registry,
	smp *sampler.Sampler,
	publisher publish.Publisher,
	log logger.Logger,
	opts ...Option,
) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:       cfg,
		registry:  registry,
		sampler:   smp,
		publisher: publisher,
		log:       log,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Ticks returns the number of completed sample and publish cycles.
func (s *Scheduler) Ticks() int {
	return int(s.ticks.Load())
}

// Run ticks until the iteration count is reached or ctx is cancelled. A
// cancelled run is a clean stop and returns nil. Sampling and publishing
// failures are logged and never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return errors.New().WithMessage(errors.ErrMainLoop, "scheduler already started")
	}
	defer s.state.Store(int32(Terminated))

	s.log.Info().
		Int("iterations", s.cfg.Iterations).
		Dur("delay", s.cfg.Delay).
		Msg("Starting monitor loop")

	for i := 0; s.cfg.Iterations == Unbounded || i < s.cfg.Iterations; i++ {
		if ctx.Err() != nil {
			break
		}

		if !s.tick(ctx) {
			break
		}

		if s.cfg.Iterations != Unbounded && i == s.cfg.Iterations-1 {
			break
		}

		if err := s.sleep(ctx, s.cfg.Delay); err != nil {
			break
		}
	}

	s.log.Info().Int("ticks", s.Ticks()).Msg("Monitor loop stopped")

	return nil
}

// tick runs one sample and publish cycle. It returns false when the cycle
// was abandoned because ctx was cancelled.
func (s *Scheduler) tick(ctx context.Context) bool {
	report, err := s.sampler.SampleAll(ctx, s.registry)
	if err != nil {
		s.log.Debug().Err(err).Msg("Sampling interrupted")
		return false
	}
	if !report.OK() {
		s.log.Debug().
			Int("failed", len(report.Failures)).
			Int("refreshed", report.Refreshed).
			Msg("Sampled with failures")
	}

	if err := s.publisher.Publish(ctx, s.registry); err != nil {
		s.log.Warn().Err(err).Msg("Publishing incomplete")
	}
	s.ticks.Add(1)

	return ctx.Err() == nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
