package history

import (
	"context"
	"time"

	"codeberg.org/mutker/rpimonitor/internal/errors"
	"codeberg.org/mutker/rpimonitor/internal/logger"
	"codeberg.org/mutker/rpimonitor/internal/metric"
)

type service struct {
	repo Repository
	now  func() time.Time
}

type noopRecorder struct{}

// NewService returns a Recorder backed by SQLite, or a no-op recorder when
// history is disabled.
func NewService(cfg Config, log logger.Logger) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("History disabled, using no-op recorder")
		return &noopRecorder{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return newService(repo, time.Now), nil
}

func newService(repo Repository, now func() time.Time) *service {
	return &service{repo: repo, now: now}
}

func (s *service) Publish(ctx context.Context, reg *metric.Registry) error {
	errFactory := errors.New()

	tick := Tick{
		Timestamp: s.now(),
		Samples:   make([]Sample, 0, reg.Len()),
	}
	for _, c := range reg.Categories() {
		for _, m := range c.Metrics() {
			tick.Samples = append(tick.Samples, Sample{
				Category: c.Name(),
				Metric:   m.Name(),
				Value:    m.Value(),
				Units:    m.Units(),
			})
		}
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrRecordFailed, ctx.Err())
	default:
	}

	if err := s.repo.Record(ctx, tick); err != nil {
		return errFactory.Wrap(ErrRecordFailed, err)
	}

	return nil
}

func (s *service) Close() error {
	return s.repo.Close()
}

func (*noopRecorder) Publish(context.Context, *metric.Registry) error {
	return nil
}

func (*noopRecorder) Close() error {
	return nil
}
