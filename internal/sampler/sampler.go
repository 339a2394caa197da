package sampler

import (
	"context"

	"codeberg.org/mutker/rpimonitor/internal/errors"
	"codeberg.org/mutker/rpimonitor/internal/logger"
	"codeberg.org/mutker/rpimonitor/internal/metric"
)

// Failure records one metric whose source could not be read.
type Failure struct {
	Category string
	Metric   string
	Err      error
}

// Report summarises one sampling pass.
type Report struct {
	Refreshed int
	Failures  []Failure
}

// OK reports whether every metric refreshed.
func (r Report) OK() bool {
	return len(r.Failures) == 0
}

// Sampler refreshes every metric of a registry.
type Sampler struct {
	log logger.Logger
}

func New(log logger.Logger) *Sampler {
	return &Sampler{log: log}
}

// SampleAll refreshes every metric in declaration order. A metric whose
// source fails keeps its last value and the pass continues. Cancelling ctx
// stops the pass early; unvisited metrics keep their previous values.
func (s *Sampler) SampleAll(ctx context.Context, reg *metric.Registry) (Report, error) {
	var report Report

	err := reg.Each(func(c *metric.Category, m *metric.Metric) error {
		if err := ctx.Err(); err != nil {
			return errors.New().Wrap(errors.ErrSampleCancelled, err)
		}

		if err := m.Refresh(ctx); err != nil {
			// A read cut short by cancellation is a stop, not a fault.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return errors.New().Wrap(errors.ErrSampleCancelled, ctxErr)
			}
			report.Failures = append(report.Failures, Failure{
				Category: c.Name(),
				Metric:   m.Name(),
				Err:      err,
			})
			s.logFailure(c, m, err)
			return nil
		}
		report.Refreshed++

		return nil
	})

	if len(report.Failures) == 0 {
		s.log.Debug().Int("metrics", report.Refreshed).Msg("Sampled metrics")
	}

	return report, err
}

func (s *Sampler) logFailure(c *metric.Category, m *metric.Metric, err error) {
	var coded errors.Error
	if errors.As(err, &coded) {
		s.log.WarnWithCode(coded).
			Str("category", c.Name()).
			Str("metric", m.Name()).
			Msg("Failed to refresh metric, keeping last value")
		return
	}

	s.log.Warn().Err(err).
		Str("category", c.Name()).
		Str("metric", m.Name()).
		Msg("Failed to refresh metric, keeping last value")
}
