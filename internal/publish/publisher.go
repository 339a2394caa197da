package publish

import (
	"context"

	"codeberg.org/mutker/rpimonitor/internal/errors"
	"codeberg.org/mutker/rpimonitor/internal/logger"
	"codeberg.org/mutker/rpimonitor/internal/metric"
)

// Publisher renders or emits the current registry values.
type Publisher interface {
	Publish(ctx context.Context, reg *metric.Registry) error
}

// Func adapts a function to a Publisher.
type Func func(ctx context.Context, reg *metric.Registry) error

func (f Func) Publish(ctx context.Context, reg *metric.Registry) error {
	return f(ctx, reg)
}

// Multi fans out to several publishers. A failing publisher is logged and
// does not prevent the others from running.
type Multi struct {
	publishers []Publisher
	log        logger.Logger
}

func NewMulti(log logger.Logger, publishers ...Publisher) *Multi {
	return &Multi{publishers: publishers, log: log}
}

// Add appends a publisher.
func (m *Multi) Add(p Publisher) {
	m.publishers = append(m.publishers, p)
}

// Len returns the number of publishers.
func (m *Multi) Len() int {
	return len(m.publishers)
}

// Publish runs every publisher in order. It returns the number of failures
// as a publish_failed error, or nil.
func (m *Multi) Publish(ctx context.Context, reg *metric.Registry) error {
	failed := 0
	for _, p := range m.publishers {
		if err := p.Publish(ctx, reg); err != nil {
			failed++
			m.log.Error().Err(err).
				Str("error_code", string(errors.CodeOf(err))).
				Msg("Publisher failed")
		}
	}

	if failed > 0 {
		return errors.New().WithData(errors.ErrPublishFailed, struct {
			Failed int
			Total  int
		}{
			Failed: failed,
			Total:  len(m.publishers),
		})
	}

	return nil
}
