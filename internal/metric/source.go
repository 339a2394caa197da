package metric

import (
	"context"

	"codeberg.org/mutker/rpimonitor/internal/errors"
)

// Source reads one OS or hardware value. A failed read returns an error
// carrying errors.ErrSourceUnavailable.
type Source interface {
	Read(ctx context.Context) (float64, error)
}

// SourceFunc adapts a plain function to a Source.
type SourceFunc func(ctx context.Context) (float64, error)

func (f SourceFunc) Read(ctx context.Context) (float64, error) {
	return f(ctx)
}

// Unavailable wraps err as a source_unavailable error, leaving errors that
// already carry that code untouched.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.HasCode(err, errors.ErrSourceUnavailable) {
		return err
	}

	return errors.New().Wrap(errors.ErrSourceUnavailable, err)
}
