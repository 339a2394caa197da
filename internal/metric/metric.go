package metric

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"codeberg.org/mutker/rpimonitor/internal/errors"
)

// Text layout widths: description, delimiter, value, units.
const (
	DescriptionWidth = 21
	DelimiterWidth   = 3
	ValueWidth       = 8
	UnitsWidth       = 4

	// LineWidth is the width of a rendered line when no field overflows.
	LineWidth = DescriptionWidth + DelimiterWidth + ValueWidth + UnitsWidth

	delimiter = " = "
)

// Common divisors for byte-valued sources.
const (
	MiB = 1 << 20
	GiB = 1 << 30
)

// Metric is a single named measurement. Only its value changes after
// construction.
type Metric struct {
	name        string
	description string
	precision   int
	units       string
	divisor     float64
	source      Source

	mu    sync.RWMutex
	value float64
}

// Export is the structured form of a metric used by the JSON and sink
// publishers.
type Export struct {
	Description string `json:"description"`
	Value       string `json:"value"`
	Units       string `json:"units"`
}

// Option customises a Metric at construction.
type Option func(*Metric)

// WithDivisor divides every raw reading by d. Values <= 0 are ignored.
func WithDivisor(d float64) Option {
	return func(m *Metric) {
		if d > 0 {
			m.divisor = d
		}
	}
}

// WithPrecision sets the number of decimals shown. Defaults to 2.
func WithPrecision(p int) Option {
	return func(m *Metric) {
		if p >= 0 {
			m.precision = p
		}
	}
}

// New returns a metric named name, bound to source.
func New(name, description, units string, source Source, opts ...Option) *Metric {
	m := &Metric{
		name:        name,
		description: description,
		precision:   2,
		units:       units,
		divisor:     1,
		source:      source,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Metric) Name() string        { return m.name }
func (m *Metric) Description() string { return m.description }
func (m *Metric) Units() string       { return m.units }

// Value returns the most recent successful reading.
func (m *Metric) Value() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value
}

// Refresh reads the bound source and stores the scaled result. On failure
// the previous value is kept.
func (m *Metric) Refresh(ctx context.Context) error {
	if m.source == nil {
		return errors.New().WithMessage(errors.ErrSourceUnavailable,
			fmt.Sprintf("no source bound to %s", m.description))
	}

	raw, err := m.source.Read(ctx)
	if err != nil {
		return Unavailable(err)
	}

	m.mu.Lock()
	m.value = raw / m.divisor
	m.mu.Unlock()

	return nil
}

// Formatted returns the value at the metric's display precision.
func (m *Metric) Formatted() string {
	return strconv.FormatFloat(m.Value(), 'f', m.precision, 64)
}

// Text renders the fixed-width line, e.g.
// "CPU Usage             =    12.50 %   ".
func (m *Metric) Text() string {
	return fmt.Sprintf("%-*s%s%*s%-*s",
		DescriptionWidth, m.description,
		delimiter,
		ValueWidth, m.Formatted(),
		UnitsWidth, " "+m.units)
}

// Export returns the structured form of the current value.
func (m *Metric) Export() Export {
	return Export{
		Description: m.description,
		Value:       m.Formatted(),
		Units:       m.units,
	}
}

// Payload is the sink message body: the formatted value followed by the
// units, if any.
func (m *Metric) Payload() string {
	if m.units == "" {
		return m.Formatted()
	}

	return m.Formatted() + " " + m.units
}
