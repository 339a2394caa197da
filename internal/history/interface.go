package history

import (
	"context"
	"time"

	"codeberg.org/mutker/rpimonitor/internal/metric"
)

// Recorder stores each tick's values. It is a publish.Publisher.
type Recorder interface {
	Publish(ctx context.Context, reg *metric.Registry) error
	Close() error
}

// Repository defines the interface for history storage
type Repository interface {
	Record(ctx context.Context, tick Tick) error
	Close() error
}

// Tick is one sampling pass, flattened.
type Tick struct {
	Timestamp time.Time
	Samples   []Sample
}

// Sample is one metric value within a tick, after unit scaling.
type Sample struct {
	Category string
	Metric   string
	Value    float64
	Units    string
}
