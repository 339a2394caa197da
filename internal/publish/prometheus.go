package publish

import (
	"context"
	"net"
	"net/http"
	"time"

	"codeberg.org/mutker/rpimonitor/internal/errors"
	"codeberg.org/mutker/rpimonitor/internal/logger"
	"codeberg.org/mutker/rpimonitor/internal/metric"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	gaugeName         = "rpimonitor_metric"
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Prometheus mirrors every metric into a gauge vector labelled by
// category, metric and units.
type Prometheus struct {
	registry *prometheus.Registry
	gauges   *prometheus.GaugeVec
	server   *http.Server
	log      logger.Logger
}

func NewPrometheus(log logger.Logger) *Prometheus {
	gauges := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: gaugeName,
		Help: "Most recent sampled value of a system metric, after unit scaling.",
	}, []string{"category", "metric", "units"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(gauges)

	return &Prometheus{
		registry: registry,
		gauges:   gauges,
		log:      log,
	}
}

// Gauges exposes the vector for inspection.
func (p *Prometheus) Gauges() *prometheus.GaugeVec {
	return p.gauges
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) Publish(_ context.Context, reg *metric.Registry) error {
	return reg.Each(func(c *metric.Category, m *metric.Metric) error {
		p.gauges.WithLabelValues(c.Name(), m.Name(), m.Units()).Set(m.Value())
		return nil
	})
}

// Serve listens on addr and serves /metrics in the background.
func (p *Prometheus) Serve(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.New().Wrap(errors.ErrInitFailed, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	p.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := p.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Error().Err(err).Msg("Prometheus endpoint stopped")
		}
	}()

	p.log.Info().Str("addr", listener.Addr().String()).Msg("Serving Prometheus metrics")

	return nil
}

// Close stops the HTTP endpoint, if serving.
func (p *Prometheus) Close() error {
	if p.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := p.server.Shutdown(ctx); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
