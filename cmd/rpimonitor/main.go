package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/rpimonitor/internal/config"
	"codeberg.org/mutker/rpimonitor/internal/errors"
	"codeberg.org/mutker/rpimonitor/internal/history"
	"codeberg.org/mutker/rpimonitor/internal/logger"
	"codeberg.org/mutker/rpimonitor/internal/pid"
	"codeberg.org/mutker/rpimonitor/internal/publish"
	"codeberg.org/mutker/rpimonitor/internal/sampler"
	"codeberg.org/mutker/rpimonitor/internal/scheduler"
	"codeberg.org/mutker/rpimonitor/internal/sysstat"
	"github.com/charmbracelet/lipgloss"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// closer releases a sink on shutdown.
type closer func() error

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	log := logger.Init(cfg.LogLevel, logger.IsService())
	log.Debug().Msg("Config loaded")

	if cfg.PIDFile != "" {
		if err := pid.Write(cfg.PIDFile); err != nil {
			log.ErrorWithCode(errors.New().Wrap(errors.ErrInitFailed, err)).Msg("Failed to write PID file")
			return 1
		}
		defer func() {
			if err := pid.Remove(cfg.PIDFile); err != nil {
				log.Error().Err(err).Msg("Failed to remove PID file")
			}
		}()
	}

	sources := sysstat.New(sysstat.Config{
		ThermalPath: cfg.ThermalPath,
		DiskPath:    cfg.DiskPath,
		CPUWindow:   cfg.CPUWindow,
	})
	registry, err := sysstat.NewRegistry(sources)
	if err != nil {
		log.ErrorWithCode(errors.New().Wrap(errors.ErrInitFailed, err)).Msg("Failed to build metric registry")
		return 1
	}

	publishers, closers, err := setupPublishers(cfg, log)
	defer cleanup(closers, log)
	if err != nil {
		log.ErrorWithCode(errors.New().Wrap(errors.ErrInitFailed, err)).Msg("Failed to set up publishers")
		return 1
	}

	sched, err := scheduler.New(scheduler.Config{
		Iterations: cfg.Number,
		Delay:      cfg.DelayDuration(),
	}, registry, sampler.New(log), publishers, log)
	if err != nil {
		log.ErrorWithCode(errors.New().Wrap(errors.ErrInitFailed, err)).Msg("Failed to create scheduler")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(ctx, cancel, log)

	if err := sched.Run(ctx); err != nil {
		log.ErrorWithCode(errors.New().Wrap(errors.ErrMainLoop, err)).Msg("Error in main loop")
		return 1
	}

	return 0
}

// setupPublishers builds the configured sinks. The returned closers must be
// run even when an error is returned.
func setupPublishers(cfg *config.Config, log logger.Logger) (*publish.Multi, []closer, error) {
	var closers []closer
	multi := publish.NewMulti(log)

	switch config.Output(cfg.Output) {
	case config.OutputText:
		var opts []publish.TextOption
		if term.IsTerminal(int(os.Stdout.Fd())) {
			opts = append(opts,
				publish.WithClearScreen(),
				publish.WithHeaderStyle(lipgloss.NewStyle().Bold(true)))
		}
		multi.Add(publish.NewText(os.Stdout, opts...))
	case config.OutputJSON:
		multi.Add(publish.NewJSON(os.Stdout))
	case config.OutputNone:
	}

	if cfg.MQTT.Enabled {
		client := publish.DialMQTT(publish.MQTTConfig{
			Host:      cfg.MQTT.Host,
			Port:      cfg.MQTT.Port,
			ClientID:  cfg.MQTT.ClientID,
			KeepAlive: cfg.KeepAliveDuration(),
		}, log)
		multi.Add(publish.NewMQTT(client, cfg.Namespace, log))
		closers = append(closers, closeMQTT(client))
	}

	if cfg.Prometheus.Listen != "" {
		prom := publish.NewPrometheus(log)
		if err := prom.Serve(cfg.Prometheus.Listen); err != nil {
			return multi, closers, err
		}
		multi.Add(prom)
		closers = append(closers, prom.Close)
	}

	recorder, err := history.NewService(history.Config{
		DBPath:    cfg.History.DBPath,
		BatchSize: cfg.History.BatchSize,
		Enabled:   cfg.History.Enabled,
	}, log)
	if err != nil {
		return multi, closers, err
	}
	multi.Add(recorder)
	closers = append(closers, recorder.Close)

	log.Debug().Int("publishers", multi.Len()).Msg("Publishers ready")

	return multi, closers, nil
}

func closeMQTT(client mqtt.Client) closer {
	return func() error {
		publish.CloseMQTT(client)
		return nil
	}
}

func handleSignals(ctx context.Context, cancel context.CancelFunc, log logger.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		log.Info().Msg("Received termination signal.")
		cancel()
	case <-ctx.Done():
	}
}

func cleanup(closers []closer, log logger.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			log.Error().Err(err).Msg("Failed to close publisher")
		}
	}
	log.Info().Msg("Exiting...")
}
