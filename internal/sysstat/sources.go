package sysstat

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/rpimonitor/internal/metric"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	millidegreesPerDegree = 1000
	kHzPerMHz             = 1000
)

// Sources builds metric.Source values backed by sysfs, vcgencmd and gopsutil.
type Sources struct {
	cfg Config
	run CommandRunner

	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage     func(ctx context.Context, path string) (*disk.UsageStat, error)
	cpuPercent    func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	cpuCounts     func(ctx context.Context, logical bool) (int, error)
	cpuInfo       func(ctx context.Context) ([]cpu.InfoStat, error)
}

// Option overrides one of the facilities read by Sources.
type Option func(*Sources)

// WithCommandRunner replaces the runner used for vcgencmd.
func WithCommandRunner(run CommandRunner) Option {
	return func(s *Sources) { s.run = run }
}

// WithVirtualMemory replaces the virtual-memory reader.
func WithVirtualMemory(fn func(ctx context.Context) (*mem.VirtualMemoryStat, error)) Option {
	return func(s *Sources) { s.virtualMemory = fn }
}

// WithDiskUsage replaces the filesystem-usage reader.
func WithDiskUsage(fn func(ctx context.Context, path string) (*disk.UsageStat, error)) Option {
	return func(s *Sources) { s.diskUsage = fn }
}

// WithCPU replaces the utilisation and core-count readers.
func WithCPU(
	percent func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error),
	counts func(ctx context.Context, logical bool) (int, error),
) Option {
	return func(s *Sources) {
		s.cpuPercent = percent
		s.cpuCounts = counts
	}
}

func New(cfg Config, opts ...Option) *Sources {
	s := &Sources{
		cfg:           cfg.withDefaults(),
		run:           runCommand,
		virtualMemory: mem.VirtualMemoryWithContext,
		diskUsage:     disk.UsageWithContext,
		cpuPercent:    cpu.PercentWithContext,
		cpuCounts:     cpu.CountsWithContext,
		cpuInfo:       cpu.InfoWithContext,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Temperature reads the SoC temperature in degrees Celsius from the
// thermal zone (millidegree resolution), falling back to vcgencmd.
func (s *Sources) Temperature() metric.Source {
	return metric.SourceFunc(func(ctx context.Context) (float64, error) {
		zoneTemp, zoneErr := readThermalZone(s.cfg.ThermalPath)
		if zoneErr == nil {
			return zoneTemp, nil
		}

		out, err := s.run(ctx, "vcgencmd", "measure_temp")
		if err != nil {
			return 0, metric.Unavailable(fmt.Errorf("thermal zone: %v; vcgencmd: %w", zoneErr, err))
		}
		v, err := ParseVcgencmdTemp(out)
		if err != nil {
			return 0, metric.Unavailable(err)
		}

		return v, nil
	})
}

func readThermalZone(path string) (float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	milli, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	return milli / millidegreesPerDegree, nil
}

// ParseVcgencmdTemp parses `vcgencmd measure_temp` output such as
// "temp=48.3'C".
func ParseVcgencmdTemp(out []byte) (float64, error) {
	start := bytes.IndexByte(out, '=')
	end := bytes.LastIndexByte(out, '\'')
	if start < 0 || end <= start {
		return 0, fmt.Errorf("unexpected vcgencmd output %q", strings.TrimSpace(string(out)))
	}

	v, err := strconv.ParseFloat(string(out[start+1:end]), 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected vcgencmd output %q: %w", strings.TrimSpace(string(out)), err)
	}

	return v, nil
}

// CPUUsage samples total utilisation over the configured blocking window.
func (s *Sources) CPUUsage() metric.Source {
	return metric.SourceFunc(func(ctx context.Context) (float64, error) {
		pct, err := s.cpuPercent(ctx, s.cfg.CPUWindow, false)
		if err != nil {
			return 0, metric.Unavailable(err)
		}
		if len(pct) == 0 {
			return 0, metric.Unavailable(fmt.Errorf("no cpu utilisation reported"))
		}

		return pct[0], nil
	})
}

// CPUCount reports the number of logical cores.
func (s *Sources) CPUCount() metric.Source {
	return metric.SourceFunc(func(ctx context.Context) (float64, error) {
		n, err := s.cpuCounts(ctx, true)
		if err != nil {
			return 0, metric.Unavailable(err)
		}

		return float64(n), nil
	})
}

// FrequencyKind selects one of the cpufreq scaling values.
type FrequencyKind string

const (
	FrequencyCurrent FrequencyKind = "scaling_cur_freq"
	FrequencyMin     FrequencyKind = "scaling_min_freq"
	FrequencyMax     FrequencyKind = "scaling_max_freq"
)

// CPUFrequency reports a cpufreq scaling value in MHz. The current
// frequency falls back to gopsutil's cpu info when cpufreq is absent.
func (s *Sources) CPUFrequency(kind FrequencyKind) metric.Source {
	return metric.SourceFunc(func(ctx context.Context) (float64, error) {
		khz, err := readSysfsFloat(filepath.Join(s.cfg.CPUFreqDir, string(kind)))
		if err == nil {
			return khz / kHzPerMHz, nil
		}
		if kind != FrequencyCurrent {
			return 0, metric.Unavailable(err)
		}

		info, infoErr := s.cpuInfo(ctx)
		if infoErr != nil || len(info) == 0 || info[0].Mhz == 0 {
			return 0, metric.Unavailable(fmt.Errorf("cpufreq: %w; cpuinfo: %v", err, infoErr))
		}

		return info[0].Mhz, nil
	})
}

func readSysfsFloat(path string) (float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

// Memory reports one field of the virtual-memory statistics.
func (s *Sources) Memory(field func(*mem.VirtualMemoryStat) float64) metric.Source {
	return metric.SourceFunc(func(ctx context.Context) (float64, error) {
		vm, err := s.virtualMemory(ctx)
		if err != nil {
			return 0, metric.Unavailable(err)
		}

		return field(vm), nil
	})
}

// Disk reports one field of the filesystem usage for the configured mount.
func (s *Sources) Disk(field func(*disk.UsageStat) float64) metric.Source {
	return metric.SourceFunc(func(ctx context.Context) (float64, error) {
		usage, err := s.diskUsage(ctx, s.cfg.DiskPath)
		if err != nil {
			return 0, metric.Unavailable(err)
		}

		return field(usage), nil
	})
}
