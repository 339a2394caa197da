package sysstat

import (
	"context"
	"os/exec"
	"time"
)

const (
	DefaultThermalPath = "/sys/class/thermal/thermal_zone0/temp"
	DefaultCPUFreqDir  = "/sys/devices/system/cpu/cpu0/cpufreq"
	DefaultDiskPath    = "/"
	DefaultCPUWindow   = 100 * time.Millisecond

	vcgencmdTimeout = 2 * time.Second
)

// Config locates the OS facilities read by the sources.
type Config struct {
	ThermalPath string
	CPUFreqDir  string
	DiskPath    string
	CPUWindow   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ThermalPath: DefaultThermalPath,
		CPUFreqDir:  DefaultCPUFreqDir,
		DiskPath:    DefaultDiskPath,
		CPUWindow:   DefaultCPUWindow,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ThermalPath == "" {
		c.ThermalPath = d.ThermalPath
	}
	if c.CPUFreqDir == "" {
		c.CPUFreqDir = d.CPUFreqDir
	}
	if c.DiskPath == "" {
		c.DiskPath = d.DiskPath
	}
	if c.CPUWindow <= 0 {
		c.CPUWindow = d.CPUWindow
	}
	return c
}

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, vcgencmdTimeout)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Output()
}
