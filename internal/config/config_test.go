package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/rpimonitor/internal/config"
	"codeberg.org/mutker/rpimonitor/internal/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "rpimonitor.toml")
	err := os.WriteFile(configPath, []byte(content), 0o600)
	require.NoError(t, err)

	t.Setenv("RPIMONITOR_CONFIG", configPath)

	return configPath
}

func TestLoad(t *testing.T) {
	writeConfig(t, `
number = 5
delay = 2.5
log_level = "debug"
output = "json"
namespace = "pi4"
disk_path = "/srv"
cpu_window = "250ms"

[mqtt]
enabled = true
host = "broker.lan"
port = 8883
client_id = "pi4-monitor"
keepalive = 30

[prometheus]
listen = ":9101"

[history]
enabled = true
db_path = "/tmp/history.db"
batch_size = 4
`)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Number)
	assert.InDelta(t, 2.5, cfg.Delay, 1e-9)
	assert.Equal(t, 2500*time.Millisecond, cfg.DelayDuration())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, "pi4", cfg.Namespace)
	assert.Equal(t, "/srv", cfg.DiskPath)
	assert.Equal(t, 250*time.Millisecond, cfg.CPUWindow)

	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "broker.lan", cfg.MQTT.Host)
	assert.Equal(t, 8883, cfg.MQTT.Port)
	assert.Equal(t, "pi4-monitor", cfg.MQTT.ClientID)
	assert.Equal(t, 30*time.Second, cfg.KeepAliveDuration())

	assert.Equal(t, ":9101", cfg.Prometheus.Listen)

	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/history.db", cfg.History.DBPath)
	assert.Equal(t, 4, cfg.History.BatchSize)
}

func TestLoadDefaults(t *testing.T) {
	writeConfig(t, "")

	cfg, err := config.Load(nil)
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, -1, cfg.Number, "Expected indefinite sampling")
	assert.InDelta(t, 10.0, cfg.Delay, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.DelayDuration())
	assert.Equal(t, config.DefaultLogLevel.String(), cfg.LogLevel)
	assert.Equal(t, "text", cfg.Output)
	assert.Equal(t, "rpimonitor", cfg.Namespace)
	assert.Equal(t, config.DefaultThermalPath, cfg.ThermalPath)
	assert.Equal(t, "/", cfg.DiskPath)
	assert.Equal(t, config.DefaultCPUWindow, cfg.CPUWindow)
	assert.Empty(t, cfg.PIDFile)

	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "localhost", cfg.MQTT.Host)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, "rpimonitor", cfg.MQTT.ClientID)
	assert.Equal(t, 60, cfg.MQTT.KeepAlive)

	assert.Empty(t, cfg.Prometheus.Listen)

	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, config.DefaultHistoryDBPath, cfg.History.DBPath)
	assert.Equal(t, config.DefaultHistoryBatchSize, cfg.History.BatchSize)
}

func TestLoadFlags(t *testing.T) {
	writeConfig(t, `
number = 5
delay = 2.5
`)

	cfg, err := config.Load([]string{"-n", "3", "--delay", "0.5"})
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Number, "Expected flag to override config file")
	assert.InDelta(t, 0.5, cfg.Delay, 1e-9)
	assert.Equal(t, 500*time.Millisecond, cfg.DelayDuration())
}

func TestLoadFlagsZeroDelay(t *testing.T) {
	writeConfig(t, "")

	cfg, err := config.Load([]string{"--number=1", "-d", "0"})
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Number)
	assert.Zero(t, cfg.DelayDuration())
}

func TestLoadEnvironment(t *testing.T) {
	writeConfig(t, `
[mqtt]
host = "from-file"
`)
	t.Setenv("RPIMONITOR_MQTT_HOST", "from-env")
	t.Setenv("RPIMONITOR_LOG_LEVEL", "info")

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.MQTT.Host)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadWithConfigFileOption(t *testing.T) {
	writeConfig(t, `namespace = "from-env-path"`)

	explicit := filepath.Join(t.TempDir(), "explicit.toml")
	require.NoError(t, os.WriteFile(explicit, []byte(`namespace = "explicit"`), 0o600))

	cfg, err := config.Load(nil, config.WithConfigFile(explicit))
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.Namespace)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	writeConfig(t, `
This is not a valid TOML file
`)

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestInvalidLogLevel(t *testing.T) {
	writeConfig(t, `
log_level = "invalid"
`)

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
		file string
		code errors.ErrorCode
	}{
		{name: "negative delay", args: []string{"-d", "-1"}, code: errors.ErrInvalidDelay},
		{name: "NaN delay", args: []string{"-d", "NaN"}, code: errors.ErrInvalidDelay},
		{name: "infinite delay", args: []string{"-d", "Inf"}, code: errors.ErrInvalidDelay},
		{name: "negative infinite delay", args: []string{"-d", "-Inf"}, code: errors.ErrInvalidDelay},
		{name: "overflowing delay", args: []string{"-d", "1e300"}, code: errors.ErrInvalidDelay},
		{name: "overflowing delay in file", file: "delay = 1e20", code: errors.ErrInvalidDelay},
		{name: "number below unbounded", args: []string{"-n", "-2"}, code: errors.ErrInvalidNumber},
		{name: "unknown output", file: `output = "xml"`, code: errors.ErrInvalidOutput},
		{name: "empty namespace", file: `namespace = ""`, code: errors.ErrInvalidConfig},
		{name: "bad mqtt port", file: "[mqtt]\nenabled = true\nport = 70000", code: errors.ErrInvalidConfig},
		{name: "non numeric flag", args: []string{"-n", "many"}, code: errors.ErrParseFlags},
		{name: "unknown flag", args: []string{"--verbose"}, code: errors.ErrParseFlags},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfig(t, tt.file)

			_, err := config.Load(tt.args)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
			assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
		})
	}
}

func TestLoadDayLongDelay(t *testing.T) {
	writeConfig(t, "")

	// One day is well inside the time.Duration range.
	cfg, err := config.Load([]string{"-d", "86400"})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.DelayDuration())
}

func TestDisabledMQTTSkipsPortCheck(t *testing.T) {
	writeConfig(t, "[mqtt]\nport = 0")

	cfg, err := config.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.MQTT.Port)
}

func TestHelpFlag(t *testing.T) {
	writeConfig(t, "")

	_, err := config.Load([]string{"--help"})
	assert.ErrorIs(t, err, pflag.ErrHelp)
}

func TestLogLevelIsValid(t *testing.T) {
	assert.True(t, config.LogLevelDebug.IsValid())
	assert.True(t, config.LogLevelWarning.IsValid())
	assert.False(t, config.LogLevel("trace").IsValid())
	assert.False(t, config.Output("yaml").IsValid())
	assert.True(t, config.OutputNone.IsValid())
}
