package config

import (
	"math"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/rpimonitor/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultNumber    = -1
	DefaultDelay     = 10.0
	DefaultLogLevel  = LogLevelWarning
	DefaultOutput    = OutputText
	DefaultNamespace = "rpimonitor"

	DefaultMQTTHost      = "localhost"
	DefaultMQTTPort      = 1883
	DefaultMQTTClientID  = "rpimonitor"
	DefaultMQTTKeepAlive = 60

	DefaultHistoryDBPath    = "/var/lib/rpimonitor/history.db"
	DefaultHistoryBatchSize = 15

	DefaultThermalPath = "/sys/class/thermal/thermal_zone0/temp"
	DefaultDiskPath    = "/"
	DefaultCPUWindow   = 100 * time.Millisecond

	configName = "rpimonitor"
	configDir  = "/etc"
	configEnv  = "RPIMONITOR_CONFIG"
	envPrefix  = "RPIMONITOR"

	// maxDelay is the first delay in seconds a time.Duration cannot hold.
	maxDelay = float64(math.MaxInt64) / float64(time.Second)
)

type Config struct {
	Number      int           `mapstructure:"number"`
	Delay       float64       `mapstructure:"delay"`
	LogLevel    string        `mapstructure:"log_level"`
	Output      string        `mapstructure:"output"`
	Namespace   string        `mapstructure:"namespace"`
	ThermalPath string        `mapstructure:"thermal_path"`
	DiskPath    string        `mapstructure:"disk_path"`
	CPUWindow   time.Duration `mapstructure:"cpu_window"`
	PIDFile     string        `mapstructure:"pid_file"`

	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	History    HistoryConfig    `mapstructure:"history"`
}

type MQTTConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	ClientID  string `mapstructure:"client_id"`
	KeepAlive int    `mapstructure:"keepalive"`
}

type PrometheusConfig struct {
	Listen string `mapstructure:"listen"`
}

type HistoryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	DBPath    string `mapstructure:"db_path"`
	BatchSize int    `mapstructure:"batch_size"`
}

// DelayDuration returns the delay between ticks.
func (c *Config) DelayDuration() time.Duration {
	return time.Duration(c.Delay * float64(time.Second))
}

// KeepAliveDuration returns the MQTT keepalive interval.
func (c *Config) KeepAliveDuration() time.Duration {
	return time.Duration(c.MQTT.KeepAlive) * time.Second
}

// Load reads configuration from defaults, the config file, the environment
// and finally the command line flags in args (without the program name).
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{
		configPath: os.Getenv(configEnv),
	}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	setDefaults(v)

	flags := NewFlagSet()
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, errFactory.Wrap(errors.ErrParseFlags, err))
	}
	if err := v.BindPFlag("number", flags.Lookup("number")); err != nil {
		return nil, errFactory.Wrap(errors.ErrParseFlags, err)
	}
	if err := v.BindPFlag("delay", flags.Lookup("delay")); err != nil {
		return nil, errFactory.Wrap(errors.ErrParseFlags, err)
	}

	v.SetConfigType("toml")
	if o.configPath != "" {
		v.SetConfigFile(o.configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(configDir)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, errFactory.Wrap(errors.ErrReadConfig, err))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, errFactory.Wrap(errors.ErrReadConfig, err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	return cfg, nil
}

// NewFlagSet returns the command line flags: -n/--number and -d/--delay.
func NewFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	flags.IntP("number", "n", DefaultNumber, "how many times the stats are sampled, -1 runs indefinitely")
	flags.Float64P("delay", "d", DefaultDelay, "delay between samples in seconds")
	return flags
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("number", DefaultNumber)
	v.SetDefault("delay", DefaultDelay)
	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("output", string(DefaultOutput))
	v.SetDefault("namespace", DefaultNamespace)
	v.SetDefault("thermal_path", DefaultThermalPath)
	v.SetDefault("disk_path", DefaultDiskPath)
	v.SetDefault("cpu_window", DefaultCPUWindow)
	v.SetDefault("pid_file", "")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.host", DefaultMQTTHost)
	v.SetDefault("mqtt.port", DefaultMQTTPort)
	v.SetDefault("mqtt.client_id", DefaultMQTTClientID)
	v.SetDefault("mqtt.keepalive", DefaultMQTTKeepAlive)

	v.SetDefault("prometheus.listen", "")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.db_path", DefaultHistoryDBPath)
	v.SetDefault("history.batch_size", DefaultHistoryBatchSize)
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Number < DefaultNumber {
		return errFactory.WithData(errors.ErrInvalidNumber, c.Number)
	}
	if math.IsNaN(c.Delay) || math.IsInf(c.Delay, 0) || c.Delay < 0 || c.Delay >= maxDelay {
		return errFactory.WithData(errors.ErrInvalidDelay, c.Delay)
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if !Output(c.Output).IsValid() {
		return errFactory.WithData(errors.ErrInvalidOutput, c.Output)
	}
	if c.Namespace == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "namespace must not be empty")
	}
	if c.CPUWindow <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value time.Duration
		}{
			Field: "cpu_window",
			Value: c.CPUWindow,
		})
	}
	if c.MQTT.Enabled {
		if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
			return errFactory.WithData(errors.ErrInvalidConfig, struct {
				Field string
				Value int
			}{
				Field: "mqtt.port",
				Value: c.MQTT.Port,
			})
		}
		if c.MQTT.KeepAlive < 0 {
			return errFactory.WithData(errors.ErrInvalidConfig, struct {
				Field string
				Value int
			}{
				Field: "mqtt.keepalive",
				Value: c.MQTT.KeepAlive,
			})
		}
	}

	return nil
}
