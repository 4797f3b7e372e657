package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/mutker/macstatd/internal/errors"
)

const (
	DefaultInterval       = 2.0
	DefaultPowerInterval  = 30.0
	DefaultInterface      = "All"
	DefaultTopProcesses   = 5
	DefaultNotifyCooldown = 300
	DefaultLogLevel       = "info"
	DefaultEnvPrefix      = "MACSTATD"

	configEnvVar = "MACSTATD_CONFIG"
)

type Config struct {
	Interval      float64 `mapstructure:"interval"`
	PowerInterval float64 `mapstructure:"power_interval"`
	Interface     string  `mapstructure:"interface"`
	TopProcesses  int     `mapstructure:"top_processes"`
	UseBits       bool    `mapstructure:"use_bits"`
	Autoscale     bool    `mapstructure:"autoscale_units"`

	Notifications  bool   `mapstructure:"notifications"`
	NotifyCooldown int    `mapstructure:"notify_cooldown"`
	WebhookURL     string `mapstructure:"webhook_url"`
	NotifyTo       string `mapstructure:"notify_to"`
	NotifyFrom     string `mapstructure:"notify_from"`
	NotifyFromName string `mapstructure:"notify_from_name"`

	Metrics  bool   `mapstructure:"metrics"`
	Database string `mapstructure:"database"`

	LogLevel string `mapstructure:"log_level"`
	Monitor  bool   `mapstructure:"monitor"`
	Debug    bool   `mapstructure:"debug"`
	Verbose  bool   `mapstructure:"verbose"`
}

// Load reads configuration from flags, environment variables, and the TOML
// config file, in that order of precedence. The file comes from an explicit
// option, the MACSTATD_CONFIG variable, or the search path (/etc, then the
// working directory).
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{
		envPrefix: DefaultEnvPrefix,
		args:      os.Args[1:],
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	flags := pflag.NewFlagSet("macstatd", pflag.ContinueOnError)
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.Float64("interval", DefaultInterval, "Seconds between fast samples")
	flags.Float64("power-interval", DefaultPowerInterval, "Seconds between power-draw samples")
	flags.String("interface", DefaultInterface, `Network interface to sample ("All" combines every interface)`)
	flags.Int("top-processes", DefaultTopProcesses, "Rows to keep in each process ranking")
	flags.Bool("bits", false, "Report network rates in bits per second")
	flags.Bool("monitor", false, "Log every published snapshot")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	if err := flags.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	for key, name := range map[string]string{
		"interval":       "interval",
		"power_interval": "power-interval",
		"interface":      "interface",
		"top_processes":  "top-processes",
		"use_bits":       "bits",
		"monitor":        "monitor",
		"debug":          "debug",
		"verbose":        "verbose",
		"log_level":      "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	path := o.configPath
	if path == "" {
		path = os.Getenv(configEnvVar)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("macstatd")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("power_interval", DefaultPowerInterval)
	v.SetDefault("interface", DefaultInterface)
	v.SetDefault("top_processes", DefaultTopProcesses)
	v.SetDefault("use_bits", false)
	v.SetDefault("autoscale_units", true)
	v.SetDefault("notifications", false)
	v.SetDefault("notify_cooldown", DefaultNotifyCooldown)
	v.SetDefault("webhook_url", "")
	v.SetDefault("notify_to", "")
	v.SetDefault("notify_from", "")
	v.SetDefault("notify_from_name", "macstatd")
	v.SetDefault("metrics", false)
	v.SetDefault("database", "")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("monitor", false)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.PowerInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.PowerInterval)
	}
	if c.TopProcesses <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "top_processes must be positive")
	}
	if c.NotifyCooldown < 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "notify_cooldown must not be negative")
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Notifications {
		if c.WebhookURL == "" {
			return errFactory.WithMessage(errors.ErrMissingConfig, "webhook_url is required when notifications are enabled")
		}
		if c.NotifyTo == "" || c.NotifyFrom == "" {
			return errFactory.WithMessage(errors.ErrMissingConfig, "notify_to and notify_from are required when notifications are enabled")
		}
	}

	return nil
}

// FastInterval returns the fast sampling cadence as a duration.
func (c *Config) FastInterval() time.Duration {
	return time.Duration(c.Interval * float64(time.Second))
}

// SlowInterval returns the power sampling cadence as a duration.
func (c *Config) SlowInterval() time.Duration {
	return time.Duration(c.PowerInterval * float64(time.Second))
}

// CooldownDuration returns the notification cooldown as a duration.
func (c *Config) CooldownDuration() time.Duration {
	return time.Duration(c.NotifyCooldown) * time.Second
}
