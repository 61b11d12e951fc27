package config

import (
	"net"
	"os"
	"strings"
	"time"

	"github.com/jcaesar/prometheus-nvml-exporter/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultListen         = "[::]:9144"
	DefaultLogLevel       = "info"
	DefaultRefreshInitial = 30 * time.Second
	DefaultRefreshMax     = time.Hour

	envPrefix = "NVML_EXPORTER"
)

// Config holds the exporter settings. RefreshInitial and RefreshMax bound
// the adaptive device rediscovery interval.
type Config struct {
	Listen         string        `mapstructure:"listen"`
	LogLevel       string        `mapstructure:"log_level"`
	RefreshInitial time.Duration `mapstructure:"refresh_initial"`
	RefreshMax     time.Duration `mapstructure:"refresh_max"`
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// Load reads configuration from flags, the optional config file pointed to
// by NVML_EXPORTER_CONFIG, and NVML_EXPORTER_* environment variables.
func Load() (*Config, error) {
	errFactory := errors.New()

	fs := pflag.NewFlagSet("nvml-exporter", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.StringP("listen", "l", DefaultListen, "Listen address/port")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.Duration("refresh-initial", DefaultRefreshInitial, "Initial device rediscovery interval")
	fs.Duration("refresh-max", DefaultRefreshMax, "Maximum device rediscovery interval")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("refresh_initial", DefaultRefreshInitial)
	v.SetDefault("refresh_max", DefaultRefreshMax)

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, flagName := range map[string]string{
		"listen":          "listen",
		"log_level":       "log-level",
		"refresh_initial": "refresh-initial",
		"refresh_max":     "refresh-max",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return errFactory.Wrap(errors.ErrInvalidListen, err)
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.RefreshInitial <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.RefreshInitial)
	}

	if c.RefreshMax < c.RefreshInitial {
		return errFactory.WithData(errors.ErrInvalidInterval, c.RefreshMax)
	}

	return nil
}
