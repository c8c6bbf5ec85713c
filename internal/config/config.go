// Package config loads daemon configuration from a TOML file, environment
// variables and command line flags. Flags take precedence over the file,
// the file over built-in defaults.
package config

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mjguynn/a15kb/internal/errors"
	"github.com/mjguynn/a15kb/internal/logger"
	"github.com/mjguynn/a15kb/protocol"
)

const (
	DefaultLogLevel = "info"

	configName       = "a15kb"
	configType       = "toml"
	configDir        = "/etc"
	defaultEnvPrefix = "A15KB"
)

type Config struct {
	SocketName  string `mapstructure:"socket_name"`
	LogLevel    string `mapstructure:"log_level"`
	Debug       bool   `mapstructure:"debug"`
	Verbose     bool   `mapstructure:"verbose"`
	Mock        bool   `mapstructure:"mock"`
	Telemetry   bool   `mapstructure:"telemetry"`
	TelemetryDB string `mapstructure:"database"`
}

func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: defaultEnvPrefix, args: os.Args[1:]}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	flags := pflag.NewFlagSet("a15kb", pflag.ContinueOnError)
	// The test binary passes its own flags through the same arguments.
	flags.ParseErrorsWhitelist.UnknownFlags = true
	configFile := flags.String("config", "", "path to configuration file")
	flags.String("socket-name", protocol.DefaultSocketName, "socket name inside the runtime directory")
	flags.String("log-level", DefaultLogLevel, "logging level (debug, info, warning, error)")
	flags.Bool("debug", false, "enable debugging mode")
	flags.Bool("verbose", false, "enable verbose logging")
	flags.Bool("mock", false, "serve a simulated controller instead of the hardware")
	flags.Bool("telemetry", false, "enable telemetry collection")
	flags.String("database", "", "path to the telemetry database")

	if err := flags.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	for key, name := range map[string]string{
		"socket_name": "socket-name",
		"log_level":   "log-level",
		"debug":       "debug",
		"verbose":     "verbose",
		"mock":        "mock",
		"telemetry":   "telemetry",
		"database":    "database",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.AutomaticEnv()

	switch {
	case o.configPath != "":
		v.SetConfigFile(o.configPath)
	case *configFile != "":
		v.SetConfigFile(*configFile)
	case os.Getenv(o.envPrefix+"_CONFIG") != "":
		v.SetConfigFile(os.Getenv(o.envPrefix + "_CONFIG"))
	default:
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(configDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	errFactory := errors.New()

	if _, err := logger.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	// The socket name is joined onto the runtime directory; a separator
	// would let a config file place the socket anywhere.
	if strings.ContainsRune(c.SocketName, os.PathSeparator) || c.SocketName == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value string
		}{
			Field: "socket_name",
			Value: c.SocketName,
		})
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("socket_name", protocol.DefaultSocketName)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
	v.SetDefault("mock", false)
	v.SetDefault("telemetry", false)
	v.SetDefault("database", "")
}
