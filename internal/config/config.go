// Package config loads client settings from defaults, an optional
// arenaclient.yaml and ARENA_* environment variables, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file name searched for without an explicit path.
const FileName = "arenaclient"

// EnvPrefix prefixes every environment override, e.g. ARENA_SERVER_URL.
const EnvPrefix = "ARENA"

var ErrNoServerURL = errors.New("config: server.url is required")

type ServerConfig struct {
	URL string `mapstructure:"url"`
}

type ReconnectConfig struct {
	BaseDelay    time.Duration `mapstructure:"baseDelay"`
	GrowthFactor float64       `mapstructure:"growthFactor"`
	MaxDelay     time.Duration `mapstructure:"maxDelay"`
	MaxAttempts  int           `mapstructure:"maxAttempts"`
}

// StorageConfig selects the session store. An empty Path keeps session data
// in memory only.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PositionConfig throttles outbound position frames.
type PositionConfig struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

// Config is the full client configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Reconnect ReconnectConfig `mapstructure:"reconnect"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
	Position  PositionConfig  `mapstructure:"position"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "")

	v.SetDefault("reconnect.baseDelay", "1s")
	v.SetDefault("reconnect.growthFactor", 2.0)
	v.SetDefault("reconnect.maxDelay", "30s")
	v.SetDefault("reconnect.maxAttempts", 5)

	v.SetDefault("storage.path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("position.rate", 60.0)
	v.SetDefault("position.burst", 2)
}

// Load reads and validates the configuration. When file is empty,
// arenaclient.yaml is looked up in the working directory and
// $HOME/.config/arenaclient and may be absent; an explicit file must exist.
func Load(v *viper.Viper, file string) (Config, error) {
	cfg, err := Read(v, file)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read is Load without validation, for commands that never connect.
func Read(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/arenaclient")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings that have no usable default.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.URL) == "" {
		return ErrNoServerURL
	}
	if c.Reconnect.GrowthFactor < 1 {
		return fmt.Errorf("config: reconnect.growthFactor must be at least 1, got %v", c.Reconnect.GrowthFactor)
	}
	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("config: reconnect.maxAttempts must not be negative, got %d", c.Reconnect.MaxAttempts)
	}
	if c.Position.Rate < 0 || c.Position.Burst < 0 {
		return fmt.Errorf("config: position.rate and position.burst must not be negative")
	}
	return nil
}
