// Package config loads the server configuration from a YAML file and DUEL_
// prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Duel     DuelConfig     `mapstructure:"duel"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Database DatabaseConfig `mapstructure:"database"`
}

// ServerConfig holds the listeners.
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
	GRPC GRPCConfig `mapstructure:"grpc"`
}

// HTTPConfig configures the REST and WebSocket listener.
type HTTPConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// SendBuffer is the number of outgoing frames queued per connection.
	SendBuffer int `mapstructure:"send_buffer"`
}

// GRPCConfig configures the health listener.
type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// LoggingConfig selects the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DuelConfig holds the rules of new duels.
type DuelConfig struct {
	MaxCoreHealth int `mapstructure:"max_core_health"`
	MaxEnergy     int `mapstructure:"max_energy"`
	StartCards    int `mapstructure:"start_cards"`
	UnitsX        int `mapstructure:"units_x"`
	UnitsY        int `mapstructure:"units_y"`
	// ReplayDirectory enables replay files when set.
	ReplayDirectory string       `mapstructure:"replay_directory"`
	Limits          LimitsConfig `mapstructure:"limits"`
}

// LimitsConfig bounds script trigger chains.
type LimitsConfig struct {
	MaxTriggersPerScript   int `mapstructure:"max_triggers_per_script"`
	MaxTriggersPerMutation int `mapstructure:"max_triggers_per_mutation"`
	SelfTriggerMaxDepth    int `mapstructure:"self_trigger_max_depth"`
	AnyTriggerMaxDepth     int `mapstructure:"any_trigger_max_depth"`
}

// CatalogConfig selects where card definitions come from.
type CatalogConfig struct {
	// Source is "yaml" or "postgres".
	Source string   `mapstructure:"source"`
	Packs  []string `mapstructure:"packs"`
}

// DatabaseConfig configures the PostgreSQL pool used by the postgres catalog.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.address", ":8080")
	v.SetDefault("server.http.read_timeout", 15*time.Second)
	v.SetDefault("server.http.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.http.send_buffer", 256)
	v.SetDefault("server.grpc.address", ":9090")
	v.SetDefault("server.grpc.max_concurrent_streams", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("duel.max_core_health", 35)
	v.SetDefault("duel.max_energy", 999)
	v.SetDefault("duel.start_cards", 5)
	v.SetDefault("duel.units_x", 4)
	v.SetDefault("duel.units_y", 2)
	v.SetDefault("duel.replay_directory", "")
	v.SetDefault("duel.limits.max_triggers_per_script", 5)
	v.SetDefault("duel.limits.max_triggers_per_mutation", 25)
	v.SetDefault("duel.limits.self_trigger_max_depth", 2)
	v.SetDefault("duel.limits.any_trigger_max_depth", 4)

	v.SetDefault("catalog.source", "yaml")
	v.SetDefault("catalog.packs", []string{"config/cards/base.yaml"})

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)
}

// Load reads path, which may be empty or missing, and applies environment
// overrides such as DUEL_SERVER_HTTP_ADDRESS.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Catalog.Source {
	case "yaml":
		if len(c.Catalog.Packs) == 0 {
			return errors.New("catalog.packs is required for the yaml source")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres source")
		}
	default:
		return fmt.Errorf("unknown catalog source %q", c.Catalog.Source)
	}
	if c.Duel.UnitsX <= 0 || c.Duel.UnitsY <= 0 {
		return fmt.Errorf("invalid grid %dx%d", c.Duel.UnitsX, c.Duel.UnitsY)
	}
	if c.Server.HTTP.SendBuffer <= 0 {
		return errors.New("server.http.send_buffer must be positive")
	}
	return nil
}
