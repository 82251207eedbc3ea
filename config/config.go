package config

import (
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/server-selector/internal/pool"
	"github.com/angeloszaimis/server-selector/internal/strategy"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type StrategyConfig struct {
	Type         string `mapstructure:"type"`
	VirtualNodes int    `mapstructure:"virtual_nodes"`
	Seed         uint64 `mapstructure:"seed"`
}

type PoolServerConfig struct {
	ID     string `mapstructure:"id"`
	Weight *int   `mapstructure:"weight"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type SimulationConfig struct {
	Requests int    `mapstructure:"requests"`
	Workers  int    `mapstructure:"workers"`
	Clients  int    `mapstructure:"clients"`
	Interval string `mapstructure:"interval"`
}

type Config struct {
	Server     ServerConfig       `mapstructure:"server"`
	Strategy   StrategyConfig     `mapstructure:"strategy"`
	Servers    []PoolServerConfig `mapstructure:"servers"`
	Logging    LoggingConfig      `mapstructure:"logging"`
	Metrics    MetricsConfig      `mapstructure:"metrics"`
	Simulation SimulationConfig   `mapstructure:"simulation"`
}

// EffectiveWeight returns the configured weight, or the pool default when omitted.
func (s PoolServerConfig) EffectiveWeight() int {
	if s.Weight == nil {
		return pool.DefaultWeight
	}
	return *s.Weight
}

// Load reads config.yaml from the given directories (./config and . when
// none are given), applies environment overrides and validates the result.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("strategy.type", string(strategy.KindRoundRobin))
	v.SetDefault("strategy.virtual_nodes", 100)
	v.SetDefault("strategy.seed", 0)
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.file", "")
	v.SetDefault("metrics.buffer_size", 1000)
	v.SetDefault("simulation.requests", 1000)
	v.SetDefault("simulation.workers", 8)
	v.SetDefault("simulation.clients", 50)
	v.SetDefault("simulation.interval", "0s")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./config", "."}
	}
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Servers,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validatePoolServerConfig)),
			validation.By(validateUniqueIDs),
		),
		validation.Field(&c.Strategy,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(StrategyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a StrategyConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Type,
						validation.Required,
						validation.In(strategyKinds()...),
					),
					validation.Field(&sc.VirtualNodes,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.BufferSize, validation.Required, validation.Min(1)),
				)
			}),
		),
		validation.Field(&c.Simulation,
			validation.By(func(value interface{}) error {
				sc, ok := value.(SimulationConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a SimulationConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Requests, validation.Min(0)),
					validation.Field(&sc.Workers, validation.Required, validation.Min(1)),
					validation.Field(&sc.Clients, validation.Required, validation.Min(1)),
					validation.Field(&sc.Interval, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
	)
}

func strategyKinds() []interface{} {
	kinds := strategy.Kinds()
	out := make([]interface{}, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validatePoolServerConfig(value interface{}) error {
	server, ok := value.(PoolServerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a PoolServerConfig")
	}

	if strings.TrimSpace(server.ID) == "" {
		return validation.NewError("validation_empty_id", "server id cannot be empty")
	}

	if server.EffectiveWeight() < 1 {
		return validation.NewError("validation_invalid_weight", "weight must be at least 1")
	}

	return nil
}

func validateUniqueIDs(value interface{}) error {
	servers, ok := value.([]PoolServerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a list of servers")
	}

	seen := make(map[string]struct{}, len(servers))
	for _, s := range servers {
		if _, dup := seen[s.ID]; dup {
			return validation.NewError("validation_duplicate_id", "server ids must be unique: "+s.ID)
		}
		seen[s.ID] = struct{}{}
	}

	return nil
}
