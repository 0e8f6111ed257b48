// Package config loads robo settings from defaults, an optional robo.toml,
// ROBO_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

// #region types
// Config is the full robo configuration.
type Config struct {
	Journal  JournalConfig  `mapstructure:"journal"`
	Server   ServerConfig   `mapstructure:"server"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Capacity CapacityConfig `mapstructure:"capacity"`
	Log      LogConfig      `mapstructure:"log"`
}

// JournalConfig locates the SQLite step journal. An empty path disables it.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds listen addresses for `robo serve`.
type ServerConfig struct {
	Listen        string `mapstructure:"listen"`
	MetricsListen string `mapstructure:"metrics_listen"`
}

// OracleConfig points at the external guess source. Listen is where
// `robo oracle` serves one.
type OracleConfig struct {
	Addr    string        `mapstructure:"addr"`
	Listen  string        `mapstructure:"listen"`
	Default string        `mapstructure:"default"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CapacityConfig bounds the predictor tables. Budget, when positive, overrides
// the per-table values with predictor.BudgetCapacity(Budget).
type CapacityConfig struct {
	Singles int `mapstructure:"singles"`
	Pairs   int `mapstructure:"pairs"`
	Triples int `mapstructure:"triples"`
	Budget  int `mapstructure:"budget"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Debug  bool `mapstructure:"debug"`
	JSON   bool `mapstructure:"json"`
	Pretty bool `mapstructure:"pretty"`
}

// #endregion types

// #region defaults
// NewDefaultConfig returns the built-in defaults: unbounded tables, no journal,
// no remote oracle.
func NewDefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen:        "localhost:50061",
			MetricsListen: "localhost:9161",
		},
		Oracle: OracleConfig{
			Listen:  "localhost:50062",
			Default: "night",
			Timeout: 2 * time.Second,
		},
	}
}

func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("journal.path", d.Journal.Path)

	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.metrics_listen", d.Server.MetricsListen)

	v.SetDefault("oracle.addr", d.Oracle.Addr)
	v.SetDefault("oracle.listen", d.Oracle.Listen)
	v.SetDefault("oracle.default", d.Oracle.Default)
	v.SetDefault("oracle.timeout", d.Oracle.Timeout)

	v.SetDefault("capacity.singles", d.Capacity.Singles)
	v.SetDefault("capacity.pairs", d.Capacity.Pairs)
	v.SetDefault("capacity.triples", d.Capacity.Triples)
	v.SetDefault("capacity.budget", d.Capacity.Budget)

	v.SetDefault("log.debug", d.Log.Debug)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.pretty", d.Log.Pretty)
}

// #endregion defaults

// #region viper
// InitViper returns a viper instance with defaults, the config file and
// environment bound. Precedence, highest first: flags (via BindFlags),
// ROBO_* env vars, the config file, defaults.
//
// An explicit configFile must exist; otherwise robo.toml is looked up in the
// working directory and its absence is fine.
func InitViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("robo")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("ROBO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// BindFlags binds each flag to the config key of the same name in keys.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for flagName, key := range keys {
		f := flags.Lookup(flagName)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flagName)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", flagName, err)
		}
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// #endregion viper

// #region validate
// Validate rejects negative capacities and unparseable oracle defaults.
func (c Config) Validate() error {
	cc := c.Capacity
	if cc.Singles < 0 || cc.Pairs < 0 || cc.Triples < 0 || cc.Budget < 0 {
		return fmt.Errorf("capacity values must be non-negative: %+v", cc)
	}
	if _, err := predictor.ParseOutcome(c.Oracle.Default); err != nil {
		return fmt.Errorf("oracle.default: %w", err)
	}
	if c.Oracle.Timeout < 0 {
		return fmt.Errorf("oracle.timeout must be non-negative, got %s", c.Oracle.Timeout)
	}
	return nil
}

// PredictorCapacity resolves the table bounds for new predictors.
func (c CapacityConfig) PredictorCapacity() predictor.Capacity {
	if c.Budget > 0 {
		return predictor.BudgetCapacity(c.Budget)
	}
	return predictor.Capacity{Singles: c.Singles, Pairs: c.Pairs, Triples: c.Triples}
}

// DefaultGuess is the parsed oracle default. Validate guarantees it parses.
func (c OracleConfig) DefaultGuess() predictor.Outcome {
	o, _ := predictor.ParseOutcome(c.Default)
	return o
}

// #endregion validate
