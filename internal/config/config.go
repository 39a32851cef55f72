// Package config loads and validates the order book core configuration from
// YAML files and DEXBOOK_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Limits bounds the storage layer's collections and the order lifespan range.
// Every limit maps to a distinguishable capacity error in the engine.
type Limits struct {
	MaxOrdersPerPriceLevel    int           `mapstructure:"max_orders_per_price_level"`
	MaxOrdersPerUser          int           `mapstructure:"max_orders_per_user"`
	MaxExpiringOrdersPerBlock int           `mapstructure:"max_expiring_orders_per_block"`
	MaxPriceLevels            int           `mapstructure:"max_price_levels"`
	MinLifespan               time.Duration `mapstructure:"min_lifespan"`
	MaxLifespan               time.Duration `mapstructure:"max_lifespan"`
	BlockDuration             time.Duration `mapstructure:"block_duration"`
}

// Config is the full configuration of the dexbook core.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	Limits   Limits `mapstructure:"limits"`
}

// DefaultConfig returns the configuration used when no file or environment
// override is present.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Limits: Limits{
			MaxOrdersPerPriceLevel:    1024,
			MaxOrdersPerUser:          1024,
			MaxExpiringOrdersPerBlock: 1024,
			MaxPriceLevels:            4096,
			MinLifespan:               1 * time.Minute,
			MaxLifespan:               30 * 24 * time.Hour,
			BlockDuration:             6 * time.Second,
		},
	}
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	l := c.Limits
	if l.MaxOrdersPerPriceLevel <= 0 {
		return fmt.Errorf("max_orders_per_price_level must be positive")
	}
	if l.MaxOrdersPerUser <= 0 {
		return fmt.Errorf("max_orders_per_user must be positive")
	}
	if l.MaxExpiringOrdersPerBlock <= 0 {
		return fmt.Errorf("max_expiring_orders_per_block must be positive")
	}
	if l.MaxPriceLevels <= 0 {
		return fmt.Errorf("max_price_levels must be positive")
	}
	if l.BlockDuration <= 0 {
		return fmt.Errorf("block_duration must be positive")
	}
	if l.MinLifespan <= 0 || l.MaxLifespan < l.MinLifespan {
		return fmt.Errorf("lifespan bounds invalid: min=%s max=%s", l.MinLifespan, l.MaxLifespan)
	}
	return nil
}

// Load reads configuration from the first existing path, merges environment
// overrides and validates the result. Missing files are not an error; the
// defaults then apply.
func Load(logger *zap.Logger, configPaths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("DEXBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if len(configPaths) == 0 {
		configPaths = []string{"./config.yaml", "/etc/dexbook/config.yaml"}
	}

	var loaded []string
	for _, path := range configPaths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logger.Debug("config file not found, skipping", zap.String("path", path))
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	if len(loaded) == 0 {
		logger.Warn("no configuration files found, using defaults and environment variables")
	} else {
		logger.Info("configuration loaded", zap.Strings("files", loaded))
	}
	return cfg, nil
}
