// Package config loads service configuration from the environment with an
// optional .env file, using Viper. Environment variables always win over
// file values.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the billing server.
type Config struct {
	ServerPort    string        `mapstructure:"SERVER_PORT"`
	DBPath        string        `mapstructure:"DB_PATH"`
	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	TokenDuration time.Duration `mapstructure:"TOKEN_DURATION"`
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
}

// Load reads configuration from environment variables, falling back to an
// optional .env file in the given directory.
func Load(path string) (Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_PATH", "./data/bills.db")
	viper.SetDefault("TOKEN_DURATION", "24h")
	viper.SetDefault("LOG_LEVEL", "info")

	for _, key := range []string{"SERVER_PORT", "DB_PATH", "JWT_SECRET", "TOKEN_DURATION", "LOG_LEVEL"} {
		_ = viper.BindEnv(key)
	}

	// The .env file is optional; only its absence is ignored.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}
