// Package config loads application configuration from a YAML file and
// environment variables using viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	PostgreSQL PostgreSQLConfig
	Log        LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
}

// PostgreSQLConfig holds database configuration.
type PostgreSQLConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	PoolMaxConns int
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string
}

// DSN builds a libpq-compatible connection string.
func (c PostgreSQLConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from the given file (default config.yaml in the
// working directory), with WARIKAN_* environment variables taking precedence.
// A missing config file is fine; defaults and env cover local development.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("Server.Port", "8080")
	v.SetDefault("PostgreSQL.Host", "localhost")
	v.SetDefault("PostgreSQL.Port", 5432)
	v.SetDefault("PostgreSQL.User", "postgres")
	v.SetDefault("PostgreSQL.Password", "postgres")
	v.SetDefault("PostgreSQL.DBName", "warikan")
	v.SetDefault("PostgreSQL.SSLMode", "disable")
	v.SetDefault("PostgreSQL.PoolMaxConns", 20)
	v.SetDefault("Log.Level", "info")

	v.SetEnvPrefix("WARIKAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.PostgreSQL.Host == "" || cfg.PostgreSQL.DBName == "" {
		return nil, fmt.Errorf("database configuration is incomplete")
	}

	return &cfg, nil
}
