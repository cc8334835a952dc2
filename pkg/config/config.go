// Package config loads configuration for the hatchmark binaries from YAML
// files and environment variables, and builds the shared zap logger.
package config

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains projection database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// LedgerConfig contains registry ledger settings
type LedgerConfig struct {
	// MinStake is the minimum dispute stake, decimal string.
	MinStake string `mapstructure:"min_stake"`
	// RequestTimeout bounds every ledger call.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// FeedURL is the base URL of the api-server's ledger event feed,
	// e.g. "http://api-server:8080/ledger". Used by the indexer process.
	FeedURL string `mapstructure:"feed_url"`
}

// MatcherConfig fixes the two similarity thresholds. One source of truth:
// every duplicate decision in the system reads these values.
type MatcherConfig struct {
	RegisterThreshold int `mapstructure:"register_threshold" default:"90"`
	VerifyThreshold   int `mapstructure:"verify_threshold" default:"70"`
}

// IndexerConfig contains event indexer settings
type IndexerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PageSize     int           `mapstructure:"page_size"`
}

// AuthConfig contains bearer-token settings for actor identity
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// APIServerConfig is the api-server process configuration
type APIServerConfig struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Matcher  MatcherConfig  `mapstructure:"matcher"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// IndexerProcessConfig is the indexer process configuration
type IndexerProcessConfig struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Indexer  IndexerConfig  `mapstructure:"indexer"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// LoadAPIServer loads API server configuration from file
func LoadAPIServer(configPath string) (*APIServerConfig, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setCommonDefaults(v, 8080)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config APIServerConfig
	if err := defaults.Set(&config); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateCommon(config.Database, config.Matcher); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("config validation failed: auth.jwt_secret is required")
	}
	return &config, nil
}

// LoadIndexer loads indexer configuration from file
func LoadIndexer(configPath string) (*IndexerProcessConfig, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setCommonDefaults(v, 8090)
	v.SetDefault("indexer.poll_interval", "10s")
	v.SetDefault("indexer.page_size", 100)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config IndexerProcessConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.Host == "" {
		return nil, fmt.Errorf("config validation failed: database.host is required")
	}
	if config.Ledger.FeedURL == "" {
		return nil, fmt.Errorf("config validation failed: ledger.feed_url is required")
	}
	return &config, nil
}

func setCommonDefaults(v *viper.Viper, port int) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", port)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.database", "hatchmark")

	// Ledger defaults
	v.SetDefault("ledger.min_stake", "10")
	v.SetDefault("ledger.request_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

func validateCommon(db DatabaseConfig, m MatcherConfig) error {
	if db.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if m.RegisterThreshold < m.VerifyThreshold {
		return fmt.Errorf("matcher.register_threshold must not be below matcher.verify_threshold")
	}
	if m.RegisterThreshold > 100 || m.VerifyThreshold < 0 {
		return fmt.Errorf("matcher thresholds must be within 0-100")
	}
	return nil
}
