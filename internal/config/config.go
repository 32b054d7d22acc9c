package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Backend   Backend   `mapstructure:"backend"`
	Dashboard Dashboard `mapstructure:"dashboard"`
	Reconcile Reconcile `mapstructure:"reconcile"`
	Trading   Trading   `mapstructure:"trading"`
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
	Logger    Logger    `mapstructure:"logger"`
}

// Backend holds the configuration for the paper-trading backend API client.
type Backend struct {
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Dashboard holds the configuration for the polling view-model.
type Dashboard struct {
	// Period is a unit-suffixed display period like "5m", "1h", "1d" or "1w".
	// The poll interval is derived from it.
	Period string `mapstructure:"period"`
	// IdentityFile stores the locally generated opaque user identifier.
	IdentityFile string `mapstructure:"identity_file"`
}

// Reconcile holds the configuration for supplementary trade-history sources
// and the synthesis fallback.
type Reconcile struct {
	// SnapshotPaths are candidate locations for supplementary trade-history
	// snapshots, tried in order. Entries starting with http:// or https://
	// are fetched over HTTP, everything else is read from the filesystem.
	SnapshotPaths []string `mapstructure:"snapshot_paths"`
	// SynthesizeCount is the number of trades fabricated for display when
	// every source is empty.
	SynthesizeCount int `mapstructure:"synthesize_count"`
}

// Trading holds the configuration for the paper-trading engine.
type Trading struct {
	Symbols        []string `mapstructure:"symbols"`
	BaseCurrency   string   `mapstructure:"base_currency"`
	InitialBalance float64  `mapstructure:"initial_balance"`
	RiskPercentage float64  `mapstructure:"risk_percentage"`
	TickInterval   int      `mapstructure:"tick_interval"`
	// SignalsPath is where the engine looks for suggested trade signals
	// when auto-execution is enabled.
	SignalsPath string `mapstructure:"signals_path"`
}

// Server holds the configuration for the backend HTTP server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("backend.base_url", "http://localhost:5001/api/paper-trading")
	viper.SetDefault("backend.rate_limit", 10) // requests per second
	viper.SetDefault("backend.rate_limit_burst", 5)
	viper.SetDefault("dashboard.period", "5m")
	viper.SetDefault("dashboard.identity_file", "./configs/user_id")
	viper.SetDefault("reconcile.synthesize_count", 20)
	viper.SetDefault("trading.symbols", []string{"BTCUSDT", "ETHUSDT"})
	viper.SetDefault("trading.base_currency", "USDT")
	viper.SetDefault("trading.initial_balance", 10000)
	viper.SetDefault("trading.risk_percentage", 2)
	viper.SetDefault("trading.tick_interval", 300)
	viper.SetDefault("server.port", 5001)
	viper.SetDefault("database.dsn", "paper_trading.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")

	// A missing config file is fine, defaults and env vars still apply.
	if err = viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
