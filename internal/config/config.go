// Package config defines the top-level configuration for the trading
// assistant and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ASSISTANT_* environment variables.
type Config struct {
	Engine   EngineConfig      `toml:"engine"`
	Paper    domain.RiskConfig `toml:"paper"`
	Real     domain.RiskConfig `toml:"real"`
	Signal   SignalConfig      `toml:"signal"`
	Feed     FeedConfig        `toml:"feed"`
	Venue    VenueConfig       `toml:"venue"`
	Postgres PostgresConfig    `toml:"postgres"`
	Redis    RedisConfig       `toml:"redis"`
	S3       S3Config          `toml:"s3"`
	Server   ServerConfig      `toml:"server"`
	Notify   NotifyConfig      `toml:"notify"`
	Mode     string            `toml:"mode"`
	LogLevel string            `toml:"log_level"`
}

// EngineConfig holds tick-loop parameters shared by both variants.
type EngineConfig struct {
	Coin          string   `toml:"coin"`
	WindowMinutes int      `toml:"window_minutes"`
	TickInterval  duration `toml:"tick_interval"`
}

// SignalConfig holds parameters for the external prediction source and the
// rate-limited cache wrapped around it.
type SignalConfig struct {
	Provider    string   `toml:"provider"`
	Endpoint    string   `toml:"endpoint"`
	ApiKey      string   `toml:"api_key"`
	Timeout     duration `toml:"timeout"`
	MaxRequests int      `toml:"max_requests"`
	Window      duration `toml:"window"`
	CacheTTL    duration `toml:"cache_ttl"`
}

// FeedConfig holds the Polymarket market-data endpoints and the spot-price
// source used for the settlement delta.
type FeedConfig struct {
	ClobHost  string `toml:"clob_host"`
	GammaHost string `toml:"gamma_host"`
	WsHost    string `toml:"ws_host"`
	SpotHost  string `toml:"spot_host"`
}

// VenueConfig holds order-venue API credentials for the real variant.
type VenueConfig struct {
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for trade archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// defaultRisk returns the risk record both variants start from.
func defaultRisk() domain.RiskConfig {
	return domain.RiskConfig{
		Version:              1,
		InitialCapital:       100,
		RiskFraction:         0.03,
		MinRiskFraction:      0.01,
		MaxRiskFraction:      0.05,
		FixedStake:           5,
		MartingaleEnabled:    false,
		MartingaleMultiplier: 2,
		MartingaleMaxLevel:   3,
		MartingaleStakeCap:   40,
		ConfidenceThreshold:  72,
		ConfidenceFloor:      60,
		MinTimeRemaining:     2,
		MaxTimeRemaining:     13,
		DrawdownHalt:         0.20,
		DrawdownDerisk:       0.05,
		DailyLossCap:         25,
		AdaptiveWindow:       10,
		JournalLimit:         50,
	}
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			Coin:          "BTC",
			WindowMinutes: 15,
			TickInterval:  duration{15 * time.Second},
		},
		Paper: defaultRisk(),
		Real:  defaultRisk(),
		Signal: SignalConfig{
			Provider:    "composite",
			Timeout:     duration{20 * time.Second},
			MaxRequests: 10,
			Window:      duration{time.Minute},
			CacheTTL:    duration{30 * time.Second},
		},
		Feed: FeedConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			SpotHost:  "https://api.binance.com",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "assistant-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"position_opened", "trade_settled", "halt", "error"},
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"paper": true,
	"live":  true,
	"serve": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: paper, live, serve)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.Engine.Coin == "" {
		errs = append(errs, "engine: coin must not be empty")
	}
	if c.Engine.WindowMinutes <= 0 {
		errs = append(errs, "engine: window_minutes must be > 0")
	}
	if c.Engine.TickInterval.Duration <= 0 {
		errs = append(errs, "engine: tick_interval must be > 0")
	}

	errs = append(errs, validateRisk("paper", c.Paper)...)
	errs = append(errs, validateRisk("real", c.Real)...)

	// Signal
	if c.Signal.MaxRequests < 1 {
		errs = append(errs, "signal: max_requests must be >= 1")
	}
	if c.Signal.Window.Duration <= 0 {
		errs = append(errs, "signal: window must be > 0")
	}

	// Venue credentials are only required when orders are actually placed.
	if c.Mode == "live" {
		if c.Venue.ApiKey == "" || c.Venue.ApiSecret == "" || c.Venue.ApiPassphrase == "" {
			errs = append(errs, "venue: api_key, api_secret, and api_passphrase are required for live mode")
		}
	}

	// Feed endpoints
	if c.Feed.ClobHost == "" {
		errs = append(errs, "feed: clob_host must not be empty")
	}
	if c.Feed.GammaHost == "" {
		errs = append(errs, "feed: gamma_host must not be empty")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// validateRisk checks one variant's risk record.
func validateRisk(section string, r domain.RiskConfig) []string {
	var errs []string
	if r.InitialCapital <= 0 {
		errs = append(errs, section+": initial_capital must be > 0")
	}
	if r.RiskFraction <= 0 || r.RiskFraction > 1 {
		errs = append(errs, section+": risk_fraction must be in (0, 1]")
	}
	if r.MinRiskFraction <= 0 || r.MinRiskFraction > r.MaxRiskFraction {
		errs = append(errs, section+": min_risk_fraction must be > 0 and <= max_risk_fraction")
	}
	if r.FixedStake <= 0 {
		errs = append(errs, section+": fixed_stake must be > 0")
	}
	if r.MartingaleMultiplier < 1 {
		errs = append(errs, section+": martingale_multiplier must be >= 1")
	}
	if r.MartingaleMaxLevel < 0 {
		errs = append(errs, section+": martingale_max_level must be >= 0")
	}
	if r.ConfidenceFloor < 0 || r.ConfidenceFloor > 100 {
		errs = append(errs, section+": confidence_floor must be 0-100")
	}
	if r.ConfidenceThreshold < r.ConfidenceFloor || r.ConfidenceThreshold > 100 {
		errs = append(errs, section+": confidence_threshold must be between confidence_floor and 100")
	}
	if r.MinTimeRemaining < 0 || r.MaxTimeRemaining <= r.MinTimeRemaining {
		errs = append(errs, section+": time band requires 0 <= min_time_remaining < max_time_remaining")
	}
	if r.DrawdownHalt <= 0 || r.DrawdownHalt > 1 {
		errs = append(errs, section+": drawdown_halt must be in (0, 1]")
	}
	if r.DailyLossCap <= 0 {
		errs = append(errs, section+": daily_loss_cap must be > 0")
	}
	if r.AdaptiveWindow < 1 {
		errs = append(errs, section+": adaptive_window must be >= 1")
	}
	if r.JournalLimit < 1 {
		errs = append(errs, section+": journal_limit must be >= 1")
	}
	return errs
}
