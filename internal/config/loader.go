package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ASSISTANT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ASSISTANT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStr(&cfg.Engine.Coin, "ASSISTANT_ENGINE_COIN")
	setInt(&cfg.Engine.WindowMinutes, "ASSISTANT_ENGINE_WINDOW_MINUTES")
	setDuration(&cfg.Engine.TickInterval, "ASSISTANT_ENGINE_TICK_INTERVAL")

	// ── Risk (per variant) ──
	applyRiskOverrides(&cfg.Paper, "ASSISTANT_PAPER")
	applyRiskOverrides(&cfg.Real, "ASSISTANT_REAL")

	// ── Signal ──
	setStr(&cfg.Signal.Provider, "ASSISTANT_SIGNAL_PROVIDER")
	setStr(&cfg.Signal.Endpoint, "ASSISTANT_SIGNAL_ENDPOINT")
	setStr(&cfg.Signal.ApiKey, "ASSISTANT_SIGNAL_API_KEY")
	setDuration(&cfg.Signal.Timeout, "ASSISTANT_SIGNAL_TIMEOUT")
	setInt(&cfg.Signal.MaxRequests, "ASSISTANT_SIGNAL_MAX_REQUESTS")
	setDuration(&cfg.Signal.Window, "ASSISTANT_SIGNAL_WINDOW")
	setDuration(&cfg.Signal.CacheTTL, "ASSISTANT_SIGNAL_CACHE_TTL")

	// ── Feed ──
	setStr(&cfg.Feed.ClobHost, "ASSISTANT_FEED_CLOB_HOST")
	setStr(&cfg.Feed.GammaHost, "ASSISTANT_FEED_GAMMA_HOST")
	setStr(&cfg.Feed.WsHost, "ASSISTANT_FEED_WS_HOST")
	setStr(&cfg.Feed.SpotHost, "ASSISTANT_FEED_SPOT_HOST")

	// ── Venue ──
	setStr(&cfg.Venue.ApiKey, "ASSISTANT_VENUE_API_KEY")
	setStr(&cfg.Venue.ApiSecret, "ASSISTANT_VENUE_API_SECRET")
	setStr(&cfg.Venue.ApiPassphrase, "ASSISTANT_VENUE_API_PASSPHRASE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ASSISTANT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ASSISTANT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ASSISTANT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ASSISTANT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ASSISTANT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ASSISTANT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ASSISTANT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ASSISTANT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ASSISTANT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ASSISTANT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ASSISTANT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ASSISTANT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ASSISTANT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ASSISTANT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ASSISTANT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ASSISTANT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ASSISTANT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ASSISTANT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ASSISTANT_S3_REGION")
	setStr(&cfg.S3.Bucket, "ASSISTANT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ASSISTANT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ASSISTANT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ASSISTANT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ASSISTANT_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ASSISTANT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ASSISTANT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ASSISTANT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ASSISTANT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ASSISTANT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ASSISTANT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ASSISTANT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ASSISTANT_MODE")
	setStr(&cfg.LogLevel, "ASSISTANT_LOG_LEVEL")
}

// applyRiskOverrides maps the per-variant risk fields under a shared prefix,
// e.g. ASSISTANT_PAPER_RISK_FRACTION or ASSISTANT_REAL_DAILY_LOSS_CAP.
func applyRiskOverrides(r *domain.RiskConfig, prefix string) {
	setFloat64(&r.InitialCapital, prefix+"_INITIAL_CAPITAL")
	setFloat64(&r.RiskFraction, prefix+"_RISK_FRACTION")
	setFloat64(&r.MinRiskFraction, prefix+"_MIN_RISK_FRACTION")
	setFloat64(&r.MaxRiskFraction, prefix+"_MAX_RISK_FRACTION")
	setFloat64(&r.FixedStake, prefix+"_FIXED_STAKE")
	setBool(&r.MartingaleEnabled, prefix+"_MARTINGALE_ENABLED")
	setFloat64(&r.MartingaleMultiplier, prefix+"_MARTINGALE_MULTIPLIER")
	setInt(&r.MartingaleMaxLevel, prefix+"_MARTINGALE_MAX_LEVEL")
	setFloat64(&r.MartingaleStakeCap, prefix+"_MARTINGALE_STAKE_CAP")
	setFloat64(&r.ConfidenceThreshold, prefix+"_CONFIDENCE_THRESHOLD")
	setFloat64(&r.ConfidenceFloor, prefix+"_CONFIDENCE_FLOOR")
	setFloat64(&r.MinTimeRemaining, prefix+"_MIN_TIME_REMAINING")
	setFloat64(&r.MaxTimeRemaining, prefix+"_MAX_TIME_REMAINING")
	setFloat64(&r.DrawdownHalt, prefix+"_DRAWDOWN_HALT")
	setFloat64(&r.DrawdownDerisk, prefix+"_DRAWDOWN_DERISK")
	setFloat64(&r.DailyLossCap, prefix+"_DAILY_LOSS_CAP")
	setInt(&r.AdaptiveWindow, prefix+"_ADAPTIVE_WINDOW")
	setInt(&r.JournalLimit, prefix+"_JOURNAL_LIMIT")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
