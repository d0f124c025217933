package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load decodes the TOML file at path over the built-in defaults, then applies
// SNIPERD_* environment overrides. Validation is a separate step; callers run
// Config.Validate once the mode is settled.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// A local .env is optional; missing is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields from their SNIPERD_* variables
// when set. Secrets reach the process at deploy time this way instead of
// living in the TOML.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.Network, "SNIPERD_CHAIN_NETWORK")
	setStr(&cfg.Chain.RPCURL, "SNIPERD_CHAIN_RPC_URL")
	setStr(&cfg.Chain.ExplorerURL, "SNIPERD_CHAIN_EXPLORER_URL")
	setStr(&cfg.Chain.ExplorerKey, "SNIPERD_CHAIN_EXPLORER_KEY")
	setStr(&cfg.Chain.WrappedNative, "SNIPERD_CHAIN_WRAPPED_NATIVE")
	setStringSlice(&cfg.Chain.Stables, "SNIPERD_CHAIN_STABLES")
	setDuration(&cfg.Chain.CallTimeout, "SNIPERD_CHAIN_CALL_TIMEOUT")
	setFloat64(&cfg.Chain.RPCRate, "SNIPERD_CHAIN_RPC_RATE")
	setInt(&cfg.Chain.RPCBurst, "SNIPERD_CHAIN_RPC_BURST")
	setDuration(&cfg.Chain.TokenTTL, "SNIPERD_CHAIN_TOKEN_TTL")
	setDuration(&cfg.Chain.PoolTTL, "SNIPERD_CHAIN_POOL_TTL")
	setDuration(&cfg.Chain.PriceTTL, "SNIPERD_CHAIN_PRICE_TTL")

	// ── Exchange ──
	setStringSlice(&cfg.Exchange.Enabled, "SNIPERD_EXCHANGE_ENABLED")

	// ── Router ──
	setFloat64(&cfg.Router.MaxSlippage, "SNIPERD_ROUTER_MAX_SLIPPAGE")
	setStr(&cfg.Router.Quote.TokenIn, "SNIPERD_ROUTER_QUOTE_TOKEN_IN")
	setStr(&cfg.Router.Quote.TokenOut, "SNIPERD_ROUTER_QUOTE_TOKEN_OUT")
	setFloat64(&cfg.Router.Quote.AmountIn, "SNIPERD_ROUTER_QUOTE_AMOUNT_IN")
	setStr(&cfg.Router.Quote.Strategy, "SNIPERD_ROUTER_QUOTE_STRATEGY")

	// ── Risk ──
	setDuration(&cfg.Risk.CacheTTL, "SNIPERD_RISK_CACHE_TTL")
	setStr(&cfg.Risk.Assess.Token, "SNIPERD_RISK_ASSESS_TOKEN")

	// ── Scan ──
	setDuration(&cfg.Scan.Interval, "SNIPERD_SCAN_INTERVAL")
	setStringSlice(&cfg.Scan.Tokens, "SNIPERD_SCAN_TOKENS")
	setFloat64(&cfg.Scan.AmountIn, "SNIPERD_SCAN_AMOUNT_IN")

	// ── Sniper ──
	setStr(&cfg.Sniper.Wallet, "SNIPERD_SNIPER_WALLET")
	setFloat64(&cfg.Sniper.BudgetNative, "SNIPERD_SNIPER_BUDGET_NATIVE")
	setStringSlice(&cfg.Sniper.BaseTokens, "SNIPERD_SNIPER_BASE_TOKENS")
	setStr(&cfg.Sniper.MaxRiskLevel, "SNIPERD_SNIPER_MAX_RISK_LEVEL")
	setStr(&cfg.Sniper.Strategy, "SNIPERD_SNIPER_STRATEGY")
	setDuration(&cfg.Sniper.DedupTTL, "SNIPERD_SNIPER_DEDUP_TTL")
	setDuration(&cfg.Sniper.LockTTL, "SNIPERD_SNIPER_LOCK_TTL")

	// ── Watcher ──
	setStr(&cfg.Watcher.WSURL, "SNIPERD_WATCHER_WS_URL")
	setDuration(&cfg.Watcher.ReconnectMin, "SNIPERD_WATCHER_RECONNECT_MIN")
	setDuration(&cfg.Watcher.ReconnectMax, "SNIPERD_WATCHER_RECONNECT_MAX")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SNIPERD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SNIPERD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SNIPERD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SNIPERD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SNIPERD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SNIPERD_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SNIPERD_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SNIPERD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SNIPERD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SNIPERD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SNIPERD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SNIPERD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SNIPERD_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SNIPERD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SNIPERD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SNIPERD_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SNIPERD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SNIPERD_S3_REGION")
	setStr(&cfg.S3.Bucket, "SNIPERD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SNIPERD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SNIPERD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SNIPERD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SNIPERD_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.ArchivePrefix, "SNIPERD_S3_ARCHIVE_PREFIX")
	setInt(&cfg.S3.RetentionDays, "SNIPERD_S3_RETENTION_DAYS")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "SNIPERD_METRICS_ENABLED")
	setStr(&cfg.Metrics.Addr, "SNIPERD_METRICS_ADDR")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SNIPERD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SNIPERD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SNIPERD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SNIPERD_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SNIPERD_MODE")
	setStr(&cfg.LogLevel, "SNIPERD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env helpers. A set variable that fails to parse leaves the default in
// place rather than aborting startup.
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
