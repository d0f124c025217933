// Package config defines the sniper engine's TOML configuration tree and its
// mode-aware validation.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dexsniper/sniperd/internal/domain"
)

// Config is the root of the tree. Defaults fill it first; the TOML file and
// then SNIPERD_* environment variables override.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Exchange ExchangeConfig `toml:"exchange"`
	Router   RouterConfig   `toml:"router"`
	Risk     RiskConfig     `toml:"risk"`
	Scan     ScanConfig     `toml:"scan"`
	Sniper   SniperConfig   `toml:"sniper"`
	Watcher  WatcherConfig  `toml:"watcher"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig holds the EVM endpoint and the chain-level token set. Addresses
// are kept as hex strings here; wiring parses them once at startup.
type ChainConfig struct {
	Network       string   `toml:"network"`
	RPCURL        string   `toml:"rpc_url"`
	ExplorerURL   string   `toml:"explorer_url"`
	ExplorerKey   string   `toml:"explorer_key"`
	WrappedNative string   `toml:"wrapped_native"`
	Stables       []string `toml:"stables"`
	CallTimeout   duration `toml:"call_timeout"`
	RPCRate       float64  `toml:"rpc_rate"`
	RPCBurst      int      `toml:"rpc_burst"`
	TokenTTL      duration `toml:"token_ttl"`
	PoolTTL       duration `toml:"pool_ttl"`
	PriceTTL      duration `toml:"price_ttl"`
}

// ExchangeConfig selects which venue adapters are registered.
type ExchangeConfig struct {
	Enabled []string `toml:"enabled"`
}

// RouterConfig tunes route evaluation. Quote carries the parameters for the
// one-shot quote mode and is ignored by every other mode.
type RouterConfig struct {
	MaxSlippage float64     `toml:"max_slippage"`
	Quote       QuoteParams `toml:"quote"`
}

// QuoteParams describes the single quote requested in quote mode.
type QuoteParams struct {
	TokenIn  string  `toml:"token_in"`
	TokenOut string  `toml:"token_out"`
	AmountIn float64 `toml:"amount_in"`
	Strategy string  `toml:"strategy"`
}

// RiskConfig tunes the risk assessor. Assess carries the parameters for the
// one-shot assess mode.
type RiskConfig struct {
	CacheTTL duration     `toml:"cache_ttl"`
	Assess   AssessParams `toml:"assess"`
}

// AssessParams names the token assessed in assess mode.
type AssessParams struct {
	Token string `toml:"token"`
}

// ScanConfig drives the periodic arbitrage sweep. AmountIn is the probe size
// in wrapped-native units used for every evaluated cycle.
type ScanConfig struct {
	Interval duration `toml:"interval"`
	Tokens   []string `toml:"tokens"`
	AmountIn float64  `toml:"amount_in"`
}

// SniperConfig governs the auto-buy pipeline.
type SniperConfig struct {
	Wallet       string   `toml:"wallet"`
	BudgetNative float64  `toml:"budget_native"`
	BaseTokens   []string `toml:"base_tokens"`
	MaxRiskLevel string   `toml:"max_risk_level"`
	Strategy     string   `toml:"strategy"`
	DedupTTL     duration `toml:"dedup_ttl"`
	LockTTL      duration `toml:"lock_ttl"`
}

// WatcherConfig holds the websocket endpoint for pair discovery.
type WatcherConfig struct {
	WSURL        string   `toml:"ws_url"`
	ReconnectMin duration `toml:"reconnect_min"`
	ReconnectMax duration `toml:"reconnect_max"`
}

// RedisConfig holds connection settings for the cache and signal bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds connection settings for the journal store. A non-empty
// DSN wins over the individual fields.
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

// S3Config holds credentials for the archive bucket.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	ArchivePrefix  string `toml:"archive_prefix"`
	RetentionDays  int    `toml:"retention_days"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// NotifyConfig configures outbound alerts. Senders with empty credentials are
// simply not registered.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so TOML files can use strings like "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a configuration with sane defaults for Ethereum mainnet.
// Endpoint URLs and credentials are left empty and must come from the config
// file or environment.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			Network:       "ethereum",
			ExplorerURL:   "https://api.etherscan.io/api",
			WrappedNative: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", // WETH
			Stables: []string{
				"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", // USDC
				"0xdAC17F958D2ee523a2206206994597C13D831ec7", // USDT
				"0x6B175474E89094C44Da98b954EedeAC495271d0F", // DAI
			},
			CallTimeout: duration{10 * time.Second},
			RPCRate:     20,
			RPCBurst:    10,
			TokenTTL:    duration{time.Hour},
			PoolTTL:     duration{30 * time.Second},
			PriceTTL:    duration{30 * time.Second},
		},
		Exchange: ExchangeConfig{
			Enabled: []string{"uniswap_v2", "sushiswap"},
		},
		Router: RouterConfig{
			MaxSlippage: 0.01,
			Quote: QuoteParams{
				AmountIn: 1,
				Strategy: "balanced",
			},
		},
		Risk: RiskConfig{
			CacheTTL: duration{time.Hour},
		},
		Scan: ScanConfig{
			Interval: duration{30 * time.Second},
			AmountIn: 1,
		},
		Sniper: SniperConfig{
			BudgetNative: 0.1,
			MaxRiskLevel: "MEDIUM",
			Strategy:     "low_risk",
			DedupTTL:     duration{10 * time.Minute},
			LockTTL:      duration{time.Minute},
		},
		Watcher: WatcherConfig{
			ReconnectMin: duration{2 * time.Second},
			ReconnectMax: duration{time.Minute},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "sniperd",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "sniperd-archive",
			ForcePathStyle: true,
			ArchivePrefix:  "archive",
			RetentionDays:  30,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Notify: NotifyConfig{
			Events: []string{
				"pair_discovered",
				"high_risk",
				"arb_opportunity",
				"snipe_planned",
				"archive_done",
			},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"quote":   true,
	"assess":  true,
	"scan":    true,
	"watch":   true,
	"snipe":   true,
	"archive": true,
	"full":    true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validRiskLevels = map[string]bool{
	"LOW":      true,
	"MEDIUM":   true,
	"HIGH":     true,
	"CRITICAL": true,
}

// NeedsChain reports whether the configured mode talks to the RPC node.
func (c *Config) NeedsChain() bool {
	return strings.ToLower(c.Mode) != "archive"
}

// NeedsPostgres reports whether the configured mode journals to Postgres.
// One-shot quote and assess runs print to stdout and keep no history.
func (c *Config) NeedsPostgres() bool {
	switch strings.ToLower(c.Mode) {
	case "scan", "watch", "snipe", "archive", "full":
		return true
	}
	return false
}

// NeedsS3 reports whether the configured mode touches the archive bucket.
func (c *Config) NeedsS3() bool {
	return strings.ToLower(c.Mode) == "archive"
}

// NeedsWatcher reports whether the configured mode consumes the pair feed.
func (c *Config) NeedsWatcher() bool {
	switch strings.ToLower(c.Mode) {
	case "watch", "snipe", "full":
		return true
	}
	return false
}

// SlogLevel maps the configured log_level onto a slog level. Unknown values
// fall back to info; Validate rejects them separately.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks the configuration for the selected mode and reports every
// problem found, not just the first.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("invalid mode %q (valid: quote, assess, scan, watch, snipe, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("invalid log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.NeedsChain() {
		if c.Chain.Network == "" {
			errs = append(errs, "chain: network must not be empty")
		}
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url is required for mode "+mode)
		}
		if c.Chain.WrappedNative == "" {
			errs = append(errs, "chain: wrapped_native must be set")
		}
		if len(c.Exchange.Enabled) == 0 {
			errs = append(errs, "exchange: at least one venue must be enabled")
		}
	}
	errs = appendAddrErr(errs, "chain: wrapped_native", c.Chain.WrappedNative)
	for _, addr := range c.Chain.Stables {
		errs = appendAddrErr(errs, "chain: stables", addr)
	}
	if c.Chain.RPCRate < 0 {
		errs = append(errs, "chain: rpc_rate must not be negative")
	}

	if c.Router.MaxSlippage <= 0 || c.Router.MaxSlippage > 0.5 {
		errs = append(errs, fmt.Sprintf("router: max_slippage must be in (0, 0.5], got %g", c.Router.MaxSlippage))
	}
	if mode == "quote" {
		if c.Router.Quote.TokenIn == "" || c.Router.Quote.TokenOut == "" {
			errs = append(errs, "router.quote: token_in and token_out are required for mode quote")
		}
		if c.Router.Quote.AmountIn <= 0 {
			errs = append(errs, "router.quote: amount_in must be positive")
		}
	}
	errs = appendAddrErr(errs, "router.quote: token_in", c.Router.Quote.TokenIn)
	errs = appendAddrErr(errs, "router.quote: token_out", c.Router.Quote.TokenOut)
	if _, err := domain.ParseRouteStrategy(c.Router.Quote.Strategy); err != nil {
		errs = append(errs, fmt.Sprintf("router.quote: invalid strategy %q", c.Router.Quote.Strategy))
	}

	if mode == "assess" && c.Risk.Assess.Token == "" {
		errs = append(errs, "risk.assess: token is required for mode assess")
	}
	errs = appendAddrErr(errs, "risk.assess: token", c.Risk.Assess.Token)

	if mode == "scan" || mode == "full" {
		if c.Scan.Interval.Duration <= 0 {
			errs = append(errs, "scan: interval must be positive")
		}
		if c.Scan.AmountIn <= 0 {
			errs = append(errs, "scan: amount_in must be positive")
		}
	}
	if mode == "scan" && len(c.Scan.Tokens) == 0 {
		errs = append(errs, "scan: tokens must list at least one token for mode scan")
	}
	for _, addr := range c.Scan.Tokens {
		errs = appendAddrErr(errs, "scan: tokens", addr)
	}

	if mode == "snipe" || mode == "full" {
		if c.Sniper.Wallet == "" {
			errs = append(errs, "sniper: wallet is required for mode "+mode)
		}
		if c.Sniper.BudgetNative <= 0 {
			errs = append(errs, "sniper: budget_native must be positive")
		}
	}
	errs = appendAddrErr(errs, "sniper: wallet", c.Sniper.Wallet)
	for _, addr := range c.Sniper.BaseTokens {
		errs = appendAddrErr(errs, "sniper: base_tokens", addr)
	}
	if c.Sniper.MaxRiskLevel != "" && !validRiskLevels[strings.ToUpper(c.Sniper.MaxRiskLevel)] {
		errs = append(errs, fmt.Sprintf("sniper: invalid max_risk_level %q (valid: LOW, MEDIUM, HIGH, CRITICAL)", c.Sniper.MaxRiskLevel))
	}
	if _, err := domain.ParseRouteStrategy(c.Sniper.Strategy); err != nil {
		errs = append(errs, fmt.Sprintf("sniper: invalid strategy %q", c.Sniper.Strategy))
	}

	if c.NeedsWatcher() && c.Watcher.WSURL == "" {
		errs = append(errs, "watcher: ws_url is required for mode "+mode)
	}

	if c.NeedsChain() && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be at least 1")
	}

	if c.NeedsPostgres() && c.Postgres.DSN == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty when dsn is unset")
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty when dsn is unset")
		}
		if c.Postgres.User == "" {
			errs = append(errs, "postgres: user must not be empty when dsn is unset")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be at least 1")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.NeedsS3() {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket is required for mode archive")
		}
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			errs = append(errs, "s3: access_key and secret_key are required for mode archive")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be at least 1")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics: addr must not be empty when metrics are enabled")
	}
	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id must be set alongside telegram_token")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// appendAddrErr records a format error for a non-empty address field.
// Presence requirements are checked per mode; format is checked everywhere.
func appendAddrErr(errs []string, field, addr string) []string {
	if addr != "" && !common.IsHexAddress(addr) {
		errs = append(errs, fmt.Sprintf("%s: %q is not a hex address", field, addr))
	}
	return errs
}
