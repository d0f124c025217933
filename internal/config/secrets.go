package config

// RedactedConfig copies cfg with every credential masked as "***" so the
// active configuration can be logged at startup. Empty secrets stay empty.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Chain
	out.Chain = cfg.Chain
	redact(&out.Chain.ExplorerKey)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Re-allocate slices so the redacted copy never aliases the original.
	if cfg.Chain.Stables != nil {
		out.Chain.Stables = make([]string, len(cfg.Chain.Stables))
		copy(out.Chain.Stables, cfg.Chain.Stables)
	}
	if cfg.Exchange.Enabled != nil {
		out.Exchange.Enabled = make([]string, len(cfg.Exchange.Enabled))
		copy(out.Exchange.Enabled, cfg.Exchange.Enabled)
	}
	if cfg.Scan.Tokens != nil {
		out.Scan.Tokens = make([]string, len(cfg.Scan.Tokens))
		copy(out.Scan.Tokens, cfg.Scan.Tokens)
	}
	if cfg.Sniper.BaseTokens != nil {
		out.Sniper.BaseTokens = make([]string, len(cfg.Sniper.BaseTokens))
		copy(out.Sniper.BaseTokens, cfg.Sniper.BaseTokens)
	}
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}

	return out
}

const redacted = "***"

// redact masks s in place when non-empty.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
