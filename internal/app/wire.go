package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	s3blob "github.com/dexsniper/sniperd/internal/blob/s3"
	"github.com/dexsniper/sniperd/internal/cache/redis"
	"github.com/dexsniper/sniperd/internal/chain"
	"github.com/dexsniper/sniperd/internal/config"
	"github.com/dexsniper/sniperd/internal/domain"
	"github.com/dexsniper/sniperd/internal/exchange"
	"github.com/dexsniper/sniperd/internal/metrics"
	"github.com/dexsniper/sniperd/internal/notify"
	"github.com/dexsniper/sniperd/internal/store/postgres"
	"github.com/dexsniper/sniperd/internal/watch"
)

// Dependencies is what Wire hands the modes. Fields outside a mode's needs
// stay nil; modes check before use.
type Dependencies struct {
	// Journals
	Quotes      domain.QuoteJournal
	Assessments domain.AssessmentJournal
	Snipes      domain.SnipeJournal

	// Caches and coordination
	Cache    domain.QuoteCache
	Locks    domain.LockManager
	Bus      domain.SignalBus
	PairSink watch.PairSink

	// Chain access
	Chain    *chain.Client
	Registry *exchange.Registry

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Observability
	Recorder *metrics.Recorder
	Gatherer *prometheus.Registry

	// Notifications
	Notifier *notify.Notifier
}

// Wire builds the concrete implementations cfg's mode calls for, gated on the
// config's Needs* methods. On success the returned cleanup releases them in
// reverse order; on error Wire has already released whatever it built.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Metrics (always; the recorder is nil-safe but modes expect one) ---
	registry := prometheus.NewRegistry()
	deps.Recorder = metrics.New(registry)
	deps.Gatherer = registry

	// --- PostgreSQL (only for modes that journal) ---
	if cfg.NeedsPostgres() {
		pgClient, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Quotes = postgres.NewQuoteStore(pool)
		deps.Assessments = postgres.NewRiskStore(pool)
		deps.Snipes = postgres.NewSnipeStore(pool)
	}

	// --- Redis + chain client (every mode that touches the chain) ---
	if cfg.NeedsChain() {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Cache = redis.NewQuoteCache(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
		bus := redis.NewSignalBus(redisClient)
		deps.Bus = bus
		deps.PairSink = bus

		enabled := make([]domain.ExchangeID, 0, len(cfg.Exchange.Enabled))
		for _, name := range cfg.Exchange.Enabled {
			enabled = append(enabled, domain.ExchangeID(name))
		}
		venues, err := exchange.NewRegistry(cfg.Chain.Network, enabled)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: exchange registry: %w", err)
		}
		deps.Registry = venues

		stables := make([]common.Address, 0, len(cfg.Chain.Stables))
		for _, s := range cfg.Chain.Stables {
			stables = append(stables, common.HexToAddress(s))
		}
		chainClient, err := chain.New(ctx, chain.Config{
			Network:       cfg.Chain.Network,
			RPCURL:        cfg.Chain.RPCURL,
			ExplorerURL:   cfg.Chain.ExplorerURL,
			ExplorerKey:   cfg.Chain.ExplorerKey,
			WrappedNative: common.HexToAddress(cfg.Chain.WrappedNative),
			Stables:       stables,
			CallTimeout:   cfg.Chain.CallTimeout.Duration,
			RPCRate:       cfg.Chain.RPCRate,
			RPCBurst:      cfg.Chain.RPCBurst,
			TokenTTL:      cfg.Chain.TokenTTL.Duration,
			PoolTTL:       cfg.Chain.PoolTTL.Duration,
			PriceTTL:      cfg.Chain.PriceTTL.Duration,
		}, venues, deps.Cache, deps.Recorder, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: chain client: %w", err)
		}
		closers = append(closers, chainClient.Close)
		deps.Chain = chainClient
	}

	// --- S3 blob storage (only for modes that archive) ---
	if cfg.NeedsS3() {
		s3Client, err := s3blob.New(ctx, s3blob.Config{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		if deps.Quotes != nil && deps.Assessments != nil && deps.Snipes != nil {
			deps.Archiver = s3blob.NewArchiver(
				cfg.S3.ArchivePrefix,
				deps.BlobWriter,
				deps.BlobReader,
				deps.Quotes,
				deps.Assessments,
				deps.Snipes,
				logger,
			)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
