package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/autotrader-saida/internal/blob/s3"
	"github.com/alanyoungcy/autotrader-saida/internal/cache/redis"
	"github.com/alanyoungcy/autotrader-saida/internal/config"
	"github.com/alanyoungcy/autotrader-saida/internal/domain"
	"github.com/alanyoungcy/autotrader-saida/internal/notify"
	"github.com/alanyoungcy/autotrader-saida/internal/server/handler"
	"github.com/alanyoungcy/autotrader-saida/internal/service"
	"github.com/alanyoungcy/autotrader-saida/internal/store/jsonfile"
	"github.com/alanyoungcy/autotrader-saida/internal/store/postgres"
	"github.com/alanyoungcy/autotrader-saida/internal/target"
)

// Dependencies bundles everything the modes need. Optional backends are nil
// when disabled.
type Dependencies struct {
	Clock     domain.Clock
	Positions *service.PositionService
	Notifier  *notify.Notifier

	// Optional backends
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	AuditReader handler.AuditReader
	Archiver    domain.Archiver
	BlobLister  domain.BlobLister

	// Health checks for the backends that are wired.
	Checks map[string]handler.Checker
}

// needsS3 reports whether object storage must be wired.
func needsS3(cfg *config.Config) bool {
	return cfg.S3.Enabled || cfg.Mode == "archive"
}

// Wire constructs all dependencies from cfg and returns them with a cleanup
// function that releases connections in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	clock, err := domain.NewClock(cfg.Data.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: timezone %q: %w", cfg.Data.Timezone, err)
	}
	deps := &Dependencies{Clock: clock, Checks: map[string]handler.Checker{}}

	// --- PostgreSQL audit log ---
	var audit domain.AuditStore
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
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

		store := postgres.NewAuditStore(pgClient.Pool())
		audit = store
		deps.AuditReader = store
		deps.Checks["postgres"] = pgClient.Ping
	}

	// --- Redis: book lock, event bus, rate limiter ---
	var locker domain.LockManager
	if cfg.Redis.Enabled {
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

		locker = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Checks["redis"] = redisClient.Ping
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
	var notifier service.Notifier
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
		notifier = deps.Notifier
	}

	// --- Position book and lifecycle ---
	book := jsonfile.NewBook(jsonfile.BookConfig{
		Path:               cfg.Data.BookPath(),
		LegacyRealizedPath: cfg.Data.LegacyRealizedPath(),
		LockTTL:            cfg.Redis.LockTTL.Duration,
	}, clock, locker, logger)
	monitorFile := jsonfile.NewMonitorFile(cfg.Data.MonitorPath(), logger)

	sources := make([]target.Source, 0, len(cfg.Signals.Sources))
	for _, s := range cfg.Signals.Sources {
		sources = append(sources, target.Source{Name: s.Name, Path: s.Path, Format: s.Format})
	}
	resolver := target.NewResolver(sources, logger)

	events := service.NewEventSink(service.EventSinkConfig{
		Channel: cfg.Redis.EventsChannel,
		Stream:  cfg.Redis.EventsStream,
	}, deps.SignalBus, audit, notifier, logger)
	closers = append(closers, events.Flush)

	deps.Positions = service.NewPositionService(book, monitorFile, resolver, events, clock, logger)

	// --- S3 realized archive ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
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

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.Positions, audit, cfg.S3.Prefix, logger)
		deps.BlobLister = s3blob.NewReader(s3Client)
		deps.Checks["s3"] = s3Client.Health
	}

	return deps, cleanup, nil
}
