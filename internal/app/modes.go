package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/autotrader-saida/internal/server"
	"github.com/alanyoungcy/autotrader-saida/internal/server/handler"
	"github.com/alanyoungcy/autotrader-saida/internal/server/ws"
)

// ServerMode serves the panel API and, when Redis is wired, the WebSocket
// event hub. Both stop when ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	if !a.cfg.Server.Enabled {
		return errors.New("app: server mode requires server.enabled")
	}

	g, ctx := errgroup.WithContext(ctx)

	var hub *ws.Hub
	if deps.SignalBus != nil {
		var channels []string
		if a.cfg.Redis.EventsChannel != "" {
			channels = append(channels, a.cfg.Redis.EventsChannel)
		}
		hub = ws.NewHub(deps.SignalBus, channels, a.logger)
		g.Go(func() error {
			if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("ws hub: %w", err)
			}
			return nil
		})
	}

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(deps.Checks, a.logger),
		Version: handler.NewVersionHandler(a.cfg.Server.VersionFile, a.cfg.BuildID),
		Saida:   handler.NewSaidaHandler(deps.Positions, deps.Clock, a.logger),
		Panel:   handler.NewPanelHandler(a.cfg.Server.DistDir),
	}
	if deps.Archiver != nil {
		handlers.Archive = handler.NewArchiveHandler(deps.Archiver, deps.BlobLister, a.cfg.S3.Prefix, a.logger)
	}
	if deps.AuditReader != nil {
		handlers.Audit = handler.NewAuditHandler(deps.AuditReader, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	if deps.Notifier.Enabled() {
		g.Go(func() error {
			a.announceStartup(ctx, deps)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// announceStartup tells every notification channel the panel is up. Failures
// are logged only.
func (a *App) announceStartup(ctx context.Context, deps *Dependencies) {
	nctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	msg := fmt.Sprintf("port: %d\nbuild: %s", a.cfg.Server.Port, a.cfg.BuildID)
	if err := deps.Notifier.NotifyAll(nctx, "Saida panel started", msg); err != nil {
		a.logger.WarnContext(ctx, "startup notice failed", slog.String("error", err.Error()))
	}
}

// ArchiveMode uploads the realized partition once and returns.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return errors.New("app: archive mode requires s3 configuration")
	}
	res, err := deps.Archiver.ArchiveRealized(ctx)
	if err != nil {
		return fmt.Errorf("app: archive: %w", err)
	}
	a.logger.InfoContext(ctx, "archive complete",
		slog.String("key", res.Key),
		slog.Int("records", res.Records),
		slog.Int64("bytes", res.Bytes),
	)
	return nil
}
