package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
	"github.com/alanyoungcy/autotrader-saida/internal/server/handler"
	"github.com/alanyoungcy/autotrader-saida/internal/server/middleware"
	"github.com/alanyoungcy/autotrader-saida/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// RateLimit caps POST requests per client per RateWindow. Zero disables
	// limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers. Archive and
// Audit are optional.
type Handlers struct {
	Health  *handler.HealthHandler
	Version *handler.VersionHandler
	Saida   *handler.SaidaHandler
	Archive *handler.ArchiveHandler
	Audit   *handler.AuditHandler
	Panel   *handler.PanelHandler
}

// Server is the HTTP + WebSocket server behind the saida panel.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and builds the middleware chain. wsHub
// and limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "http"))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, wsHub, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler returns the routed and wrapped handler.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /version", handlers.Version.GetVersion)
	mux.HandleFunc("GET /api/saida/version", handlers.Version.GetVersion)

	mux.HandleFunc("GET /api/saida/alvo", handlers.Saida.GetTarget)
	mux.HandleFunc("POST /api/saida/add", handlers.Saida.AddPosition)
	mux.HandleFunc("POST /api/saida/exit", handlers.Saida.ExitPosition)
	mux.HandleFunc("POST /api/saida/del", handlers.Saida.DeletePosition)
	mux.HandleFunc("POST /api/saida/delete", handlers.Saida.DeletePosition)
	mux.HandleFunc("GET /api/saida/ops", handlers.Saida.ListActive)
	mux.HandleFunc("GET /api/saida/monitor", handlers.Saida.Monitor)
	mux.HandleFunc("GET /api/saida/real", handlers.Saida.ListRealized)
	mux.HandleFunc("GET /api/saida/events", handlers.Saida.ListEvents)

	if handlers.Archive != nil {
		mux.HandleFunc("POST /api/saida/archive", handlers.Archive.Archive)
		mux.HandleFunc("GET /api/saida/archive", handlers.Archive.ListArchives)
	}
	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/saida/audit", handlers.Audit.ListAudit)
	}

	if handlers.Panel != nil {
		mux.HandleFunc("GET /dist/", handlers.Panel.Dist)
		mux.HandleFunc("GET /saida", handlers.Panel.Page)
		mux.HandleFunc("GET /saida2", handlers.Panel.Redirect)
		mux.HandleFunc("GET /{$}", handlers.Panel.Redirect)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window, logger)(h)
	}
	h = middleware.NoStore(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
