package server

import (
    "context"
    "log/slog"
    "time"

    "github.com/gofiber/fiber/v2"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/redis/go-redis/v9"

    "github.com/bankcards/cardledger/internal/config"
    "github.com/bankcards/cardledger/internal/httpx"
    "github.com/bankcards/cardledger/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
    app    *fiber.App
    cfg    config.Config
    logger *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// db and cache may be nil in development, in which case in-memory stores are used.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
    app := fiber.New(fiber.Config{
        AppName:      cfg.AppName,
        ReadTimeout:  30 * time.Second,
        WriteTimeout: 30 * time.Second,
        BodyLimit:    64 * 1024,
        ErrorHandler: httpx.ErrorHandler(logger),
    })

    if err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger}); err != nil {
        return nil, err
    }

    return &Server{app: app, cfg: cfg, logger: logger}, nil
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
    s.logger.Info("listening", slog.String("addr", s.cfg.Address()), slog.String("env", s.cfg.Env))
    return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
    return s.app.ShutdownWithContext(ctx)
}
