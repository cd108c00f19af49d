package routes

import (
    "context"
    "fmt"
    "log/slog"
    "net/http"
    "time"

    "github.com/gofiber/fiber/v2"
    "github.com/gofiber/fiber/v2/middleware/logger"
    "github.com/gofiber/fiber/v2/middleware/recover"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/redis/go-redis/v9"

    "github.com/bankcards/cardledger/internal/auth"
    "github.com/bankcards/cardledger/internal/cache"
    "github.com/bankcards/cardledger/internal/card"
    "github.com/bankcards/cardledger/internal/cipher"
    "github.com/bankcards/cardledger/internal/config"
    "github.com/bankcards/cardledger/internal/events"
    "github.com/bankcards/cardledger/internal/identity"
    "github.com/bankcards/cardledger/internal/middleware"
    "github.com/bankcards/cardledger/internal/notification"
    "github.com/bankcards/cardledger/internal/transfer"
)

const (
    cardViewPrefix = "card:view:v1:"
    eventsMaxLen   = 100_000
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
    Cfg    config.Config
    DB     *pgxpool.Pool
    Cache  *redis.Client
    Logger *slog.Logger
}

// Setup configures middlewares and all application routes. Without a
// database the services fall back to in-memory stores.
func Setup(app *fiber.App, d Deps) error {
    // Enforce DB/Redis presence outside of dev, even though main also checks.
    if !config.IsDev(d.Cfg.Env) {
        if d.DB == nil {
            return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
        }
        if d.Cache == nil {
            return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
        }
    }

    app.Use(recover.New())
    app.Use(middleware.RequestID())
    // Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
    app.Use(logger.New(logger.Config{
        Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
        TimeFormat: "15:04:05",
        TimeZone:   "Local",
    }))
    app.Use(middleware.Audit(d.Logger))

    RegisterHealthRoutes(app, d)

    key := d.Cfg.EncryptionKey
    if key == "" {
        key = cipher.DefaultKey
        d.Logger.Warn("ENCRYPTION_KEY not set, using the built-in development key")
    }
    numbers, err := cipher.New(key, d.Cfg.FingerprintKey)
    if err != nil {
        return fmt.Errorf("build cipher: %w", err)
    }

    var (
        identityRepo identity.Repository
        cardRepo     card.Repository
        transfers    transfer.Store
    )
    if d.DB != nil {
        identityRepo = identity.NewPostgresRepository(d.DB)
        cardRepo = card.NewPostgresRepository(d.DB)
        transfers = transfer.NewPostgresStore(d.DB)
    } else {
        memCards := card.NewMemoryRepository()
        identityRepo = identity.NewMemoryRepository()
        cardRepo = memCards
        transfers = transfer.NewMemoryStore(memCards)
    }

    identitySvc := identity.NewService(identityRepo)
    if admin := d.Cfg.BootstrapAdmin; admin.Username != "" {
        ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        if _, err := identitySvc.EnsureAdmin(ctx, identity.Registration{
            Username: admin.Username,
            Email:    admin.Email,
            Password: admin.Password,
        }); err != nil {
            return fmt.Errorf("bootstrap admin: %w", err)
        }
        d.Logger.Info("bootstrap admin ready", slog.String("username", admin.Username))
    }

    cardSvc := card.NewService(cardRepo, numbers, identitySvc, d.Logger)
    var publisher events.Publisher = events.NopPublisher{}
    if d.Cache != nil {
        cardSvc.UseCache(cache.NewViewCache[card.View](d.Cache, cardViewPrefix, d.Cfg.CardCacheTTL, d.Logger))
        publisher = events.NewStreamPublisher(d.Cache, d.Cfg.EventsStream, eventsMaxLen)
    }

    notifiers := notification.Multi{notification.NewLoggerNotifier(d.Logger)}
    if d.Cfg.SMTP.Addr != "" {
        notifiers = append(notifiers, notification.NewEmailNotifier(notification.SMTPConfig{
            Addr:     d.Cfg.SMTP.Addr,
            From:     d.Cfg.SMTP.From,
            Username: d.Cfg.SMTP.User,
            Password: d.Cfg.SMTP.Password,
        }, d.Logger))
    }
    transferSvc := transfer.NewService(transfers, cardSvc, identitySvc, notifiers, publisher, d.Logger)
    authSvc := auth.NewService(d.Cfg, identitySvc)

    authHandler := auth.NewHandler(identitySvc, authSvc)
    cardHandler := card.NewHandler(cardSvc)
    transferHandler := transfer.NewHandler(transferSvc)

    // API routes
    api := app.Group("/api/v1")
    api.Get("/ping", func(c *fiber.Ctx) error {
        reqID, _ := c.Locals("X-Request-ID").(string)
        return c.Status(http.StatusOK).JSON(fiber.Map{
            "status":     "ok",
            "request_id": reqID,
            "timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
        })
    })

    // Public routes
    rateLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginAttempts)
    RegisterAuthRoutes(api, authHandler, rateLimiter)

    // Protected routes
    protected := api.Group("", middleware.JWTAuth(authSvc))
    RegisterSessionRoutes(protected, authHandler)
    RegisterCardRoutes(protected, cardHandler)

    var idempotency fiber.Handler
    if d.Cache != nil {
        idempotency = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
    }
    RegisterTransferRoutes(protected, transferHandler, idempotency)

    return nil
}
