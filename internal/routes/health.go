package routes

import (
    "context"
    "net/http"
    "time"

    "github.com/gofiber/fiber/v2"
)

const (
    healthOK       = "ok"
    healthDisabled = "disabled"
)

// RegisterHealthRoutes adds a readiness endpoint. Backends that are not
// configured report "disabled" and do not fail the check.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
    handler := func(c *fiber.Ctx) error {
        dbStatus, redisStatus := healthDisabled, healthDisabled

        ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
        defer cancel()
        if d.DB != nil {
            dbStatus = healthOK
            if err := d.DB.Ping(ctx); err != nil {
                dbStatus = err.Error()
            }
        }
        if d.Cache != nil {
            redisStatus = healthOK
            if err := d.Cache.Ping(ctx).Err(); err != nil {
                redisStatus = err.Error()
            }
        }

        status := http.StatusOK
        if !healthy(dbStatus) || !healthy(redisStatus) {
            status = http.StatusServiceUnavailable
        }
        return c.Status(status).JSON(fiber.Map{
            "status":    fiber.Map{"postgres": dbStatus, "redis": redisStatus},
            "env":       d.Cfg.Env,
            "timestamp": time.Now().UTC().Format(time.RFC3339Nano),
        })
    }
    app.Get("/healthz", handler)
    app.Get("/api/v1/healthz", handler)
}

func healthy(status string) bool {
    return status == healthOK || status == healthDisabled
}
