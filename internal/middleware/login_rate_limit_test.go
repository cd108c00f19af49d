package middleware

import (
    "net/http/httptest"
    "strings"
    "testing"

    miniredis "github.com/alicebob/miniredis/v2"
    "github.com/gofiber/fiber/v2"
    "github.com/redis/go-redis/v9"
)

func TestLoginRateLimitBlocksAfterThreshold(t *testing.T) {
    mr, err := miniredis.Run()
    if err != nil {
        t.Fatalf("start miniredis: %v", err)
    }
    defer mr.Close()
    cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    defer cache.Close()

    app := fiber.New()
    app.Post("/login", LoginRateLimit(cache, 2), func(c *fiber.Ctx) error {
        return c.SendStatus(fiber.StatusOK)
    })

    statuses := make([]int, 0, 3)
    for i := 0; i < 3; i++ {
        req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(`{"login":"alice"}`))
        req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
        resp, err := app.Test(req)
        if err != nil {
            t.Fatalf("app.Test: %v", err)
        }
        resp.Body.Close()
        statuses = append(statuses, resp.StatusCode)
    }

    if statuses[0] != fiber.StatusOK || statuses[1] != fiber.StatusOK || statuses[2] != fiber.StatusTooManyRequests {
        t.Fatalf("unexpected statuses %v", statuses)
    }
    if ttl := mr.TTL("rl:login:user:alice"); ttl <= 0 {
        t.Fatalf("expected the counter to expire, ttl=%v", ttl)
    }
}

func TestLoginRateLimitWithoutRedis(t *testing.T) {
    app := fiber.New()
    app.Post("/login", LoginRateLimit(nil, 1), func(c *fiber.Ctx) error {
        return c.SendStatus(fiber.StatusOK)
    })
    for i := 0; i < 3; i++ {
        resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
        if err != nil {
            t.Fatalf("app.Test: %v", err)
        }
        resp.Body.Close()
        if resp.StatusCode != fiber.StatusOK {
            t.Fatalf("expected pass-through without redis, got %d", resp.StatusCode)
        }
    }
}
