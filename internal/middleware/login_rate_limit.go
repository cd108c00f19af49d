package middleware

import (
    "net/http"
    "strings"
    "time"

    "github.com/gofiber/fiber/v2"
    "github.com/redis/go-redis/v9"
)

// LoginRateLimit limits login attempts per login name and per client IP
// within a one minute window, using Redis when available.
func LoginRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
    if maxPerMin <= 0 {
        maxPerMin = 5
    }
    return func(c *fiber.Ctx) error {
        if cache == nil {
            return c.Next() // no-op without Redis
        }
        var req struct {
            Login string `json:"login"`
        }
        _ = c.BodyParser(&req)

        keys := []string{"rl:login:ip:" + c.IP()}
        if login := strings.ToLower(strings.TrimSpace(req.Login)); login != "" {
            keys = append(keys, "rl:login:user:"+login)
        }

        for _, key := range keys {
            cnt, err := cache.Incr(c.UserContext(), key).Result()
            if err != nil {
                return c.Next() // fail-open on cache errors
            }
            if cnt == 1 {
                cache.Expire(c.UserContext(), key, time.Minute)
            }
            if cnt > int64(maxPerMin) {
                c.Set(fiber.HeaderRetryAfter, "60")
                return fiber.NewError(http.StatusTooManyRequests, "too many login attempts, try again later")
            }
        }
        return c.Next()
    }
}
