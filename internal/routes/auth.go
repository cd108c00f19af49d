package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/bankcards/cardledger/internal/auth"
)

// RegisterAuthRoutes wires the public authentication endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
    group := r.Group("/auth")
    group.Post("/register", h.Register)
    if rateLimiter != nil {
        group.Post("/login", rateLimiter, h.Login)
    } else {
        group.Post("/login", h.Login)
    }
    group.Post("/refresh", h.Refresh)
}

// RegisterSessionRoutes wires endpoints that need an authenticated caller,
// including account administration.
func RegisterSessionRoutes(r fiber.Router, h *auth.Handler) {
    r.Post("/auth/logout", h.Logout)
    r.Post("/auth/password", h.ChangePassword)
    r.Get("/me", h.Me)

    admin := r.Group("/admin/users")
    admin.Put("/:userId/enabled", h.SetEnabled)
    admin.Post("/:userId/roles", h.GrantRole)
    admin.Delete("/:userId/roles/:role", h.RevokeRole)
}
