package middleware

import (
    "context"
    "net/http"
    "strings"

    "github.com/gofiber/fiber/v2"

    "github.com/bankcards/cardledger/internal/identity"
)

// Authorizer resolves a bearer token to the user it was issued for.
type Authorizer interface {
    Authorize(ctx context.Context, accessToken string) (identity.User, error)
}

// JWTAuth validates the bearer access token and exposes the caller as the
// user_id and username locals.
func JWTAuth(authz Authorizer) fiber.Handler {
    return func(c *fiber.Ctx) error {
        header := c.Get(fiber.HeaderAuthorization)
        scheme, token, ok := strings.Cut(header, " ")
        if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
            return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
        }

        user, err := authz.Authorize(c.UserContext(), strings.TrimSpace(token))
        if err != nil {
            return fiber.NewError(http.StatusUnauthorized, "invalid or expired token")
        }

        c.Locals("user_id", user.ID)
        c.Locals("username", user.Username)
        c.Locals("token_version", user.TokenVersion)
        return c.Next()
    }
}
