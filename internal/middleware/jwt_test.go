package middleware

import (
    "context"
    "errors"
    "io"
    "net/http/httptest"
    "testing"

    "github.com/gofiber/fiber/v2"

    "github.com/bankcards/cardledger/internal/identity"
)

type stubAuthorizer map[string]identity.User

func (s stubAuthorizer) Authorize(_ context.Context, token string) (identity.User, error) {
    if u, ok := s[token]; ok {
        return u, nil
    }
    return identity.User{}, errors.New("invalid token")
}

func newJWTApp() *fiber.App {
    app := fiber.New()
    app.Use(JWTAuth(stubAuthorizer{"good": {ID: "u-1", Username: "alice"}}))
    app.Get("/me", func(c *fiber.Ctx) error {
        uid, _ := c.Locals("user_id").(string)
        name, _ := c.Locals("username").(string)
        return c.SendString(uid + ":" + name)
    })
    return app
}

func TestJWTAuth(t *testing.T) {
    cases := []struct {
        name   string
        header string
        status int
        body   string
    }{
        {name: "missing header", header: "", status: fiber.StatusUnauthorized},
        {name: "wrong scheme", header: "Basic good", status: fiber.StatusUnauthorized},
        {name: "bad token", header: "Bearer nope", status: fiber.StatusUnauthorized},
        {name: "valid", header: "Bearer good", status: fiber.StatusOK, body: "u-1:alice"},
        {name: "lowercase scheme", header: "bearer good", status: fiber.StatusOK, body: "u-1:alice"},
    }

    app := newJWTApp()
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
            if tc.header != "" {
                req.Header.Set(fiber.HeaderAuthorization, tc.header)
            }
            resp, err := app.Test(req)
            if err != nil {
                t.Fatalf("app.Test: %v", err)
            }
            defer resp.Body.Close()
            if resp.StatusCode != tc.status {
                t.Fatalf("expected %d got %d", tc.status, resp.StatusCode)
            }
            if tc.body != "" {
                body, _ := io.ReadAll(resp.Body)
                if string(body) != tc.body {
                    t.Fatalf("expected body %q got %q", tc.body, body)
                }
            }
        })
    }
}
