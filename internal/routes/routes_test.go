package routes

import (
    "bytes"
    "encoding/json"
    "io"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    miniredis "github.com/alicebob/miniredis/v2"
    "github.com/gofiber/fiber/v2"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/require"

    "github.com/bankcards/cardledger/internal/config"
    "github.com/bankcards/cardledger/internal/httpx"
    "github.com/bankcards/cardledger/internal/logging"
)

type apiClient struct {
    t   *testing.T
    app *fiber.App
}

func newTestApp(t *testing.T) *apiClient {
    t.Helper()
    mr := miniredis.RunT(t)
    cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = cache.Close() })

    cfg := config.Config{
        AppName:         "cardledger-test",
        Env:             "test",
        IdempotencyTTL:  time.Minute,
        CardCacheTTL:    time.Minute,
        JWTSecret:       "routes-test-access-secret-0123456789",
        RefreshSecret:   "routes-test-refresh-secret-0123456789",
        AccessTokenTTL:  15 * time.Minute,
        RefreshTokenTTL: time.Hour,
        LoginAttempts:   20,
        EventsStream:    "transfers:test",
        BootstrapAdmin: config.BootstrapAdmin{
            Username: "root",
            Email:    "root@example.com",
            Password: "rootpass",
        },
    }
    logger := logging.Discard()
    app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(logger)})
    require.NoError(t, Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logger}))
    return &apiClient{t: t, app: app}
}

func (a *apiClient) do(method, path, token string, body any, headers ...string) (int, map[string]any) {
    a.t.Helper()
    var reader io.Reader
    if body != nil {
        raw, err := json.Marshal(body)
        require.NoError(a.t, err)
        reader = bytes.NewReader(raw)
    }
    req := httptest.NewRequest(method, path, reader)
    req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
    if token != "" {
        req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
    }
    for i := 0; i+1 < len(headers); i += 2 {
        req.Header.Set(headers[i], headers[i+1])
    }
    resp, err := a.app.Test(req, -1)
    require.NoError(a.t, err)
    defer resp.Body.Close()

    payload, err := io.ReadAll(resp.Body)
    require.NoError(a.t, err)
    out := map[string]any{}
    if len(payload) > 0 && payload[0] == '{' {
        require.NoError(a.t, json.Unmarshal(payload, &out))
    }
    return resp.StatusCode, out
}

func (a *apiClient) register(username string) string {
    a.t.Helper()
    status, body := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
        "username": username,
        "email":    username + "@example.com",
        "password": "secret123",
    })
    require.Equal(a.t, http.StatusCreated, status, body)
    return body["access_token"].(string)
}

func (a *apiClient) createCard(token, number string) map[string]any {
    a.t.Helper()
    status, body := a.do(http.MethodPost, "/api/v1/cards", token, map[string]string{
        "card_number":     number,
        "cardholder_name": "ALICE SMITH",
    })
    require.Equal(a.t, http.StatusCreated, status, body)
    return body
}

func TestHealthReportsDisabledDatabase(t *testing.T) {
    api := newTestApp(t)

    status, body := api.do(http.MethodGet, "/healthz", "", nil)
    require.Equal(t, http.StatusOK, status)
    backends := body["status"].(map[string]any)
    require.Equal(t, "disabled", backends["postgres"])
    require.Equal(t, "ok", backends["redis"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
    api := newTestApp(t)

    status, body := api.do(http.MethodGet, "/api/v1/cards", "", nil)
    require.Equal(t, http.StatusUnauthorized, status)
    require.Equal(t, "/api/v1/cards", body["path"])
}

func TestCardLifecycleOverHTTP(t *testing.T) {
    api := newTestApp(t)
    token := api.register("alice")

    created := api.createCard(token, "4111 1111 1111 4444")
    require.Equal(t, "**** **** **** 4444", created["card_number"])
    require.Equal(t, "ACTIVE", created["status"])
    require.Equal(t, "0.00", created["balance"])
    id := created["id"].(string)

    status, _ := api.do(http.MethodPost, "/api/v1/cards", token, map[string]string{
        "card_number":     "4111111111114444",
        "cardholder_name": "ALICE SMITH",
    })
    require.Equal(t, http.StatusConflict, status)

    status, body := api.do(http.MethodPost, "/api/v1/cards/"+id+"/block", token, nil)
    require.Equal(t, http.StatusOK, status)
    require.Equal(t, "BLOCKED", body["status"])

    status, body = api.do(http.MethodGet, "/api/v1/cards/summary", token, nil)
    require.Equal(t, http.StatusOK, status)
    require.EqualValues(t, 1, body["card_count"])
    require.EqualValues(t, 0, body["active_count"])

    bob := api.register("bob")
    status, _ = api.do(http.MethodGet, "/api/v1/cards/"+id, bob, nil)
    require.Equal(t, http.StatusForbidden, status)

    status, _ = api.do(http.MethodDelete, "/api/v1/cards/"+id, token, nil)
    require.Equal(t, http.StatusNoContent, status)
    status, _ = api.do(http.MethodGet, "/api/v1/cards/"+id, token, nil)
    require.Equal(t, http.StatusNotFound, status)
}

func TestTransferRequiresIdempotencyKeyAndFunds(t *testing.T) {
    api := newTestApp(t)
    token := api.register("alice")
    from := api.createCard(token, "1111222233334444")["id"].(string)
    to := api.createCard(token, "5555666677778888")["id"].(string)

    payload := map[string]string{"from_card_id": from, "to_card_id": to, "amount": "10.00"}

    status, _ := api.do(http.MethodPost, "/api/v1/transactions", token, payload)
    require.Equal(t, http.StatusBadRequest, status)

    status, body := api.do(http.MethodPost, "/api/v1/transactions", token, payload, "Idempotency-Key", "t-1")
    require.Equal(t, http.StatusBadRequest, status)
    require.Contains(t, body["message"], "insufficient")

    status, body = api.do(http.MethodGet, "/api/v1/transactions", token, nil)
    require.Equal(t, http.StatusOK, status)
    require.EqualValues(t, 0, body["total_elements"])

    status, body = api.do(http.MethodGet, "/api/v1/transactions/balance/"+from, token, nil)
    require.Equal(t, http.StatusOK, status)
    require.Equal(t, "0.00", body["balance"])
}

func TestAdminRoutes(t *testing.T) {
    api := newTestApp(t)
    token := api.register("alice")
    api.createCard(token, "1111222233334444")

    status, _ := api.do(http.MethodGet, "/api/v1/cards/admin/all", token, nil)
    require.Equal(t, http.StatusForbidden, status)

    status, body := api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
        "login":    "root",
        "password": "rootpass",
    })
    require.Equal(t, http.StatusOK, status, body)
    admin := body["access_token"].(string)

    status, body = api.do(http.MethodGet, "/api/v1/cards/admin/all", admin, nil)
    require.Equal(t, http.StatusOK, status)
    require.EqualValues(t, 1, body["total_elements"])

    status, body = api.do(http.MethodGet, "/api/v1/cards/search?number=1111222233334444", admin, nil)
    require.Equal(t, http.StatusOK, status)
    require.Equal(t, "**** **** **** 4444", body["card_number"])

    status, _ = api.do(http.MethodGet, "/api/v1/transactions/admin/all", admin, nil)
    require.Equal(t, http.StatusOK, status)
}

func TestLogoutRevokesToken(t *testing.T) {
    api := newTestApp(t)
    token := api.register("alice")

    status, body := api.do(http.MethodGet, "/api/v1/me", token, nil)
    require.Equal(t, http.StatusOK, status)
    require.Equal(t, "alice", body["username"])

    status, _ = api.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
    require.Equal(t, http.StatusOK, status)

    status, _ = api.do(http.MethodGet, "/api/v1/me", token, nil)
    require.Equal(t, http.StatusUnauthorized, status)
}

func (a *apiClient) login(login, password string) (int, map[string]any) {
    a.t.Helper()
    return a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"login": login, "password": password})
}

func TestAdminManagesAccounts(t *testing.T) {
    api := newTestApp(t)
    alice := api.register("alice")
    _, me := api.do(http.MethodGet, "/api/v1/me", alice, nil)
    aliceID := me["id"].(string)

    status, body := api.login("root", "rootpass")
    require.Equal(t, http.StatusOK, status, body)
    admin := body["access_token"].(string)
    adminID := body["user_id"].(string)

    status, _ = api.do(http.MethodPut, "/api/v1/admin/users/"+aliceID+"/enabled", alice, map[string]bool{"enabled": false})
    require.Equal(t, http.StatusForbidden, status)

    status, body = api.do(http.MethodPut, "/api/v1/admin/users/"+aliceID+"/enabled", admin, map[string]bool{"enabled": false})
    require.Equal(t, http.StatusOK, status, body)
    require.Equal(t, false, body["enabled"])

    status, _ = api.do(http.MethodGet, "/api/v1/me", alice, nil)
    require.Equal(t, http.StatusUnauthorized, status)
    status, _ = api.login("alice", "secret123")
    require.Equal(t, http.StatusForbidden, status)

    status, _ = api.do(http.MethodPut, "/api/v1/admin/users/"+aliceID+"/enabled", admin, map[string]bool{"enabled": true})
    require.Equal(t, http.StatusOK, status)
    status, body = api.login("alice", "secret123")
    require.Equal(t, http.StatusOK, status)
    alice = body["access_token"].(string)

    status, body = api.do(http.MethodPost, "/api/v1/admin/users/"+aliceID+"/roles", admin, map[string]string{"role": "ADMIN"})
    require.Equal(t, http.StatusOK, status, body)
    require.ElementsMatch(t, []any{"USER", "ADMIN"}, body["roles"])
    status, _ = api.do(http.MethodGet, "/api/v1/cards/admin/all", alice, nil)
    require.Equal(t, http.StatusOK, status)

    status, _ = api.do(http.MethodDelete, "/api/v1/admin/users/"+aliceID+"/roles/ADMIN", admin, nil)
    require.Equal(t, http.StatusOK, status)
    status, _ = api.do(http.MethodGet, "/api/v1/cards/admin/all", alice, nil)
    require.Equal(t, http.StatusForbidden, status)

    status, _ = api.do(http.MethodDelete, "/api/v1/admin/users/"+adminID+"/roles/ADMIN", admin, nil)
    require.Equal(t, http.StatusBadRequest, status)
}

func TestChangePasswordRotatesTokens(t *testing.T) {
    api := newTestApp(t)
    token := api.register("alice")

    status, _ := api.do(http.MethodPost, "/api/v1/auth/password", token, map[string]string{
        "current_password": "wrong-pass",
        "new_password":     "newsecret1",
    })
    require.Equal(t, http.StatusUnauthorized, status)

    status, body := api.do(http.MethodPost, "/api/v1/auth/password", token, map[string]string{
        "current_password": "secret123",
        "new_password":     "newsecret1",
    })
    require.Equal(t, http.StatusOK, status, body)
    fresh := body["access_token"].(string)

    status, _ = api.do(http.MethodGet, "/api/v1/me", token, nil)
    require.Equal(t, http.StatusUnauthorized, status)
    status, _ = api.do(http.MethodGet, "/api/v1/me", fresh, nil)
    require.Equal(t, http.StatusOK, status)

    status, _ = api.login("alice", "secret123")
    require.Equal(t, http.StatusUnauthorized, status)
    status, _ = api.login("alice", "newsecret1")
    require.Equal(t, http.StatusOK, status)
}
