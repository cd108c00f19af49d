package auth

import (
    "errors"
    "net/http"
    "time"

    "github.com/gofiber/fiber/v2"

    "github.com/bankcards/cardledger/internal/httpx"
    "github.com/bankcards/cardledger/internal/identity"
)

// Handler exposes register, login, refresh and logout endpoints.
type Handler struct {
    ids *identity.Service
    svc *Service
}

func NewHandler(ids *identity.Service, svc *Service) *Handler {
    return &Handler{ids: ids, svc: svc}
}

type registerRequest struct {
    Username  string `json:"username" validate:"required,min=3,max=50"`
    Email     string `json:"email" validate:"required,email,max=100"`
    Password  string `json:"password" validate:"required,min=6,max=100"`
    FirstName string `json:"first_name" validate:"max=50"`
    LastName  string `json:"last_name" validate:"max=50"`
}

type loginRequest struct {
    Login    string `json:"login" validate:"required"`
    Password string `json:"password" validate:"required"`
}

type authResponse struct {
    UserID   string   `json:"user_id"`
    Username string   `json:"username"`
    Email    string   `json:"email"`
    Roles    []string `json:"roles"`
    TokenPair
}

// UserView is the public profile of the authenticated user.
type UserView struct {
    ID        string     `json:"id"`
    Username  string     `json:"username"`
    Email     string     `json:"email"`
    FirstName string     `json:"first_name,omitempty"`
    LastName  string     `json:"last_name,omitempty"`
    Roles     []string   `json:"roles"`
    CreatedAt time.Time  `json:"created_at"`
    LastLogin *time.Time `json:"last_login,omitempty"`
    Enabled   bool       `json:"enabled"`
}

// Register creates a USER account and signs it in.
func (h *Handler) Register(c *fiber.Ctx) error {
    var req registerRequest
    if err := httpx.Bind(c, &req); err != nil {
        return err
    }
    user, err := h.ids.Register(c.UserContext(), identity.Registration{
        Username:  req.Username,
        Email:     req.Email,
        Password:  req.Password,
        FirstName: req.FirstName,
        LastName:  req.LastName,
        Role:      identity.RoleUser,
    })
    if err != nil {
        return err
    }
    pair, err := h.svc.Issue(user)
    if err != nil {
        return err
    }
    return c.Status(http.StatusCreated).JSON(newAuthResponse(user, pair))
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
    var req loginRequest
    if err := httpx.Bind(c, &req); err != nil {
        return err
    }
    user, pair, err := h.svc.Login(c.UserContext(), req.Login, req.Password)
    switch {
    case errors.Is(err, identity.ErrInvalidCredentials):
        return fiber.NewError(http.StatusUnauthorized, "invalid username or password")
    case errors.Is(err, identity.ErrUserDisabled):
        return fiber.NewError(http.StatusForbidden, "account is disabled")
    case err != nil:
        return err
    }
    return c.Status(http.StatusOK).JSON(newAuthResponse(user, pair))
}

type refreshRequest struct {
    RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh rotates the token pair using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
    var req refreshRequest
    if err := httpx.Bind(c, &req); err != nil {
        return err
    }
    pair, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
    if err != nil {
        return fiber.NewError(http.StatusUnauthorized, "invalid refresh token")
    }
    return c.Status(http.StatusOK).JSON(pair)
}

// Logout invalidates existing tokens of the caller by bumping the token version.
func (h *Handler) Logout(c *fiber.Ctx) error {
    uid, _ := c.Locals("user_id").(string)
    if uid == "" {
        return fiber.NewError(http.StatusUnauthorized, "authentication required")
    }
    if err := h.svc.Logout(c.UserContext(), uid); err != nil {
        return err
    }
    return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

// Me returns the caller's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
    uid, _ := c.Locals("user_id").(string)
    if uid == "" {
        return fiber.NewError(http.StatusUnauthorized, "authentication required")
    }
    user, err := h.ids.FindByID(c.UserContext(), uid)
    if err != nil {
        return fiber.NewError(http.StatusUnauthorized, "user not found")
    }
    return c.JSON(userView(user))
}

func userView(user identity.User) UserView {
    return UserView{
        ID:        user.ID,
        Username:  user.Username,
        Email:     user.Email,
        FirstName: user.FirstName,
        LastName:  user.LastName,
        Roles:     roleNames(user.Roles),
        CreatedAt: user.CreatedAt,
        LastLogin: user.LastLogin,
        Enabled:   user.Enabled,
    }
}

func newAuthResponse(user identity.User, pair TokenPair) authResponse {
    return authResponse{
        UserID:    user.ID,
        Username:  user.Username,
        Email:     user.Email,
        Roles:     roleNames(user.Roles),
        TokenPair: pair,
    }
}

func roleNames(roles []identity.Role) []string {
    out := make([]string, 0, len(roles))
    for _, r := range roles {
        out = append(out, string(r))
    }
    return out
}
