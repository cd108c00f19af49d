package auth

import (
    "net/http"

    "github.com/gofiber/fiber/v2"

    "github.com/bankcards/cardledger/internal/access"
    "github.com/bankcards/cardledger/internal/httpx"
    "github.com/bankcards/cardledger/internal/identity"
)

type changePasswordRequest struct {
    CurrentPassword string `json:"current_password" validate:"required"`
    NewPassword     string `json:"new_password" validate:"required,min=6,max=100"`
}

type enabledRequest struct {
    Enabled *bool `json:"enabled" validate:"required"`
}

type roleRequest struct {
    Role string `json:"role" validate:"required,oneof=USER ADMIN"`
}

// ChangePassword replaces the caller's password. Every token issued before is
// revoked, so a fresh pair is returned.
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
    caller, err := h.caller(c)
    if err != nil {
        return err
    }
    var req changePasswordRequest
    if err := httpx.Bind(c, &req); err != nil {
        return err
    }
    if _, err := h.ids.Authenticate(c.UserContext(), caller.Username, req.CurrentPassword); err != nil {
        return fiber.NewError(http.StatusUnauthorized, "current password is incorrect")
    }
    if err := h.ids.ChangePassword(c.UserContext(), caller.ID, req.NewPassword); err != nil {
        return err
    }
    user, err := h.ids.FindByID(c.UserContext(), caller.ID)
    if err != nil {
        return err
    }
    pair, err := h.svc.Issue(user)
    if err != nil {
        return err
    }
    return c.JSON(newAuthResponse(user, pair))
}

// SetEnabled activates or deactivates an account. Admin only.
func (h *Handler) SetEnabled(c *fiber.Ctx) error {
    admin, err := h.admin(c)
    if err != nil {
        return err
    }
    var req enabledRequest
    if err := httpx.Bind(c, &req); err != nil {
        return err
    }
    target := c.Params("userId")
    if target == admin.ID && !*req.Enabled {
        return fiber.NewError(http.StatusBadRequest, "administrators cannot disable their own account")
    }
    user, err := h.ids.SetEnabled(c.UserContext(), target, *req.Enabled)
    if err != nil {
        return err
    }
    return c.JSON(userView(user))
}

// GrantRole adds a role to an account. Admin only.
func (h *Handler) GrantRole(c *fiber.Ctx) error {
    if _, err := h.admin(c); err != nil {
        return err
    }
    var req roleRequest
    if err := httpx.Bind(c, &req); err != nil {
        return err
    }
    user, err := h.ids.AddRole(c.UserContext(), c.Params("userId"), identity.Role(req.Role))
    if err != nil {
        return err
    }
    return c.JSON(userView(user))
}

// RevokeRole removes a role from an account. Admin only.
func (h *Handler) RevokeRole(c *fiber.Ctx) error {
    admin, err := h.admin(c)
    if err != nil {
        return err
    }
    role := identity.Role(c.Params("role"))
    if role != identity.RoleUser && role != identity.RoleAdmin {
        return fiber.NewError(http.StatusBadRequest, "unknown role "+string(role))
    }
    target := c.Params("userId")
    if target == admin.ID && role == identity.RoleAdmin {
        return fiber.NewError(http.StatusBadRequest, "administrators cannot revoke their own ADMIN role")
    }
    user, err := h.ids.RemoveRole(c.UserContext(), target, role)
    if err != nil {
        return err
    }
    return c.JSON(userView(user))
}

func (h *Handler) caller(c *fiber.Ctx) (identity.User, error) {
    uid, _ := c.Locals("user_id").(string)
    if uid == "" {
        return identity.User{}, fiber.NewError(http.StatusUnauthorized, "authentication required")
    }
    user, err := h.ids.FindByID(c.UserContext(), uid)
    if err != nil {
        return identity.User{}, fiber.NewError(http.StatusUnauthorized, "user not found")
    }
    return user, nil
}

func (h *Handler) admin(c *fiber.Ctx) (identity.User, error) {
    user, err := h.caller(c)
    if err != nil {
        return identity.User{}, err
    }
    if err := access.RequireAdmin(user); err != nil {
        return identity.User{}, err
    }
    return user, nil
}
