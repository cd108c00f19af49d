package identity

import (
    "context"
    "errors"
    "testing"

    "github.com/bankcards/cardledger/internal/apperr"
)

func TestRegisterAndAuthenticate(t *testing.T) {
    repo := NewMemoryRepository()
    svc := NewService(repo)

    ctx := context.Background()
    user, err := svc.Register(ctx, Registration{Username: "alice", Email: "alice@example.com", Password: "secret1"})
    if err != nil {
        t.Fatalf("register: %v", err)
    }

    if !user.HasRole(RoleUser) || user.IsAdmin() {
        t.Fatalf("expected plain USER role, got %v", user.Roles)
    }
    if !user.Enabled {
        t.Fatalf("expected new user to be enabled")
    }

    authed, err := svc.Authenticate(ctx, "alice", "secret1")
    if err != nil {
        t.Fatalf("authenticate by username: %v", err)
    }
    if authed.LastLogin == nil {
        t.Fatalf("expected last login to be recorded")
    }

    if _, err := svc.Authenticate(ctx, "ALICE@example.com", "secret1"); err != nil {
        t.Fatalf("authenticate by email: %v", err)
    }
}

func TestAuthenticateRejectsBadPassword(t *testing.T) {
    svc := NewService(NewMemoryRepository())
    ctx := context.Background()

    if _, err := svc.Register(ctx, Registration{Username: "bob", Email: "bob@example.com", Password: "secret1"}); err != nil {
        t.Fatalf("register: %v", err)
    }

    if _, err := svc.Authenticate(ctx, "bob", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
        t.Fatalf("expected invalid credentials, got %v", err)
    }
    if _, err := svc.Authenticate(ctx, "nobody", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
        t.Fatalf("expected invalid credentials for unknown user, got %v", err)
    }
}

func TestAuthenticateDisabledUser(t *testing.T) {
    svc := NewService(NewMemoryRepository())
    ctx := context.Background()

    user, err := svc.Register(ctx, Registration{Username: "carol", Email: "carol@example.com", Password: "secret1"})
    if err != nil {
        t.Fatalf("register: %v", err)
    }
    if _, err := svc.SetEnabled(ctx, user.ID, false); err != nil {
        t.Fatalf("disable: %v", err)
    }
    if _, err := svc.Authenticate(ctx, "carol", "secret1"); !errors.Is(err, ErrUserDisabled) {
        t.Fatalf("expected disabled error, got %v", err)
    }
}

func TestRegisterDuplicate(t *testing.T) {
    svc := NewService(NewMemoryRepository())
    ctx := context.Background()

    if _, err := svc.Register(ctx, Registration{Username: "dave", Email: "dave@example.com", Password: "secret1"}); err != nil {
        t.Fatalf("register: %v", err)
    }
    _, err := svc.Register(ctx, Registration{Username: "dave", Email: "other@example.com", Password: "secret1"})
    if !errors.Is(err, apperr.ErrUserAlreadyExists) {
        t.Fatalf("expected duplicate username error, got %v", err)
    }
    _, err = svc.Register(ctx, Registration{Username: "dave2", Email: "DAVE@example.com", Password: "secret1"})
    if !errors.Is(err, apperr.ErrUserAlreadyExists) {
        t.Fatalf("expected duplicate email error, got %v", err)
    }
}

func TestLookupsReportUserNotFound(t *testing.T) {
    svc := NewService(NewMemoryRepository())
    ctx := context.Background()

    if _, err := svc.FindByUsername(ctx, "ghost"); !errors.Is(err, apperr.ErrUserNotFound) {
        t.Fatalf("expected user not found, got %v", err)
    }
    if _, err := svc.FindByEmail(ctx, "ghost@example.com"); !errors.Is(err, apperr.ErrUserNotFound) {
        t.Fatalf("expected user not found, got %v", err)
    }
    if _, err := svc.HasRole(ctx, "stale-id", RoleAdmin); !errors.Is(err, apperr.ErrUserNotFound) {
        t.Fatalf("expected user not found, got %v", err)
    }
}

func TestRoleManagement(t *testing.T) {
    svc := NewService(NewMemoryRepository())
    ctx := context.Background()

    user, err := svc.Register(ctx, Registration{Username: "erin", Email: "erin@example.com", Password: "secret1"})
    if err != nil {
        t.Fatalf("register: %v", err)
    }

    if _, err := svc.AddRole(ctx, user.ID, RoleAdmin); err != nil {
        t.Fatalf("add role: %v", err)
    }
    ok, err := svc.HasRole(ctx, user.ID, RoleAdmin)
    if err != nil || !ok {
        t.Fatalf("expected admin role, ok=%v err=%v", ok, err)
    }

    if _, err := svc.RemoveRole(ctx, user.ID, RoleAdmin); err != nil {
        t.Fatalf("remove role: %v", err)
    }
    ok, _ = svc.HasRole(ctx, user.ID, RoleAdmin)
    if ok {
        t.Fatalf("expected admin role to be revoked")
    }
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
    svc := NewService(NewMemoryRepository())
    ctx := context.Background()

    reg := Registration{Username: "root", Email: "root@example.com", Password: "changeme"}
    first, err := svc.EnsureAdmin(ctx, reg)
    if err != nil {
        t.Fatalf("ensure admin: %v", err)
    }
    if !first.IsAdmin() {
        t.Fatalf("expected admin role")
    }
    second, err := svc.EnsureAdmin(ctx, reg)
    if err != nil {
        t.Fatalf("ensure admin again: %v", err)
    }
    if second.ID != first.ID {
        t.Fatalf("expected same admin, got %s and %s", first.ID, second.ID)
    }
}

func TestBumpTokenVersion(t *testing.T) {
    svc := NewService(NewMemoryRepository())
    ctx := context.Background()

    user, _ := svc.Register(ctx, Registration{Username: "frank", Email: "frank@example.com", Password: "secret1"})
    if err := svc.BumpTokenVersion(ctx, user.ID); err != nil {
        t.Fatalf("bump: %v", err)
    }
    reloaded, _ := svc.FindByID(ctx, user.ID)
    if reloaded.TokenVersion != user.TokenVersion+1 {
        t.Fatalf("expected token version %d, got %d", user.TokenVersion+1, reloaded.TokenVersion)
    }
}

func TestChangePassword(t *testing.T) {
    svc := NewService(NewMemoryRepository())
    ctx := context.Background()

    user, err := svc.Register(ctx, Registration{Username: "carol", Email: "carol@example.com", Password: "secret1"})
    if err != nil {
        t.Fatalf("register: %v", err)
    }
    if err := svc.ChangePassword(ctx, user.ID, "123"); err == nil {
        t.Fatalf("expected short password to be rejected")
    }
    if err := svc.ChangePassword(ctx, user.ID, "secret2"); err != nil {
        t.Fatalf("change password: %v", err)
    }

    if _, err := svc.Authenticate(ctx, "carol", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
        t.Fatalf("old password should fail, got %v", err)
    }
    updated, err := svc.Authenticate(ctx, "carol", "secret2")
    if err != nil {
        t.Fatalf("authenticate with new password: %v", err)
    }
    if updated.TokenVersion != user.TokenVersion+1 {
        t.Fatalf("expected token version bump, got %d", updated.TokenVersion)
    }
}
