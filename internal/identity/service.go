package identity

import (
    "context"
    "errors"
    "slices"
    "strings"
    "time"

    "github.com/google/uuid"
    "golang.org/x/crypto/bcrypt"

    "github.com/bankcards/cardledger/internal/apperr"
)

// ErrInvalidCredentials is returned when login or password do not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUserDisabled is returned when a disabled account tries to log in.
var ErrUserDisabled = errors.New("user disabled")

// Service manages the user directory.
type Service struct {
    repo Repository
    now  func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
    return &Service{repo: repo, now: time.Now}
}

// Register creates an enabled user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, reg Registration) (User, error) {
    if len(reg.Password) < 6 {
        return User{}, errors.New("password must be at least 6 characters")
    }
    role := reg.Role
    if role == "" {
        role = RoleUser
    }
    if role != RoleUser && role != RoleAdmin {
        return User{}, errors.New("unknown role " + string(role))
    }

    hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
    if err != nil {
        return User{}, err
    }

    user := User{
        ID:           uuid.New().String(),
        Username:     strings.TrimSpace(reg.Username),
        Email:        strings.TrimSpace(reg.Email),
        PasswordHash: hash,
        FirstName:    reg.FirstName,
        LastName:     reg.LastName,
        Enabled:      true,
        Roles:        []Role{role},
        CreatedAt:    s.now().UTC(),
    }

    if err := s.repo.Create(ctx, user); err != nil {
        return User{}, err
    }

    return user, nil
}

// Authenticate verifies a username-or-email and password pair.
func (s *Service) Authenticate(ctx context.Context, login, password string) (User, error) {
    user, err := s.FindByLogin(ctx, login)
    if err != nil {
        if errors.Is(err, apperr.ErrUserNotFound) {
            return User{}, ErrInvalidCredentials
        }
        return User{}, err
    }

    if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
        return User{}, ErrInvalidCredentials
    }
    if !user.Enabled {
        return User{}, ErrUserDisabled
    }

    now := s.now().UTC()
    user.LastLogin = &now
    if err := s.repo.Update(ctx, user); err != nil {
        return User{}, err
    }

    return user, nil
}

// FindByID resolves a user by identifier.
func (s *Service) FindByID(ctx context.Context, id string) (User, error) {
    return s.repo.FindByID(ctx, id)
}

// FindByUsername resolves an authenticated principal to its user record.
func (s *Service) FindByUsername(ctx context.Context, username string) (User, error) {
    return s.repo.FindByUsername(ctx, username)
}

// FindByEmail resolves a user by email address.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
    return s.repo.FindByEmail(ctx, email)
}

// FindByLogin accepts either a username or an email.
func (s *Service) FindByLogin(ctx context.Context, login string) (User, error) {
    user, err := s.repo.FindByUsername(ctx, login)
    if err == nil || !errors.Is(err, apperr.ErrUserNotFound) || !strings.Contains(login, "@") {
        return user, err
    }
    return s.repo.FindByEmail(ctx, login)
}

// HasRole checks the stored role set of userID.
func (s *Service) HasRole(ctx context.Context, userID string, role Role) (bool, error) {
    user, err := s.repo.FindByID(ctx, userID)
    if err != nil {
        return false, err
    }
    return user.HasRole(role), nil
}

// SetEnabled activates or deactivates an account.
func (s *Service) SetEnabled(ctx context.Context, userID string, enabled bool) (User, error) {
    return s.mutate(ctx, userID, func(u *User) error {
        u.Enabled = enabled
        return nil
    })
}

// AddRole grants role to the user.
func (s *Service) AddRole(ctx context.Context, userID string, role Role) (User, error) {
    return s.mutate(ctx, userID, func(u *User) error {
        if !u.HasRole(role) {
            u.Roles = append(u.Roles, role)
        }
        return nil
    })
}

// RemoveRole revokes role from the user.
func (s *Service) RemoveRole(ctx context.Context, userID string, role Role) (User, error) {
    return s.mutate(ctx, userID, func(u *User) error {
        u.Roles = slices.DeleteFunc(u.Roles, func(r Role) bool { return r == role })
        return nil
    })
}

// ChangePassword replaces the stored hash and invalidates issued tokens.
func (s *Service) ChangePassword(ctx context.Context, userID, password string) error {
    if len(password) < 6 {
        return errors.New("password must be at least 6 characters")
    }
    _, err := s.mutate(ctx, userID, func(u *User) error {
        hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
        if err != nil {
            return err
        }
        u.PasswordHash = hash
        u.TokenVersion++
        return nil
    })
    return err
}

// BumpTokenVersion makes every previously issued token for the user invalid.
func (s *Service) BumpTokenVersion(ctx context.Context, userID string) error {
    _, err := s.mutate(ctx, userID, func(u *User) error {
        u.TokenVersion++
        return nil
    })
    return err
}

// EnsureAdmin registers an administrator unless the username already exists.
func (s *Service) EnsureAdmin(ctx context.Context, reg Registration) (User, error) {
    if existing, err := s.repo.FindByUsername(ctx, reg.Username); err == nil {
        return existing, nil
    } else if !errors.Is(err, apperr.ErrUserNotFound) {
        return User{}, err
    }
    reg.Role = RoleAdmin
    return s.Register(ctx, reg)
}

func (s *Service) mutate(ctx context.Context, userID string, fn func(*User) error) (User, error) {
    user, err := s.repo.FindByID(ctx, userID)
    if err != nil {
        return User{}, err
    }
    if err := fn(&user); err != nil {
        return User{}, err
    }
    if err := s.repo.Update(ctx, user); err != nil {
        return User{}, err
    }
    return user, nil
}
