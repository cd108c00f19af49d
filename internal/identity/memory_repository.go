package identity

import (
    "context"
    "slices"
    "strings"
    "sync"

    "github.com/bankcards/cardledger/internal/apperr"
)

type memoryRepository struct {
    mu    sync.RWMutex
    users map[string]User
}

// NewMemoryRepository builds an in-memory user store for testing.
func NewMemoryRepository() Repository {
    return &memoryRepository{users: make(map[string]User)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    for _, existing := range r.users {
        if existing.Username == user.Username || strings.EqualFold(existing.Email, user.Email) {
            return apperr.New(apperr.KindUserAlreadyExists, "user %q or email %q already exists", user.Username, user.Email)
        }
    }
    r.users[user.ID] = clone(user)
    return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    user, ok := r.users[id]
    if !ok {
        return User{}, apperr.New(apperr.KindUserNotFound, "user with id %s not found", id)
    }
    return clone(user), nil
}

func (r *memoryRepository) FindByUsername(_ context.Context, username string) (User, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    for _, user := range r.users {
        if user.Username == username {
            return clone(user), nil
        }
    }
    return User{}, apperr.New(apperr.KindUserNotFound, "user %s not found", username)
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    for _, user := range r.users {
        if strings.EqualFold(user.Email, email) {
            return clone(user), nil
        }
    }
    return User{}, apperr.New(apperr.KindUserNotFound, "user with email %s not found", email)
}

func (r *memoryRepository) Update(_ context.Context, user User) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    if _, ok := r.users[user.ID]; !ok {
        return apperr.New(apperr.KindUserNotFound, "user with id %s not found", user.ID)
    }
    r.users[user.ID] = clone(user)
    return nil
}

// clone detaches the role slice so callers cannot mutate stored state.
func clone(user User) User {
    user.Roles = slices.Clone(user.Roles)
    return user
}
