package identity

import (
    "slices"
    "time"
)

// Role grants a class of permissions to a user.
type Role string

const (
    RoleUser  Role = "USER"
    RoleAdmin Role = "ADMIN"
)

// User represents a registered card holder or administrator.
type User struct {
    ID           string
    Username     string
    Email        string
    PasswordHash []byte
    FirstName    string
    LastName     string
    Enabled      bool
    Roles        []Role
    TokenVersion int
    CreatedAt    time.Time
    LastLogin    *time.Time
}

// HasRole reports whether role is in the user's role set.
func (u User) HasRole(role Role) bool {
    return slices.Contains(u.Roles, role)
}

// IsAdmin is shorthand for HasRole(RoleAdmin).
func (u User) IsAdmin() bool {
    return u.HasRole(RoleAdmin)
}

// Registration request structure.
type Registration struct {
    Username  string
    Email     string
    Password  string
    FirstName string
    LastName  string
    Role      Role
}
