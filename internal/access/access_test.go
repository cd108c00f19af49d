package access

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bankcards/cardledger/internal/apperr"
	"github.com/bankcards/cardledger/internal/identity"
)

var (
	owner    = identity.User{ID: "u-1", Username: "owner", Roles: []identity.Role{identity.RoleUser}}
	stranger = identity.User{ID: "u-2", Username: "stranger", Roles: []identity.Role{identity.RoleUser}}
	admin    = identity.User{ID: "u-3", Username: "admin", Roles: []identity.Role{identity.RoleAdmin}}
)

func TestRequire(t *testing.T) {
	require.NoError(t, Require(owner, "u-1"))
	require.NoError(t, Require(admin, "u-1"))
	require.ErrorIs(t, Require(stranger, "u-1"), apperr.ErrAccessDenied)
}

func TestRequireAdmin(t *testing.T) {
	require.NoError(t, RequireAdmin(admin))
	require.ErrorIs(t, RequireAdmin(owner), apperr.ErrAccessDenied)
}

func TestRequireAny(t *testing.T) {
	require.NoError(t, RequireAny(stranger, "u-1", "u-2"))
	require.NoError(t, RequireAny(admin))
	require.ErrorIs(t, RequireAny(stranger, "u-1", "u-9"), apperr.ErrAccessDenied)
}
