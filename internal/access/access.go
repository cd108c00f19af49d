package access

import (
	"github.com/bankcards/cardledger/internal/apperr"
	"github.com/bankcards/cardledger/internal/identity"
)

// CanAccess reports whether principal may act on a resource owned by ownerID.
func CanAccess(principal identity.User, ownerID string) bool {
	return principal.ID == ownerID || principal.IsAdmin()
}

// Require returns AccessDenied unless principal owns the resource or is an admin.
func Require(principal identity.User, ownerID string) error {
	if CanAccess(principal, ownerID) {
		return nil
	}
	return apperr.New(apperr.KindAccessDenied, "user %s may not access this resource", principal.Username)
}

// RequireAdmin returns AccessDenied for non-admin principals.
func RequireAdmin(principal identity.User) error {
	if principal.IsAdmin() {
		return nil
	}
	return apperr.New(apperr.KindAccessDenied, "user %s is not an administrator", principal.Username)
}

// RequireAny passes when principal owns any of ownerIDs or is an admin.
func RequireAny(principal identity.User, ownerIDs ...string) error {
	for _, id := range ownerIDs {
		if CanAccess(principal, id) {
			return nil
		}
	}
	if principal.IsAdmin() {
		return nil
	}
	return apperr.New(apperr.KindAccessDenied, "user %s may not access this resource", principal.Username)
}
