package auth

import (
	"github.com/olympiadqr/backend/internal/domain"
)

// Subject is the authenticated caller as seen by the policy gate. A
// zero Subject means no credentials were presented.
type Subject struct {
	User domain.User
	// Present is false when the request carried no valid token.
	Present bool
}

// Require checks that the subject is present, active and holds one of
// the allowed roles. Admin passes every role check.
func Require(sub Subject, roles ...domain.UserRole) error {
	if !sub.Present {
		return domain.E(domain.KindUnauthenticated, "authentication required")
	}
	if !sub.User.IsActive {
		return domain.E(domain.KindForbidden, "account is deactivated")
	}
	if sub.User.Role == domain.RoleAdmin {
		return nil
	}
	for _, role := range roles {
		if sub.User.Role == role {
			return nil
		}
	}
	return domain.E(domain.KindForbidden, "role %s is not permitted", sub.User.Role)
}

// RequireOwnership passes admins through and otherwise demands that
// the subject owns the participant row.
func RequireOwnership(sub Subject, owner domain.Participant) error {
	if !sub.Present {
		return domain.E(domain.KindUnauthenticated, "authentication required")
	}
	if sub.User.Role == domain.RoleAdmin {
		return nil
	}
	if owner.UserID != sub.User.ID {
		return domain.E(domain.KindForbidden, "not the owner of this resource")
	}
	return nil
}
