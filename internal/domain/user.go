// Package domain holds the aggregates and their transition rules. Entities
// never touch persistence: every mutator validates, mutates the value in
// place and leaves saving to the store layer.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserRole is the closed set of login roles. Wire values are the exact
// lowercase strings used by clients.
type UserRole string

const (
	RoleParticipant UserRole = "participant"
	RoleAdmitter    UserRole = "admitter"
	RoleScanner     UserRole = "scanner"
	RoleInvigilator UserRole = "invigilator"
	RoleAdmin       UserRole = "admin"
)

// ParseUserRole validates a wire string.
func ParseUserRole(s string) (UserRole, error) {
	switch UserRole(s) {
	case RoleParticipant, RoleAdmitter, RoleScanner, RoleInvigilator, RoleAdmin:
		return UserRole(s), nil
	}
	return "", E(KindValidation, "unknown role %q", s)
}

// IsStaff reports whether the role belongs to venue staff.
func (r UserRole) IsStaff() bool {
	switch r {
	case RoleAdmitter, RoleScanner, RoleInvigilator, RoleAdmin:
		return true
	}
	return false
}

// User is the login principal.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         UserRole
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser validates and builds a user. Role changes are not restricted
// beyond the policy gate: an admin may reassign roles.
func NewUser(email, passwordHash string, role UserRole) (User, error) {
	if !strings.Contains(email, "@") {
		return User{}, E(KindValidation, "invalid email %q", email)
	}
	if passwordHash == "" {
		return User{}, E(KindValidation, "password hash cannot be empty")
	}
	now := time.Now().UTC()
	return User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
