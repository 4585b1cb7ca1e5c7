package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/auth"
	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/store"
)

// AuthService covers registration, login and admin user management.
type AuthService struct {
	deps Deps
}

func NewAuthService(deps Deps) *AuthService { return &AuthService{deps: deps} }

// RegisterInput is the self-service signup payload. Signup always
// produces a participant; staff accounts are created by admins.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	School   string
	Grade    *int
}

// RegisterResult returns the created principal and profile.
type RegisterResult struct {
	User        domain.User
	Participant domain.Participant
	Token       string
}

// Register creates a user plus participant profile and signs them in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return RegisterResult{}, err
	}
	user, err := domain.NewUser(in.Email, hash, domain.RoleParticipant)
	if err != nil {
		return RegisterResult{}, err
	}
	participant, err := domain.NewParticipant(user.ID, in.FullName, in.School, in.Grade)
	if err != nil {
		return RegisterResult{}, err
	}

	err = s.deps.Store.WithTx(ctx, func(st store.Store) error {
		if err := st.Users().Create(ctx, user); err != nil {
			return err
		}
		return st.Participants().Create(ctx, participant)
	})
	if err != nil {
		return RegisterResult{}, err
	}

	signed, err := s.deps.JWT.Issue(user)
	if err != nil {
		return RegisterResult{}, err
	}
	logger.Printf("registered user %s", user.Email)
	return RegisterResult{User: user, Participant: participant, Token: signed}, nil
}

// Login verifies credentials and issues a bearer token.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	user, err := s.deps.Store.Users().GetByEmail(ctx, email)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.User{}, "", domain.E(domain.KindUnauthenticated, "invalid credentials")
		}
		return domain.User{}, "", err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return domain.User{}, "", domain.E(domain.KindUnauthenticated, "invalid credentials")
	}
	if !user.IsActive {
		return domain.User{}, "", domain.E(domain.KindForbidden, "account is deactivated")
	}
	signed, err := s.deps.JWT.Issue(user)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, signed, nil
}

// Resolve loads the user behind a parsed token. Used by the API
// middleware to build the request subject.
func (s *AuthService) Resolve(ctx context.Context, userID uuid.UUID) (auth.Subject, error) {
	user, err := s.deps.Store.Users().GetByID(ctx, userID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return auth.Subject{}, domain.E(domain.KindUnauthenticated, "unknown subject")
		}
		return auth.Subject{}, err
	}
	return auth.Subject{User: user, Present: true}, nil
}

// CreateUserInput is the admin path for staff accounts.
type CreateUserInput struct {
	Email    string
	Password string
	Role     domain.UserRole
	// Profile fields apply only when Role is participant.
	FullName string
	School   string
	Grade    *int
}

// CreateUser is admin-only account creation for any role.
func (s *AuthService) CreateUser(ctx context.Context, sub auth.Subject, in CreateUserInput) (domain.User, error) {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return domain.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	user, err := domain.NewUser(in.Email, hash, in.Role)
	if err != nil {
		return domain.User{}, err
	}
	err = s.deps.Store.WithTx(ctx, func(st store.Store) error {
		if err := st.Users().Create(ctx, user); err != nil {
			return err
		}
		if in.Role == domain.RoleParticipant {
			participant, err := domain.NewParticipant(user.ID, in.FullName, in.School, in.Grade)
			if err != nil {
				return err
			}
			if err := st.Participants().Create(ctx, participant); err != nil {
				return err
			}
		}
		return audit(ctx, st, "user", user.ID, "created", &sub.User.ID, "", map[string]interface{}{
			"role": string(in.Role),
		})
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// ListUsers is admin-only.
func (s *AuthService) ListUsers(ctx context.Context, sub auth.Subject, page store.Page) ([]domain.User, error) {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.deps.Store.Users().List(ctx, page)
}

// SetUserActive toggles account deactivation.
func (s *AuthService) SetUserActive(ctx context.Context, sub auth.Subject, userID uuid.UUID, active bool) (domain.User, error) {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return domain.User{}, err
	}
	var user domain.User
	err := s.deps.Store.WithTx(ctx, func(st store.Store) error {
		var err error
		user, err = st.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		user.IsActive = active
		if err := st.Users().Update(ctx, user); err != nil {
			return err
		}
		action := "deactivated"
		if active {
			action = "activated"
		}
		return audit(ctx, st, "user", user.ID, action, &sub.User.ID, "", nil)
	})
	return user, err
}

// SetUserRole reassigns a role.
func (s *AuthService) SetUserRole(ctx context.Context, sub auth.Subject, userID uuid.UUID, role domain.UserRole) (domain.User, error) {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return domain.User{}, err
	}
	var user domain.User
	err := s.deps.Store.WithTx(ctx, func(st store.Store) error {
		var err error
		user, err = st.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		prev := user.Role
		user.Role = role
		if err := st.Users().Update(ctx, user); err != nil {
			return err
		}
		return audit(ctx, st, "user", user.ID, "role_changed", &sub.User.ID, "", map[string]interface{}{
			"from": string(prev), "to": string(role),
		})
	})
	return user, err
}
