// Package auth issues and checks bearer tokens, hashes passwords and
// enforces the role policy.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/olympiadqr/backend/internal/domain"
)

// Claims is the JWT body. Subject carries the user id.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and parses bearer tokens with HS256.
type Manager struct {
	secret []byte
	expiry time.Duration
}

func NewManager(secret string, expireMinutes int) *Manager {
	return &Manager{
		secret: []byte(secret),
		expiry: time.Duration(expireMinutes) * time.Minute,
	}
}

// Issue signs a token for the user.
func (m *Manager) Issue(user domain.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Email: user.Email,
		Role:  string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", domain.WrapErr(domain.KindFatal, err, "sign token")
	}
	return signed, nil
}

// Parse validates the signature and expiry and returns the subject.
func (m *Manager) Parse(tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.E(domain.KindUnauthenticated, "unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, domain.E(domain.KindUnauthenticated, "invalid or expired token")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return Claims{}, domain.E(domain.KindUnauthenticated, "malformed subject claim")
	}
	return claims, nil
}

// UserID returns the parsed subject.
func (c Claims) UserID() uuid.UUID {
	id, _ := uuid.Parse(c.Subject)
	return id
}

// HashPassword bcrypt-hashes a password at the default cost.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", domain.E(domain.KindValidation, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", domain.WrapErr(domain.KindFatal, err, "hash password")
	}
	return string(hash), nil
}

// CheckPassword compares a candidate against the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
