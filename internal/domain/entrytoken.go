package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryToken is the one-time admission secret bound 1:1 to a registration.
// Only the HMAC hash is used for lookups; RawToken is retained so the
// participant can re-display the QR and must never be exposed through
// admitter-facing paths.
type EntryToken struct {
	ID             uuid.UUID
	RegistrationID uuid.UUID
	TokenHash      string
	RawToken       string
	ExpiresAt      time.Time
	UsedAt         *time.Time
	CreatedAt      time.Time
}

// NewEntryToken builds a token that expires after ttl.
func NewEntryToken(registrationID uuid.UUID, tokenHash, rawToken string, ttl time.Duration) (EntryToken, error) {
	if tokenHash == "" {
		return EntryToken{}, E(KindValidation, "token hash cannot be empty")
	}
	now := time.Now().UTC()
	return EntryToken{
		ID:             uuid.New(),
		RegistrationID: registrationID,
		TokenHash:      tokenHash,
		RawToken:       rawToken,
		ExpiresAt:      now.Add(ttl),
		CreatedAt:      now,
	}, nil
}

// Use marks the token consumed. Fails if already used or expired; the
// used-at write is what serialises concurrent admissions of the same
// registration.
func (t *EntryToken) Use() error {
	if t.UsedAt != nil {
		return E(KindInvalidState, "token has already been used")
	}
	if t.IsExpired() {
		return E(KindInvalidState, "token has expired")
	}
	now := time.Now().UTC()
	t.UsedAt = &now
	return nil
}

// IsExpired reports whether the expiry has passed.
func (t *EntryToken) IsExpired() bool { return time.Now().UTC().After(t.ExpiresAt) }

// IsUsed reports whether the token has been consumed.
func (t *EntryToken) IsUsed() bool { return t.UsedAt != nil }

// IsValid reports usability: not used and not expired.
func (t *EntryToken) IsValid() bool { return !t.IsUsed() && !t.IsExpired() }

// Refresh replaces the secret on an expired, unused token and extends the
// expiry. Row identity is preserved.
func (t *EntryToken) Refresh(tokenHash, rawToken string, ttl time.Duration) error {
	if t.IsUsed() {
		return E(KindInvalidState, "cannot refresh a used token")
	}
	if tokenHash == "" {
		return E(KindValidation, "token hash cannot be empty")
	}
	t.TokenHash = tokenHash
	t.RawToken = rawToken
	t.ExpiresAt = time.Now().UTC().Add(ttl)
	return nil
}
