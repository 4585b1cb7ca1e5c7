// Package token generates and verifies the one-time secrets carried in QR
// codes. Only HMAC-SHA256 hashes ever reach the database; the raw value
// leaves the service at generation time and lives inside QR codes.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"github.com/olympiadqr/backend/internal/domain"
)

// DefaultSizeBytes is 256 bits of entropy.
const DefaultSizeBytes = 32

// Token pairs a raw secret with its storable hash.
type Token struct {
	Raw  string
	Hash string
}

// Service hashes and verifies tokens under a process-wide secret key.
// The key must differ from the JWT secret.
type Service struct {
	key []byte
}

// NewService fails when the secret is shorter than 32 bytes.
func NewService(secretKey string) (*Service, error) {
	if len(secretKey) < 32 {
		return nil, domain.E(domain.KindFatal, "hmac secret key must be at least 32 characters")
	}
	return &Service{key: []byte(secretKey)}, nil
}

// Generate returns a fresh token: sizeBytes of cryptographically strong
// random data, URL-safe base64 encoded, plus its hash. A non-positive
// size falls back to DefaultSizeBytes.
func (s *Service) Generate(sizeBytes int) (Token, error) {
	if sizeBytes <= 0 {
		sizeBytes = DefaultSizeBytes
	}
	buf := make([]byte, sizeBytes)
	if _, err := rand.Read(buf); err != nil {
		return Token{}, domain.WrapErr(domain.KindFatal, err, "random source failed")
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)
	return Token{Raw: raw, Hash: s.Hash(raw)}, nil
}

// Hash returns the lowercase hex HMAC-SHA256 of raw (64 characters).
func (s *Service) Hash(raw string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the hash of raw and compares it to storedHash in
// constant time. Empty inputs never verify. Do not replace the comparison
// with ordinary equality, even for internal callers.
func (s *Service) Verify(raw, storedHash string) bool {
	if raw == "" || storedHash == "" {
		return false
	}
	computed := s.Hash(raw)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
