package token

import (
	"encoding/base64"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef" // 32 chars

func TestNewService_RejectsShortKey(t *testing.T) {
	_, err := NewService("too-short")
	require.Error(t, err)

	_, err = NewService(testSecret)
	require.NoError(t, err)
}

func TestGenerate_Shape(t *testing.T) {
	svc, err := NewService(testSecret)
	require.NoError(t, err)

	tok, err := svc.Generate(32)
	require.NoError(t, err)

	// Raw is URL-safe base64 of 32 bytes
	decoded, err := base64.RawURLEncoding.DecodeString(tok.Raw)
	require.NoError(t, err)
	assert.Len(t, decoded, 32)

	// Hash is 64 lowercase hex characters
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), tok.Hash)
}

// Every pair of generated tokens must differ in both raw and hash.
func TestGenerate_Uniqueness(t *testing.T) {
	svc, err := NewService(testSecret)
	require.NoError(t, err)

	seenRaw := make(map[string]bool)
	seenHash := make(map[string]bool)
	for i := 0; i < 200; i++ {
		tok, err := svc.Generate(32)
		require.NoError(t, err)
		assert.False(t, seenRaw[tok.Raw], "raw token repeated")
		assert.False(t, seenHash[tok.Hash], "token hash repeated")
		seenRaw[tok.Raw] = true
		seenHash[tok.Hash] = true
	}
}

func TestVerify_Roundtrip(t *testing.T) {
	svc, err := NewService(testSecret)
	require.NoError(t, err)

	tok, err := svc.Generate(32)
	require.NoError(t, err)

	assert.True(t, svc.Verify(tok.Raw, tok.Hash))
	assert.False(t, svc.Verify(tok.Raw+"x", tok.Hash))
	assert.False(t, svc.Verify("different-token", tok.Hash))
}

func TestVerify_EmptyInputs(t *testing.T) {
	svc, err := NewService(testSecret)
	require.NoError(t, err)

	assert.False(t, svc.Verify("", "somehash"))
	assert.False(t, svc.Verify("someraw", ""))
	assert.False(t, svc.Verify("", ""))
}

// hash(x) is a function: same input, same output under a fixed secret.
func TestHash_Deterministic(t *testing.T) {
	svc, err := NewService(testSecret)
	require.NoError(t, err)

	h1 := svc.Hash("fixed-input")
	h2 := svc.Hash("fixed-input")
	assert.Equal(t, h1, h2)

	other, err := NewService("ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	assert.NotEqual(t, h1, other.Hash("fixed-input"), "different secrets must produce different hashes")
}
