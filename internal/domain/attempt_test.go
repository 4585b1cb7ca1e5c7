package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func newTestAttempt(t *testing.T) Attempt {
	t.Helper()
	a, err := NewAttempt(uuid.New(), 2, "abc123")
	require.NoError(t, err)
	return a
}

func TestAttempt_MarkScanned(t *testing.T) {
	a := newTestAttempt(t)
	require.NoError(t, a.MarkScanned())
	assert.Equal(t, AttemptScanned, a.Status)

	err := a.MarkScanned()
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestAttempt_ApplyScore(t *testing.T) {
	a := newTestAttempt(t)

	// From printed, with OCR confidence
	require.NoError(t, a.ApplyScore(87, f64(0.92)))
	assert.Equal(t, AttemptScored, a.Status)
	require.NotNil(t, a.ScoreTotal)
	assert.Equal(t, 87, *a.ScoreTotal)
	require.NotNil(t, a.Confidence)
	assert.InDelta(t, 0.92, *a.Confidence, 1e-9)

	// Re-score is legal from scored; manual entry clears confidence
	require.NoError(t, a.ApplyScore(90, nil))
	assert.Equal(t, 90, *a.ScoreTotal)
	assert.Nil(t, a.Confidence)
}

func TestAttempt_ApplyScore_Validation(t *testing.T) {
	a := newTestAttempt(t)

	err := a.ApplyScore(-1, nil)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	err = a.ApplyScore(10, f64(1.5))
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	a.Status = AttemptPublished
	err = a.ApplyScore(10, nil)
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

// Every attempt reaching published must carry a score.
func TestAttempt_PublishRequiresScore(t *testing.T) {
	a := newTestAttempt(t)
	err := a.Publish()
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))

	require.NoError(t, a.ApplyScore(55, nil))
	require.NoError(t, a.Publish())
	assert.Equal(t, AttemptPublished, a.Status)
	assert.NotNil(t, a.ScoreTotal)
}

func TestAttempt_InvalidateFromAnyStatus(t *testing.T) {
	for _, status := range []AttemptStatus{AttemptPrinted, AttemptScanned, AttemptScored, AttemptPublished, AttemptInvalidated} {
		a := newTestAttempt(t)
		a.Status = status
		a.Invalidate()
		assert.Equal(t, AttemptInvalidated, a.Status)
	}
}

func TestEntryToken_UseOnce(t *testing.T) {
	tok, err := NewEntryToken(uuid.New(), "hash", "raw", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, tok.IsValid())

	require.NoError(t, tok.Use())
	assert.True(t, tok.IsUsed())
	assert.False(t, tok.IsValid())

	err = tok.Use()
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestEntryToken_ExpiredCannotBeUsed(t *testing.T) {
	tok, err := NewEntryToken(uuid.New(), "hash", "raw", 24*time.Hour)
	require.NoError(t, err)
	tok.ExpiresAt = time.Now().UTC().Add(-time.Minute)

	assert.True(t, tok.IsExpired())
	err = tok.Use()
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.False(t, tok.IsUsed())
}

func TestEntryToken_Refresh(t *testing.T) {
	tok, err := NewEntryToken(uuid.New(), "oldhash", "oldraw", time.Hour)
	require.NoError(t, err)
	tok.ExpiresAt = time.Now().UTC().Add(-time.Minute)

	require.NoError(t, tok.Refresh("newhash", "newraw", 24*time.Hour))
	assert.Equal(t, "newhash", tok.TokenHash)
	assert.Equal(t, "newraw", tok.RawToken)
	assert.False(t, tok.IsExpired())

	// Used tokens cannot be refreshed
	require.NoError(t, tok.Use())
	err = tok.Refresh("another", "another", 24*time.Hour)
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestScan_VerifyAndOCR(t *testing.T) {
	s, err := NewScan(uuid.New(), nil, "scans/x.png", uuid.New())
	require.NoError(t, err)
	assert.False(t, s.IsProcessed())

	score := 87
	require.NoError(t, s.UpdateOCRResult(&score, f64(0.92), "87"))
	assert.True(t, s.IsProcessed())

	corrected := 82
	verifier := uuid.New()
	require.NoError(t, s.Verify(verifier, &corrected))
	assert.True(t, s.IsVerified())
	assert.Equal(t, 82, *s.OCRScore)

	bad := -5
	err = s.Verify(verifier, &bad)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}
