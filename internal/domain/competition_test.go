package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompetition(t *testing.T) Competition {
	t.Helper()
	now := time.Now().UTC()
	c, err := NewCompetition("Math", now.Add(72*time.Hour), now, now.Add(48*time.Hour), 4, 100, uuid.New())
	require.NoError(t, err)
	return c
}

func TestNewCompetition_Validation(t *testing.T) {
	now := time.Now().UTC()
	later := now.Add(time.Hour)

	tests := []struct {
		name     string
		compName string
		regStart time.Time
		regEnd   time.Time
		variants int
		maxScore int
	}{
		{"short name", "Ma", now, later, 4, 100},
		{"start after end", "Math", later, now, 4, 100},
		{"start equals end", "Math", now, now, 4, 100},
		{"zero variants", "Math", now, later, 0, 100},
		{"zero max score", "Math", now, later, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompetition(tt.compName, later, tt.regStart, tt.regEnd, tt.variants, tt.maxScore, uuid.New())
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestCompetition_LegalTransitionChain(t *testing.T) {
	c := newTestCompetition(t)
	assert.Equal(t, CompetitionDraft, c.Status)

	require.NoError(t, c.OpenRegistration())
	assert.Equal(t, CompetitionRegistrationOpen, c.Status)
	assert.True(t, c.IsRegistrationOpen())

	require.NoError(t, c.Start())
	assert.Equal(t, CompetitionInProgress, c.Status)
	assert.True(t, c.IsInProgress())

	require.NoError(t, c.StartChecking())
	assert.Equal(t, CompetitionChecking, c.Status)

	require.NoError(t, c.PublishResults())
	assert.Equal(t, CompetitionPublished, c.Status)
	assert.True(t, c.ResultsPublished())
}

// The set of legal transitions must be exactly the four one-way steps; any
// other pair is rejected with an invalid_state error.
func TestCompetition_IllegalTransitionsRejected(t *testing.T) {
	all := []CompetitionStatus{
		CompetitionDraft, CompetitionRegistrationOpen, CompetitionInProgress,
		CompetitionChecking, CompetitionPublished,
	}
	legal := map[CompetitionStatus]CompetitionStatus{
		CompetitionDraft:            CompetitionRegistrationOpen,
		CompetitionRegistrationOpen: CompetitionInProgress,
		CompetitionInProgress:       CompetitionChecking,
		CompetitionChecking:         CompetitionPublished,
	}

	for _, from := range all {
		for _, to := range all {
			c := newTestCompetition(t)
			c.Status = from
			err := c.transition(to)
			if legal[from] == to {
				assert.NoError(t, err, "%s -> %s should be legal", from, to)
			} else {
				require.Error(t, err, "%s -> %s should be illegal", from, to)
				assert.Equal(t, KindInvalidState, KindOf(err))
				assert.Equal(t, from, c.Status, "status must not change on failure")
			}
		}
	}
}

func TestRegistration_Transitions(t *testing.T) {
	r := NewRegistration(uuid.New(), uuid.New())
	assert.Equal(t, RegistrationPending, r.Status)

	require.NoError(t, r.Admit())
	assert.Equal(t, RegistrationAdmitted, r.Status)

	// Admit again fails
	err := r.Admit()
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))

	require.NoError(t, r.Complete())
	assert.Equal(t, RegistrationCompleted, r.Status)

	// Cancel is legal from any non-cancelled status
	require.NoError(t, r.Cancel())
	assert.Equal(t, RegistrationCancelled, r.Status)
	assert.False(t, r.IsActive())

	err = r.Cancel()
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestRegistration_CompleteRequiresAdmitted(t *testing.T) {
	r := NewRegistration(uuid.New(), uuid.New())
	err := r.Complete()
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
}
