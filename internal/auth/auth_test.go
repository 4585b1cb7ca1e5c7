package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olympiadqr/backend/internal/domain"
)

func testUser(t *testing.T, role domain.UserRole) domain.User {
	t.Helper()
	u, err := domain.NewUser("person@example.com", "irrelevant", role)
	require.NoError(t, err)
	return u
}

func TestIssueAndParse(t *testing.T) {
	m := NewManager("test-secret", 60)
	user := testUser(t, domain.RoleScanner)

	signed, err := m.Issue(user)
	require.NoError(t, err)

	claims, err := m.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID())
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, "scanner", claims.Role)
}

func TestParse_RejectsExpired(t *testing.T) {
	m := NewManager("test-secret", 0)
	user := testUser(t, domain.RoleParticipant)

	signed, err := m.Issue(user)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = m.Parse(signed)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
}

func TestParse_RejectsWrongSecret(t *testing.T) {
	signed, err := NewManager("secret-one", 60).Issue(testUser(t, domain.RoleAdmin))
	require.NoError(t, err)

	_, err = NewManager("secret-two", 60).Parse(signed)
	require.Error(t, err)
}

func TestPasswordRoundtrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse battery"))
	assert.False(t, CheckPassword(hash, "wrong password"))

	_, err = HashPassword("short")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestRequire(t *testing.T) {
	admitter := Subject{User: testUser(t, domain.RoleAdmitter), Present: true}
	admin := Subject{User: testUser(t, domain.RoleAdmin), Present: true}
	inactive := Subject{User: testUser(t, domain.RoleAdmitter), Present: true}
	inactive.User.IsActive = false

	assert.NoError(t, Require(admitter, domain.RoleAdmitter))
	assert.NoError(t, Require(admin, domain.RoleAdmitter), "admin is a superset of every role")

	err := Require(Subject{}, domain.RoleAdmitter)
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))

	err = Require(admitter, domain.RoleScanner)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	err = Require(inactive, domain.RoleAdmitter)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
}

func TestRequireOwnership(t *testing.T) {
	user := testUser(t, domain.RoleParticipant)
	other := testUser(t, domain.RoleParticipant)
	p, err := domain.NewParticipant(user.ID, "Owner Person", "School", nil)
	require.NoError(t, err)

	assert.NoError(t, RequireOwnership(Subject{User: user, Present: true}, p))
	assert.NoError(t, RequireOwnership(Subject{User: testUser(t, domain.RoleAdmin), Present: true}, p))

	err = RequireOwnership(Subject{User: other, Present: true}, p)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
}
