package seating

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/store"
)

type fixture struct {
	st   *store.Memory
	comp domain.Competition
}

func newFixture(t *testing.T, variants int) *fixture {
	t.Helper()
	st := store.NewMemory()
	comp, err := domain.NewCompetition("City Olympiad",
		time.Now().Add(24*time.Hour), time.Now(), time.Now().Add(12*time.Hour),
		variants, 100, uuid.New())
	require.NoError(t, err)
	require.NoError(t, st.Competitions().Create(context.Background(), comp))
	return &fixture{st: st, comp: comp}
}

func (f *fixture) addRoom(t *testing.T, name string, capacity int) domain.Room {
	t.Helper()
	room, err := domain.NewRoom(f.comp.ID, name, capacity)
	require.NoError(t, err)
	require.NoError(t, f.st.Rooms().Create(context.Background(), room))
	return room
}

// addRegistrant creates user, participant and registration in one go.
func (f *fixture) addRegistrant(t *testing.T, institutionID *uuid.UUID) (domain.Registration, domain.Participant) {
	t.Helper()
	ctx := context.Background()
	user, err := domain.NewUser(uuid.NewString()+"@example.com", "hash", domain.RoleParticipant)
	require.NoError(t, err)
	require.NoError(t, f.st.Users().Create(ctx, user))

	p, err := domain.NewParticipant(user.ID, "Test Person", "School No 1", nil)
	require.NoError(t, err)
	p.InstitutionID = institutionID
	require.NoError(t, f.st.Participants().Create(ctx, p))

	reg := domain.NewRegistration(p.ID, f.comp.ID)
	require.NoError(t, f.st.Registrations().Create(ctx, reg))
	return reg, p
}

func TestAssign_NoRooms(t *testing.T) {
	f := newFixture(t, 4)
	reg, p := f.addRegistrant(t, nil)

	_, err := NewScheduler().Assign(context.Background(), f.st, f.comp, reg, p)
	assert.ErrorIs(t, err, ErrNoRooms)
}

func TestAssign_Idempotent(t *testing.T) {
	f := newFixture(t, 4)
	f.addRoom(t, "101", 10)
	reg, p := f.addRegistrant(t, nil)
	sched := NewScheduler()
	ctx := context.Background()

	first, err := sched.Assign(ctx, f.st, f.comp, reg, p)
	require.NoError(t, err)

	second, err := sched.Assign(ctx, f.st, f.comp, reg, p)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.SeatNumber, second.SeatNumber)
}

// Registrants of one institution must spread across rooms before any
// room takes a second one.
func TestAssign_SpreadsInstitutionAcrossRooms(t *testing.T) {
	f := newFixture(t, 4)
	roomA := f.addRoom(t, "A", 10)
	roomB := f.addRoom(t, "B", 10)
	roomC := f.addRoom(t, "C", 10)
	inst := uuid.New()
	sched := NewScheduler()
	ctx := context.Background()

	seen := map[uuid.UUID]int{}
	for i := 0; i < 3; i++ {
		reg, p := f.addRegistrant(t, &inst)
		a, err := sched.Assign(ctx, f.st, f.comp, reg, p)
		require.NoError(t, err)
		seen[a.RoomID]++
	}
	assert.Equal(t, 1, seen[roomA.ID])
	assert.Equal(t, 1, seen[roomB.ID])
	assert.Equal(t, 1, seen[roomC.ID])

	// The fourth teammate wraps around to the emptiest room.
	reg, p := f.addRegistrant(t, &inst)
	a, err := sched.Assign(ctx, f.st, f.comp, reg, p)
	require.NoError(t, err)
	assert.Contains(t, seen, a.RoomID)
}

func TestAssign_SmallestFreeSeatAndVariant(t *testing.T) {
	f := newFixture(t, 4)
	f.addRoom(t, "101", 10)
	sched := NewScheduler()
	ctx := context.Background()

	for want := 1; want <= 5; want++ {
		reg, p := f.addRegistrant(t, nil)
		a, err := sched.Assign(ctx, f.st, f.comp, reg, p)
		require.NoError(t, err)
		assert.Equal(t, want, a.SeatNumber)
		assert.Equal(t, (want%4)+1, a.VariantNumber)
	}
}

func TestAssign_NoFreeSeats(t *testing.T) {
	f := newFixture(t, 2)
	f.addRoom(t, "tiny", 1)
	sched := NewScheduler()
	ctx := context.Background()

	reg, p := f.addRegistrant(t, nil)
	_, err := sched.Assign(ctx, f.st, f.comp, reg, p)
	require.NoError(t, err)

	reg2, p2 := f.addRegistrant(t, nil)
	_, err = sched.Assign(ctx, f.st, f.comp, reg2, p2)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInvalidState))
}

func TestVariantForSeat_Cycles(t *testing.T) {
	cases := []struct {
		seat, variants, want int
	}{
		{1, 4, 2},
		{2, 4, 3},
		{3, 4, 4},
		{4, 4, 1},
		{5, 4, 2},
		{1, 1, 1},
		{7, 1, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, VariantForSeat(tc.seat, tc.variants))
	}
}
