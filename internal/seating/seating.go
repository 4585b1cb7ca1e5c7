// Package seating assigns admitted participants to rooms and seats.
// The policy spreads registrants of the same institution across rooms
// so teammates do not sit together, and derives the variant from the
// seat number so neighbours hold different variants.
package seating

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/store"
)

// ErrNoRooms reports a competition without rooms. The admission
// workflow falls back to a random variant with no seat.
var ErrNoRooms = errors.New("competition has no rooms")

// maxConflictRetries bounds the refresh-and-retry loop on seat
// collisions between concurrent admissions.
const maxConflictRetries = 3

var logger = log.New(log.Writer(), "[SEATING] ", log.LstdFlags)

// Scheduler picks rooms and seats using the repositories of the
// caller's transactional store view.
type Scheduler struct{}

func NewScheduler() *Scheduler { return &Scheduler{} }

// Assign seats the registration. Idempotent: an existing assignment is
// returned unchanged. Returns ErrNoRooms when the competition has no
// rooms and a no-free-seats error when every room is full.
func (s *Scheduler) Assign(ctx context.Context, st store.Store, comp domain.Competition, reg domain.Registration, participant domain.Participant) (domain.SeatAssignment, error) {
	existing, err := st.SeatAssignments().GetByRegistration(ctx, reg.ID)
	if err == nil {
		return existing, nil
	}
	if !domain.IsKind(err, domain.KindNotFound) {
		return domain.SeatAssignment{}, err
	}

	rooms, err := st.Rooms().ListByCompetition(ctx, comp.ID)
	if err != nil {
		return domain.SeatAssignment{}, err
	}
	if len(rooms) == 0 {
		return domain.SeatAssignment{}, ErrNoRooms
	}

	for attempt := 0; ; attempt++ {
		assignment, err := s.tryAssign(ctx, st, comp, reg, participant, rooms)
		if domain.IsKind(err, domain.KindDuplicate) && attempt < maxConflictRetries {
			logger.Printf("seat conflict for registration %s, retrying (%d)", reg.ID, attempt+1)
			continue
		}
		return assignment, err
	}
}

func (s *Scheduler) tryAssign(ctx context.Context, st store.Store, comp domain.Competition, reg domain.Registration, participant domain.Participant, rooms []domain.Room) (domain.SeatAssignment, error) {
	room, err := s.pickRoom(ctx, st, rooms, participant.InstitutionID)
	if err != nil {
		return domain.SeatAssignment{}, err
	}

	taken, err := st.SeatAssignments().ListByRoom(ctx, room.ID)
	if err != nil {
		return domain.SeatAssignment{}, err
	}
	seat := smallestFreeSeat(taken)
	variant := VariantForSeat(seat, comp.VariantsCount)

	assignment, err := domain.NewSeatAssignment(reg.ID, room.ID, seat, variant)
	if err != nil {
		return domain.SeatAssignment{}, err
	}
	if err := st.SeatAssignments().Create(ctx, assignment); err != nil {
		return domain.SeatAssignment{}, err
	}
	return assignment, nil
}

// pickRoom minimises the count of same-institution registrants already
// seated; ties break toward the room with the most free seats.
func (s *Scheduler) pickRoom(ctx context.Context, st store.Store, rooms []domain.Room, institutionID *uuid.UUID) (domain.Room, error) {
	type candidate struct {
		room      domain.Room
		sameInst  int
		freeSeats int
	}
	var candidates []candidate
	for _, room := range rooms {
		occupied, err := st.SeatAssignments().CountByRoom(ctx, room.ID)
		if err != nil {
			return domain.Room{}, err
		}
		free := room.Capacity - occupied
		if free <= 0 {
			continue
		}
		sameInst := 0
		if institutionID != nil {
			sameInst, err = st.SeatAssignments().CountByRoomAndInstitution(ctx, room.ID, *institutionID)
			if err != nil {
				return domain.Room{}, err
			}
		}
		candidates = append(candidates, candidate{room: room, sameInst: sameInst, freeSeats: free})
	}
	if len(candidates) == 0 {
		return domain.Room{}, domain.E(domain.KindInvalidState, "no free seats available")
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].sameInst != candidates[j].sameInst {
			return candidates[i].sameInst < candidates[j].sameInst
		}
		return candidates[i].freeSeats > candidates[j].freeSeats
	})
	return candidates[0].room, nil
}

// smallestFreeSeat returns the smallest positive seat number not in
// use.
func smallestFreeSeat(taken []domain.SeatAssignment) int {
	used := make(map[int]bool, len(taken))
	for _, a := range taken {
		used[a.SeatNumber] = true
	}
	for seat := 1; ; seat++ {
		if !used[seat] {
			return seat
		}
	}
}

// VariantForSeat cycles variants with the seat number so adjacent
// seats hold different variants.
func VariantForSeat(seat, variantsCount int) int {
	return (seat % variantsCount) + 1
}
