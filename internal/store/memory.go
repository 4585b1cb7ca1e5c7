package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/domain"
)

// Memory is the in-memory Store used by tests and local development: maps
// keyed by id plus the secondary lookups the interfaces enumerate. WithTx
// snapshots the maps and restores them when fn fails, so workflows observe
// the same all-or-nothing behaviour as the Postgres store.
type Memory struct {
	mu   *sync.Mutex
	data *memData
	inTx bool
}

type memData struct {
	users        map[uuid.UUID]domain.User
	participants map[uuid.UUID]domain.Participant
	institutions map[uuid.UUID]domain.Institution
	competitions map[uuid.UUID]domain.Competition
	rooms        map[uuid.UUID]domain.Room
	regs         map[uuid.UUID]domain.Registration
	tokens       map[uuid.UUID]domain.EntryToken
	seats        map[uuid.UUID]domain.SeatAssignment
	attempts     map[uuid.UUID]domain.Attempt
	sheets       map[uuid.UUID]domain.AnswerSheet
	scans        map[uuid.UUID]domain.Scan
	events       map[uuid.UUID]domain.ParticipantEvent
	documents    map[uuid.UUID]domain.Document
	audit        []domain.AuditLog
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		mu: &sync.Mutex{},
		data: &memData{
			users:        map[uuid.UUID]domain.User{},
			participants: map[uuid.UUID]domain.Participant{},
			institutions: map[uuid.UUID]domain.Institution{},
			competitions: map[uuid.UUID]domain.Competition{},
			rooms:        map[uuid.UUID]domain.Room{},
			regs:         map[uuid.UUID]domain.Registration{},
			tokens:       map[uuid.UUID]domain.EntryToken{},
			seats:        map[uuid.UUID]domain.SeatAssignment{},
			attempts:     map[uuid.UUID]domain.Attempt{},
			sheets:       map[uuid.UUID]domain.AnswerSheet{},
			scans:        map[uuid.UUID]domain.Scan{},
			events:       map[uuid.UUID]domain.ParticipantEvent{},
			documents:    map[uuid.UUID]domain.Document{},
		},
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		users:        make(map[uuid.UUID]domain.User, len(d.users)),
		participants: make(map[uuid.UUID]domain.Participant, len(d.participants)),
		institutions: make(map[uuid.UUID]domain.Institution, len(d.institutions)),
		competitions: make(map[uuid.UUID]domain.Competition, len(d.competitions)),
		rooms:        make(map[uuid.UUID]domain.Room, len(d.rooms)),
		regs:         make(map[uuid.UUID]domain.Registration, len(d.regs)),
		tokens:       make(map[uuid.UUID]domain.EntryToken, len(d.tokens)),
		seats:        make(map[uuid.UUID]domain.SeatAssignment, len(d.seats)),
		attempts:     make(map[uuid.UUID]domain.Attempt, len(d.attempts)),
		sheets:       make(map[uuid.UUID]domain.AnswerSheet, len(d.sheets)),
		scans:        make(map[uuid.UUID]domain.Scan, len(d.scans)),
		events:       make(map[uuid.UUID]domain.ParticipantEvent, len(d.events)),
		documents:    make(map[uuid.UUID]domain.Document, len(d.documents)),
		audit:        append([]domain.AuditLog(nil), d.audit...),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.participants {
		c.participants[k] = v
	}
	for k, v := range d.institutions {
		c.institutions[k] = v
	}
	for k, v := range d.competitions {
		c.competitions[k] = v
	}
	for k, v := range d.rooms {
		c.rooms[k] = v
	}
	for k, v := range d.regs {
		c.regs[k] = v
	}
	for k, v := range d.tokens {
		c.tokens[k] = v
	}
	for k, v := range d.seats {
		c.seats[k] = v
	}
	for k, v := range d.attempts {
		c.attempts[k] = v
	}
	for k, v := range d.sheets {
		c.sheets[k] = v
	}
	for k, v := range d.scans {
		c.scans[k] = v
	}
	for k, v := range d.events {
		c.events[k] = v
	}
	for k, v := range d.documents {
		c.documents[k] = v
	}
	return c
}

func (m *Memory) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// WithTx snapshots the store, runs fn on a transactional view and restores
// the snapshot when fn errors. Nested calls join the outer transaction.
func (m *Memory) WithTx(ctx context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	tx := &Memory{mu: m.mu, data: m.data, inTx: true}
	if err := fn(tx); err != nil {
		*m.data = *snapshot
		return err
	}
	return nil
}

func (m *Memory) Users() UserRepo                     { return memUsers{m} }
func (m *Memory) Participants() ParticipantRepo       { return memParticipants{m} }
func (m *Memory) Institutions() InstitutionRepo       { return memInstitutions{m} }
func (m *Memory) Competitions() CompetitionRepo       { return memCompetitions{m} }
func (m *Memory) Rooms() RoomRepo                     { return memRooms{m} }
func (m *Memory) Registrations() RegistrationRepo     { return memRegistrations{m} }
func (m *Memory) EntryTokens() EntryTokenRepo         { return memEntryTokens{m} }
func (m *Memory) SeatAssignments() SeatAssignmentRepo { return memSeats{m} }
func (m *Memory) Attempts() AttemptRepo               { return memAttempts{m} }
func (m *Memory) AnswerSheets() AnswerSheetRepo       { return memSheets{m} }
func (m *Memory) Scans() ScanRepo                     { return memScans{m} }
func (m *Memory) Events() ParticipantEventRepo        { return memEvents{m} }
func (m *Memory) Documents() DocumentRepo             { return memDocuments{m} }
func (m *Memory) Audit() AuditLogRepo                 { return memAudit{m} }

var _ Store = (*Memory)(nil)

func notFound(what string) error { return domain.E(domain.KindNotFound, "%s not found", what) }

// ---------------------------------------------------------------------------
// users

type memUsers struct{ m *Memory }

func (r memUsers) Create(_ context.Context, u domain.User) error {
	defer r.m.lock()()
	for _, existing := range r.m.data.users {
		if existing.Email == u.Email {
			return domain.E(domain.KindDuplicate, "email %s already registered", u.Email)
		}
	}
	r.m.data.users[u.ID] = u
	return nil
}

func (r memUsers) GetByID(_ context.Context, id uuid.UUID) (domain.User, error) {
	defer r.m.lock()()
	u, ok := r.m.data.users[id]
	if !ok {
		return domain.User{}, notFound("user")
	}
	return u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	defer r.m.lock()()
	for _, u := range r.m.data.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return domain.User{}, notFound("user")
}

func (r memUsers) Update(_ context.Context, u domain.User) error {
	defer r.m.lock()()
	if _, ok := r.m.data.users[u.ID]; !ok {
		return notFound("user")
	}
	r.m.data.users[u.ID] = u
	return nil
}

func (r memUsers) Delete(_ context.Context, id uuid.UUID) error {
	defer r.m.lock()()
	if _, ok := r.m.data.users[id]; !ok {
		return notFound("user")
	}
	delete(r.m.data.users, id)
	return nil
}

func (r memUsers) List(_ context.Context, page Page) ([]domain.User, error) {
	defer r.m.lock()()
	all := make([]domain.User, 0, len(r.m.data.users))
	for _, u := range r.m.data.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginateUsers(all, page), nil
}

func paginateUsers(all []domain.User, page Page) []domain.User {
	page = page.Clamp()
	if page.Skip >= len(all) {
		return nil
	}
	end := page.Skip + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[page.Skip:end]
}

// ---------------------------------------------------------------------------
// participants

type memParticipants struct{ m *Memory }

func (r memParticipants) Create(_ context.Context, p domain.Participant) error {
	defer r.m.lock()()
	for _, existing := range r.m.data.participants {
		if existing.UserID == p.UserID {
			return domain.E(domain.KindDuplicate, "participant profile already exists for user")
		}
	}
	r.m.data.participants[p.ID] = p
	return nil
}

func (r memParticipants) GetByID(_ context.Context, id uuid.UUID) (domain.Participant, error) {
	defer r.m.lock()()
	p, ok := r.m.data.participants[id]
	if !ok {
		return domain.Participant{}, notFound("participant")
	}
	return p, nil
}

func (r memParticipants) GetByUserID(_ context.Context, userID uuid.UUID) (domain.Participant, error) {
	defer r.m.lock()()
	for _, p := range r.m.data.participants {
		if p.UserID == userID {
			return p, nil
		}
	}
	return domain.Participant{}, notFound("participant")
}

func (r memParticipants) Update(_ context.Context, p domain.Participant) error {
	defer r.m.lock()()
	if _, ok := r.m.data.participants[p.ID]; !ok {
		return notFound("participant")
	}
	r.m.data.participants[p.ID] = p
	return nil
}

func (r memParticipants) Delete(_ context.Context, id uuid.UUID) error {
	defer r.m.lock()()
	if _, ok := r.m.data.participants[id]; !ok {
		return notFound("participant")
	}
	delete(r.m.data.participants, id)
	return nil
}

func (r memParticipants) List(_ context.Context, page Page) ([]domain.Participant, error) {
	defer r.m.lock()()
	all := make([]domain.Participant, 0, len(r.m.data.participants))
	for _, p := range r.m.data.participants {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	page = page.Clamp()
	if page.Skip >= len(all) {
		return nil, nil
	}
	end := page.Skip + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[page.Skip:end], nil
}

// ---------------------------------------------------------------------------
// institutions

type memInstitutions struct{ m *Memory }

func (r memInstitutions) Create(_ context.Context, i domain.Institution) error {
	defer r.m.lock()()
	for _, existing := range r.m.data.institutions {
		if strings.EqualFold(existing.Name, i.Name) {
			return domain.E(domain.KindDuplicate, "institution %q already exists", i.Name)
		}
	}
	r.m.data.institutions[i.ID] = i
	return nil
}

func (r memInstitutions) GetByID(_ context.Context, id uuid.UUID) (domain.Institution, error) {
	defer r.m.lock()()
	i, ok := r.m.data.institutions[id]
	if !ok {
		return domain.Institution{}, notFound("institution")
	}
	return i, nil
}

func (r memInstitutions) GetByName(_ context.Context, name string) (domain.Institution, error) {
	defer r.m.lock()()
	for _, i := range r.m.data.institutions {
		if strings.EqualFold(i.Name, name) {
			return i, nil
		}
	}
	return domain.Institution{}, notFound("institution")
}

func (r memInstitutions) Search(_ context.Context, query string, page Page) ([]domain.Institution, error) {
	defer r.m.lock()()
	q := strings.ToLower(query)
	var all []domain.Institution
	for _, i := range r.m.data.institutions {
		if strings.Contains(strings.ToLower(i.Name), q) || strings.Contains(strings.ToLower(i.City), q) {
			all = append(all, i)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	page = page.Clamp()
	if page.Skip >= len(all) {
		return nil, nil
	}
	end := page.Skip + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[page.Skip:end], nil
}

func (r memInstitutions) List(ctx context.Context, page Page) ([]domain.Institution, error) {
	return r.Search(ctx, "", page)
}

// ---------------------------------------------------------------------------
// competitions

type memCompetitions struct{ m *Memory }

func (r memCompetitions) Create(_ context.Context, c domain.Competition) error {
	defer r.m.lock()()
	r.m.data.competitions[c.ID] = c
	return nil
}

func (r memCompetitions) GetByID(_ context.Context, id uuid.UUID) (domain.Competition, error) {
	defer r.m.lock()()
	c, ok := r.m.data.competitions[id]
	if !ok {
		return domain.Competition{}, notFound("competition")
	}
	return c, nil
}

func (r memCompetitions) Update(_ context.Context, c domain.Competition) error {
	defer r.m.lock()()
	if _, ok := r.m.data.competitions[c.ID]; !ok {
		return notFound("competition")
	}
	r.m.data.competitions[c.ID] = c
	return nil
}

func (r memCompetitions) Delete(_ context.Context, id uuid.UUID) error {
	defer r.m.lock()()
	if _, ok := r.m.data.competitions[id]; !ok {
		return notFound("competition")
	}
	delete(r.m.data.competitions, id)
	return nil
}

func (r memCompetitions) List(_ context.Context, page Page) ([]domain.Competition, error) {
	defer r.m.lock()()
	return r.filtered(func(domain.Competition) bool { return true }, page), nil
}

func (r memCompetitions) ListByStatus(_ context.Context, status domain.CompetitionStatus, page Page) ([]domain.Competition, error) {
	defer r.m.lock()()
	return r.filtered(func(c domain.Competition) bool { return c.Status == status }, page), nil
}

func (r memCompetitions) filtered(keep func(domain.Competition) bool, page Page) []domain.Competition {
	var all []domain.Competition
	for _, c := range r.m.data.competitions {
		if keep(c) {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	page = page.Clamp()
	if page.Skip >= len(all) {
		return nil
	}
	end := page.Skip + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[page.Skip:end]
}

// ---------------------------------------------------------------------------
// rooms

type memRooms struct{ m *Memory }

func (r memRooms) Create(_ context.Context, room domain.Room) error {
	defer r.m.lock()()
	for _, existing := range r.m.data.rooms {
		if existing.CompetitionID == room.CompetitionID && existing.Name == room.Name {
			return domain.E(domain.KindDuplicate, "room %q already exists in competition", room.Name)
		}
	}
	r.m.data.rooms[room.ID] = room
	return nil
}

func (r memRooms) GetByID(_ context.Context, id uuid.UUID) (domain.Room, error) {
	defer r.m.lock()()
	room, ok := r.m.data.rooms[id]
	if !ok {
		return domain.Room{}, notFound("room")
	}
	return room, nil
}

func (r memRooms) Update(_ context.Context, room domain.Room) error {
	defer r.m.lock()()
	if _, ok := r.m.data.rooms[room.ID]; !ok {
		return notFound("room")
	}
	r.m.data.rooms[room.ID] = room
	return nil
}

func (r memRooms) Delete(_ context.Context, id uuid.UUID) error {
	defer r.m.lock()()
	if _, ok := r.m.data.rooms[id]; !ok {
		return notFound("room")
	}
	delete(r.m.data.rooms, id)
	return nil
}

func (r memRooms) ListByCompetition(_ context.Context, competitionID uuid.UUID) ([]domain.Room, error) {
	defer r.m.lock()()
	var all []domain.Room
	for _, room := range r.m.data.rooms {
		if room.CompetitionID == competitionID {
			all = append(all, room)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

// ---------------------------------------------------------------------------
// registrations

type memRegistrations struct{ m *Memory }

func (r memRegistrations) Create(_ context.Context, reg domain.Registration) error {
	defer r.m.lock()()
	for _, existing := range r.m.data.regs {
		if existing.ParticipantID == reg.ParticipantID && existing.CompetitionID == reg.CompetitionID {
			return domain.E(domain.KindDuplicate, "already registered for this competition")
		}
	}
	r.m.data.regs[reg.ID] = reg
	return nil
}

func (r memRegistrations) GetByID(_ context.Context, id uuid.UUID) (domain.Registration, error) {
	defer r.m.lock()()
	reg, ok := r.m.data.regs[id]
	if !ok {
		return domain.Registration{}, notFound("registration")
	}
	return reg, nil
}

func (r memRegistrations) GetByParticipantAndCompetition(_ context.Context, participantID, competitionID uuid.UUID) (domain.Registration, error) {
	defer r.m.lock()()
	for _, reg := range r.m.data.regs {
		if reg.ParticipantID == participantID && reg.CompetitionID == competitionID {
			return reg, nil
		}
	}
	return domain.Registration{}, notFound("registration")
}

func (r memRegistrations) Update(_ context.Context, reg domain.Registration) error {
	defer r.m.lock()()
	if _, ok := r.m.data.regs[reg.ID]; !ok {
		return notFound("registration")
	}
	r.m.data.regs[reg.ID] = reg
	return nil
}

func (r memRegistrations) ListByParticipant(_ context.Context, participantID uuid.UUID) ([]domain.Registration, error) {
	defer r.m.lock()()
	var all []domain.Registration
	for _, reg := range r.m.data.regs {
		if reg.ParticipantID == participantID {
			all = append(all, reg)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

func (r memRegistrations) ListByCompetition(_ context.Context, competitionID uuid.UUID, page Page) ([]domain.Registration, error) {
	defer r.m.lock()()
	var all []domain.Registration
	for _, reg := range r.m.data.regs {
		if reg.CompetitionID == competitionID {
			all = append(all, reg)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	page = page.Clamp()
	if page.Skip >= len(all) {
		return nil, nil
	}
	end := page.Skip + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[page.Skip:end], nil
}

func (r memRegistrations) CountByCompetitionAndStatus(_ context.Context, competitionID uuid.UUID, status domain.RegistrationStatus) (int, error) {
	defer r.m.lock()()
	n := 0
	for _, reg := range r.m.data.regs {
		if reg.CompetitionID == competitionID && reg.Status == status {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// entry tokens

type memEntryTokens struct{ m *Memory }

func (r memEntryTokens) Create(_ context.Context, t domain.EntryToken) error {
	defer r.m.lock()()
	for _, existing := range r.m.data.tokens {
		if existing.RegistrationID == t.RegistrationID {
			return domain.E(domain.KindDuplicate, "entry token already exists for registration")
		}
		if existing.TokenHash == t.TokenHash {
			return domain.E(domain.KindDuplicate, "token hash collision")
		}
	}
	r.m.data.tokens[t.ID] = t
	return nil
}

func (r memEntryTokens) GetByID(_ context.Context, id uuid.UUID) (domain.EntryToken, error) {
	defer r.m.lock()()
	t, ok := r.m.data.tokens[id]
	if !ok {
		return domain.EntryToken{}, notFound("entry token")
	}
	return t, nil
}

func (r memEntryTokens) GetByTokenHash(_ context.Context, hash string) (domain.EntryToken, error) {
	defer r.m.lock()()
	for _, t := range r.m.data.tokens {
		if t.TokenHash == hash {
			return t, nil
		}
	}
	return domain.EntryToken{}, notFound("entry token")
}

func (r memEntryTokens) GetByRegistration(_ context.Context, registrationID uuid.UUID) (domain.EntryToken, error) {
	defer r.m.lock()()
	for _, t := range r.m.data.tokens {
		if t.RegistrationID == registrationID {
			return t, nil
		}
	}
	return domain.EntryToken{}, notFound("entry token")
}

func (r memEntryTokens) Update(_ context.Context, t domain.EntryToken) error {
	defer r.m.lock()()
	if _, ok := r.m.data.tokens[t.ID]; !ok {
		return notFound("entry token")
	}
	r.m.data.tokens[t.ID] = t
	return nil
}

// ---------------------------------------------------------------------------
// seat assignments

type memSeats struct{ m *Memory }

func (r memSeats) Create(_ context.Context, a domain.SeatAssignment) error {
	defer r.m.lock()()
	for _, existing := range r.m.data.seats {
		if existing.RoomID == a.RoomID && existing.SeatNumber == a.SeatNumber {
			return domain.E(domain.KindDuplicate, "seat %d in room already taken", a.SeatNumber)
		}
		if existing.RegistrationID == a.RegistrationID {
			return domain.E(domain.KindDuplicate, "registration already has a seat")
		}
	}
	r.m.data.seats[a.ID] = a
	return nil
}

func (r memSeats) GetByRegistration(_ context.Context, registrationID uuid.UUID) (domain.SeatAssignment, error) {
	defer r.m.lock()()
	for _, a := range r.m.data.seats {
		if a.RegistrationID == registrationID {
			return a, nil
		}
	}
	return domain.SeatAssignment{}, notFound("seat assignment")
}

func (r memSeats) ListByRoom(_ context.Context, roomID uuid.UUID) ([]domain.SeatAssignment, error) {
	defer r.m.lock()()
	var all []domain.SeatAssignment
	for _, a := range r.m.data.seats {
		if a.RoomID == roomID {
			all = append(all, a)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SeatNumber < all[j].SeatNumber })
	return all, nil
}

func (r memSeats) CountByRoom(_ context.Context, roomID uuid.UUID) (int, error) {
	defer r.m.lock()()
	n := 0
	for _, a := range r.m.data.seats {
		if a.RoomID == roomID {
			n++
		}
	}
	return n, nil
}

func (r memSeats) CountByRoomAndInstitution(_ context.Context, roomID, institutionID uuid.UUID) (int, error) {
	defer r.m.lock()()
	n := 0
	for _, a := range r.m.data.seats {
		if a.RoomID != roomID {
			continue
		}
		reg, ok := r.m.data.regs[a.RegistrationID]
		if !ok {
			continue
		}
		p, ok := r.m.data.participants[reg.ParticipantID]
		if !ok || p.InstitutionID == nil {
			continue
		}
		if *p.InstitutionID == institutionID {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// attempts

type memAttempts struct{ m *Memory }

func (r memAttempts) Create(_ context.Context, a domain.Attempt) error {
	defer r.m.lock()()
	for _, existing := range r.m.data.attempts {
		if existing.SheetTokenHash == a.SheetTokenHash {
			return domain.E(domain.KindDuplicate, "sheet token hash collision")
		}
	}
	r.m.data.attempts[a.ID] = a
	return nil
}

func (r memAttempts) GetByID(_ context.Context, id uuid.UUID) (domain.Attempt, error) {
	defer r.m.lock()()
	a, ok := r.m.data.attempts[id]
	if !ok {
		return domain.Attempt{}, notFound("attempt")
	}
	return a, nil
}

func (r memAttempts) GetBySheetTokenHash(_ context.Context, hash string) (domain.Attempt, error) {
	defer r.m.lock()()
	for _, a := range r.m.data.attempts {
		if a.SheetTokenHash == hash {
			return a, nil
		}
	}
	// Extra sheets carry their own tokens but resolve to the same attempt.
	for _, s := range r.m.data.sheets {
		if s.SheetTokenHash == hash {
			if a, ok := r.m.data.attempts[s.AttemptID]; ok {
				return a, nil
			}
		}
	}
	return domain.Attempt{}, notFound("attempt")
}

func (r memAttempts) GetByRegistration(_ context.Context, registrationID uuid.UUID) (domain.Attempt, error) {
	defer r.m.lock()()
	for _, a := range r.m.data.attempts {
		if a.RegistrationID == registrationID {
			return a, nil
		}
	}
	return domain.Attempt{}, notFound("attempt")
}

func (r memAttempts) Update(_ context.Context, a domain.Attempt) error {
	defer r.m.lock()()
	if _, ok := r.m.data.attempts[a.ID]; !ok {
		return notFound("attempt")
	}
	r.m.data.attempts[a.ID] = a
	return nil
}

func (r memAttempts) ListScoredByCompetition(_ context.Context, competitionID uuid.UUID) ([]domain.Attempt, error) {
	defer r.m.lock()()
	var all []domain.Attempt
	for _, a := range r.m.data.attempts {
		if a.Status != domain.AttemptScored && a.Status != domain.AttemptPublished {
			continue
		}
		if a.ScoreTotal == nil {
			continue
		}
		reg, ok := r.m.data.regs[a.RegistrationID]
		if !ok || reg.CompetitionID != competitionID {
			continue
		}
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return *all[i].ScoreTotal > *all[j].ScoreTotal })
	return all, nil
}

func (r memAttempts) CountByCompetitionAndStatus(_ context.Context, competitionID uuid.UUID, status domain.AttemptStatus) (int, error) {
	defer r.m.lock()()
	n := 0
	for _, a := range r.m.data.attempts {
		if a.Status != status {
			continue
		}
		reg, ok := r.m.data.regs[a.RegistrationID]
		if ok && reg.CompetitionID == competitionID {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// answer sheets

type memSheets struct{ m *Memory }

func (r memSheets) Create(_ context.Context, s domain.AnswerSheet) error {
	defer r.m.lock()()
	for _, existing := range r.m.data.sheets {
		if existing.SheetTokenHash == s.SheetTokenHash {
			return domain.E(domain.KindDuplicate, "sheet token hash collision")
		}
	}
	r.m.data.sheets[s.ID] = s
	return nil
}

func (r memSheets) GetByID(_ context.Context, id uuid.UUID) (domain.AnswerSheet, error) {
	defer r.m.lock()()
	s, ok := r.m.data.sheets[id]
	if !ok {
		return domain.AnswerSheet{}, notFound("answer sheet")
	}
	return s, nil
}

func (r memSheets) ListByAttempt(_ context.Context, attemptID uuid.UUID) ([]domain.AnswerSheet, error) {
	defer r.m.lock()()
	var all []domain.AnswerSheet
	for _, s := range r.m.data.sheets {
		if s.AttemptID == attemptID {
			all = append(all, s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

// ---------------------------------------------------------------------------
// scans

type memScans struct{ m *Memory }

func (r memScans) Create(_ context.Context, s domain.Scan) error {
	defer r.m.lock()()
	r.m.data.scans[s.ID] = s
	return nil
}

func (r memScans) GetByID(_ context.Context, id uuid.UUID) (domain.Scan, error) {
	defer r.m.lock()()
	s, ok := r.m.data.scans[id]
	if !ok {
		return domain.Scan{}, notFound("scan")
	}
	return s, nil
}

func (r memScans) Update(_ context.Context, s domain.Scan) error {
	defer r.m.lock()()
	if _, ok := r.m.data.scans[s.ID]; !ok {
		return notFound("scan")
	}
	r.m.data.scans[s.ID] = s
	return nil
}

func (r memScans) List(_ context.Context, page Page) ([]domain.Scan, error) {
	defer r.m.lock()()
	return r.filtered(func(domain.Scan) bool { return true }, page), nil
}

func (r memScans) ListUnverified(_ context.Context, page Page) ([]domain.Scan, error) {
	defer r.m.lock()()
	return r.filtered(func(s domain.Scan) bool { return s.VerifiedBy == nil }, page), nil
}

func (r memScans) filtered(keep func(domain.Scan) bool, page Page) []domain.Scan {
	var all []domain.Scan
	for _, s := range r.m.data.scans {
		if keep(s) {
			all = append(all, s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	page = page.Clamp()
	if page.Skip >= len(all) {
		return nil
	}
	end := page.Skip + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[page.Skip:end]
}

// ---------------------------------------------------------------------------
// participant events

type memEvents struct{ m *Memory }

func (r memEvents) Create(_ context.Context, e domain.ParticipantEvent) error {
	defer r.m.lock()()
	r.m.data.events[e.ID] = e
	return nil
}

func (r memEvents) ListByAttempt(_ context.Context, attemptID uuid.UUID) ([]domain.ParticipantEvent, error) {
	defer r.m.lock()()
	var all []domain.ParticipantEvent
	for _, e := range r.m.data.events {
		if e.AttemptID == attemptID {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) })
	return all, nil
}

// ---------------------------------------------------------------------------
// documents

type memDocuments struct{ m *Memory }

func (r memDocuments) Create(_ context.Context, d domain.Document) error {
	defer r.m.lock()()
	r.m.data.documents[d.ID] = d
	return nil
}

func (r memDocuments) ListByParticipant(_ context.Context, participantID uuid.UUID) ([]domain.Document, error) {
	defer r.m.lock()()
	var all []domain.Document
	for _, d := range r.m.data.documents {
		if d.ParticipantID == participantID {
			all = append(all, d)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

func (r memDocuments) CountByParticipant(_ context.Context, participantID uuid.UUID) (int, error) {
	defer r.m.lock()()
	n := 0
	for _, d := range r.m.data.documents {
		if d.ParticipantID == participantID {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// audit log

type memAudit struct{ m *Memory }

func (r memAudit) Append(_ context.Context, a domain.AuditLog) error {
	defer r.m.lock()()
	r.m.data.audit = append(r.m.data.audit, a)
	return nil
}

func (r memAudit) List(_ context.Context, entityType string, page Page) ([]domain.AuditLog, error) {
	defer r.m.lock()()
	var all []domain.AuditLog
	for _, a := range r.m.data.audit {
		if entityType == "" || a.EntityType == entityType {
			all = append(all, a)
		}
	}
	page = page.Clamp()
	if page.Skip >= len(all) {
		return nil, nil
	}
	end := page.Skip + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[page.Skip:end], nil
}
