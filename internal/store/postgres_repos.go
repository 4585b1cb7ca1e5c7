package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/domain"
)

// scan helpers for optional columns

func nullUUID(v *uuid.UUID) uuid.NullUUID {
	if v == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *v, Valid: true}
}

func fromNullUUID(v uuid.NullUUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	u := v.UUID
	return &u
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func fromNullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullStr(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func fromNullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// ---------------------------------------------------------------------------
// users

type pgUsers struct{ q querier }

const userCols = `id, email, password_hash, role, is_active, created_at, updated_at`

func (r pgUsers) Create(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (`+userCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Email, u.PasswordHash, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt)
	return wrapPgErr(err, "user")
}

func (r pgUsers) scanRow(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, wrapPgErr(err, "user")
	}
	return u, nil
}

func (r pgUsers) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return r.scanRow(r.q.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r pgUsers) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.scanRow(r.q.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = lower($1)`, email))
}

func (r pgUsers) Update(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE users SET email=$2, password_hash=$3, role=$4, is_active=$5, updated_at=$6 WHERE id=$1`,
		u.ID, u.Email, u.PasswordHash, u.Role, u.IsActive, u.UpdatedAt)
	return wrapPgErr(err, "user")
}

func (r pgUsers) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return wrapPgErr(err, "user")
}

func (r pgUsers) List(ctx context.Context, page Page) ([]domain.User, error) {
	page = page.Clamp()
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+userCols+` FROM users ORDER BY created_at OFFSET $1 LIMIT $2`, page.Skip, page.Limit)
	if err != nil {
		return nil, wrapPgErr(err, "user")
	}
	defer rows.Close()
	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, wrapPgErr(err, "user")
		}
		out = append(out, u)
	}
	return out, wrapPgErr(rows.Err(), "user")
}

// ---------------------------------------------------------------------------
// participants

type pgParticipants struct{ q querier }

const participantCols = `id, user_id, full_name, school, grade, institution_id, date_of_birth, created_at, updated_at`

func scanParticipant(scan func(dest ...interface{}) error) (domain.Participant, error) {
	var p domain.Participant
	var grade sql.NullInt64
	var inst uuid.NullUUID
	var dob sql.NullTime
	if err := scan(&p.ID, &p.UserID, &p.FullName, &p.School, &grade, &inst, &dob, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Participant{}, wrapPgErr(err, "participant")
	}
	p.Grade = fromNullInt(grade)
	p.InstitutionID = fromNullUUID(inst)
	if dob.Valid {
		t := dob.Time
		p.DateOfBirth = &t
	}
	return p, nil
}

func (r pgParticipants) Create(ctx context.Context, p domain.Participant) error {
	var dob sql.NullTime
	if p.DateOfBirth != nil {
		dob = sql.NullTime{Time: *p.DateOfBirth, Valid: true}
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO participants (`+participantCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.UserID, p.FullName, p.School, nullInt(p.Grade), nullUUID(p.InstitutionID), dob, p.CreatedAt, p.UpdatedAt)
	return wrapPgErr(err, "participant")
}

func (r pgParticipants) GetByID(ctx context.Context, id uuid.UUID) (domain.Participant, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+participantCols+` FROM participants WHERE id = $1`, id)
	return scanParticipant(row.Scan)
}

func (r pgParticipants) GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Participant, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+participantCols+` FROM participants WHERE user_id = $1`, userID)
	return scanParticipant(row.Scan)
}

func (r pgParticipants) Update(ctx context.Context, p domain.Participant) error {
	var dob sql.NullTime
	if p.DateOfBirth != nil {
		dob = sql.NullTime{Time: *p.DateOfBirth, Valid: true}
	}
	_, err := r.q.ExecContext(ctx,
		`UPDATE participants SET full_name=$2, school=$3, grade=$4, institution_id=$5, date_of_birth=$6, updated_at=$7 WHERE id=$1`,
		p.ID, p.FullName, p.School, nullInt(p.Grade), nullUUID(p.InstitutionID), dob, p.UpdatedAt)
	return wrapPgErr(err, "participant")
}

func (r pgParticipants) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM participants WHERE id = $1`, id)
	return wrapPgErr(err, "participant")
}

func (r pgParticipants) List(ctx context.Context, page Page) ([]domain.Participant, error) {
	page = page.Clamp()
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+participantCols+` FROM participants ORDER BY created_at OFFSET $1 LIMIT $2`, page.Skip, page.Limit)
	if err != nil {
		return nil, wrapPgErr(err, "participant")
	}
	defer rows.Close()
	var out []domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, wrapPgErr(rows.Err(), "participant")
}

// ---------------------------------------------------------------------------
// institutions

type pgInstitutions struct{ q querier }

const institutionCols = `id, name, short_name, city, created_at`

func (r pgInstitutions) Create(ctx context.Context, i domain.Institution) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO institutions (`+institutionCols+`) VALUES ($1,$2,$3,$4,$5)`,
		i.ID, i.Name, i.ShortName, i.City, i.CreatedAt)
	return wrapPgErr(err, "institution")
}

func (r pgInstitutions) GetByID(ctx context.Context, id uuid.UUID) (domain.Institution, error) {
	var i domain.Institution
	err := r.q.QueryRowContext(ctx, `SELECT `+institutionCols+` FROM institutions WHERE id = $1`, id).
		Scan(&i.ID, &i.Name, &i.ShortName, &i.City, &i.CreatedAt)
	if err != nil {
		return domain.Institution{}, wrapPgErr(err, "institution")
	}
	return i, nil
}

func (r pgInstitutions) GetByName(ctx context.Context, name string) (domain.Institution, error) {
	var i domain.Institution
	err := r.q.QueryRowContext(ctx, `SELECT `+institutionCols+` FROM institutions WHERE lower(name) = lower($1)`, name).
		Scan(&i.ID, &i.Name, &i.ShortName, &i.City, &i.CreatedAt)
	if err != nil {
		return domain.Institution{}, wrapPgErr(err, "institution")
	}
	return i, nil
}

func (r pgInstitutions) Search(ctx context.Context, query string, page Page) ([]domain.Institution, error) {
	page = page.Clamp()
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+institutionCols+` FROM institutions
		 WHERE name ILIKE '%' || $1 || '%' OR city ILIKE '%' || $1 || '%'
		 ORDER BY name OFFSET $2 LIMIT $3`, query, page.Skip, page.Limit)
	if err != nil {
		return nil, wrapPgErr(err, "institution")
	}
	defer rows.Close()
	var out []domain.Institution
	for rows.Next() {
		var i domain.Institution
		if err := rows.Scan(&i.ID, &i.Name, &i.ShortName, &i.City, &i.CreatedAt); err != nil {
			return nil, wrapPgErr(err, "institution")
		}
		out = append(out, i)
	}
	return out, wrapPgErr(rows.Err(), "institution")
}

func (r pgInstitutions) List(ctx context.Context, page Page) ([]domain.Institution, error) {
	return r.Search(ctx, "", page)
}

// ---------------------------------------------------------------------------
// competitions

type pgCompetitions struct{ q querier }

const competitionCols = `id, name, date, registration_start, registration_end, variants_count, max_score, status, created_by, created_at, updated_at`

func scanCompetition(scan func(dest ...interface{}) error) (domain.Competition, error) {
	var c domain.Competition
	var createdBy uuid.NullUUID
	if err := scan(&c.ID, &c.Name, &c.Date, &c.RegistrationStart, &c.RegistrationEnd,
		&c.VariantsCount, &c.MaxScore, &c.Status, &createdBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Competition{}, wrapPgErr(err, "competition")
	}
	if createdBy.Valid {
		c.CreatedBy = createdBy.UUID
	}
	return c, nil
}

func (r pgCompetitions) Create(ctx context.Context, c domain.Competition) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO competitions (`+competitionCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		c.ID, c.Name, c.Date, c.RegistrationStart, c.RegistrationEnd,
		c.VariantsCount, c.MaxScore, c.Status, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	return wrapPgErr(err, "competition")
}

func (r pgCompetitions) GetByID(ctx context.Context, id uuid.UUID) (domain.Competition, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+competitionCols+` FROM competitions WHERE id = $1`, id)
	return scanCompetition(row.Scan)
}

func (r pgCompetitions) Update(ctx context.Context, c domain.Competition) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE competitions SET name=$2, date=$3, registration_start=$4, registration_end=$5,
		 variants_count=$6, max_score=$7, status=$8, updated_at=$9 WHERE id=$1`,
		c.ID, c.Name, c.Date, c.RegistrationStart, c.RegistrationEnd,
		c.VariantsCount, c.MaxScore, c.Status, c.UpdatedAt)
	return wrapPgErr(err, "competition")
}

func (r pgCompetitions) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM competitions WHERE id = $1`, id)
	return wrapPgErr(err, "competition")
}

func (r pgCompetitions) List(ctx context.Context, page Page) ([]domain.Competition, error) {
	page = page.Clamp()
	return r.query(ctx,
		`SELECT `+competitionCols+` FROM competitions ORDER BY created_at OFFSET $1 LIMIT $2`,
		page.Skip, page.Limit)
}

func (r pgCompetitions) ListByStatus(ctx context.Context, status domain.CompetitionStatus, page Page) ([]domain.Competition, error) {
	page = page.Clamp()
	return r.query(ctx,
		`SELECT `+competitionCols+` FROM competitions WHERE status = $1 ORDER BY created_at OFFSET $2 LIMIT $3`,
		status, page.Skip, page.Limit)
}

func (r pgCompetitions) query(ctx context.Context, q string, args ...interface{}) ([]domain.Competition, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapPgErr(err, "competition")
	}
	defer rows.Close()
	var out []domain.Competition
	for rows.Next() {
		c, err := scanCompetition(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, wrapPgErr(rows.Err(), "competition")
}

// ---------------------------------------------------------------------------
// rooms

type pgRooms struct{ q querier }

func (r pgRooms) Create(ctx context.Context, room domain.Room) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO rooms (id, competition_id, name, capacity, created_at) VALUES ($1,$2,$3,$4,$5)`,
		room.ID, room.CompetitionID, room.Name, room.Capacity, room.CreatedAt)
	return wrapPgErr(err, "room")
}

func (r pgRooms) GetByID(ctx context.Context, id uuid.UUID) (domain.Room, error) {
	var room domain.Room
	err := r.q.QueryRowContext(ctx,
		`SELECT id, competition_id, name, capacity, created_at FROM rooms WHERE id = $1`, id).
		Scan(&room.ID, &room.CompetitionID, &room.Name, &room.Capacity, &room.CreatedAt)
	if err != nil {
		return domain.Room{}, wrapPgErr(err, "room")
	}
	return room, nil
}

func (r pgRooms) Update(ctx context.Context, room domain.Room) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE rooms SET name=$2, capacity=$3 WHERE id=$1`, room.ID, room.Name, room.Capacity)
	return wrapPgErr(err, "room")
}

func (r pgRooms) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	return wrapPgErr(err, "room")
}

func (r pgRooms) ListByCompetition(ctx context.Context, competitionID uuid.UUID) ([]domain.Room, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, competition_id, name, capacity, created_at FROM rooms WHERE competition_id = $1 ORDER BY name`,
		competitionID)
	if err != nil {
		return nil, wrapPgErr(err, "room")
	}
	defer rows.Close()
	var out []domain.Room
	for rows.Next() {
		var room domain.Room
		if err := rows.Scan(&room.ID, &room.CompetitionID, &room.Name, &room.Capacity, &room.CreatedAt); err != nil {
			return nil, wrapPgErr(err, "room")
		}
		out = append(out, room)
	}
	return out, wrapPgErr(rows.Err(), "room")
}

// ---------------------------------------------------------------------------
// registrations

type pgRegistrations struct{ q querier }

const registrationCols = `id, participant_id, competition_id, status, created_at, updated_at`

func (r pgRegistrations) Create(ctx context.Context, reg domain.Registration) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO registrations (`+registrationCols+`) VALUES ($1,$2,$3,$4,$5,$6)`,
		reg.ID, reg.ParticipantID, reg.CompetitionID, reg.Status, reg.CreatedAt, reg.UpdatedAt)
	return wrapPgErr(err, "registration")
}

func (r pgRegistrations) scanRow(row *sql.Row) (domain.Registration, error) {
	var reg domain.Registration
	err := row.Scan(&reg.ID, &reg.ParticipantID, &reg.CompetitionID, &reg.Status, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return domain.Registration{}, wrapPgErr(err, "registration")
	}
	return reg, nil
}

func (r pgRegistrations) GetByID(ctx context.Context, id uuid.UUID) (domain.Registration, error) {
	return r.scanRow(r.q.QueryRowContext(ctx, `SELECT `+registrationCols+` FROM registrations WHERE id = $1`, id))
}

func (r pgRegistrations) GetByParticipantAndCompetition(ctx context.Context, participantID, competitionID uuid.UUID) (domain.Registration, error) {
	return r.scanRow(r.q.QueryRowContext(ctx,
		`SELECT `+registrationCols+` FROM registrations WHERE participant_id = $1 AND competition_id = $2`,
		participantID, competitionID))
}

func (r pgRegistrations) Update(ctx context.Context, reg domain.Registration) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE registrations SET status=$2, updated_at=$3 WHERE id=$1`, reg.ID, reg.Status, reg.UpdatedAt)
	return wrapPgErr(err, "registration")
}

func (r pgRegistrations) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]domain.Registration, error) {
	return r.query(ctx,
		`SELECT `+registrationCols+` FROM registrations WHERE participant_id = $1 ORDER BY created_at`, participantID)
}

func (r pgRegistrations) ListByCompetition(ctx context.Context, competitionID uuid.UUID, page Page) ([]domain.Registration, error) {
	page = page.Clamp()
	return r.query(ctx,
		`SELECT `+registrationCols+` FROM registrations WHERE competition_id = $1 ORDER BY created_at OFFSET $2 LIMIT $3`,
		competitionID, page.Skip, page.Limit)
}

func (r pgRegistrations) CountByCompetitionAndStatus(ctx context.Context, competitionID uuid.UUID, status domain.RegistrationStatus) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT count(*) FROM registrations WHERE competition_id = $1 AND status = $2`, competitionID, status).Scan(&n)
	return n, wrapPgErr(err, "registration")
}

func (r pgRegistrations) query(ctx context.Context, q string, args ...interface{}) ([]domain.Registration, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapPgErr(err, "registration")
	}
	defer rows.Close()
	var out []domain.Registration
	for rows.Next() {
		var reg domain.Registration
		if err := rows.Scan(&reg.ID, &reg.ParticipantID, &reg.CompetitionID, &reg.Status, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
			return nil, wrapPgErr(err, "registration")
		}
		out = append(out, reg)
	}
	return out, wrapPgErr(rows.Err(), "registration")
}

// ---------------------------------------------------------------------------
// entry tokens

type pgEntryTokens struct{ q querier }

const entryTokenCols = `id, registration_id, token_hash, raw_token, expires_at, used_at, created_at`

func scanEntryToken(scan func(dest ...interface{}) error) (domain.EntryToken, error) {
	var t domain.EntryToken
	var usedAt sql.NullTime
	if err := scan(&t.ID, &t.RegistrationID, &t.TokenHash, &t.RawToken, &t.ExpiresAt, &usedAt, &t.CreatedAt); err != nil {
		return domain.EntryToken{}, wrapPgErr(err, "entry token")
	}
	if usedAt.Valid {
		u := usedAt.Time
		t.UsedAt = &u
	}
	return t, nil
}

func (r pgEntryTokens) Create(ctx context.Context, t domain.EntryToken) error {
	var usedAt sql.NullTime
	if t.UsedAt != nil {
		usedAt = sql.NullTime{Time: *t.UsedAt, Valid: true}
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO entry_tokens (`+entryTokenCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		t.ID, t.RegistrationID, t.TokenHash, t.RawToken, t.ExpiresAt, usedAt, t.CreatedAt)
	return wrapPgErr(err, "entry token")
}

func (r pgEntryTokens) GetByID(ctx context.Context, id uuid.UUID) (domain.EntryToken, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+entryTokenCols+` FROM entry_tokens WHERE id = $1`, id)
	return scanEntryToken(row.Scan)
}

func (r pgEntryTokens) GetByTokenHash(ctx context.Context, hash string) (domain.EntryToken, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+entryTokenCols+` FROM entry_tokens WHERE token_hash = $1`, hash)
	return scanEntryToken(row.Scan)
}

func (r pgEntryTokens) GetByRegistration(ctx context.Context, registrationID uuid.UUID) (domain.EntryToken, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+entryTokenCols+` FROM entry_tokens WHERE registration_id = $1`, registrationID)
	return scanEntryToken(row.Scan)
}

func (r pgEntryTokens) Update(ctx context.Context, t domain.EntryToken) error {
	var usedAt sql.NullTime
	if t.UsedAt != nil {
		usedAt = sql.NullTime{Time: *t.UsedAt, Valid: true}
	}
	_, err := r.q.ExecContext(ctx,
		`UPDATE entry_tokens SET token_hash=$2, raw_token=$3, expires_at=$4, used_at=$5 WHERE id=$1`,
		t.ID, t.TokenHash, t.RawToken, t.ExpiresAt, usedAt)
	return wrapPgErr(err, "entry token")
}

// ---------------------------------------------------------------------------
// seat assignments

type pgSeats struct{ q querier }

const seatCols = `id, registration_id, room_id, seat_number, variant_number, created_at`

func (r pgSeats) Create(ctx context.Context, a domain.SeatAssignment) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO seat_assignments (`+seatCols+`) VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.RegistrationID, a.RoomID, a.SeatNumber, a.VariantNumber, a.CreatedAt)
	return wrapPgErr(err, "seat assignment")
}

func (r pgSeats) GetByRegistration(ctx context.Context, registrationID uuid.UUID) (domain.SeatAssignment, error) {
	var a domain.SeatAssignment
	err := r.q.QueryRowContext(ctx,
		`SELECT `+seatCols+` FROM seat_assignments WHERE registration_id = $1`, registrationID).
		Scan(&a.ID, &a.RegistrationID, &a.RoomID, &a.SeatNumber, &a.VariantNumber, &a.CreatedAt)
	if err != nil {
		return domain.SeatAssignment{}, wrapPgErr(err, "seat assignment")
	}
	return a, nil
}

func (r pgSeats) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]domain.SeatAssignment, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+seatCols+` FROM seat_assignments WHERE room_id = $1 ORDER BY seat_number`, roomID)
	if err != nil {
		return nil, wrapPgErr(err, "seat assignment")
	}
	defer rows.Close()
	var out []domain.SeatAssignment
	for rows.Next() {
		var a domain.SeatAssignment
		if err := rows.Scan(&a.ID, &a.RegistrationID, &a.RoomID, &a.SeatNumber, &a.VariantNumber, &a.CreatedAt); err != nil {
			return nil, wrapPgErr(err, "seat assignment")
		}
		out = append(out, a)
	}
	return out, wrapPgErr(rows.Err(), "seat assignment")
}

func (r pgSeats) CountByRoom(ctx context.Context, roomID uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT count(*) FROM seat_assignments WHERE room_id = $1`, roomID).Scan(&n)
	return n, wrapPgErr(err, "seat assignment")
}

func (r pgSeats) CountByRoomAndInstitution(ctx context.Context, roomID, institutionID uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT count(*)
		 FROM seat_assignments sa
		 JOIN registrations reg ON reg.id = sa.registration_id
		 JOIN participants p ON p.id = reg.participant_id
		 WHERE sa.room_id = $1 AND p.institution_id = $2`, roomID, institutionID).Scan(&n)
	return n, wrapPgErr(err, "seat assignment")
}

// ---------------------------------------------------------------------------
// attempts

type pgAttempts struct{ q querier }

const attemptCols = `id, registration_id, variant_number, sheet_token_hash, status, score_total, confidence, pdf_file_path, created_at, updated_at`

func scanAttempt(scan func(dest ...interface{}) error) (domain.Attempt, error) {
	var a domain.Attempt
	var score sql.NullInt64
	var conf sql.NullFloat64
	if err := scan(&a.ID, &a.RegistrationID, &a.VariantNumber, &a.SheetTokenHash, &a.Status,
		&score, &conf, &a.PDFFilePath, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Attempt{}, wrapPgErr(err, "attempt")
	}
	a.ScoreTotal = fromNullInt(score)
	a.Confidence = fromNullFloat(conf)
	return a, nil
}

func (r pgAttempts) Create(ctx context.Context, a domain.Attempt) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO attempts (`+attemptCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.RegistrationID, a.VariantNumber, a.SheetTokenHash, a.Status,
		nullInt(a.ScoreTotal), nullFloat(a.Confidence), a.PDFFilePath, a.CreatedAt, a.UpdatedAt)
	return wrapPgErr(err, "attempt")
}

func (r pgAttempts) GetByID(ctx context.Context, id uuid.UUID) (domain.Attempt, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id = $1`, id)
	return scanAttempt(row.Scan)
}

func (r pgAttempts) GetBySheetTokenHash(ctx context.Context, hash string) (domain.Attempt, error) {
	// An extra sheet's hash also resolves to its attempt.
	row := r.q.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM attempts WHERE sheet_token_hash = $1
		 UNION
		 SELECT a.id, a.registration_id, a.variant_number, a.sheet_token_hash, a.status,
		        a.score_total, a.confidence, a.pdf_file_path, a.created_at, a.updated_at
		 FROM attempts a JOIN answer_sheets s ON s.attempt_id = a.id
		 WHERE s.sheet_token_hash = $1
		 LIMIT 1`, hash)
	return scanAttempt(row.Scan)
}

func (r pgAttempts) GetByRegistration(ctx context.Context, registrationID uuid.UUID) (domain.Attempt, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE registration_id = $1`, registrationID)
	return scanAttempt(row.Scan)
}

func (r pgAttempts) Update(ctx context.Context, a domain.Attempt) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE attempts SET status=$2, score_total=$3, confidence=$4, pdf_file_path=$5, updated_at=$6 WHERE id=$1`,
		a.ID, a.Status, nullInt(a.ScoreTotal), nullFloat(a.Confidence), a.PDFFilePath, a.UpdatedAt)
	return wrapPgErr(err, "attempt")
}

func (r pgAttempts) ListScoredByCompetition(ctx context.Context, competitionID uuid.UUID) ([]domain.Attempt, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+prefixedAttemptCols("a")+`
		 FROM attempts a
		 JOIN registrations reg ON reg.id = a.registration_id
		 WHERE reg.competition_id = $1
		   AND a.status IN ('scored', 'published')
		   AND a.score_total IS NOT NULL
		 ORDER BY a.score_total DESC`, competitionID)
	if err != nil {
		return nil, wrapPgErr(err, "attempt")
	}
	defer rows.Close()
	var out []domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, wrapPgErr(rows.Err(), "attempt")
}

func prefixedAttemptCols(alias string) string {
	return alias + `.id, ` + alias + `.registration_id, ` + alias + `.variant_number, ` +
		alias + `.sheet_token_hash, ` + alias + `.status, ` + alias + `.score_total, ` +
		alias + `.confidence, ` + alias + `.pdf_file_path, ` + alias + `.created_at, ` + alias + `.updated_at`
}

func (r pgAttempts) CountByCompetitionAndStatus(ctx context.Context, competitionID uuid.UUID, status domain.AttemptStatus) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT count(*)
		 FROM attempts a JOIN registrations reg ON reg.id = a.registration_id
		 WHERE reg.competition_id = $1 AND a.status = $2`, competitionID, status).Scan(&n)
	return n, wrapPgErr(err, "attempt")
}

// ---------------------------------------------------------------------------
// answer sheets

type pgSheets struct{ q querier }

const sheetCols = `id, attempt_id, sheet_token_hash, kind, pdf_file_path, created_at`

func (r pgSheets) Create(ctx context.Context, s domain.AnswerSheet) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO answer_sheets (`+sheetCols+`) VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.AttemptID, s.SheetTokenHash, s.Kind, s.PDFFilePath, s.CreatedAt)
	return wrapPgErr(err, "answer sheet")
}

func (r pgSheets) GetByID(ctx context.Context, id uuid.UUID) (domain.AnswerSheet, error) {
	var s domain.AnswerSheet
	err := r.q.QueryRowContext(ctx, `SELECT `+sheetCols+` FROM answer_sheets WHERE id = $1`, id).
		Scan(&s.ID, &s.AttemptID, &s.SheetTokenHash, &s.Kind, &s.PDFFilePath, &s.CreatedAt)
	if err != nil {
		return domain.AnswerSheet{}, wrapPgErr(err, "answer sheet")
	}
	return s, nil
}

func (r pgSheets) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]domain.AnswerSheet, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+sheetCols+` FROM answer_sheets WHERE attempt_id = $1 ORDER BY created_at`, attemptID)
	if err != nil {
		return nil, wrapPgErr(err, "answer sheet")
	}
	defer rows.Close()
	var out []domain.AnswerSheet
	for rows.Next() {
		var s domain.AnswerSheet
		if err := rows.Scan(&s.ID, &s.AttemptID, &s.SheetTokenHash, &s.Kind, &s.PDFFilePath, &s.CreatedAt); err != nil {
			return nil, wrapPgErr(err, "answer sheet")
		}
		out = append(out, s)
	}
	return out, wrapPgErr(rows.Err(), "answer sheet")
}

// ---------------------------------------------------------------------------
// scans

type pgScans struct{ q querier }

const scanCols = `id, attempt_id, answer_sheet_id, file_path, ocr_score, ocr_confidence, ocr_raw_text, verified_by, uploaded_by, created_at, updated_at`

func scanScan(scan func(dest ...interface{}) error) (domain.Scan, error) {
	var s domain.Scan
	var attemptID, sheetID, verifiedBy uuid.NullUUID
	var score sql.NullInt64
	var conf sql.NullFloat64
	var rawText sql.NullString
	if err := scan(&s.ID, &attemptID, &sheetID, &s.FilePath, &score, &conf, &rawText,
		&verifiedBy, &s.UploadedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return domain.Scan{}, wrapPgErr(err, "scan")
	}
	s.AttemptID = fromNullUUID(attemptID)
	s.AnswerSheetID = fromNullUUID(sheetID)
	s.VerifiedBy = fromNullUUID(verifiedBy)
	s.OCRScore = fromNullInt(score)
	s.OCRConfidence = fromNullFloat(conf)
	s.OCRRawText = fromNullStr(rawText)
	return s, nil
}

func (r pgScans) Create(ctx context.Context, s domain.Scan) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO scans (`+scanCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		s.ID, nullUUID(s.AttemptID), nullUUID(s.AnswerSheetID), s.FilePath,
		nullInt(s.OCRScore), nullFloat(s.OCRConfidence), nullStr(s.OCRRawText),
		nullUUID(s.VerifiedBy), s.UploadedBy, s.CreatedAt, s.UpdatedAt)
	return wrapPgErr(err, "scan")
}

func (r pgScans) GetByID(ctx context.Context, id uuid.UUID) (domain.Scan, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+scanCols+` FROM scans WHERE id = $1`, id)
	return scanScan(row.Scan)
}

func (r pgScans) Update(ctx context.Context, s domain.Scan) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE scans SET attempt_id=$2, answer_sheet_id=$3, ocr_score=$4, ocr_confidence=$5,
		 ocr_raw_text=$6, verified_by=$7, updated_at=$8 WHERE id=$1`,
		s.ID, nullUUID(s.AttemptID), nullUUID(s.AnswerSheetID), nullInt(s.OCRScore),
		nullFloat(s.OCRConfidence), nullStr(s.OCRRawText), nullUUID(s.VerifiedBy), s.UpdatedAt)
	return wrapPgErr(err, "scan")
}

func (r pgScans) List(ctx context.Context, page Page) ([]domain.Scan, error) {
	page = page.Clamp()
	return r.query(ctx,
		`SELECT `+scanCols+` FROM scans ORDER BY created_at OFFSET $1 LIMIT $2`, page.Skip, page.Limit)
}

func (r pgScans) ListUnverified(ctx context.Context, page Page) ([]domain.Scan, error) {
	page = page.Clamp()
	return r.query(ctx,
		`SELECT `+scanCols+` FROM scans WHERE verified_by IS NULL ORDER BY created_at OFFSET $1 LIMIT $2`,
		page.Skip, page.Limit)
}

func (r pgScans) query(ctx context.Context, q string, args ...interface{}) ([]domain.Scan, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapPgErr(err, "scan")
	}
	defer rows.Close()
	var out []domain.Scan
	for rows.Next() {
		s, err := scanScan(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, wrapPgErr(rows.Err(), "scan")
}

// ---------------------------------------------------------------------------
// participant events

type pgEvents struct{ q querier }

func (r pgEvents) Create(ctx context.Context, e domain.ParticipantEvent) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO participant_events (id, attempt_id, event_type, timestamp, recorded_by) VALUES ($1,$2,$3,$4,$5)`,
		e.ID, e.AttemptID, e.EventType, e.Timestamp, e.RecordedBy)
	return wrapPgErr(err, "participant event")
}

func (r pgEvents) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]domain.ParticipantEvent, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, attempt_id, event_type, timestamp, recorded_by
		 FROM participant_events WHERE attempt_id = $1 ORDER BY timestamp`, attemptID)
	if err != nil {
		return nil, wrapPgErr(err, "participant event")
	}
	defer rows.Close()
	var out []domain.ParticipantEvent
	for rows.Next() {
		var e domain.ParticipantEvent
		if err := rows.Scan(&e.ID, &e.AttemptID, &e.EventType, &e.Timestamp, &e.RecordedBy); err != nil {
			return nil, wrapPgErr(err, "participant event")
		}
		out = append(out, e)
	}
	return out, wrapPgErr(rows.Err(), "participant event")
}

// ---------------------------------------------------------------------------
// documents

type pgDocuments struct{ q querier }

func (r pgDocuments) Create(ctx context.Context, d domain.Document) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO documents (id, participant_id, file_path, file_type, created_at) VALUES ($1,$2,$3,$4,$5)`,
		d.ID, d.ParticipantID, d.FilePath, d.FileType, d.CreatedAt)
	return wrapPgErr(err, "document")
}

func (r pgDocuments) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]domain.Document, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, participant_id, file_path, file_type, created_at
		 FROM documents WHERE participant_id = $1 ORDER BY created_at`, participantID)
	if err != nil {
		return nil, wrapPgErr(err, "document")
	}
	defer rows.Close()
	var out []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.ParticipantID, &d.FilePath, &d.FileType, &d.CreatedAt); err != nil {
			return nil, wrapPgErr(err, "document")
		}
		out = append(out, d)
	}
	return out, wrapPgErr(rows.Err(), "document")
}

func (r pgDocuments) CountByParticipant(ctx context.Context, participantID uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT count(*) FROM documents WHERE participant_id = $1`, participantID).Scan(&n)
	return n, wrapPgErr(err, "document")
}

// ---------------------------------------------------------------------------
// audit log

type pgAudit struct{ q querier }

func (r pgAudit) Append(ctx context.Context, a domain.AuditLog) error {
	details, err := json.Marshal(a.Details)
	if err != nil {
		return domain.WrapErr(domain.KindFatal, err, "marshal audit details")
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO audit_log (id, entity_type, entity_id, action, user_id, ip_address, details, timestamp)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.EntityType, a.EntityID, a.Action, nullUUID(a.UserID), a.IPAddress, details, a.Timestamp)
	return wrapPgErr(err, "audit record")
}

func (r pgAudit) List(ctx context.Context, entityType string, page Page) ([]domain.AuditLog, error) {
	page = page.Clamp()
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, entity_type, entity_id, action, user_id, ip_address, details, timestamp
		 FROM audit_log
		 WHERE ($1 = '' OR entity_type = $1)
		 ORDER BY timestamp OFFSET $2 LIMIT $3`, entityType, page.Skip, page.Limit)
	if err != nil {
		return nil, wrapPgErr(err, "audit record")
	}
	defer rows.Close()
	var out []domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		var userID uuid.NullUUID
		var details []byte
		if err := rows.Scan(&a.ID, &a.EntityType, &a.EntityID, &a.Action, &userID, &a.IPAddress, &details, &a.Timestamp); err != nil {
			return nil, wrapPgErr(err, "audit record")
		}
		a.UserID = fromNullUUID(userID)
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return nil, domain.WrapErr(domain.KindFatal, err, "unmarshal audit details")
		}
		out = append(out, a)
	}
	return out, wrapPgErr(rows.Err(), "audit record")
}
