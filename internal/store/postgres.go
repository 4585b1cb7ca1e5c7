package store

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/lib/pq"

	"github.com/olympiadqr/backend/internal/domain"
)

// Postgres is the production Store. Every repository method runs against
// the handle's querier: the pooled *sql.DB outside a transaction, the
// *sql.Tx inside WithTx. Unique indexes are the concurrency backstop for
// seats and token hashes.
type Postgres struct {
	db *sql.DB
	q  querier
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Open connects to Postgres and applies the schema.
func Open(databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, domain.WrapErr(domain.KindFatal, err, "open postgres")
	}
	if err := db.Ping(); err != nil {
		return nil, domain.WrapErr(domain.KindRetryableIO, err, "ping postgres")
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	log.Printf("[STORE] connected to postgres")
	return &Postgres{db: db, q: db}, nil
}

// NewPostgres wraps an existing pool (used by the worker binary, which
// shares Open's schema).
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db, q: db} }

// Close releases the pool.
func (p *Postgres) Close() error { return p.db.Close() }

// WithTx opens one transaction, hands fn a Store bound to it and commits
// on success. Nested calls join the outer transaction.
func (p *Postgres) WithTx(ctx context.Context, fn func(Store) error) error {
	if _, ok := p.q.(*sql.Tx); ok {
		return fn(p)
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapErr(domain.KindRetryableIO, err, "begin transaction")
	}
	txStore := &Postgres{db: p.db, q: tx}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Printf("[STORE] rollback failed: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.WrapErr(domain.KindRetryableIO, err, "commit transaction")
	}
	return nil
}

func (p *Postgres) Users() UserRepo                     { return pgUsers{p.q} }
func (p *Postgres) Participants() ParticipantRepo       { return pgParticipants{p.q} }
func (p *Postgres) Institutions() InstitutionRepo       { return pgInstitutions{p.q} }
func (p *Postgres) Competitions() CompetitionRepo       { return pgCompetitions{p.q} }
func (p *Postgres) Rooms() RoomRepo                     { return pgRooms{p.q} }
func (p *Postgres) Registrations() RegistrationRepo     { return pgRegistrations{p.q} }
func (p *Postgres) EntryTokens() EntryTokenRepo         { return pgEntryTokens{p.q} }
func (p *Postgres) SeatAssignments() SeatAssignmentRepo { return pgSeats{p.q} }
func (p *Postgres) Attempts() AttemptRepo               { return pgAttempts{p.q} }
func (p *Postgres) AnswerSheets() AnswerSheetRepo       { return pgSheets{p.q} }
func (p *Postgres) Scans() ScanRepo                     { return pgScans{p.q} }
func (p *Postgres) Events() ParticipantEventRepo        { return pgEvents{p.q} }
func (p *Postgres) Documents() DocumentRepo             { return pgDocuments{p.q} }
func (p *Postgres) Audit() AuditLogRepo                 { return pgAudit{p.q} }

var _ Store = (*Postgres)(nil)

// wrapPgErr converts driver errors into domain kinds: unique violations
// become duplicates, missing rows become not-found, the rest is
// transient IO.
func wrapPgErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.E(domain.KindNotFound, "%s not found", what)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return domain.WrapErr(domain.KindDuplicate, err, "%s already exists", what)
	}
	return domain.WrapErr(domain.KindRetryableIO, err, "%s query failed", what)
}

func migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return domain.WrapErr(domain.KindFatal, err, "migrate schema")
		}
	}
	return nil
}

// Dependent rows cascade with their parent; rows that reference acting
// users keep history via SET NULL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS institutions (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		short_name TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS participants (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		full_name TEXT NOT NULL,
		school TEXT NOT NULL,
		grade INT,
		institution_id UUID REFERENCES institutions(id) ON DELETE SET NULL,
		date_of_birth DATE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS competitions (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		date TIMESTAMPTZ NOT NULL,
		registration_start TIMESTAMPTZ NOT NULL,
		registration_end TIMESTAMPTZ NOT NULL,
		variants_count INT NOT NULL,
		max_score INT NOT NULL,
		status TEXT NOT NULL,
		created_by UUID REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id UUID PRIMARY KEY,
		competition_id UUID NOT NULL REFERENCES competitions(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		capacity INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (competition_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS registrations (
		id UUID PRIMARY KEY,
		participant_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
		competition_id UUID NOT NULL REFERENCES competitions(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (participant_id, competition_id)
	)`,
	`CREATE TABLE IF NOT EXISTS entry_tokens (
		id UUID PRIMARY KEY,
		registration_id UUID NOT NULL UNIQUE REFERENCES registrations(id) ON DELETE CASCADE,
		token_hash CHAR(64) NOT NULL UNIQUE,
		raw_token TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		used_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS seat_assignments (
		id UUID PRIMARY KEY,
		registration_id UUID NOT NULL UNIQUE REFERENCES registrations(id) ON DELETE CASCADE,
		room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		seat_number INT NOT NULL,
		variant_number INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (room_id, seat_number)
	)`,
	`CREATE TABLE IF NOT EXISTS attempts (
		id UUID PRIMARY KEY,
		registration_id UUID NOT NULL REFERENCES registrations(id) ON DELETE CASCADE,
		variant_number INT NOT NULL,
		sheet_token_hash CHAR(64) NOT NULL UNIQUE,
		status TEXT NOT NULL,
		score_total INT,
		confidence DOUBLE PRECISION,
		pdf_file_path TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS answer_sheets (
		id UUID PRIMARY KEY,
		attempt_id UUID NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
		sheet_token_hash CHAR(64) NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		pdf_file_path TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scans (
		id UUID PRIMARY KEY,
		attempt_id UUID REFERENCES attempts(id) ON DELETE SET NULL,
		answer_sheet_id UUID REFERENCES answer_sheets(id) ON DELETE SET NULL,
		file_path TEXT NOT NULL,
		ocr_score INT,
		ocr_confidence DOUBLE PRECISION,
		ocr_raw_text TEXT,
		verified_by UUID REFERENCES users(id) ON DELETE SET NULL,
		uploaded_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS participant_events (
		id UUID PRIMARY KEY,
		attempt_id UUID NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
		event_type TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		recorded_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		participant_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
		file_path TEXT NOT NULL,
		file_type TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id UUID PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id UUID NOT NULL,
		action TEXT NOT NULL,
		user_id UUID REFERENCES users(id) ON DELETE SET NULL,
		ip_address TEXT NOT NULL DEFAULT '',
		details JSONB NOT NULL DEFAULT '{}',
		timestamp TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_registration ON attempts(registration_id)`,
	`CREATE INDEX IF NOT EXISTS idx_scans_verified ON scans(verified_by) WHERE verified_by IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id)`,
}
