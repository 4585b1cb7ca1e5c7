package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CompetitionStatus is the competition lifecycle phase.
type CompetitionStatus string

const (
	CompetitionDraft            CompetitionStatus = "draft"
	CompetitionRegistrationOpen CompetitionStatus = "registration_open"
	CompetitionInProgress       CompetitionStatus = "in_progress"
	CompetitionChecking         CompetitionStatus = "checking"
	CompetitionPublished        CompetitionStatus = "published"
)

// competitionTransitions maps each status to its single legal successor.
// Every transition is one-way; nothing else is legal.
var competitionTransitions = map[CompetitionStatus]CompetitionStatus{
	CompetitionDraft:            CompetitionRegistrationOpen,
	CompetitionRegistrationOpen: CompetitionInProgress,
	CompetitionInProgress:       CompetitionChecking,
	CompetitionChecking:         CompetitionPublished,
}

// ParseCompetitionStatus validates a wire string.
func ParseCompetitionStatus(s string) (CompetitionStatus, error) {
	switch CompetitionStatus(s) {
	case CompetitionDraft, CompetitionRegistrationOpen, CompetitionInProgress,
		CompetitionChecking, CompetitionPublished:
		return CompetitionStatus(s), nil
	}
	return "", E(KindValidation, "unknown competition status %q", s)
}

// Competition is one olympiad event.
type Competition struct {
	ID                uuid.UUID
	Name              string
	Date              time.Time
	RegistrationStart time.Time
	RegistrationEnd   time.Time
	VariantsCount     int
	MaxScore          int
	Status            CompetitionStatus
	CreatedBy         uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewCompetition validates and builds a competition in draft status.
func NewCompetition(name string, date, regStart, regEnd time.Time, variants, maxScore int, createdBy uuid.UUID) (Competition, error) {
	if len(strings.TrimSpace(name)) < 3 {
		return Competition{}, E(KindValidation, "competition name must be at least 3 characters")
	}
	if !regStart.Before(regEnd) {
		return Competition{}, E(KindValidation, "registration start must be before registration end")
	}
	if variants < 1 {
		return Competition{}, E(KindValidation, "must have at least one variant")
	}
	if maxScore < 1 {
		return Competition{}, E(KindValidation, "max score must be positive")
	}
	now := time.Now().UTC()
	return Competition{
		ID:                uuid.New(),
		Name:              strings.TrimSpace(name),
		Date:              date,
		RegistrationStart: regStart,
		RegistrationEnd:   regEnd,
		VariantsCount:     variants,
		MaxScore:          maxScore,
		Status:            CompetitionDraft,
		CreatedBy:         createdBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (c *Competition) transition(to CompetitionStatus) error {
	if competitionTransitions[c.Status] != to {
		return E(KindInvalidState, "illegal competition transition %s -> %s", c.Status, to)
	}
	c.Status = to
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// OpenRegistration moves draft -> registration_open.
func (c *Competition) OpenRegistration() error { return c.transition(CompetitionRegistrationOpen) }

// Start moves registration_open -> in_progress; admission begins.
func (c *Competition) Start() error { return c.transition(CompetitionInProgress) }

// StartChecking moves in_progress -> checking; scoring begins.
func (c *Competition) StartChecking() error { return c.transition(CompetitionChecking) }

// PublishResults moves checking -> published.
func (c *Competition) PublishResults() error { return c.transition(CompetitionPublished) }

// IsRegistrationOpen reports whether participants may register. The admin
// drives the status by hand, so no time-window check applies here.
func (c *Competition) IsRegistrationOpen() bool { return c.Status == CompetitionRegistrationOpen }

// IsInProgress reports whether admission is allowed.
func (c *Competition) IsInProgress() bool { return c.Status == CompetitionInProgress }

// ResultsPublished reports whether public results are visible.
func (c *Competition) ResultsPublished() bool { return c.Status == CompetitionPublished }

// Room is an examination room within a competition venue.
// (competition_id, name) is unique.
type Room struct {
	ID            uuid.UUID
	CompetitionID uuid.UUID
	Name          string
	Capacity      int
	CreatedAt     time.Time
}

// NewRoom validates and builds a room.
func NewRoom(competitionID uuid.UUID, name string, capacity int) (Room, error) {
	if strings.TrimSpace(name) == "" {
		return Room{}, E(KindValidation, "room name cannot be empty")
	}
	if capacity < 1 {
		return Room{}, E(KindValidation, "room capacity must be at least 1")
	}
	return Room{
		ID:            uuid.New(),
		CompetitionID: competitionID,
		Name:          strings.TrimSpace(name),
		Capacity:      capacity,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
