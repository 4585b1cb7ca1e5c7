package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Participant is the personal profile, 1:1 with a User.
type Participant struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	FullName      string
	School        string
	Grade         *int // 1..12 when present
	InstitutionID *uuid.UUID
	DateOfBirth   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewParticipant validates and builds a profile.
func NewParticipant(userID uuid.UUID, fullName, school string, grade *int) (Participant, error) {
	if len(strings.TrimSpace(fullName)) < 2 {
		return Participant{}, E(KindValidation, "full name must be at least 2 characters")
	}
	if len(strings.TrimSpace(school)) < 2 {
		return Participant{}, E(KindValidation, "school must be at least 2 characters")
	}
	if grade != nil && (*grade < 1 || *grade > 12) {
		return Participant{}, E(KindValidation, "grade must be between 1 and 12")
	}
	now := time.Now().UTC()
	return Participant{
		ID:        uuid.New(),
		UserID:    userID,
		FullName:  strings.TrimSpace(fullName),
		School:    strings.TrimSpace(school),
		Grade:     grade,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Institution groups participants for the seating spread policy.
type Institution struct {
	ID        uuid.UUID
	Name      string
	ShortName string
	City      string
	CreatedAt time.Time
}

// NewInstitution validates and builds an institution.
func NewInstitution(name, shortName, city string) (Institution, error) {
	if len(strings.TrimSpace(name)) < 2 {
		return Institution{}, E(KindValidation, "institution name must be at least 2 characters")
	}
	return Institution{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		ShortName: strings.TrimSpace(shortName),
		City:      strings.TrimSpace(city),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Document is a personal file attached to a participant.
type Document struct {
	ID            uuid.UUID
	ParticipantID uuid.UUID
	FilePath      string
	FileType      string
	CreatedAt     time.Time
}

// NewDocument validates and builds a document record.
func NewDocument(participantID uuid.UUID, filePath, fileType string) (Document, error) {
	if filePath == "" {
		return Document{}, E(KindValidation, "file path cannot be empty")
	}
	return Document{
		ID:            uuid.New(),
		ParticipantID: participantID,
		FilePath:      filePath,
		FileType:      fileType,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
