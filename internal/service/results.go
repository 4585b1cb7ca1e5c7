package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/domain"
)

// ResultsService computes the ranked table of a published competition.
type ResultsService struct {
	deps Deps
}

func NewResultsService(deps Deps) *ResultsService {
	return &ResultsService{deps: deps}
}

// ResultRow is one line of the published table.
type ResultRow struct {
	Rank            int
	ParticipantName string
	School          string
	Grade           *int
	Score           int
	MaxScore        int
}

// Results ranks scored attempts by score descending with standard
// competition ranking: equal scores share a rank and the next rank
// skips by the size of the tie.
func (s *ResultsService) Results(ctx context.Context, competitionID uuid.UUID) ([]ResultRow, error) {
	st := s.deps.Store
	comp, err := st.Competitions().GetByID(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if !comp.ResultsPublished() {
		return nil, domain.E(domain.KindInvalidState, "results for competition %q are not published", comp.Name)
	}

	attempts, err := st.Attempts().ListScoredByCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}

	rows := make([]ResultRow, 0, len(attempts))
	rank := 0
	prevScore := -1
	for i, a := range attempts {
		reg, err := st.Registrations().GetByID(ctx, a.RegistrationID)
		if err != nil {
			return nil, err
		}
		participant, err := st.Participants().GetByID(ctx, reg.ParticipantID)
		if err != nil {
			return nil, err
		}
		score := *a.ScoreTotal
		if score != prevScore {
			rank = i + 1
			prevScore = score
		}
		rows = append(rows, ResultRow{
			Rank:            rank,
			ParticipantName: participant.FullName,
			School:          participant.School,
			Grade:           participant.Grade,
			Score:           score,
			MaxScore:        comp.MaxScore,
		})
	}
	return rows, nil
}
