package sheet

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAnswerSheet_ProducesPDF(t *testing.T) {
	r := NewPDFRenderer()
	pdf, err := r.RenderAnswerSheet(context.Background(), SheetData{
		CompetitionName: "City Olympiad 2026",
		ParticipantName: "Ada Lovelace",
		School:          "School No 1",
		VariantNumber:   3,
		RoomName:        "101",
		SeatNumber:      7,
		RawSheetToken:   "raw-token-abc",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	assert.Contains(t, string(pdf), "Ada Lovelace")
	assert.Contains(t, string(pdf), "raw-token-abc")
	assert.Contains(t, string(pdf), "%%EOF")
}

func TestRenderExtraSheet_CarriesToken(t *testing.T) {
	r := NewPDFRenderer()
	pdf, err := r.RenderExtraSheet(context.Background(), ExtraSheetData{
		CompetitionName: "City Olympiad 2026",
		AttemptID:       uuid.New(),
		SheetNumber:     2,
		RawSheetToken:   "extra-token",
	})
	require.NoError(t, err)
	assert.Contains(t, string(pdf), "extra-token")
}

func TestRenderBadges_PaginatesNineToAPage(t *testing.T) {
	r := NewPDFRenderer()
	var badges []Badge
	for i := 0; i < 10; i++ {
		badges = append(badges, Badge{
			ParticipantName: "Person",
			Institution:     "Inst",
			RawEntryToken:   "tok",
		})
	}
	pdf, err := r.RenderBadges(context.Background(), badges)
	require.NoError(t, err)
	// 10 badges need two pages.
	assert.Equal(t, 2, bytes.Count(pdf, []byte("/Type /Page /")))
}

func TestGroupBadgesByInstitution(t *testing.T) {
	in := []Badge{
		{ParticipantName: "a", Institution: "X"},
		{ParticipantName: "b", Institution: "Y"},
		{ParticipantName: "c", Institution: "X"},
		{ParticipantName: "d", Institution: "Y"},
	}
	out := GroupBadgesByInstitution(in)
	require.Len(t, out, 4)
	assert.Equal(t, "X", out[0].Institution)
	assert.Equal(t, "X", out[1].Institution)
	assert.Equal(t, "Y", out[2].Institution)
	assert.Equal(t, "Y", out[3].Institution)
	assert.Equal(t, "a", out[0].ParticipantName)
	assert.Equal(t, "c", out[1].ParticipantName)
}
