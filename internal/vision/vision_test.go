package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionToPixels(t *testing.T) {
	// 40x15 mm field at (140, 245) on an A4 page scanned at 300 DPI
	// (2480x3508 px).
	region := RegionMM{X: 140, Y: 245, Width: 40, Height: 15}
	px := region.ToPixels(2480, 3508)

	// 1 mm = 300/25.4 ≈ 11.81 px; the margin widens the crop by 10%
	// on each side.
	assert.InDelta(t, 140*MMToPx-40*MMToPx*0.1, float64(px.X), 1)
	assert.InDelta(t, 245*MMToPx-15*MMToPx*0.1, float64(px.Y), 1)
	assert.InDelta(t, 40*MMToPx*1.2, float64(px.Width), 1)
	assert.InDelta(t, 15*MMToPx*1.2, float64(px.Height), 1)
}

func TestRegionToPixels_ClampsToImage(t *testing.T) {
	region := RegionMM{X: 0, Y: 0, Width: 500, Height: 500}
	px := region.ToPixels(100, 80)
	assert.Equal(t, 0, px.X)
	assert.Equal(t, 0, px.Y)
	assert.Equal(t, 100, px.Width)
	assert.Equal(t, 80, px.Height)
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		name      string
		lines     []Line
		wantScore *int
		wantConf  *float64
		wantText  string
	}{
		{
			name:      "clean digits",
			lines:     []Line{{Text: "87", Confidence: 0.95}},
			wantScore: intp(87),
			wantConf:  f64p(0.95),
			wantText:  "87",
		},
		{
			name:      "digits embedded in noise",
			lines:     []Line{{Text: "score: 42 pts", Confidence: 0.8}},
			wantScore: intp(42),
			wantConf:  f64p(0.8),
			wantText:  "score: 42 pts",
		},
		{
			name: "first run wins",
			lines: []Line{
				{Text: "12", Confidence: 0.9},
				{Text: "99", Confidence: 0.7},
			},
			wantScore: intp(12),
			wantConf:  f64p(0.8),
			wantText:  "12 99",
		},
		{
			name:      "no digits",
			lines:     []Line{{Text: "illegible", Confidence: 0.3}},
			wantScore: nil,
			wantConf:  f64p(0.3),
			wantText:  "illegible",
		},
		{
			name:      "no lines",
			lines:     nil,
			wantScore: nil,
			wantConf:  nil,
			wantText:  "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ParseScore(tc.lines)
			assert.Equal(t, tc.wantText, res.RawText)
			if tc.wantScore == nil {
				assert.Nil(t, res.Score)
			} else {
				require.NotNil(t, res.Score)
				assert.Equal(t, *tc.wantScore, *res.Score)
			}
			if tc.wantConf == nil {
				assert.Nil(t, res.Confidence)
			} else {
				require.NotNil(t, res.Confidence)
				assert.InDelta(t, *tc.wantConf, *res.Confidence, 1e-9)
			}
		})
	}
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF([]byte("%PDF-1.7 rest")))
	assert.False(t, IsPDF([]byte("\x89PNG\r\n")))
	assert.False(t, IsPDF([]byte("%PD")))
}

func intp(v int) *int         { return &v }
func f64p(v float64) *float64 { return &v }
