package transcript

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionValidate(t *testing.T) {
	tests := []struct {
		name    string
		sub     Submission
		wantErr bool
	}{
		{
			name: "complete",
			sub:  Submission{Name: "Dana", Company: "Acme", Questions: []Record{}},
		},
		{
			name:    "missing name",
			sub:     Submission{Company: "Acme", Questions: []Record{}},
			wantErr: true,
		},
		{
			name:    "blank company",
			sub:     Submission{Name: "Dana", Company: "  ", Questions: []Record{}},
			wantErr: true,
		},
		{
			name:    "nil questions",
			sub:     Submission{Name: "Dana", Company: "Acme"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sub.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTranscriptJSONShape(t *testing.T) {
	tr := Transcript{
		ID: "t1",
		Submission: Submission{
			Name:      "Dana",
			Company:   "Acme",
			Questions: []Record{{Question: "Q", Answer: "A", Evaluation: "E"}},
		},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(tr)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "t1", decoded["id"])
	assert.Equal(t, "Dana", decoded["name"])
	assert.Equal(t, "Acme", decoded["company"])
	assert.NotContains(t, decoded, "userId")
	records, ok := decoded["questions"].([]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"question": "Q", "answer": "A", "evaluation": "E"}, records[0])
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Now()
	items := []*Transcript{
		{ID: "old", CreatedAt: base.Add(-time.Hour)},
		{ID: "new", CreatedAt: base},
		{ID: "mid", CreatedAt: base.Add(-time.Minute)},
	}

	SortNewestFirst(items)

	ids := []string{items[0].ID, items[1].ID, items[2].ID}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)
}
