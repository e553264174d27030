package storage

import (
	"context"
	"testing"
	"time"

	"github.com/spigell/interview-coach/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTranscript(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	sub := transcript.Submission{Name: "Jane", Company: "Acme", Questions: []transcript.Record{}}

	tr, err := NewTranscript(sub, now)
	require.NoError(t, err)
	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, now.UTC(), tr.CreatedAt)
	assert.Equal(t, sub, tr.Submission)

	_, err = NewTranscript(transcript.Submission{Name: "Jane"}, now)
	assert.ErrorIs(t, err, transcript.ErrInvalid)
}

func TestStaticQuestions(t *testing.T) {
	qs, err := StaticQuestions{"First?", "  ", "Third?"}.Questions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []transcript.Question{
		{ID: "q1", Text: "First?"},
		{ID: "q3", Text: "Third?"},
	}, qs)
}
