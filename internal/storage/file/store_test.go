package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spigell/interview-coach/internal/storage"
	"github.com/spigell/interview-coach/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "transcripts"), "")
	require.NoError(t, err)
	return s
}

func TestStoreSaveListGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	older, err := s.Save(ctx, transcript.Submission{
		Name:      "Jane",
		Company:   "Acme",
		Questions: []transcript.Record{{Question: "Q?", Answer: "A", Evaluation: "E"}},
	})
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(time.Minute) }
	newer, err := s.Save(ctx, transcript.Submission{Name: "Bob", Company: "Initech", Questions: []transcript.Record{}, UserID: "u-1"})
	require.NoError(t, err)

	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, newer.ID, items[0].ID)
	assert.Equal(t, older.ID, items[1].ID)

	got, err := s.Get(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, older.Submission, got.Submission)
	assert.True(t, base.Equal(got.CreatedAt))
}

func TestStoreGetMissing(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"nope", "", "../etc", ".."} {
		_, err := s.Get(context.Background(), id)
		assert.ErrorIs(t, err, storage.ErrNotFound, "id %q", id)
	}
}

func TestStoreSaveRejectsInvalid(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save(context.Background(), transcript.Submission{Name: "Jane", Company: "Acme"})
	assert.ErrorIs(t, err, transcript.ErrInvalid)

	items, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStoreListIgnoresForeignFiles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "notes.txt"), []byte("hi"), 0o600))
	require.NoError(t, os.WriteFile(s.questionsPath, []byte("questions: []\n"), 0o600))

	items, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStoreQuestions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	qs, err := s.Questions(ctx)
	require.NoError(t, err)
	assert.Empty(t, qs)

	require.NoError(t, s.Seed(ctx, []string{"First?", "", "Second?"}))
	qs, err = s.Questions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []transcript.Question{{ID: "q1", Text: "First?"}, {ID: "q2", Text: "Second?"}}, qs)
}

func TestStoreQuestionsHandWritten(t *testing.T) {
	s := newTestStore(t)
	yamlDoc := "questions:\n  - text: How do you plan?\n  - id: custom\n    text: How do you measure?\n"
	require.NoError(t, os.WriteFile(s.questionsPath, []byte(yamlDoc), 0o600))

	qs, err := s.Questions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []transcript.Question{
		{ID: "q1", Text: "How do you plan?"},
		{ID: "custom", Text: "How do you measure?"},
	}, qs)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestNewRequiresDirectory(t *testing.T) {
	_, err := New(" ", "")
	assert.Error(t, err)
}
