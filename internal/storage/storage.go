// Package storage defines where finished interviews and the question bank
// live. Backends are in the postgres, file and blob subpackages.
package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spigell/interview-coach/internal/transcript"
)

// ErrNotFound is returned by Get when no transcript has the requested id.
var ErrNotFound = errors.New("transcript not found")

// TranscriptStore saves finished interviews and reads them back.
type TranscriptStore interface {
	Save(ctx context.Context, submission transcript.Submission) (*transcript.Transcript, error)
	// List returns every transcript, newest first.
	List(ctx context.Context) ([]*transcript.Transcript, error)
	Get(ctx context.Context, id string) (*transcript.Transcript, error)
}

// QuestionBank returns the interview questions in the order they are asked.
type QuestionBank interface {
	Questions(ctx context.Context) ([]transcript.Question, error)
}

// Seeder replaces the question bank content.
type Seeder interface {
	Seed(ctx context.Context, texts []string) error
}

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewTranscript validates submission and stamps it with a fresh id.
func NewTranscript(submission transcript.Submission, now time.Time) (*transcript.Transcript, error) {
	if err := submission.Validate(); err != nil {
		return nil, err
	}
	return &transcript.Transcript{
		ID:         uuid.NewString(),
		Submission: submission,
		CreatedAt:  now.UTC(),
	}, nil
}

// StaticQuestions is a question bank held in memory.
type StaticQuestions []string

func (s StaticQuestions) Questions(context.Context) ([]transcript.Question, error) {
	out := make([]transcript.Question, 0, len(s))
	for i, text := range s {
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		out = append(out, transcript.Question{ID: QuestionID(i), Text: text})
	}
	return out, nil
}

// QuestionID is the id given to the question at position i of a bank that
// has no ids of its own.
func QuestionID(i int) string {
	return "q" + strconv.Itoa(i+1)
}
