package interview

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/spigell/interview-coach/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustReduce(t *testing.T, s Session, ev Event) (Session, []Command) {
	t.Helper()
	next, cmds, err := Reduce(s, ev)
	require.NoError(t, err, "event %T", ev)
	return next, cmds
}

// settle reports every reveal in cmds as finished.
func settle(t *testing.T, s Session, cmds []Command) Session {
	t.Helper()
	for _, cmd := range cmds {
		if _, ok := cmd.(Reveal); ok {
			s, _ = mustReduce(t, s, RevealFinished{})
		}
	}
	return s
}

func reveals(cmds []Command) []string {
	var out []string
	for _, cmd := range cmds {
		if r, ok := cmd.(Reveal); ok {
			out = append(out, r.Text)
		}
	}
	return out
}

// ready returns a session waiting for the introduction.
func ready(t *testing.T, questions ...string) Session {
	t.Helper()
	s, cmds := mustReduce(t, NewSession("s1", "u1"), Opened{})
	s = settle(t, s, cmds)
	s, _ = mustReduce(t, s, QuestionsLoaded{Questions: questions})
	return s
}

// questioning returns a session that accepted the introduction.
func questioning(t *testing.T, questions ...string) Session {
	t.Helper()
	s := ready(t, questions...)
	s, cmds := mustReduce(t, s, Submitted{Text: "I am Jane from Acme"})
	return settle(t, s, cmds)
}

func TestReduceOpened(t *testing.T) {
	s, cmds := mustReduce(t, NewSession("s1", ""), Opened{})

	require.Len(t, cmds, 2)
	assert.IsType(t, FetchQuestions{}, cmds[0])
	assert.Equal(t, Reveal{LogIndex: 0, Text: MessageWelcome}, cmds[1])
	assert.True(t, s.Started)
	assert.Equal(t, PendingQuestions, s.Pending)
	assert.Equal(t, 1, s.Revealing)
	assert.Equal(t, []LogEntry{{Speaker: SpeakerSystem, Text: MessageWelcome}}, s.Log)

	_, _, err := Reduce(s, Opened{})
	assert.ErrorIs(t, err, ErrUnexpectedEvent)
}

func TestReduceHappyPath(t *testing.T) {
	s := ready(t, "Q1?", "Q2?")

	s, cmds := mustReduce(t, s, Submitted{Text: "  I am Jane Doe from Acme  "})
	assert.Equal(t, PhaseQuestioning, s.Phase)
	assert.Equal(t, "Jane Doe", s.RespondentName)
	assert.Equal(t, "Acme", s.RespondentCompany)
	assert.Equal(t, []string{"👋 Thank you, Jane Doe. Q1?"}, reveals(cmds))
	s = settle(t, s, cmds)

	s, cmds = mustReduce(t, s, Submitted{Text: "answer one"})
	require.Equal(t, []Command{Evaluate{Index: 0, Question: "Q1?", Answer: "answer one"}}, cmds)
	assert.True(t, s.Busy())

	s, cmds = mustReduce(t, s, EvaluationSucceeded{Index: 0, Feedback: "Nice work"})
	assert.Equal(t, []string{"🤖 Nice work", "💬 Q2? ❓"}, reveals(cmds))
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, PendingNone, s.Pending)
	s = settle(t, s, cmds)

	s, cmds = mustReduce(t, s, Submitted{Text: "answer two"})
	require.Equal(t, []Command{Evaluate{Index: 1, Question: "Q2?", Answer: "answer two"}}, cmds)

	s, cmds = mustReduce(t, s, EvaluationSucceeded{Index: 1, Feedback: "Great"})
	require.Len(t, cmds, 2)
	assert.Equal(t, Reveal{LogIndex: len(s.Log) - 1, Text: "🤖 Great"}, cmds[0])
	persist, ok := cmds[1].(Persist)
	require.True(t, ok, "expected persist command, got %T", cmds[1])
	assert.Equal(t, transcript.Submission{
		Name:    "Jane Doe",
		Company: "Acme",
		UserID:  "u1",
		Questions: []transcript.Record{
			{Question: "Q1?", Answer: "answer one", Evaluation: "Nice work"},
			{Question: "Q2?", Answer: "answer two", Evaluation: "Great"},
		},
	}, persist.Submission)
	assert.Equal(t, PendingPersistence, s.Pending)
	assert.Equal(t, PhaseQuestioning, s.Phase)
	s = settle(t, s, cmds)

	_, _, err := Reduce(s, Submitted{Text: "too early"})
	assert.ErrorIs(t, err, ErrBusy)

	s, cmds = mustReduce(t, s, PersistenceSucceeded{TranscriptID: "t-1"})
	assert.Equal(t, []string{MessageSaved}, reveals(cmds))
	assert.Equal(t, PhaseComplete, s.Phase)
	assert.True(t, s.Saved)
	assert.Equal(t, "t-1", s.TranscriptID)
	assert.Equal(t, 2, s.CurrentIndex)
	s = settle(t, s, cmds)

	_, _, err = Reduce(s, Submitted{Text: "more"})
	assert.ErrorIs(t, err, ErrComplete)
}

func TestReduceIntroductionRejected(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "Hello there", want: MessageIntroFormat},
		{input: "I am  from Acme", want: MessageIntroIncomplete},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s := ready(t, "Q1?")
			next, cmds := mustReduce(t, s, Submitted{Text: tt.input})

			assert.Equal(t, []string{tt.want}, reveals(cmds))
			assert.Equal(t, PhaseCapturingIntro, next.Phase)
			assert.Empty(t, next.RespondentName)
			assert.Zero(t, next.CurrentIndex)
			assert.Equal(t, LogEntry{Speaker: SpeakerRespondent, Text: tt.input}, next.Log[len(next.Log)-2])
		})
	}
}

func TestReduceEvaluationFailureKeepsQuestion(t *testing.T) {
	s := questioning(t, "Q1?", "Q2?")
	s, _ = mustReduce(t, s, Submitted{Text: "first try"})

	s, cmds := mustReduce(t, s, EvaluationFailed{Index: 0, Err: errors.New("boom")})
	assert.Equal(t, []string{MessageEvaluationFailed}, reveals(cmds))
	assert.Zero(t, s.CurrentIndex)
	assert.Empty(t, s.Transcript)
	assert.Empty(t, s.PendingAnswer)
	s = settle(t, s, cmds)

	s, cmds = mustReduce(t, s, Submitted{Text: "second try"})
	assert.Equal(t, []Command{Evaluate{Index: 0, Question: "Q1?", Answer: "second try"}}, cmds)
}

func TestReduceEvaluationFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "generic", err: errors.New("500"), want: MessageEvaluationFailed},
		{name: "timeout", err: fmt.Errorf("evaluate: %w", context.DeadlineExceeded), want: MessageEvaluationSlow},
		{name: "cancelled", err: fmt.Errorf("evaluate: %w", context.Canceled), want: MessageEvaluationCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := questioning(t, "Q1?")
			s, _ = mustReduce(t, s, Submitted{Text: "answer"})
			_, cmds := mustReduce(t, s, EvaluationFailed{Index: 0, Err: tt.err})
			assert.Equal(t, []string{tt.want}, reveals(cmds))
		})
	}
}

func TestReduceRepeatedFailureIsIdempotent(t *testing.T) {
	s := questioning(t, "Q1?")

	fail := func(s Session) Session {
		s, _ = mustReduce(t, s, Submitted{Text: "answer"})
		s, cmds := mustReduce(t, s, EvaluationFailed{Index: 0, Err: errors.New("boom")})
		return settle(t, s, cmds)
	}

	once := fail(s)
	twice := fail(once)

	once.Log, twice.Log = nil, nil
	assert.Equal(t, once, twice)
}

func TestReducePersistenceFailureStillCompletes(t *testing.T) {
	s := questioning(t, "Q1?")
	s, _ = mustReduce(t, s, Submitted{Text: "answer"})
	s, cmds := mustReduce(t, s, EvaluationSucceeded{Index: 0, Feedback: "ok"})
	s = settle(t, s, cmds)

	s, cmds = mustReduce(t, s, PersistenceFailed{Err: errors.New("db down")})
	assert.Equal(t, []string{MessageSaveFailed}, reveals(cmds))
	assert.Equal(t, PhaseComplete, s.Phase)
	assert.False(t, s.Saved)
	assert.Empty(t, s.TranscriptID)
	require.Len(t, s.Transcript, 1)
}

func TestReduceEmptyQuestionListUsesDefault(t *testing.T) {
	for name, ev := range map[string]Event{
		"empty":  QuestionsLoaded{Questions: []string{" ", ""}},
		"failed": QuestionsFailed{Err: errors.New("offline")},
	} {
		t.Run(name, func(t *testing.T) {
			s, cmds := mustReduce(t, NewSession("s1", ""), Opened{})
			s = settle(t, s, cmds)
			s, _ = mustReduce(t, s, ev)
			assert.Equal(t, []string{DefaultQuestion}, s.Questions)

			s, cmds = mustReduce(t, s, Submitted{Text: "I am Jane from Acme"})
			assert.Equal(t, []string{"👋 Thank you, Jane. " + DefaultQuestion}, reveals(cmds))
		})
	}
}

func TestReduceEmptyFeedbackUsesDefault(t *testing.T) {
	s := questioning(t, "Q1?", "Q2?")
	s, _ = mustReduce(t, s, Submitted{Text: "answer"})
	s, cmds := mustReduce(t, s, EvaluationSucceeded{Index: 0, Feedback: "  "})

	assert.Equal(t, DefaultEvaluation, s.Transcript[0].Evaluation)
	assert.Equal(t, "🤖 "+DefaultEvaluation, reveals(cmds)[0])
}

func TestReduceRejectsInput(t *testing.T) {
	t.Run("before open", func(t *testing.T) {
		_, _, err := Reduce(NewSession("s1", ""), Submitted{Text: "hi"})
		assert.ErrorIs(t, err, ErrBusy)
	})

	t.Run("while loading questions", func(t *testing.T) {
		s, cmds := mustReduce(t, NewSession("s1", ""), Opened{})
		s = settle(t, s, cmds)
		_, _, err := Reduce(s, Submitted{Text: "hi"})
		assert.ErrorIs(t, err, ErrBusy)
	})

	t.Run("while revealing", func(t *testing.T) {
		s := ready(t, "Q1?")
		s, _ = mustReduce(t, s, Submitted{Text: "I am Jane from Acme"})
		_, _, err := Reduce(s, Submitted{Text: "answer"})
		assert.ErrorIs(t, err, ErrBusy)
	})

	t.Run("while evaluating", func(t *testing.T) {
		s := questioning(t, "Q1?")
		s, _ = mustReduce(t, s, Submitted{Text: "answer"})
		_, _, err := Reduce(s, Submitted{Text: "again"})
		assert.ErrorIs(t, err, ErrBusy)
	})

	t.Run("empty", func(t *testing.T) {
		s := ready(t, "Q1?")
		next, cmds, err := Reduce(s, Submitted{Text: " \t\n"})
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.Nil(t, cmds)
		assert.Equal(t, s, next)
	})
}

func TestReduceRejectsStaleEvents(t *testing.T) {
	s := questioning(t, "Q1?", "Q2?")

	_, _, err := Reduce(s, EvaluationSucceeded{Index: 0, Feedback: "late"})
	assert.ErrorIs(t, err, ErrUnexpectedEvent)

	s, _ = mustReduce(t, s, Submitted{Text: "answer"})
	_, _, err = Reduce(s, EvaluationFailed{Index: 1, Err: errors.New("x")})
	assert.ErrorIs(t, err, ErrUnexpectedEvent)

	_, _, err = Reduce(s, PersistenceSucceeded{TranscriptID: "x"})
	assert.ErrorIs(t, err, ErrUnexpectedEvent)

	_, _, err = Reduce(NewSession("s1", ""), RevealFinished{})
	assert.ErrorIs(t, err, ErrUnexpectedEvent)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	s := questioning(t, "Q1?", "Q2?")
	s, _ = mustReduce(t, s, Submitted{Text: "answer"})
	before := s.Clone()

	a, _ := mustReduce(t, s, EvaluationSucceeded{Index: 0, Feedback: "first"})
	b, _ := mustReduce(t, s, EvaluationFailed{Index: 0, Err: errors.New("boom")})

	assert.Equal(t, before, s)
	assert.Equal(t, "first", a.Transcript[0].Evaluation)
	assert.Empty(t, b.Transcript)
	assert.Equal(t, "🤖 first", a.Log[len(s.Log)].Text)
	assert.Equal(t, MessageEvaluationFailed, b.Log[len(s.Log)].Text)
}

func TestReduceTranscriptTracksIndex(t *testing.T) {
	questions := []string{"Q1?", "Q2?", "Q3?"}
	s := questioning(t, questions...)

	for i := range questions {
		require.Equal(t, i, s.CurrentIndex)
		require.Len(t, s.Transcript, i)

		var cmds []Command
		s, _ = mustReduce(t, s, Submitted{Text: fmt.Sprintf("answer %d", i)})
		s, cmds = mustReduce(t, s, EvaluationSucceeded{Index: i, Feedback: "ok"})
		s = settle(t, s, cmds)
	}

	assert.Equal(t, len(questions), s.CurrentIndex)
	assert.Len(t, s.Transcript, len(questions))
	assert.Equal(t, PendingPersistence, s.Pending)
}
