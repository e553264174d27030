package interview

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spigell/interview-coach/internal/transcript"
)

var (
	ErrBusy            = errors.New("interview is busy")
	ErrComplete        = errors.New("interview is complete")
	ErrEmptyInput      = errors.New("input is empty")
	ErrUnexpectedEvent = errors.New("unexpected event")
)

const (
	MessageWelcome          = "🤖 Welcome to your weekly content strategy interview. Let's start by confirming your name and the company you're working with."
	MessageIntroFormat      = `👋 Please introduce yourself like "I am [your name] from [company name]"`
	MessageIntroIncomplete  = `❗Please enter both name and company in the format "I am [your name] from [company name]"`
	MessageEvaluationFailed = "⚠️ Sorry, there was an issue evaluating your response. Please try again."
	MessageEvaluationSlow   = "⚠️ Evaluating your response took too long. Please try again."
	MessageEvaluationCancel = "⚠️ Evaluation cancelled. You can send your answer again."
	MessageSaved            = "✅ Interview complete! The transcript has been saved successfully."
	MessageSaveFailed       = "⚠️ Interview complete, but there was an issue saving the transcript. Please contact support."

	// DefaultQuestion is asked when the question source has nothing to offer.
	DefaultQuestion = "Let's begin. Tell me about your content strategy process."
	// DefaultEvaluation is recorded when the evaluator returns no feedback.
	DefaultEvaluation = "Reviewed ✅"
)

type Event interface{ isEvent() }

type (
	// Opened starts the session.
	Opened struct{}
	// QuestionsLoaded carries the question texts in order.
	QuestionsLoaded struct{ Questions []string }
	QuestionsFailed struct{ Err error }
	// Submitted is raw respondent input.
	Submitted struct{ Text string }
	// EvaluationSucceeded carries the feedback for the answer at Index.
	EvaluationSucceeded struct {
		Index    int
		Feedback string
	}
	EvaluationFailed struct {
		Index int
		Err   error
	}
	PersistenceSucceeded struct{ TranscriptID string }
	PersistenceFailed    struct{ Err error }
	// RevealFinished reports that one system message is fully displayed.
	RevealFinished struct{}
)

func (Opened) isEvent()               {}
func (QuestionsLoaded) isEvent()      {}
func (QuestionsFailed) isEvent()      {}
func (Submitted) isEvent()            {}
func (EvaluationSucceeded) isEvent()  {}
func (EvaluationFailed) isEvent()     {}
func (PersistenceSucceeded) isEvent() {}
func (PersistenceFailed) isEvent()    {}
func (RevealFinished) isEvent()       {}

type Command interface{ isCommand() }

type (
	FetchQuestions struct{}
	Evaluate       struct {
		Index    int
		Question string
		Answer   string
	}
	Persist struct{ Submission transcript.Submission }
	// Reveal shows the system message stored at Log[LogIndex].
	Reveal struct {
		LogIndex int
		Text     string
	}
)

func (FetchQuestions) isCommand() {}
func (Evaluate) isCommand()       {}
func (Persist) isCommand()        {}
func (Reveal) isCommand()         {}

// Reduce applies ev to s. It never mutates s; the returned session shares no
// appended storage with it. When an error is returned the session is returned
// unchanged and no commands are issued.
func Reduce(s Session, ev Event) (Session, []Command, error) {
	switch ev := ev.(type) {
	case Opened:
		return opened(s)
	case QuestionsLoaded:
		return questionsLoaded(s, ev.Questions)
	case QuestionsFailed:
		return questionsLoaded(s, nil)
	case Submitted:
		return submitted(s, ev.Text)
	case EvaluationSucceeded:
		return evaluationSucceeded(s, ev)
	case EvaluationFailed:
		return evaluationFailed(s, ev)
	case PersistenceSucceeded:
		return persisted(s, ev.TranscriptID, true)
	case PersistenceFailed:
		return persisted(s, "", false)
	case RevealFinished:
		if s.Revealing == 0 {
			return s, nil, fmt.Errorf("%w: no reveal in progress", ErrUnexpectedEvent)
		}
		s.Revealing--
		return s, nil, nil
	default:
		return s, nil, fmt.Errorf("%w: %T", ErrUnexpectedEvent, ev)
	}
}

func opened(s Session) (Session, []Command, error) {
	if s.Started {
		return s, nil, fmt.Errorf("%w: session already opened", ErrUnexpectedEvent)
	}
	s.Started = true
	s.Pending = PendingQuestions
	s, reveal := say(s, MessageWelcome)
	return s, []Command{FetchQuestions{}, reveal}, nil
}

func questionsLoaded(s Session, questions []string) (Session, []Command, error) {
	if s.Pending != PendingQuestions {
		return s, nil, fmt.Errorf("%w: questions were not requested", ErrUnexpectedEvent)
	}

	texts := make([]string, 0, len(questions))
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			texts = append(texts, q)
		}
	}
	if len(texts) == 0 {
		texts = []string{DefaultQuestion}
	}

	s.Questions = texts
	s.Pending = PendingNone
	return s, nil, nil
}

func submitted(s Session, text string) (Session, []Command, error) {
	text = strings.TrimSpace(text)
	switch {
	case s.Phase == PhaseComplete:
		return s, nil, ErrComplete
	case !s.Started || s.Busy():
		return s, nil, ErrBusy
	case text == "":
		return s, nil, ErrEmptyInput
	}

	s.Log = append(slices.Clip(s.Log), LogEntry{Speaker: SpeakerRespondent, Text: text})

	if s.Phase == PhaseCapturingIntro {
		return introduced(s, text)
	}

	question, _ := s.CurrentQuestion()
	s.Pending = PendingEvaluation
	s.PendingAnswer = text
	return s, []Command{Evaluate{Index: s.CurrentIndex, Question: question, Answer: text}}, nil
}

func introduced(s Session, text string) (Session, []Command, error) {
	name, company, err := ParseIntroduction(text)
	if err != nil {
		msg := MessageIntroIncomplete
		if errors.Is(err, ErrIntroSeparator) {
			msg = MessageIntroFormat
		}
		s, reveal := say(s, msg)
		return s, []Command{reveal}, nil
	}

	s.RespondentName = name
	s.RespondentCompany = company
	s.Phase = PhaseQuestioning
	s, reveal := say(s, fmt.Sprintf("👋 Thank you, %s. %s", name, s.Questions[0]))
	return s, []Command{reveal}, nil
}

func evaluationSucceeded(s Session, ev EvaluationSucceeded) (Session, []Command, error) {
	if s.Pending != PendingEvaluation || ev.Index != s.CurrentIndex {
		return s, nil, fmt.Errorf("%w: evaluation for question %d", ErrUnexpectedEvent, ev.Index)
	}

	feedback := strings.TrimSpace(ev.Feedback)
	if feedback == "" {
		feedback = DefaultEvaluation
	}

	question, _ := s.CurrentQuestion()
	s.Transcript = append(slices.Clip(s.Transcript), transcript.Record{
		Question:   question,
		Answer:     s.PendingAnswer,
		Evaluation: feedback,
	})
	s.CurrentIndex++
	s.PendingAnswer = ""

	s, feedbackReveal := say(s, "🤖 "+feedback)
	cmds := []Command{feedbackReveal}

	if s.CurrentIndex < len(s.Questions) {
		var next Reveal
		s.Pending = PendingNone
		s, next = say(s, fmt.Sprintf("💬 %s ❓", s.Questions[s.CurrentIndex]))
		return s, append(cmds, next), nil
	}

	s.Pending = PendingPersistence
	return s, append(cmds, Persist{Submission: s.Submission()}), nil
}

func evaluationFailed(s Session, ev EvaluationFailed) (Session, []Command, error) {
	if s.Pending != PendingEvaluation || ev.Index != s.CurrentIndex {
		return s, nil, fmt.Errorf("%w: evaluation failure for question %d", ErrUnexpectedEvent, ev.Index)
	}

	msg := MessageEvaluationFailed
	switch {
	case errors.Is(ev.Err, context.DeadlineExceeded):
		msg = MessageEvaluationSlow
	case errors.Is(ev.Err, context.Canceled):
		msg = MessageEvaluationCancel
	}

	s.Pending = PendingNone
	s.PendingAnswer = ""
	s, reveal := say(s, msg)
	return s, []Command{reveal}, nil
}

func persisted(s Session, id string, ok bool) (Session, []Command, error) {
	if s.Pending != PendingPersistence {
		return s, nil, fmt.Errorf("%w: persistence was not requested", ErrUnexpectedEvent)
	}

	s.Pending = PendingNone
	s.Phase = PhaseComplete
	s.Saved = ok
	s.TranscriptID = id

	msg := MessageSaveFailed
	if ok {
		msg = MessageSaved
	}
	s, reveal := say(s, msg)
	return s, []Command{reveal}, nil
}

// say appends a system line to the log and returns the command revealing it.
func say(s Session, text string) (Session, Reveal) {
	s.Log = append(slices.Clip(s.Log), LogEntry{Speaker: SpeakerSystem, Text: text})
	s.Revealing++
	return s, Reveal{LogIndex: len(s.Log) - 1, Text: text}
}
