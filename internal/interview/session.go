// Package interview drives one respondent through the interview: it captures
// the introduction, steps through the questions, has every answer evaluated
// and hands the finished transcript to a store.
//
// State lives in a Session value. Reduce applies an Event to it and returns the
// Commands the Controller has to execute; the results of those commands come
// back as new events.
package interview

import (
	"slices"

	"github.com/spigell/interview-coach/internal/transcript"
)

type Phase int

const (
	PhaseCapturingIntro Phase = iota
	PhaseQuestioning
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseCapturingIntro:
		return "capturing_intro"
	case PhaseQuestioning:
		return "questioning"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

type Speaker string

const (
	SpeakerRespondent Speaker = "respondent"
	SpeakerSystem     Speaker = "system"
)

// LogEntry is a line of the displayed dialogue. It is never persisted.
type LogEntry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Pending names the collaborator call a session is waiting for.
type Pending int

const (
	PendingNone Pending = iota
	PendingQuestions
	PendingEvaluation
	PendingPersistence
)

func (p Pending) String() string {
	switch p {
	case PendingNone:
		return "none"
	case PendingQuestions:
		return "questions"
	case PendingEvaluation:
		return "evaluation"
	case PendingPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Session is the full state of one interview.
type Session struct {
	ID     string
	UserID string

	Phase             Phase
	Started           bool
	RespondentName    string
	RespondentCompany string

	Questions    []string
	CurrentIndex int
	Transcript   []transcript.Record
	Log          []LogEntry

	Pending       Pending
	PendingAnswer string
	// Revealing counts system messages handed to the display and not yet
	// fully revealed.
	Revealing int

	TranscriptID string
	Saved        bool
}

// NewSession returns a session waiting for the Opened event.
func NewSession(id, userID string) Session {
	return Session{
		ID:     id,
		UserID: userID,
		Phase:  PhaseCapturingIntro,
	}
}

// Busy reports whether the session refuses submissions right now.
func (s Session) Busy() bool {
	return s.Pending != PendingNone || s.Revealing > 0
}

// CurrentQuestion returns the question waiting for an answer.
func (s Session) CurrentQuestion() (string, bool) {
	if s.Phase != PhaseQuestioning || s.CurrentIndex >= len(s.Questions) {
		return "", false
	}
	return s.Questions[s.CurrentIndex], true
}

// Submission builds the payload handed to the transcript store.
func (s Session) Submission() transcript.Submission {
	records := make([]transcript.Record, len(s.Transcript))
	copy(records, s.Transcript)
	return transcript.Submission{
		Name:      s.RespondentName,
		Company:   s.RespondentCompany,
		Questions: records,
		UserID:    s.UserID,
	}
}

// Clone returns a copy that shares no slices with s.
func (s Session) Clone() Session {
	s.Questions = slices.Clone(s.Questions)
	s.Transcript = slices.Clone(s.Transcript)
	s.Log = slices.Clone(s.Log)
	return s
}
