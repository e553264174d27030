// Package transcript holds the records produced by an interview and handed to
// the transcript stores.
package transcript

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalid is returned by Submission.Validate when required fields are missing.
var ErrInvalid = errors.New("invalid transcript")

// DefaultQuestions is the question bank used when nothing else is configured.
var DefaultQuestions = []string{
	"What is your approach to content planning for a new brand?",
	"How do you measure content performance over time?",
	"Describe a successful content campaign you led.",
	"How do you perform content audits?",
}

// Question is a single interview prompt.
type Question struct {
	ID   string `json:"id" mapstructure:"id" yaml:"id"`
	Text string `json:"text" mapstructure:"text" yaml:"text"`
}

// Record is one answered question.
type Record struct {
	Question   string `json:"question" mapstructure:"question"`
	Answer     string `json:"answer" mapstructure:"answer"`
	Evaluation string `json:"evaluation" mapstructure:"evaluation"`
}

// Submission is what a finished interview hands to a store.
type Submission struct {
	Name      string   `json:"name" mapstructure:"name"`
	Company   string   `json:"company" mapstructure:"company"`
	Questions []Record `json:"questions" mapstructure:"questions"`
	UserID    string   `json:"userId,omitempty" mapstructure:"userId"`
}

// Validate checks that name and company are present and questions is set.
func (s Submission) Validate() error {
	var missing []string
	if strings.TrimSpace(s.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(s.Company) == "" {
		missing = append(missing, "company")
	}
	if s.Questions == nil {
		missing = append(missing, "questions")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}

// Transcript is a persisted submission.
type Transcript struct {
	ID         string `json:"id" mapstructure:"id"`
	Submission `mapstructure:",squash"`
	CreatedAt time.Time `json:"createdAt" mapstructure:"createdAt"`
}

// SortNewestFirst orders transcripts by creation time, newest first.
func SortNewestFirst(items []*Transcript) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
