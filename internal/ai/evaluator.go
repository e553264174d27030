package ai

import (
	"context"
	"errors"
	"strings"

	_ "embed"
)

// DefaultFeedback is returned when a model answers with no usable text.
const DefaultFeedback = "Thanks for your answer!"

// ErrInvalidInput is returned when the question or the answer is missing.
var ErrInvalidInput = errors.New("question and answer are required")

//go:embed prompt.md
var promptTemplate string

// Evaluation is the feedback produced for one answer.
type Evaluation struct {
	Feedback string
	// Raw is the unprocessed model output, kept for logging.
	Raw string
}

// Evaluator produces feedback for an answer to a question.
type Evaluator interface {
	Evaluate(ctx context.Context, question, answer string) (*Evaluation, error)
}

// ValidateInput rejects empty questions and answers.
func ValidateInput(question, answer string) error {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return ErrInvalidInput
	}
	return nil
}

// BuildPrompt renders the coaching prompt for a question and an answer.
func BuildPrompt(question, answer string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Question: \"{{QUESTION}}\"\nAnswer: \"{{ANSWER}}\"\n\nFeedback:"
	}
	prompt := strings.ReplaceAll(template, "{{QUESTION}}", strings.TrimSpace(question))
	prompt = strings.ReplaceAll(prompt, "{{ANSWER}}", strings.TrimSpace(answer))
	return prompt
}

// CleanFeedback strips code fences and wrapping quotes some models add around
// short answers. An empty result means the model said nothing useful.
func CleanFeedback(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```markdown")
		text = strings.TrimPrefix(text, "```text")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx != -1 {
			text = text[:idx]
		}
	}
	text = strings.TrimSpace(text)
	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	return text
}
