package gemini

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/utils"
	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Evaluator asks Gemini for coaching feedback on an answer.
type Evaluator struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

const defaultMaxLogLength = 200

func NewEvaluator(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Evaluator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Evaluator{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (e *Evaluator) Evaluate(ctx context.Context, question, answer string) (*ai.Evaluation, error) {
	if err := ai.ValidateInput(question, answer); err != nil {
		return nil, err
	}

	prompt := ai.BuildPrompt(question, answer)

	e.logger.Debug("gemini generate content request",
		zap.String("model", e.generator.Model()),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil && !errors.Is(err, ErrEmptyResponse) {
		return nil, err
	}

	e.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	feedback := ai.CleanFeedback(raw)
	if feedback == "" {
		e.logger.Warn("gemini returned no feedback, using default", zap.String("default", ai.DefaultFeedback))
		feedback = ai.DefaultFeedback
	}

	return &ai.Evaluation{Feedback: feedback, Raw: raw}, nil
}
