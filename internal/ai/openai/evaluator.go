// Package openai evaluates answers with the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/utils"
	"go.uber.org/zap"
)

const (
	DefaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 200
	temperature      = 0.7
)

type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	MaxTokens    int
	MaxLogLength int
}

// Evaluator implements ai.Evaluator using the OpenAI API.
type Evaluator struct {
	client    oai.Client
	model     string
	maxTokens int
	maxLogLen int
	logger    *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Evaluator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key must not be empty")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = 200
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Evaluator{
		client:    oai.NewClient(reqOpts...),
		model:     model,
		maxTokens: maxTokens,
		maxLogLen: maxLogLen,
		logger:    logger,
	}, nil
}

func (e *Evaluator) Model() string { return e.model }

func (e *Evaluator) Evaluate(ctx context.Context, question, answer string) (*ai.Evaluation, error) {
	if err := ai.ValidateInput(question, answer); err != nil {
		return nil, err
	}

	prompt := ai.BuildPrompt(question, answer)
	e.logger.Debug("openai chat completion request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	resp, err := e.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:               shared.ChatModel(e.model),
		Messages:            []oai.ChatCompletionMessageParamUnion{oai.UserMessage(prompt)},
		Temperature:         param.NewOpt(temperature),
		MaxCompletionTokens: param.NewOpt(int64(e.maxTokens)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}

	var raw string
	if len(resp.Choices) > 0 {
		raw = resp.Choices[0].Message.Content
	}

	e.logger.Debug("openai chat completion response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	feedback := ai.CleanFeedback(raw)
	if feedback == "" {
		e.logger.Warn("openai returned no feedback, using default", zap.String("default", ai.DefaultFeedback))
		feedback = ai.DefaultFeedback
	}

	return &ai.Evaluation{Feedback: feedback, Raw: raw}, nil
}
