// Package anyllm evaluates answers through any-llm-go, which fronts several
// model providers behind one API. The default provider is Anthropic.
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/utils"
	"go.uber.org/zap"
)

const (
	DefaultProvider  = "anthropic"
	DefaultModel     = "claude-3-haiku-20240307"
	defaultMaxTokens = 200
	temperature      = 0.7
)

type Config struct {
	// Provider is one of anthropic, openai or gemini.
	Provider     string
	Model        string
	APIKey       string
	BaseURL      string
	MaxTokens    int
	MaxLogLength int
}

type completeFunc func(ctx context.Context, params anyllmlib.CompletionParams) (string, error)

type Evaluator struct {
	complete  completeFunc
	provider  string
	model     string
	maxTokens int
	maxLogLen int
	logger    *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Evaluator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = DefaultProvider
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		if provider != DefaultProvider {
			return nil, fmt.Errorf("anyllm: model must be set for provider %q", provider)
		}
		model = DefaultModel
	}

	var opts []anyllmlib.Option
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		opts = append(opts, anyllmlib.WithAPIKey(key))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}

	backend, err := createBackend(provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", provider, err)
	}

	return newEvaluator(func(ctx context.Context, params anyllmlib.CompletionParams) (string, error) {
		resp, err := backend.Completion(ctx, params)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.ContentString(), nil
	}, provider, model, cfg, logger), nil
}

func newEvaluator(complete completeFunc, provider, model string, cfg Config, logger *zap.Logger) *Evaluator {
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

	return &Evaluator{
		complete:  complete,
		provider:  provider,
		model:     model,
		maxTokens: maxTokens,
		maxLogLen: maxLogLen,
		logger:    logger,
	}
}

func createBackend(provider string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch provider {
	case "anthropic":
		return anthropic.New(opts...)
	case "openai":
		return anyllmoai.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	default:
		return nil, errors.New("unsupported provider; supported: anthropic, openai, gemini")
	}
}

func (e *Evaluator) Model() string { return e.model }

func (e *Evaluator) Provider() string { return e.provider }

func (e *Evaluator) Evaluate(ctx context.Context, question, answer string) (*ai.Evaluation, error) {
	if err := ai.ValidateInput(question, answer); err != nil {
		return nil, err
	}

	prompt := ai.BuildPrompt(question, answer)
	temp := temperature
	maxTokens := e.maxTokens

	e.logger.Debug("anyllm completion request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.complete(ctx, anyllmlib.CompletionParams{
		Model:       e.model,
		Messages:    []anyllmlib.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}

	e.logger.Debug("anyllm completion response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	feedback := ai.CleanFeedback(raw)
	if feedback == "" {
		e.logger.Warn("anyllm returned no feedback, using default", zap.String("default", ai.DefaultFeedback))
		feedback = ai.DefaultFeedback
	}

	return &ai.Evaluation{Feedback: feedback, Raw: raw}, nil
}
