package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/ai/anyllm"
	"github.com/spigell/interview-coach/internal/ai/gemini"
	"github.com/spigell/interview-coach/internal/ai/openai"
	"github.com/spigell/interview-coach/internal/apiclient"
	"github.com/spigell/interview-coach/internal/health"
	"github.com/spigell/interview-coach/internal/interview"
	"github.com/spigell/interview-coach/internal/logger"
	"github.com/spigell/interview-coach/internal/secrets"
	"github.com/spigell/interview-coach/internal/storage"
	"github.com/spigell/interview-coach/internal/storage/blob"
	"github.com/spigell/interview-coach/internal/storage/file"
	"github.com/spigell/interview-coach/internal/storage/postgres"
	"github.com/spigell/interview-coach/internal/transcript"
	"go.uber.org/zap"
)

// backend is an opened storage backend.
type backend struct {
	name      string
	store     storage.TranscriptStore
	questions storage.QuestionBank
	// seeder is nil when the backend keeps no question bank of its own.
	seeder   storage.Seeder
	checkers []health.Checker
	close    func()
}

func openBackend(ctx context.Context, cfg StorageConfig, questions []string) (*backend, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))

	switch name {
	case "postgres":
		dsn, err := secrets.Load(secrets.Source{
			Name:  "database url",
			Value: cfg.Postgres.DSN,
			File:  cfg.Postgres.DSNFile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set storage.postgres.dsn or DATABASE_URL)", err)
		}
		store, err := postgres.Open(ctx, dsn, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		return &backend{
			name:      name,
			store:     store,
			questions: store,
			seeder:    store,
			checkers:  []health.Checker{{Name: name, Check: store.Ping}},
			close:     store.Close,
		}, nil

	case "", "file":
		store, err := file.New(cfg.File.Dir, cfg.File.QuestionsFile)
		if err != nil {
			return nil, err
		}
		return &backend{
			name:      "file",
			store:     store,
			questions: store,
			seeder:    store,
			checkers:  []health.Checker{{Name: "file", Check: store.Ping}},
			close:     func() {},
		}, nil

	case "blob":
		conn, err := secrets.Optional(secrets.Source{
			Name:  "blob connection string",
			Value: cfg.Blob.ConnectionString,
			File:  cfg.Blob.ConnectionStringFile,
		})
		if err != nil {
			return nil, err
		}
		store, err := blob.New(ctx, blob.Config{
			ConnectionString: conn,
			AccountURL:       cfg.Blob.AccountURL,
			Container:        cfg.Blob.Container,
		})
		if err != nil {
			return nil, err
		}
		return &backend{
			name:      name,
			store:     store,
			questions: staticQuestions(questions),
			checkers:  []health.Checker{{Name: name, Check: store.Ping}},
			close:     func() {},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

func staticQuestions(questions []string) storage.StaticQuestions {
	if len(questions) == 0 {
		return storage.StaticQuestions(transcript.DefaultQuestions)
	}
	return storage.StaticQuestions(questions)
}

func newEvaluator(ctx context.Context, cfg EvaluatorConfig, l *zap.Logger) (ai.Evaluator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	switch provider {
	case "", "gemini":
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set evaluator.gemini.api-key-file or GEMINI_API_KEY)", err)
		}
		generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		return gemini.NewEvaluator(generator, logger.WithEvaluator(l, "gemini", generator.Model()), cfg.MaxLogLength), nil

	case "openai":
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set evaluator.openai.api-key-file or OPENAI_API_KEY)", err)
		}
		model := cfg.OpenAI.Model
		if strings.TrimSpace(model) == "" {
			model = openai.DefaultModel
		}
		return openai.New(openai.Config{
			APIKey:       apiKey,
			Model:        model,
			BaseURL:      cfg.OpenAI.BaseURL,
			MaxTokens:    cfg.MaxTokens,
			MaxLogLength: cfg.MaxLogLength,
		}, logger.WithEvaluator(l, "openai", model))

	case "anyllm":
		backendName := strings.ToLower(strings.TrimSpace(cfg.AnyLLM.Provider))
		if backendName == "" {
			backendName = anyllm.DefaultProvider
		}
		// Without a key the backend falls back to its own environment variable.
		apiKey, err := secrets.Optional(secrets.Source{
			Name:  backendName + " api key",
			Value: cfg.AnyLLM.APIKey,
			File:  cfg.AnyLLM.APIKeyFile,
			Env:   strings.ToUpper(backendName) + "_API_KEY",
		})
		if err != nil {
			return nil, err
		}
		return anyllm.New(anyllm.Config{
			Provider:     backendName,
			Model:        cfg.AnyLLM.Model,
			APIKey:       apiKey,
			BaseURL:      cfg.AnyLLM.BaseURL,
			MaxTokens:    cfg.MaxTokens,
			MaxLogLength: cfg.MaxLogLength,
		}, logger.WithEvaluator(l, "anyllm/"+backendName, cfg.AnyLLM.Model))

	default:
		return nil, fmt.Errorf("unsupported evaluator provider: %s", cfg.Provider)
	}
}

func newAPIClient(cfg ClientConfig, l *zap.Logger) (*apiclient.Client, error) {
	token, err := secrets.Optional(secrets.Source{
		Name:  "api token",
		Value: cfg.Token,
		File:  cfg.TokenFile,
	})
	if err != nil {
		return nil, err
	}
	return apiclient.New(l, cfg.APIURL, token, cfg.UserID)
}

func remoteMode(cfg *Config) bool {
	return strings.TrimSpace(cfg.Client.APIURL) != ""
}

func interviewTimeouts(cfg InterviewConfig) interview.Timeouts {
	return interview.Timeouts{
		Questions:   cfg.QuestionsTimeout,
		Evaluation:  cfg.EvaluationTimeout,
		Persistence: cfg.PersistenceTimeout,
	}
}

// newLogger builds the logger from the persistent flags.
func newLogger(outputs ...string) *zap.Logger {
	zl, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), outputs...)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return zl
}

func mustConfig(l *zap.Logger) *Config {
	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}
	return config
}
