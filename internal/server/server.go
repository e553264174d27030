// Package server exposes the interview over HTTP: the JSON API used by the
// browser client, the admin transcript routes, a websocket driving a live
// interview, and the health and metrics endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/health"
	"github.com/spigell/interview-coach/internal/interview"
	"github.com/spigell/interview-coach/internal/observe"
	"github.com/spigell/interview-coach/internal/storage"
	"go.uber.org/zap"
)

const defaultMaxBodyBytes = 1 << 20

type Config struct {
	// AdminToken guards the transcript routes. Empty leaves them open.
	AdminToken     string
	Timeouts       interview.Timeouts
	RevealInterval time.Duration
	// AllowedOrigins are host patterns accepted for websocket upgrades
	// besides the request host.
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// Deps are the collaborators of the server. Metrics and MetricsHandler are
// optional.
type Deps struct {
	Questions      storage.QuestionBank
	Evaluator      ai.Evaluator
	Store          storage.TranscriptStore
	Checkers       []health.Checker
	Metrics        *observe.Metrics
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

type Server struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
	schema *jsonschema.Schema
}

func New(cfg Config, deps Deps) (*Server, error) {
	schema, err := compileTranscriptSchema()
	if err != nil {
		return nil, err
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{cfg: cfg, deps: deps, logger: logger, schema: schema}, nil
}

// Handler returns the routes wrapped in the access log and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/questions", s.handleQuestions)
	mux.HandleFunc("POST /api/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /api/save-transcript", s.handleSaveTranscript)
	mux.Handle("GET /api/transcripts", s.admin(http.HandlerFunc(s.handleListTranscripts)))
	mux.Handle("GET /api/transcripts/{id}", s.admin(http.HandlerFunc(s.handleGetTranscript)))
	mux.HandleFunc("GET /ws/interview", s.handleInterview)

	health.New(s.logger, s.deps.Checkers...).Register(mux)
	if s.deps.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.deps.MetricsHandler)
	}

	return observe.Middleware(s.deps.Metrics, s.logger)(mux)
}

// callContext bounds a collaborator call; zero means no bound.
func callContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// callStatus classifies a finished call, preferring the context error.
func callStatus(ctx context.Context, err error) string {
	if err != nil && ctx.Err() != nil {
		return observe.CallStatus(ctx.Err())
	}
	return observe.CallStatus(err)
}
