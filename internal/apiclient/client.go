// Package apiclient talks to a running interview-coach service. The client
// serves as question source, evaluator and transcript store for the terminal
// interview and backs the admin commands.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/storage"
	"github.com/spigell/interview-coach/internal/transcript"
	"go.uber.org/zap"
)

const (
	userAgent      = "spigell/interview-coach"
	defaultTimeout = 60 * time.Second

	pathQuestions   = "/api/questions"
	pathEvaluate    = "/api/evaluate"
	pathSave        = "/api/save-transcript"
	pathTranscripts = "/api/transcripts"
)

type Client struct {
	token      string
	userID     string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

// New returns a client for the service at apiURL. token is sent as a bearer
// token when set; userID is sent in the X-User-ID header when set.
func New(logger *zap.Logger, apiURL, token, userID string) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(apiURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", apiURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:  token,
		userID: userID,
		APIURL: strings.TrimSuffix(u.String(), "/"),
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:    logger,
		UserAgent: userAgent,
	}, nil
}

func (c *Client) Questions(ctx context.Context) ([]transcript.Question, error) {
	var questions []transcript.Question
	if err := c.getJSON(ctx, pathQuestions, nil, &questions); err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	return questions, nil
}

type evaluateRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type evaluateResponse struct {
	Feedback string `json:"feedback"`
}

func (c *Client) Evaluate(ctx context.Context, question, answer string) (*ai.Evaluation, error) {
	if err := ai.ValidateInput(question, answer); err != nil {
		return nil, err
	}

	var resp evaluateResponse
	if err := c.postJSON(ctx, pathEvaluate, evaluateRequest{Question: question, Answer: answer}, &resp); err != nil {
		return nil, fmt.Errorf("evaluate answer: %w", err)
	}
	return &ai.Evaluation{Feedback: resp.Feedback, Raw: resp.Feedback}, nil
}

type saveResponse struct {
	Success    bool                   `json:"success"`
	Transcript *transcript.Transcript `json:"transcript"`
}

func (c *Client) Save(ctx context.Context, submission transcript.Submission) (*transcript.Transcript, error) {
	var resp saveResponse
	if err := c.postJSON(ctx, pathSave, submission, &resp); err != nil {
		return nil, fmt.Errorf("save transcript: %w", err)
	}
	if !resp.Success || resp.Transcript == nil {
		return nil, errors.New("save transcript: service did not confirm the save")
	}
	return resp.Transcript, nil
}

// ListTranscripts returns all transcripts, newest first.
func (c *Client) ListTranscripts(ctx context.Context) ([]*transcript.Transcript, error) {
	var resp map[string]any
	if err := c.getJSON(ctx, pathTranscripts, nil, &resp); err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}

	items, err := decodeTranscripts(resp["transcripts"])
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	c.logger.Debug("listed transcripts", zap.Any("count", resp["count"]), zap.Int("decoded", len(items)))
	return items, nil
}

func (c *Client) GetTranscript(ctx context.Context, id string) (*transcript.Transcript, error) {
	var tr transcript.Transcript
	if err := c.getJSON(ctx, pathTranscripts+"/"+url.PathEscape(id), nil, &tr); err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transcript %q: %w", id, err)
	}
	return &tr, nil
}

// RenderTranscript returns the transcript exported by the service in format
// (markdown or html).
func (c *Client) RenderTranscript(ctx context.Context, id, format string) (string, error) {
	q := url.Values{}
	q.Set("format", format)
	body, err := c.getRaw(ctx, pathTranscripts+"/"+url.PathEscape(id), q)
	if err != nil {
		if isNotFound(err) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("render transcript %q: %w", id, err)
	}
	return string(body), nil
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
