package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, status int, content string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		if gotBody != nil {
			assert.NoError(t, json.Unmarshal(body, gotBody))
		}

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEvaluate(t *testing.T) {
	var body map[string]any
	srv := completionServer(t, http.StatusOK, "```\nSolid plan, add metrics.\n```", &body)

	e, err := New(Config{APIKey: "sk-test", Model: "gpt-test", BaseURL: srv.URL + "/"}, nil)
	require.NoError(t, err)

	evaluation, err := e.Evaluate(context.Background(), "How do you plan?", "With a calendar.")
	require.NoError(t, err)
	assert.Equal(t, "Solid plan, add metrics.", evaluation.Feedback)

	assert.Equal(t, "gpt-test", body["model"])
	assert.EqualValues(t, 200, body["max_completion_tokens"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.True(t, strings.Contains(msg["content"].(string), "With a calendar."))
}

func TestEvaluateEmptyContent(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "   ", nil)

	e, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/"}, nil)
	require.NoError(t, err)

	evaluation, err := e.Evaluate(context.Background(), "Q", "A")
	require.NoError(t, err)
	assert.Equal(t, ai.DefaultFeedback, evaluation.Feedback)
}

func TestEvaluateServerError(t *testing.T) {
	srv := completionServer(t, http.StatusInternalServerError, "", nil)

	e, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/"}, nil)
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "Q", "A")
	require.Error(t, err)
}

func TestEvaluateInvalidInput(t *testing.T) {
	e, err := New(Config{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1/"}, nil)
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "", "A")
	assert.True(t, errors.Is(err, ai.ErrInvalidInput))
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)

	e, err := New(Config{APIKey: "sk-test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, e.Model())
}
