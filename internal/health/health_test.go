package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h *Handler, path string) (int, result) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var res result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return rec.Code, res
}

func TestHealthzAlwaysOK(t *testing.T) {
	failing := Checker{Name: "db", Check: func(context.Context) error { return errors.New("down") }}
	code, res := serve(t, New(nil, failing), "/healthz")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", res.Status)
	assert.Empty(t, res.Checks)
}

func TestReadyz(t *testing.T) {
	ok := Checker{Name: "store", Check: func(context.Context) error { return nil }}
	down := Checker{Name: "db", Check: func(context.Context) error { return errors.New("connection refused") }}

	t.Run("all passing", func(t *testing.T) {
		code, res := serve(t, New(nil, ok), "/readyz")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", res.Status)
		assert.Equal(t, map[string]string{"store": "ok"}, res.Checks)
	})

	t.Run("one failing", func(t *testing.T) {
		code, res := serve(t, New(nil, ok, down), "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "fail", res.Status)
		assert.Equal(t, "ok", res.Checks["store"])
		assert.Equal(t, "fail: connection refused", res.Checks["db"])
	})

	t.Run("no checkers", func(t *testing.T) {
		code, res := serve(t, New(nil), "/readyz")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", res.Status)
	})
}

func TestReadyzCheckHasDeadline(t *testing.T) {
	var hasDeadline bool
	c := Checker{Name: "probe", Check: func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}}

	code, _ := serve(t, New(nil, c), "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, hasDeadline)
}
