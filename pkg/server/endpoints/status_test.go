package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/schoolhost/pkg/schema"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
)

type healthFunc func(ctx context.Context) error

func (f healthFunc) CheckConnectivity(ctx context.Context) error { return f(ctx) }

func TestHandleStatus(t *testing.T) {
	handler := handleStatus()

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	var body StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "schoolhost", body.Service)
	assert.Equal(t, schema.Version(), body.SchemaVersion)
}

func TestHandleHealth(t *testing.T) {
	t.Run("all stores reachable", func(t *testing.T) {
		ok := healthFunc(func(context.Context) error { return nil })
		handler := handleHealth([]store.HealthStore{ok, ok}, time.Second)

		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/healthz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("one store down", func(t *testing.T) {
		ok := healthFunc(func(context.Context) error { return nil })
		down := healthFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") })
		handler := handleHealth([]store.HealthStore{ok, down}, time.Second)

		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}
