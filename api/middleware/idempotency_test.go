package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/assetledger/pkg/errors"
)

type mapStore struct {
	data map[string]string
}

func newMapStore() *mapStore { return &mapStore{data: map[string]string{}} }

func (m *mapStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *mapStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *mapStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mapStore) IdempotencyKey(scope, id string) string { return scope + "|" + id }

func post(path, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

func countingHandler(status int, body string, calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	store := newMapStore()
	var calls int
	h := Idempotency(store, nil)(countingHandler(http.StatusCreated, `{}`, &calls))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, post("/api/v1/inventory/move", "", `{"qty":1}`))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyReplaysCompletedResponse(t *testing.T) {
	store := newMapStore()
	var calls int
	h := Idempotency(store, nil)(countingHandler(http.StatusCreated, `{"data":{"id":"m1"}}`, &calls))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, post("/api/v1/inventory/move", "k1", `{"qty":2}`))
	require.Equal(t, http.StatusCreated, first.Code)

	replay := httptest.NewRecorder()
	h.ServeHTTP(replay, post("/api/v1/inventory/move", "k1", `{"qty":2}`))
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"data":{"id":"m1"}}`, replay.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	store := newMapStore()
	var calls int
	h := Idempotency(store, nil)(countingHandler(http.StatusOK, `{}`, &calls))

	h.ServeHTTP(httptest.NewRecorder(), post("/api/v1/packages", "k2", `{"qty":1}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, post("/api/v1/packages", "k2", `{"qty":9}`))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyKeysAreScopedToPath(t *testing.T) {
	store := newMapStore()
	var calls int
	h := Idempotency(store, nil)(countingHandler(http.StatusOK, `{}`, &calls))

	h.ServeHTTP(httptest.NewRecorder(), post("/api/v1/movements/a/reverse", "k", ``))
	h.ServeHTTP(httptest.NewRecorder(), post("/api/v1/movements/b/reverse", "k", ``))
	assert.Equal(t, 2, calls)
}

func TestIdempotencyReleasesKeyOnConflictAndServerError(t *testing.T) {
	for _, status := range []int{http.StatusConflict, http.StatusServiceUnavailable} {
		store := newMapStore()
		var calls int
		h := Idempotency(store, nil)(countingHandler(status, `{}`, &calls))
		for i := 0; i < 2; i++ {
			h.ServeHTTP(httptest.NewRecorder(), post("/api/v1/inventory/debit", "retry", `{"qty":1}`))
		}
		assert.Equal(t, 2, calls, "status %d", status)
		assert.Empty(t, store.data)
	}
}

func TestIdempotencyRejectsWhileInFlight(t *testing.T) {
	store := newMapStore()
	var inner *httptest.ResponseRecorder
	var mw func(http.Handler) http.Handler
	var calls int
	mw = Idempotency(store, nil)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			inner = httptest.NewRecorder()
			mw(http.NotFoundHandler()).ServeHTTP(inner, post("/api/v1/inventory/credit", "busy", `{"qty":1}`))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	h.ServeHTTP(httptest.NewRecorder(), post("/api/v1/inventory/credit", "busy", `{"qty":1}`))
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Equal(t, string(pkgerrors.CodeConcurrentModification), errorCode(t, inner))
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	var calls int
	h := Idempotency(newMapStore(), nil)(countingHandler(http.StatusOK, `{}`, &calls))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, post("/api/v1/inventory/credit", strings.Repeat("k", maxIdempotencyKey+1), `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, calls)
}
