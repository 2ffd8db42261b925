package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

type memIdempotencyStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memIdempotencyStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memIdempotencyStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.data[key]; taken {
		return false, nil
	}
	m.data[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memIdempotencyStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func idemRequest(body, key, user string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	if user != "" {
		userID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(user))
		req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: userID, Role: enums.UserRoleCustomer}))
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIdempotentRequiresHeader(t *testing.T) {
	called := false
	h := Idempotent(newMemIdempotencyStore(), nil, time.Hour)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, idemRequest(`{}`, "", "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, idemRequest(`{}`, strings.Repeat("k", 256), "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdempotentReplaysFirstResponse(t *testing.T) {
	store := newMemIdempotencyStore()
	calls := 0
	h := Idempotent(store, nil, CriticalIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, idemRequest(`{"a":1}`, "abc", "u1"))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(ReplayedHeader))

	replay := httptest.NewRecorder()
	h.ServeHTTP(replay, idemRequest(`{"a":1}`, "abc", "u1"))
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get(ReplayedHeader))
	assert.Equal(t, `{"ok":true}`, replay.Body.String())
	assert.Equal(t, 1, calls)

	for _, ttl := range store.ttls {
		assert.Equal(t, CriticalIdempotencyTTL, ttl)
	}
}

func TestIdempotentRejectsDifferentBody(t *testing.T) {
	h := Idempotent(newMemIdempotencyStore(), nil, time.Hour)(okHandler())
	h.ServeHTTP(httptest.NewRecorder(), idemRequest(`{"a":1}`, "xyz", "u1"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, idemRequest(`{"a":2}`, "xyz", "u1"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotentRejectsConcurrentDuplicate(t *testing.T) {
	store := newMemIdempotencyStore()
	release := make(chan struct{})
	entered := make(chan struct{})
	h := Idempotent(store, nil, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(httptest.NewRecorder(), idemRequest(`{}`, "k", "u1"))
	}()
	<-entered

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, idemRequest(`{}`, "k", "u1"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, rec))

	close(release)
	<-done
}

func TestIdempotentReleasesKeyOnServerError(t *testing.T) {
	store := newMemIdempotencyStore()
	calls := 0
	h := Idempotent(store, nil, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	h.ServeHTTP(httptest.NewRecorder(), idemRequest(`{}`, "k", "u1"))
	assert.Empty(t, store.data)
	h.ServeHTTP(httptest.NewRecorder(), idemRequest(`{}`, "k", "u1"))
	assert.Equal(t, 2, calls)
}

func TestIdempotentReleasesKeyOnPanic(t *testing.T) {
	store := newMemIdempotencyStore()
	h := Idempotent(store, nil, time.Hour)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	assert.Panics(t, func() {
		h.ServeHTTP(httptest.NewRecorder(), idemRequest(`{}`, "k", "u1"))
	})
	assert.Empty(t, store.data)
}

func TestIdempotentScopesKeysPerUser(t *testing.T) {
	calls := 0
	h := Idempotent(newMemIdempotencyStore(), nil, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	h.ServeHTTP(httptest.NewRecorder(), idemRequest(`{}`, "same", "alice"))
	h.ServeHTTP(httptest.NewRecorder(), idemRequest(`{}`, "same", "bob"))
	assert.Equal(t, 2, calls)
}

func TestIdempotentStoreFailure(t *testing.T) {
	store := newMemIdempotencyStore()
	store.err = errors.New("redis down")
	rec := httptest.NewRecorder()
	Idempotent(store, nil, time.Hour)(okHandler()).ServeHTTP(rec, idemRequest(`{}`, "k", "u1"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIdempotentNilStorePassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	Idempotent(nil, nil, time.Hour)(okHandler()).ServeHTTP(rec, idemRequest(`{}`, "", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
}
