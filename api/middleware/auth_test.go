package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/pkg/auth"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func authRequest(header string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	return req
}

func errorReason(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Reason string `json:"reason"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Reason
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	for name, header := range map[string]string{
		"missing":      "",
		"no scheme":    "abc.def.ghi",
		"basic":        "Basic dXNlcjpwYXNz",
		"empty bearer": "Bearer   ",
		"garbage":      "Bearer invalid",
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Auth(testJWT, nil)(okHandler()).ServeHTTP(rec, authRequest(header))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuthFlagsExpiredToken(t *testing.T) {
	token, err := auth.MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), auth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleCustomer,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(rec, authRequest("Bearer "+token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_EXPIRED", errorReason(t, rec))
}

func TestAuthSeedsIdentity(t *testing.T) {
	userID := uuid.New()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		Role:   enums.UserRoleSeller,
		Email:  "seller@example.com",
	})
	require.NoError(t, err)

	var (
		got Identity
		ok  bool
	)
	h := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authRequest("bearer "+token))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ok)
	assert.Equal(t, Identity{UserID: userID, Role: enums.UserRoleSeller, Email: "seller@example.com"}, got)
}

func TestIdentityFromContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	_, ok = IdentityFromContext(WithIdentity(context.Background(), Identity{Role: enums.UserRoleCustomer}))
	assert.False(t, ok, "nil user id")

	_, ok = IdentityFromContext(WithIdentity(context.Background(), Identity{UserID: uuid.New(), Role: "root"}))
	assert.False(t, ok, "unknown role")

	_, err := RequireIdentity(context.Background())
	assert.Error(t, err)
	assert.Empty(t, callerKey(context.Background()))
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole(nil, enums.UserRoleSeller, enums.UserRoleAdmin)
	cases := []struct {
		role enums.UserRole
		want int
	}{
		{enums.UserRoleSeller, http.StatusOK},
		{enums.UserRoleAdmin, http.StatusOK},
		{enums.UserRoleCustomer, http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: uuid.New(), Role: tc.role}))
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, tc.role)
	}

	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
