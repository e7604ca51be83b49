package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{Subject: subject})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func identityProbe(captured *Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			http.Error(w, "no identity", http.StatusInternalServerError)
			return
		}
		*captured = id
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentityMiddlewareBearerToken(t *testing.T) {
	var id Identity
	h := IdentityMiddleware(testSecret)(identityProbe(&id))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, "u1"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", id.UserID)
	assert.False(t, id.IsAnonymous)
}

func TestIdentityMiddlewareGuestHeader(t *testing.T) {
	var id Identity
	h := IdentityMiddleware(testSecret)(identityProbe(&id))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(GuestIDHeader, "abc123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "guest:abc123", id.UserID)
	assert.True(t, id.IsAnonymous)
}

func TestIdentityMiddlewareMissingCredentials(t *testing.T) {
	h := IdentityMiddleware(testSecret)(identityProbe(&Identity{}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIdentityMiddlewareBadToken(t *testing.T) {
	h := IdentityMiddleware(testSecret)(identityProbe(&Identity{}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireUserRejectsGuests(t *testing.T) {
	var id Identity
	h := IdentityMiddleware(testSecret)(RequireUser(identityProbe(&id)))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(GuestIDHeader, "abc123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
