package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vouch/pkg/domain"
	"vouch/pkg/requestcontext"
)

const signingKey = "test-signing-key"

func signToken(t *testing.T, key string, subject string, role string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:              role,
		RegisteredClaims:  jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func TestJWTVerifier(t *testing.T) {
	verifier := NewJWTVerifier(signingKey)
	userID := domain.NewUserID()

	t.Run("valid token yields actor", func(t *testing.T) {
		signed := signToken(t, signingKey, userID.String(), "INSTITUTION", time.Now().Add(time.Hour))
		actor, err := verifier.Verify(signed)
		require.NoError(t, err)
		assert.Equal(t, userID, actor.ID)
		assert.Equal(t, domain.RoleInstitution, actor.Role)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		signed := signToken(t, signingKey, userID.String(), "NORMAL", time.Now().Add(-time.Hour))
		_, err := verifier.Verify(signed)
		assert.Error(t, err)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		signed := signToken(t, "other-key", userID.String(), "NORMAL", time.Now().Add(time.Hour))
		_, err := verifier.Verify(signed)
		assert.Error(t, err)
	})

	t.Run("bad subject rejected", func(t *testing.T) {
		signed := signToken(t, signingKey, "not-a-uuid", "NORMAL", time.Now().Add(time.Hour))
		_, err := verifier.Verify(signed)
		assert.Error(t, err)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		signed := signToken(t, signingKey, userID.String(), "SUPERUSER", time.Now().Add(time.Hour))
		_, err := verifier.Verify(signed)
		assert.Error(t, err)
	})
}

func TestRequireAuth(t *testing.T) {
	verifier := NewJWTVerifier(signingKey)
	logger := slog.New(slog.DiscardHandler)
	userID := domain.NewUserID()

	var captured domain.Actor
	handler := RequireAuth(verifier, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = requestcontext.Actor(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing header rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token injects actor", func(t *testing.T) {
		signed := signToken(t, signingKey, userID.String(), "ADMIN", time.Now().Add(time.Hour))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, userID, captured.ID)
		assert.Equal(t, domain.RoleAdmin, captured.Role)
	})
}
