package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	manager := NewManager("test-secret")

	token, err := manager.Generate(Session{UserID: 5, TeamID: 7, Role: "worker"})
	require.NoError(t, err)

	session, err := manager.Verify(token)
	require.NoError(t, err)
	require.Equal(t, 5, session.UserID)
	require.Equal(t, 7, session.TeamID)
	require.Equal(t, "worker", session.Role)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewManager("secret-a").Generate(Session{UserID: 5})
	require.NoError(t, err)

	_, err = NewManager("secret-b").Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := NewManager("test-secret").Verify("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	manager := NewManager("test-secret")
	claims := Claims{
		UserID: 5,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * SessionTTL)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-SessionTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = manager.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMissingUserID(t *testing.T) {
	manager := NewManager("test-secret")
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = manager.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromRequestPrefersCookie(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "/ws?token=from-query", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")

	require.Equal(t, "from-cookie", TokenFromRequest(req))
}

func TestTokenFromRequestBearerFallback(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "/ws", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer from-header")

	require.Equal(t, "from-header", TokenFromRequest(req))
}

func TestTokenFromRequestQueryFallback(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "/ws?token=from-query", nil)
	require.NoError(t, err)

	require.Equal(t, "from-query", TokenFromRequest(req))
}

func TestTokenFromRequestEmpty(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "/ws", nil)
	require.NoError(t, err)

	require.Equal(t, "", TokenFromRequest(req))
}
