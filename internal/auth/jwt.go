package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token fails signature or claim
	// validation.
	ErrInvalidToken = errors.New("invalid token")
)

// SessionTTL matches the cookie lifetime issued by the registration
// collaborator.
const SessionTTL = 7 * 24 * time.Hour

// Session is the caller identity resolved from a validated token. TeamID is
// zero for users without a team.
type Session struct {
	UserID int
	TeamID int
	Role   string
}

// Claims is the JWT payload carried in the auth-token cookie.
type Claims struct {
	UserID int    `json:"user_id"`
	TeamID int    `json:"team_id,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies session tokens with a shared HMAC secret.
type Manager struct {
	secret []byte
}

// NewManager builds a Manager around the configured secret.
func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// Generate issues a signed session token. Used by tests and by the external
// registration collaborator tooling.
func (m *Manager) Generate(session Session) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: session.UserID,
		TeamID: session.TeamID,
		Role:   session.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses and validates a token and returns the session it carries.
func (m *Manager) Verify(token string) (Session, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Session{}, ErrInvalidToken
	}
	if claims.UserID == 0 {
		return Session{}, ErrInvalidToken
	}
	return Session{UserID: claims.UserID, TeamID: claims.TeamID, Role: claims.Role}, nil
}
