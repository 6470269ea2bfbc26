// Package auth holds the signed-in backend session and persists it.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the signed-in account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is a backend auth session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// IsExpired returns true if the session has expired or will expire within
// the buffer.
func (s *Session) IsExpired() bool {
	// Treat as expired 60 seconds early.
	return time.Now().Add(60 * time.Second).After(s.ExpiresAt)
}

// Claims are the access token claims tunes reads.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ParseClaims decodes the access token claims without verifying the
// signature. The backend verifies tokens; the client only needs the
// expiry and subject.
func ParseClaims(accessToken string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}
	return claims, nil
}

// FillFromClaims completes missing session fields from the access token.
func (s *Session) FillFromClaims() {
	claims, err := ParseClaims(s.AccessToken)
	if err != nil {
		return
	}
	if s.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	if s.User.ID == "" {
		s.User.ID = claims.Subject
	}
	if s.User.Email == "" {
		s.User.Email = claims.Email
	}
}
