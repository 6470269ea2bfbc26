package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tessro/tunes/internal/backend/auth"
	tuneserrors "github.com/tessro/tunes/internal/errors"
)

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
	User         auth.User `json:"user"`
}

func (r *tokenResponse) session() *auth.Session {
	s := &auth.Session{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		ExpiresIn:    r.ExpiresIn,
		RefreshToken: r.RefreshToken,
		User:         r.User,
	}
	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		s.ExpiresAt = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	s.FillFromClaims()
	return s
}

// SignIn exchanges an email and password for a session and stores it.
func (c *Client) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	session, err := c.token(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	if err := c.SetSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// RefreshSession refreshes the access token if it has expired.
func (c *Client) RefreshSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return tuneserrors.New(tuneserrors.KindAuthRequired, tuneserrors.ErrNotAuthenticated)
	}
	if !c.session.IsExpired() {
		return nil
	}
	if c.session.RefreshToken == "" {
		return tuneserrors.WithSuggestion(
			tuneserrors.New(tuneserrors.KindAuthRequired, fmt.Errorf("%w: session expired", tuneserrors.ErrNotAuthenticated)),
			"Run 'tunes auth login' to sign in again",
		)
	}

	session, err := c.token(ctx, "refresh_token", map[string]string{
		"refresh_token": c.session.RefreshToken,
	})
	if err != nil {
		return tuneserrors.New(tuneserrors.KindAuthRequired, fmt.Errorf("failed to refresh session: %w", err))
	}

	// Keep the refresh token if the server didn't rotate it.
	if session.RefreshToken == "" {
		session.RefreshToken = c.session.RefreshToken
	}

	c.session = session
	if c.storage == nil {
		return nil
	}
	return c.storage.Save(session)
}

func (c *Client) token(ctx context.Context, grant string, body map[string]string) (*auth.Session, error) {
	var resp tokenResponse
	err := c.do(ctx, requestSpec{
		method: http.MethodPost,
		url:    c.baseURL + "/auth/v1/token?grant_type=" + grant,
		body:   body,
		result: &resp,
		bearer: c.anonKey,
	})
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access token")
	}
	return resp.session(), nil
}
