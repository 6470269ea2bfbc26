// Package backend talks to the hosted backend: its REST tables, its auth
// endpoints and its serverless functions.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tessro/tunes/internal/backend/auth"
	"github.com/tessro/tunes/internal/config"
	tuneserrors "github.com/tessro/tunes/internal/errors"
)

const (
	// Retry configuration for transient errors
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client is a backend API client.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	functionsURL string
	anonKey      string
	storage      *auth.SessionStorage
	session      *auth.Session
	mu           sync.RWMutex
	logger       *zap.Logger
	retryWait    time.Duration
}

// New creates a new backend client.
func New(cfg config.BackendConfig, storage *auth.SessionStorage) *Client {
	base := strings.TrimRight(cfg.URL, "/")
	functions := strings.TrimRight(cfg.FunctionsURL, "/")
	if functions == "" && base != "" {
		functions = base + "/functions/v1"
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      base,
		functionsURL: functions,
		anonKey:      cfg.AnonKey,
		storage:      storage,
		logger:       zap.NewNop(),
		retryWait:    baseRetryWait,
	}
}

// SetLogger sets the logger used for request tracing.
func (c *Client) SetLogger(logger *zap.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(h *http.Client) {
	c.httpClient = h
}

// SetRetryWait sets the base wait between retries.
func (c *Client) SetRetryWait(d time.Duration) {
	c.retryWait = d
}

// Configured reports whether a backend URL and key are set.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.anonKey != ""
}

// LoadSession loads the session from storage.
func (c *Client) LoadSession() error {
	if c.storage == nil {
		return nil
	}
	session, err := c.storage.Load()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	return nil
}

// SetSession sets the current session and persists it.
func (c *Client) SetSession(session *auth.Session) error {
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	if c.storage == nil {
		return nil
	}
	return c.storage.Save(session)
}

// Session returns a copy of the current session, or nil.
func (c *Client) Session() *auth.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// IsAuthenticated returns true if there's a valid (non-expired) session.
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil && !c.session.IsExpired()
}

// HasSession returns true if there's any session (even if expired).
func (c *Client) HasSession() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil
}

// SignOut forgets the session.
func (c *Client) SignOut() error {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	if c.storage == nil {
		return nil
	}
	return c.storage.Delete()
}

// AccessToken returns the current access token, refreshing if needed.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if err := c.RefreshSession(ctx); err != nil {
		return "", err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return "", tuneserrors.New(tuneserrors.KindAuthRequired, tuneserrors.ErrNotAuthenticated)
	}
	return c.session.AccessToken, nil
}

// bearer returns the access token when signed in, otherwise the anon key.
func (c *Client) bearer(ctx context.Context) string {
	if !c.HasSession() {
		return c.anonKey
	}
	token, err := c.AccessToken(ctx)
	if err != nil {
		c.logger.Debug("falling back to anon key", zap.Error(err))
		return c.anonKey
	}
	return token
}

type requestSpec struct {
	method string
	url    string
	body   any
	result any
	bearer string
	retry  bool
}

func (c *Client) do(ctx context.Context, r requestSpec) error {
	if !c.Configured() {
		return tuneserrors.ErrBackendUnavailable
	}

	var jsonBody []byte
	if r.body != nil {
		var err error
		jsonBody, err = json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	requestID := uuid.NewString()
	log := c.logger.With(
		zap.String("method", r.method),
		zap.String("url", r.url),
		zap.String("request_id", requestID),
	)
	log.Debug("backend request", zap.Int("body_bytes", len(jsonBody)))

	attempts := 1
	if r.retry {
		attempts += maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := c.retryWait * time.Duration(1<<(attempt-1)) // exponential backoff
			log.Debug("retrying", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		var bodyReader io.Reader
		if jsonBody != nil {
			bodyReader = bytes.NewReader(jsonBody)
		}

		req, err := http.NewRequestWithContext(ctx, r.method, r.url, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("apikey", c.anonKey)
		req.Header.Set("X-Request-ID", requestID)
		req.Header.Set("Accept", "application/json")
		if r.bearer != "" {
			req.Header.Set("Authorization", "Bearer "+r.bearer)
		}
		if jsonBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = tuneserrors.New(tuneserrors.KindNetwork, fmt.Errorf("%w: %v", tuneserrors.ErrNetworkError, err))
			log.Debug("network error", zap.Error(err))
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = tuneserrors.New(tuneserrors.KindNetwork, fmt.Errorf("failed to read response: %w", err))
			continue
		}

		log.Debug("backend response", zap.Int("status", resp.StatusCode))
		if resp.StatusCode >= 400 {
			log.Debug("backend error body", zap.ByteString("body", respBody))
		}

		if resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = parseAPIError(resp.StatusCode, respBody)
			continue
		}

		if resp.StatusCode >= 400 {
			return parseAPIError(resp.StatusCode, respBody)
		}

		if r.result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, r.result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
		}
		return nil
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}

// InvokeFunction calls a serverless function. Function calls are not
// retried since they may not be idempotent.
func (c *Client) InvokeFunction(ctx context.Context, name string, body, result any) error {
	return c.do(ctx, requestSpec{
		method: http.MethodPost,
		url:    c.functionsURL + "/" + url.PathEscape(name),
		body:   body,
		result: result,
		bearer: c.bearer(ctx),
	})
}

// Select reads rows from a REST table.
func (c *Client) Select(ctx context.Context, table string, params url.Values, result any) error {
	u := c.baseURL + "/rest/v1/" + url.PathEscape(table)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return c.do(ctx, requestSpec{
		method: http.MethodGet,
		url:    u,
		result: result,
		bearer: c.bearer(ctx),
		retry:  true,
	})
}

// Ping checks that the auth service answers. It is not retried.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, requestSpec{
		method: http.MethodGet,
		url:    c.baseURL + "/auth/v1/health",
	})
}
