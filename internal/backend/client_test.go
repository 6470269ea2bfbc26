package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessro/tunes/internal/backend/auth"
	"github.com/tessro/tunes/internal/config"
	"github.com/tessro/tunes/internal/core"
	tuneserrors "github.com/tessro/tunes/internal/errors"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	storage, err := auth.NewSessionStorage(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)

	c := New(config.BackendConfig{URL: srv.URL, AnonKey: "anon-key"}, storage)
	c.SetHTTPClient(srv.Client())
	c.SetRetryWait(time.Millisecond)
	return c, srv
}

func validSession() *auth.Session {
	return &auth.Session{
		AccessToken:  "user-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func TestInvokeFunctionHeaders(t *testing.T) {
	var got *http.Request
	var body map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"orderId":"ord-1"}`))
	}))
	require.NoError(t, c.SetSession(validSession()))

	var resp struct {
		Success bool   `json:"success"`
		OrderID string `json:"orderId"`
	}
	err := c.InvokeFunction(context.Background(), "create-payment-session", map[string]any{"amount": 500}, &resp)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "ord-1", resp.OrderID)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/functions/v1/create-payment-session", got.URL.Path)
	assert.Equal(t, "anon-key", got.Header.Get("apikey"))
	assert.Equal(t, "Bearer user-token", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	_, err = uuid.Parse(got.Header.Get("X-Request-ID"))
	assert.NoError(t, err)
	assert.EqualValues(t, 500, body["amount"])
}

func TestFunctionCallsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Paystack error: Invalid key","type":"Error"}`))
	}))

	err := c.InvokeFunction(context.Background(), "create-payment-session", map[string]any{}, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.Status)
	assert.Equal(t, "Paystack error: Invalid key", apiErr.Detail)
}

func TestSelectRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))

	var rows []orderRow
	require.NoError(t, c.Select(context.Background(), "orders", nil, &rows))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSelectRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))

	var rows []orderRow
	require.NoError(t, c.Select(context.Background(), "orders", nil, &rows))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFunctionRateLimitIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	err := c.InvokeFunction(context.Background(), "create-payment-session", map[string]any{}, nil)
	assert.ErrorIs(t, err, tuneserrors.ErrRateLimited)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPing(t *testing.T) {
	var path atomic.Value
	healthy := atomic.Bool{}
	healthy.Store(true)
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"name":"GoTrue"}`))
	}))

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, "/auth/v1/health", path.Load())

	healthy.Store(false)
	assert.Error(t, c.Ping(context.Background()))
}

func TestAuthErrorsMapToSentinel(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Authentication required","message":"Please sign in to proceed with payment.","requiresAuth":true}`))
	}))

	err := c.InvokeFunction(context.Background(), "create-payment-session", map[string]any{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, tuneserrors.ErrNotAuthenticated)
	assert.Equal(t, tuneserrors.KindAuthRequired, tuneserrors.KindOf(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.RequiresAuth)
	assert.Equal(t, "Please sign in to proceed with payment.", apiErr.Message)
}

func TestOrderStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/orders", r.URL.Path)
		assert.Equal(t, "status,payment_provider_id,updated_at", r.URL.Query().Get("select"))

		switch r.URL.Query().Get("id") {
		case "eq.ord-1":
			_, _ = w.Write([]byte(`[{"status":"completed","payment_provider_id":"ST_ord-1","updated_at":"2024-05-01T10:00:00.123456+00:00"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))

	snap, err := c.OrderStatus(context.Background(), "ord-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, core.OrderCompleted, snap.Status)
	assert.Equal(t, "ST_ord-1", snap.ProviderID)
	assert.Equal(t, 2024, snap.UpdatedAt.Year())

	missing, err := c.OrderStatus(context.Background(), "ord-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSignInAndRefresh(t *testing.T) {
	var grants []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		grant := r.URL.Query().Get("grant_type")
		grants = append(grants, grant)

		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		switch grant {
		case "password":
			if body["password"] != "secret" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
				return
			}
			// Already expired so the next call refreshes.
			_, _ = w.Write([]byte(`{"access_token":"a1","token_type":"bearer","expires_in":3600,"expires_at":1,"refresh_token":"r1","user":{"id":"u1","email":"fan@example.com"}}`))
		case "refresh_token":
			assert.Equal(t, "r1", body["refresh_token"])
			_, _ = w.Write([]byte(`{"access_token":"a2","token_type":"bearer","expires_in":3600}`))
		}
	}))

	_, err := c.SignIn(context.Background(), "fan@example.com", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid login credentials", apiErr.Message)

	session, err := c.SignIn(context.Background(), "fan@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", session.User.ID)
	assert.True(t, c.HasSession())
	assert.False(t, c.IsAuthenticated())

	token, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a2", token)
	assert.Equal(t, "r1", c.Session().RefreshToken, "refresh token kept when not rotated")
	assert.Equal(t, []string{"password", "password", "refresh_token"}, grants)

	require.NoError(t, c.SignOut())
	_, err = c.AccessToken(context.Background())
	assert.Equal(t, tuneserrors.KindAuthRequired, tuneserrors.KindOf(err))
}

func TestUnconfiguredClient(t *testing.T) {
	c := New(config.BackendConfig{}, nil)
	assert.False(t, c.Configured())

	err := c.InvokeFunction(context.Background(), "create-payment-session", nil, nil)
	assert.ErrorIs(t, err, tuneserrors.ErrBackendUnavailable)
}

func TestParseAPIError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want APIError
	}{
		{
			name: "function error",
			body: `{"error":"M-Pesa credentials not configured properly","type":"Error"}`,
			want: APIError{Status: 500, Detail: "M-Pesa credentials not configured properly"},
		},
		{
			name: "postgrest error",
			body: `{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned"}`,
			want: APIError{Status: 500, Code: "PGRST116", Message: "JSON object requested, multiple (or no) rows returned"},
		},
		{
			name: "numeric code",
			body: `{"code":400,"msg":"bad"}`,
			want: APIError{Status: 500, Code: "400", Message: "bad"},
		},
		{
			name: "plain text",
			body: `upstream timed out`,
			want: APIError{Status: 500, Detail: "upstream timed out"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAPIError(500, []byte(tt.body))
			assert.Equal(t, tt.want, *got)
		})
	}
}
