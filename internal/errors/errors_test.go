package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"explicit kind", New(KindProviderRejected, errors.New("paystack error: bad key")), KindProviderRejected},
		{"wrapped sentinel", fmt.Errorf("create session: %w", ErrNotAuthenticated), KindAuthRequired},
		{"validation sentinel", ErrValidation, KindValidation},
		{"timeout", fmt.Errorf("poll: %w", ErrTimeout), KindNetwork},
		{"media", ErrMediaLoad, KindMedia},
		{"plain", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestUserMessageDistinctPerKind(t *testing.T) {
	kinds := []Kind{KindUnknown, KindValidation, KindAuthRequired, KindProviderConfig, KindProviderRejected, KindNetwork, KindMedia}
	seen := make(map[string]Kind)
	for _, k := range kinds {
		msg := UserMessage(New(k, errors.New("x")))
		assert.NotEmpty(t, msg)
		if prev, ok := seen[msg]; ok {
			t.Errorf("kinds %v and %v share message %q", prev, k, msg)
		}
		seen[msg] = k
	}
	assert.Empty(t, UserMessage(nil))
}

func TestWithSuggestionKeepsKind(t *testing.T) {
	err := WithSuggestion(New(KindAuthRequired, ErrNotAuthenticated), "sign in first")

	assert.Equal(t, KindAuthRequired, KindOf(err))
	assert.Equal(t, "sign in first", GetSuggestion(err))
	assert.True(t, errors.Is(err, ErrNotAuthenticated))
}

func TestGetSuggestion(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth", ErrNotAuthenticated, "Run 'tunes auth login' to sign in"},
		{"rate limit", errors.New("API error: status 429"), "Too many requests. Wait a moment and try again"},
		{"network", fmt.Errorf("request failed: %w", ErrNetworkError), "Check your internet connection and try again"},
		{"unknown", errors.New("weird"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetSuggestion(tt.err))
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(nil))
	assert.Equal(t, "Error: weird", Format(errors.New("weird")))
	assert.Contains(t, Format(ErrNotAuthenticated), "Suggestion: Run 'tunes auth login'")
}

func TestExplicitUnknownOverridesChain(t *testing.T) {
	inner := New(KindNetwork, fmt.Errorf("%w: dial tcp", ErrNetworkError))
	err := New(KindUnknown, inner)

	assert.Equal(t, KindUnknown, KindOf(err))
	assert.True(t, errors.Is(err, ErrNetworkError))
	assert.Equal(t, KindUnknown, KindOf(WithSuggestion(err, "retry later")))

	// A suggestion alone does not classify.
	assert.Equal(t, KindNetwork, KindOf(WithSuggestion(ErrTimeout, "retry later")))
}
