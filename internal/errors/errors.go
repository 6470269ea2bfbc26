package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for common failure scenarios.
var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrValidation         = errors.New("invalid request")
	ErrProviderConfig     = errors.New("payment provider not configured")
	ErrProviderRejected   = errors.New("payment provider rejected request")
	ErrOrderNotFound      = errors.New("order not found")
	ErrMediaLoad          = errors.New("media load failed")
	ErrNoTrack            = errors.New("no track loaded")
	ErrRateLimited        = errors.New("rate limited")
	ErrNetworkError       = errors.New("network error")
	ErrTimeout            = errors.New("request timeout")
	ErrConfigNotFound     = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrBackendUnavailable = errors.New("backend not configured")
)

// Kind classifies an error for user-facing messaging.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthRequired
	KindProviderConfig
	KindProviderRejected
	KindNetwork
	KindMedia
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthRequired:
		return "auth_required"
	case KindProviderConfig:
		return "provider_config"
	case KindProviderRejected:
		return "provider_rejected"
	case KindNetwork:
		return "network"
	case KindMedia:
		return "media"
	default:
		return "unknown"
	}
}

// TunesError wraps an error with a kind and a user-friendly suggestion.
type TunesError struct {
	Err        error
	Kind       Kind
	Suggestion string

	// classified is set when Kind was chosen explicitly, KindUnknown included.
	classified bool
}

func (e *TunesError) Error() string {
	return e.Err.Error()
}

func (e *TunesError) Unwrap() error {
	return e.Err
}

// New wraps err with the given kind. The kind overrides any kind found
// deeper in err's chain.
func New(kind Kind, err error) error {
	return &TunesError{Err: err, Kind: kind, classified: true}
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	var te *TunesError
	if errors.As(err, &te) {
		return &TunesError{Err: err, Kind: te.Kind, Suggestion: suggestion, classified: te.classified}
	}
	return &TunesError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// KindOf returns the kind of err. Errors that were never classified fall
// back to sentinel matching.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var te *TunesError
	if errors.As(err, &te) && (te.classified || te.Kind != KindUnknown) {
		return te.Kind
	}

	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotAuthenticated):
		return KindAuthRequired
	case errors.Is(err, ErrProviderConfig):
		return KindProviderConfig
	case errors.Is(err, ErrProviderRejected):
		return KindProviderRejected
	case errors.Is(err, ErrNetworkError), errors.Is(err, ErrTimeout):
		return KindNetwork
	case errors.Is(err, ErrMediaLoad):
		return KindMedia
	}
	return KindUnknown
}

// UserMessage returns the message shown to a user for err. Every kind maps
// to a distinct message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch KindOf(err) {
	case KindValidation:
		return "Please check your payment details and try again."
	case KindAuthRequired:
		return "Please sign in to proceed with payment."
	case KindProviderConfig:
		return "Payment system is temporarily unavailable. Please try again later."
	case KindProviderRejected:
		return "Payment provider error. Please try a different payment method."
	case KindNetwork:
		return "Check your internet connection and try again."
	case KindMedia:
		return "This track could not be played."
	default:
		return "Something went wrong. Please try again."
	}
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var te *TunesError
	if errors.As(err, &te) && te.Suggestion != "" {
		return te.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	if KindOf(err) == KindAuthRequired || strings.Contains(errStr, "not authenticated") ||
		strings.Contains(errStr, "invalid access token") || strings.Contains(errStr, "token expired") {
		return "Run 'tunes auth login' to sign in"
	}

	if errors.Is(err, ErrBackendUnavailable) {
		return "Set backend.url and backend.anon_key in ~/.tunesrc or via TUNES_BACKEND_URL"
	}

	if errors.Is(err, ErrRateLimited) || strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") {
		return "Too many requests. Wait a moment and try again"
	}

	if KindOf(err) == KindNetwork || strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection refused") {
		return "Check your internet connection and try again"
	}

	if errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrInvalidConfig) {
		return "Run 'tunes config init' to create a configuration file"
	}

	if strings.Contains(errStr, "500") || strings.Contains(errStr, "server error") {
		return "The service is having issues. Try again in a moment"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}
