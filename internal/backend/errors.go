package backend

import (
	"encoding/json"
	"fmt"
	"net/http"

	tuneserrors "github.com/tessro/tunes/internal/errors"
)

// APIError is a non-2xx backend response.
type APIError struct {
	Status int
	// Detail is the machine-oriented error text, e.g. "Paystack error: ...".
	Detail string
	// Message is the human-oriented text, when the backend sends one.
	Message      string
	Code         string
	RequiresAuth bool
}

func (e *APIError) Error() string {
	text := e.Detail
	if text == "" {
		text = e.Message
	}
	if text == "" {
		text = http.StatusText(e.Status)
	}
	return fmt.Sprintf("backend error %d: %s", e.Status, text)
}

// Is maps auth failures onto the shared sentinel.
func (e *APIError) Is(target error) bool {
	if target == tuneserrors.ErrNotAuthenticated {
		return e.RequiresAuth || e.Status == http.StatusUnauthorized
	}
	if target == tuneserrors.ErrRateLimited {
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

type errorBody struct {
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	RequiresAuth     bool            `json:"requiresAuth"`
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		if len(body) > 0 && len(body) < 512 {
			apiErr.Detail = string(body)
		}
		return apiErr
	}

	apiErr.Detail = eb.Error
	if eb.ErrorDescription != "" {
		apiErr.Message = eb.ErrorDescription
	}
	if eb.Message != "" {
		apiErr.Message = eb.Message
	}
	if apiErr.Message == "" && eb.Msg != "" {
		apiErr.Message = eb.Msg
	}
	apiErr.RequiresAuth = eb.RequiresAuth

	apiErr.Code = eb.ErrorCode
	if apiErr.Code == "" && len(eb.Code) > 0 {
		var s string
		if json.Unmarshal(eb.Code, &s) == nil {
			apiErr.Code = s
		} else {
			apiErr.Code = string(eb.Code)
		}
	}
	return apiErr
}
