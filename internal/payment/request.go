// Package payment creates checkout sessions with the payment providers via
// the backend, sends the user to them and follows the order to completion.
package payment

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mitchellh/hashstructure/v2"

	tuneserrors "github.com/tessro/tunes/internal/errors"
)

// Method is a payment provider.
type Method string

const (
	MethodPaystack Method = "paystack"
	MethodRemitly  Method = "remitly"
	MethodMpesa    Method = "mpesa"
)

// Methods lists the supported methods in display order.
var Methods = []Method{MethodPaystack, MethodRemitly, MethodMpesa}

// Valid reports whether m is a supported method.
func (m Method) Valid() bool {
	switch m {
	case MethodPaystack, MethodRemitly, MethodMpesa:
		return true
	}
	return false
}

// Label returns the provider's display name.
func (m Method) Label() string {
	switch m {
	case MethodPaystack:
		return "Paystack"
	case MethodRemitly:
		return "Remitly"
	case MethodMpesa:
		return "M-Pesa"
	default:
		return string(m)
	}
}

// Description is a one-line summary for method pickers.
func (m Method) Description() string {
	switch m {
	case MethodPaystack:
		return "Card, bank transfer and mobile money"
	case MethodRemitly:
		return "International transfer to M-Pesa"
	case MethodMpesa:
		return "Pay from your phone with an STK push prompt"
	default:
		return ""
	}
}

// RequiresPhone reports whether the method needs a phone number.
func (m Method) RequiresPhone() bool {
	return m == MethodMpesa
}

// ParseMethod parses a method name, case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown payment method %q (want paystack, remitly or mpesa)", s)
	}
	return m, nil
}

// OrderType is what is being bought.
type OrderType string

const (
	OrderSubscription OrderType = "subscription"
	OrderService      OrderType = "service"
	OrderProduct      OrderType = "product"
)

// Valid reports whether t is a known order type.
func (t OrderType) Valid() bool {
	switch t {
	case OrderSubscription, OrderService, OrderProduct:
		return true
	}
	return false
}

// DefaultCurrency is used when neither the request nor config names one.
const DefaultCurrency = "USD"

// Request describes a purchase. Amount is in the currency's minor units.
type Request struct {
	OrderType  OrderType `json:"orderType"`
	ItemID     string    `json:"itemId"`
	ItemName   string    `json:"itemName"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	Method     Method    `json:"paymentMethod"`
	Phone      string    `json:"userPhone,omitempty"`
	SuccessURL string    `json:"successUrl,omitempty"`
	CancelURL  string    `json:"cancelUrl,omitempty"`
}

var (
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9]{9,15}$`)
)

// normalize fills defaults and canonicalizes fields in place.
func (r *Request) normalize(defaultCurrency string) {
	r.ItemID = strings.TrimSpace(r.ItemID)
	r.ItemName = strings.TrimSpace(r.ItemName)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = strings.ToUpper(defaultCurrency)
	}
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
	r.Method = Method(strings.ToLower(string(r.Method)))
	r.Phone = strings.Join(strings.Fields(r.Phone), "")
}

// Validate checks the request locally. Every problem is reported.
func (r Request) Validate() error {
	var errs []error
	if r.ItemID == "" {
		errs = append(errs, errors.New("item id is required"))
	}
	if r.ItemName == "" {
		errs = append(errs, errors.New("item name is required"))
	}
	if r.Amount <= 0 {
		errs = append(errs, fmt.Errorf("amount must be greater than 0, got %d", r.Amount))
	}
	if !r.OrderType.Valid() {
		errs = append(errs, fmt.Errorf("order type %q must be subscription, service or product", r.OrderType))
	}
	if !r.Method.Valid() {
		errs = append(errs, fmt.Errorf("payment method %q must be paystack, remitly or mpesa", r.Method))
	}
	if r.Currency != "" && !currencyPattern.MatchString(r.Currency) {
		errs = append(errs, fmt.Errorf("currency %q must be a 3-letter code", r.Currency))
	}
	if r.Method.RequiresPhone() {
		switch {
		case r.Phone == "":
			errs = append(errs, errors.New("phone number is required for M-Pesa payments"))
		case !phonePattern.MatchString(r.Phone):
			errs = append(errs, fmt.Errorf("phone number %q is not valid", r.Phone))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return tuneserrors.New(tuneserrors.KindValidation,
		fmt.Errorf("%w: %w", tuneserrors.ErrValidation, errors.Join(errs...)))
}

// fingerprint identifies a request for duplicate detection. Redirect URLs
// are ignored since they vary per invocation.
func (r Request) fingerprint() (uint64, error) {
	r.SuccessURL, r.CancelURL = "", ""
	return hashstructure.Hash(r, hashstructure.FormatV2, nil)
}

// SessionData is the provider-specific part of a created session.
type SessionData struct {
	SessionID         string `json:"sessionId"`
	URL               string `json:"url,omitempty"`
	Provider          string `json:"provider"`
	CheckoutRequestID string `json:"checkoutRequestId,omitempty"`
	MerchantRequestID string `json:"merchantRequestId,omitempty"`
	Message           string `json:"message,omitempty"`
}

// Session is a created payment session and the order it belongs to.
type Session struct {
	OrderID string      `json:"orderId"`
	Data    SessionData `json:"sessionData"`
}

type createResponse struct {
	Success     bool         `json:"success"`
	OrderID     string       `json:"orderId"`
	SessionData *SessionData `json:"sessionData"`
	Error       string       `json:"error"`
	Message     string       `json:"message"`
}
