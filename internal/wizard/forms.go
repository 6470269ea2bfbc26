package wizard

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"

	"github.com/tessro/tunes/internal/payment"
)

// MethodOptions builds the picker options for the payment methods.
func MethodOptions() []huh.Option[payment.Method] {
	options := make([]huh.Option[payment.Method], 0, len(payment.Methods))
	for _, m := range payment.Methods {
		label := m.Label()
		if desc := m.Description(); desc != "" {
			label = fmt.Sprintf("%s (%s)", label, desc)
		}
		options = append(options, huh.NewOption(label, m))
	}
	return options
}

// FormatAmount renders minor units as a decimal amount with the currency,
// e.g. "USD 1,234.50".
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s %s%s.%02d", strings.ToUpper(currency), sign, humanize.Comma(minor/100), minor%100)
}

// RunPaymentForm asks for the payment method and, for M-Pesa, the phone
// number.
func RunPaymentForm(req payment.Request) (payment.Request, error) {
	method := req.Method
	if !method.Valid() {
		method = payment.MethodPaystack
	}
	phone := req.Phone

	summary := req.ItemName
	if req.Amount > 0 {
		summary = fmt.Sprintf("%s: %s", req.ItemName, FormatAmount(req.Amount, req.Currency))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[payment.Method]().
				Title("Choose a payment method").
				Description(summary).
				Options(MethodOptions()...).
				Value(&method),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("M-Pesa phone number").
				Description("The number that will receive the payment prompt").
				Placeholder("+254712345678").
				Value(&phone).
				Validate(validatePhone),
		).WithHideFunc(func() bool { return !method.RequiresPhone() }),
	)

	if err := form.Run(); err != nil {
		return req, fmt.Errorf("payment cancelled: %w", err)
	}

	req.Method = method
	if method.RequiresPhone() {
		req.Phone = strings.TrimSpace(phone)
	}
	return req, nil
}

// Credentials are the values collected by the login form.
type Credentials struct {
	Email    string
	Password string
}

// RunLoginForm asks for an email and password.
func RunLoginForm(email string) (Credentials, error) {
	creds := Credentials{Email: email}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&creds.Email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&creds.Password).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("password is required")
					}
					return nil
				}),
		),
	)

	if err := form.Run(); err != nil {
		return Credentials{}, fmt.Errorf("login cancelled: %w", err)
	}
	creds.Email = strings.TrimSpace(creds.Email)
	return creds, nil
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return errors.New("enter a valid email address")
	}
	return nil
}

func validatePhone(s string) error {
	digits := 0
	for i, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0, r == ' ':
		default:
			return errors.New("use digits only, with an optional leading +")
		}
	}
	if digits < 9 || digits > 15 {
		return errors.New("phone numbers have 9 to 15 digits")
	}
	return nil
}
