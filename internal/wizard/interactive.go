// Package wizard holds the interactive prompts used when a command is run
// in a terminal without all of its arguments.
package wizard

import (
	"os"

	"golang.org/x/term"

	"github.com/tessro/tunes/internal/payment"
	"github.com/tessro/tunes/internal/store"
)

// Interactive provides interactive fallback functionality.
type Interactive struct {
	enabled bool
}

// NewInteractive creates a new interactive handler.
func NewInteractive() *Interactive {
	return &Interactive{
		enabled: true,
	}
}

// SetEnabled enables or disables interactive mode.
func (i *Interactive) SetEnabled(enabled bool) {
	i.enabled = enabled
}

// IsTerminal returns true if stdin and stdout are terminals.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// CanInteract returns true if interactive mode is available.
func (i *Interactive) CanInteract() bool {
	return i.enabled && IsTerminal()
}

// PromptPayment fills in the missing parts of req. It returns req
// unchanged when interactive mode is unavailable.
func (i *Interactive) PromptPayment(req payment.Request) (payment.Request, error) {
	if !i.CanInteract() || !NeedsPaymentInput(req) {
		return req, nil
	}
	return RunPaymentForm(req)
}

// PromptLogin asks for credentials. It returns ok=false when interactive
// mode is unavailable.
func (i *Interactive) PromptLogin(email string) (Credentials, bool, error) {
	if !i.CanInteract() {
		return Credentials{}, false, nil
	}
	creds, err := RunLoginForm(email)
	return creds, err == nil, err
}

// PromptOrder launches the order picker. Returns nil if cancelled or not
// interactive.
func (i *Interactive) PromptOrder(records []store.PaymentRecord) (*store.PaymentRecord, error) {
	if !i.CanInteract() || len(records) == 0 {
		return nil, nil
	}
	return RunOrderPicker(records)
}

// NeedsPaymentInput returns true if the request is missing a method, or a
// phone number the method requires.
func NeedsPaymentInput(req payment.Request) bool {
	if !req.Method.Valid() {
		return true
	}
	return req.Method.RequiresPhone() && req.Phone == ""
}
