package wizard

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tessro/tunes/internal/payment"
	"github.com/tessro/tunes/internal/store"
)

func TestNeedsPaymentInput(t *testing.T) {
	tests := []struct {
		name string
		req  payment.Request
		want bool
	}{
		{"no method", payment.Request{}, true},
		{"paystack", payment.Request{Method: payment.MethodPaystack}, false},
		{"mpesa without phone", payment.Request{Method: payment.MethodMpesa}, true},
		{"mpesa with phone", payment.Request{Method: payment.MethodMpesa, Phone: "+254712345678"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsPaymentInput(tt.req); got != tt.want {
				t.Errorf("NeedsPaymentInput() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPromptPaymentNonInteractive(t *testing.T) {
	i := NewInteractive()
	i.SetEnabled(false)

	req := payment.Request{ItemID: "x"}
	got, err := i.PromptPayment(req)
	if err != nil {
		t.Fatalf("PromptPayment() error = %v", err)
	}
	if got != req {
		t.Errorf("PromptPayment() changed the request: %+v", got)
	}

	if _, ok, err := i.PromptLogin(""); ok || err != nil {
		t.Errorf("PromptLogin() = ok %v, err %v, want false, nil", ok, err)
	}
}

func TestMethodOptions(t *testing.T) {
	options := MethodOptions()
	if len(options) != len(payment.Methods) {
		t.Fatalf("len(options) = %d, want %d", len(options), len(payment.Methods))
	}
	if options[2].Value != payment.MethodMpesa {
		t.Errorf("options[2].Value = %q, want mpesa", options[2].Value)
	}
	if !strings.HasPrefix(options[2].Key, "M-Pesa") {
		t.Errorf("options[2].Key = %q", options[2].Key)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		minor    int64
		currency string
		want     string
	}{
		{999, "usd", "USD 9.99"},
		{123450, "USD", "USD 1,234.50"},
		{5, "KES", "KES 0.05"},
		{-250, "EUR", "EUR -2.50"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.minor, tt.currency); got != tt.want {
			t.Errorf("FormatAmount(%d, %q) = %q, want %q", tt.minor, tt.currency, got, tt.want)
		}
	}
}

func TestValidators(t *testing.T) {
	if err := validateEmail("someone@example.com"); err != nil {
		t.Errorf("validateEmail(valid) = %v", err)
	}
	if err := validateEmail("nope"); err == nil {
		t.Error("validateEmail(nope) should fail")
	}
	if err := validatePhone("+254 712 345 678"); err != nil {
		t.Errorf("validatePhone(valid) = %v", err)
	}
	for _, bad := range []string{"", "12345", "07a2345678", "2547+12345678"} {
		if err := validatePhone(bad); err == nil {
			t.Errorf("validatePhone(%q) should fail", bad)
		}
	}
}

func TestOrderModelSelect(t *testing.T) {
	records := []store.PaymentRecord{
		{OrderID: "o1", ItemName: "Pro", Amount: 999, Currency: "USD", Status: "pending", CreatedAt: time.Now()},
		{OrderID: "o2", ItemName: "Album", Amount: 5000, Currency: "KES", Status: "completed", CreatedAt: time.Now()},
	}
	var m tea.Model = NewOrderModel(records)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Error("enter should quit the picker")
	}

	selected := m.(OrderModel).Selected()
	if selected == nil || selected.OrderID != "o2" {
		t.Fatalf("Selected() = %+v, want o2", selected)
	}

	view := m.View()
	if !strings.Contains(view, "Album") || !strings.Contains(view, "KES 50.00") {
		t.Errorf("View() missing order details:\n%s", view)
	}
}

func TestOrderModelEmpty(t *testing.T) {
	m := NewOrderModel(nil)
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if updated.(OrderModel).Selected() != nil {
		t.Error("empty picker should not select anything")
	}
	if !strings.Contains(m.View(), "No payments yet") {
		t.Error("empty view should say there are no payments")
	}
}
