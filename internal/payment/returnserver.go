package payment

import (
	"context"
	"fmt"
	"html"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ReturnOutcome is how the provider sent the user back.
type ReturnOutcome string

const (
	ReturnSuccess ReturnOutcome = "success"
	ReturnCancel  ReturnOutcome = "cancel"
)

// ReturnResult is one provider redirect.
type ReturnResult struct {
	Outcome   ReturnOutcome
	OrderID   string
	Reference string
}

// ReturnWaiter receives provider redirects.
type ReturnWaiter interface {
	SuccessURL() string
	CancelURL() string
	Wait(ctx context.Context) (ReturnResult, error)
}

// referencePrefix is prepended to order IDs in provider references.
const referencePrefix = "ST_"

// ReturnServer is a local HTTP server the providers redirect back to.
type ReturnServer struct {
	server   *http.Server
	listener net.Listener
	result   chan ReturnResult
}

// NewReturnServer listens on the loopback interface. Port 0 picks a free
// port.
func NewReturnServer(port int) (*ReturnServer, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	rs := &ReturnServer{
		listener: listener,
		result:   make(chan ReturnResult, 1),
	}
	rs.server = &http.Server{
		Handler:      rs.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return rs, nil
}

// Router returns the server's routes.
func (rs *ReturnServer) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/payment", func(r chi.Router) {
		r.Get("/success", rs.handleReturn(ReturnSuccess))
		r.Get("/cancel", rs.handleReturn(ReturnCancel))
	})
	return r
}

// Start begins serving in the background.
func (rs *ReturnServer) Start() {
	go func() {
		_ = rs.server.Serve(rs.listener)
	}()
}

// Wait blocks until a redirect arrives or ctx is done.
func (rs *ReturnServer) Wait(ctx context.Context) (ReturnResult, error) {
	select {
	case result := <-rs.result:
		return result, nil
	case <-ctx.Done():
		return ReturnResult{}, ctx.Err()
	}
}

// Shutdown gracefully stops the server.
func (rs *ReturnServer) Shutdown(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}

// Port returns the port the server listens on.
func (rs *ReturnServer) Port() int {
	return rs.listener.Addr().(*net.TCPAddr).Port
}

// SuccessURL is where providers send the user after paying.
func (rs *ReturnServer) SuccessURL() string {
	return fmt.Sprintf("http://localhost:%d/payment/success", rs.Port())
}

// CancelURL is where providers send the user after cancelling.
func (rs *ReturnServer) CancelURL() string {
	return fmt.Sprintf("http://localhost:%d/payment/cancel", rs.Port())
}

func (rs *ReturnServer) handleReturn(outcome ReturnOutcome) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		reference := query.Get("reference")
		if reference == "" {
			reference = query.Get("trxref")
		}
		orderID := query.Get("order_id")
		if orderID == "" && strings.HasPrefix(reference, referencePrefix) {
			orderID = strings.TrimPrefix(reference, referencePrefix)
		}

		result := ReturnResult{Outcome: outcome, OrderID: orderID, Reference: reference}

		// Non-blocking in case the provider redirects twice
		select {
		case rs.result <- result:
		default:
		}

		title, body := "Payment Submitted", "Your payment is being confirmed. You can close this window and return to the terminal."
		if outcome == ReturnCancel {
			title, body = "Payment Cancelled", "The payment was cancelled. You can close this window."
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
<h1>%s</h1>
<p>%s</p>
</body>
</html>`, html.EscapeString(title), html.EscapeString(title), html.EscapeString(body))
	}
}
