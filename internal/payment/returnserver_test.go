package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestReturnServer(t *testing.T) {
	// Create server on random port (0)
	server, err := NewReturnServer(0)
	if err != nil {
		t.Fatalf("NewReturnServer() error = %v", err)
	}

	server.Start()
	defer func() { _ = server.Shutdown(context.Background()) }()

	port := server.Port()
	if port == 0 {
		t.Fatal("Server port should not be 0 after starting")
	}
	if want := fmt.Sprintf("http://localhost:%d/payment/success", port); server.SuccessURL() != want {
		t.Errorf("SuccessURL() = %q, want %q", server.SuccessURL(), want)
	}

	// Simulate the provider redirect
	go func() {
		time.Sleep(50 * time.Millisecond)
		url := fmt.Sprintf("http://127.0.0.1:%d/payment/success?trxref=ST_order-9&reference=ST_order-9", port)
		resp, err := http.Get(url)
		if err != nil {
			t.Errorf("Failed to make return request: %v", err)
			return
		}
		_ = resp.Body.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := server.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if result.Outcome != ReturnSuccess {
		t.Errorf("Outcome = %q, want %q", result.Outcome, ReturnSuccess)
	}
	if result.OrderID != "order-9" {
		t.Errorf("OrderID = %q, want %q", result.OrderID, "order-9")
	}
	if result.Reference != "ST_order-9" {
		t.Errorf("Reference = %q, want %q", result.Reference, "ST_order-9")
	}
}

func TestReturnServerRoutes(t *testing.T) {
	server, err := NewReturnServer(0)
	if err != nil {
		t.Fatalf("NewReturnServer() error = %v", err)
	}
	defer func() { _ = server.listener.Close() }()

	router := server.Router()

	tests := []struct {
		path       string
		wantStatus int
		wantResult *ReturnResult
	}{
		{"/health", http.StatusOK, nil},
		{"/payment/cancel?order_id=o-2", http.StatusOK, &ReturnResult{Outcome: ReturnCancel, OrderID: "o-2"}},
		{"/payment/unknown", http.StatusNotFound, nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantResult == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			got, err := server.Wait(ctx)
			if err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
			if got != *tt.wantResult {
				t.Errorf("result = %+v, want %+v", got, *tt.wantResult)
			}
		})
	}
}

func TestReturnServerWaitTimeout(t *testing.T) {
	server, err := NewReturnServer(0)
	if err != nil {
		t.Fatalf("NewReturnServer() error = %v", err)
	}
	server.Start()
	defer func() { _ = server.Shutdown(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := server.Wait(ctx); err == nil {
		t.Error("Wait() should fail when the context expires")
	}
}
