package payment

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tessro/tunes/internal/core"
	"github.com/tessro/tunes/internal/store"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) HasSession() bool {
	return m.Called().Bool(0)
}

func (m *MockBackend) AccessToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) InvokeFunction(ctx context.Context, name string, body, result any) error {
	args := m.Called(ctx, name, body, result)
	return args.Error(0)
}

type MockStatusReader struct {
	mock.Mock
}

func (m *MockStatusReader) OrderStatus(ctx context.Context, orderID string) (*core.OrderSnapshot, error) {
	args := m.Called(ctx, orderID)
	if val := args.Get(0); val != nil {
		return val.(*core.OrderSnapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

// scriptedReader returns its snapshots in order, repeating the last one.
type scriptedReader struct {
	mu    sync.Mutex
	snaps []*core.OrderSnapshot
	n     int
}

func (r *scriptedReader) OrderStatus(ctx context.Context, orderID string) (*core.OrderSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.n
	if i >= len(r.snaps) {
		i = len(r.snaps) - 1
	}
	r.n++
	return r.snaps[i], nil
}

func (r *scriptedReader) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

type pushSource struct {
	ch chan core.OrderSnapshot
}

func (p *pushSource) Updates(ctx context.Context, orderID string) (<-chan core.OrderSnapshot, error) {
	return p.ch, nil
}

// stubReturns hands out one prepared result, or blocks until ctx is done.
type stubReturns struct {
	result chan ReturnResult
}

func newStubReturns() *stubReturns {
	return &stubReturns{result: make(chan ReturnResult, 1)}
}

func (s *stubReturns) SuccessURL() string { return "http://localhost:8787/payment/success" }
func (s *stubReturns) CancelURL() string  { return "http://localhost:8787/payment/cancel" }

func (s *stubReturns) Wait(ctx context.Context) (ReturnResult, error) {
	select {
	case r := <-s.result:
		return r, nil
	case <-ctx.Done():
		return ReturnResult{}, ctx.Err()
	}
}

type recordingHistory struct {
	mu      sync.Mutex
	records []store.PaymentRecord
	updates []string
}

func (h *recordingHistory) RecordSession(ctx context.Context, rec store.PaymentRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return nil
}

func (h *recordingHistory) UpdateStatus(ctx context.Context, orderID, status string, at time.Time) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, orderID+"="+status)
	return true, nil
}
