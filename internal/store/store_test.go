package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tessro/tunes/internal/core"
	"github.com/tessro/tunes/internal/playback"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEnsureSchema(t *testing.T) {
	s := newTestStore(t)

	rows, err := s.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan sqlite_master: %v", err)
		}
		found[name] = true
	}
	for _, table := range []string{"prefs", "payment_sessions"} {
		if !found[table] {
			t.Fatalf("expected table %q to exist", table)
		}
	}

	// Idempotent.
	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("second EnsureSchema() error = %v", err)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "tunes.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if err := s.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
}

func TestPrefs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}

	if err := s.Set(ctx, "theme", "dark"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, "theme", "light"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	v, ok, err := s.Get(ctx, "theme")
	if err != nil || !ok || v != "light" {
		t.Fatalf("Get(theme) = %q, %v, %v", v, ok, err)
	}

	if err := s.Delete(ctx, "theme"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "theme"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, "theme"); ok {
		t.Error("Get() after Delete found a value")
	}
}

func TestPlayerMemoryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mem := playback.KVMemory{KV: s}

	loaded, err := mem.LoadMemory(ctx)
	if err != nil || loaded != nil {
		t.Fatalf("LoadMemory() on empty store = %v, %v", loaded, err)
	}

	want := playback.Memory{
		Track:    core.Track{ID: "t1", Name: "Intro", Source: "https://cdn.example.com/t1.mp3"},
		Position: 42 * time.Second,
		Volume:   0.6,
		SavedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := mem.SaveMemory(ctx, want); err != nil {
		t.Fatalf("SaveMemory() error = %v", err)
	}

	got, err := mem.LoadMemory(ctx)
	if err != nil {
		t.Fatalf("LoadMemory() error = %v", err)
	}
	if got.Track.ID != "t1" || got.Position != want.Position || !got.SavedAt.Equal(want.SavedAt) {
		t.Errorf("LoadMemory() = %+v, want %+v", got, want)
	}

	if err := mem.DeleteMemory(ctx); err != nil {
		t.Fatalf("DeleteMemory() error = %v", err)
	}
	if got, _ := mem.LoadMemory(ctx); got != nil {
		t.Error("LoadMemory() after delete should be nil")
	}
}

func TestPaymentHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	records := []PaymentRecord{
		{OrderID: "o1", SessionID: "s1", Provider: "paystack", OrderType: "subscription", ItemID: "pro", ItemName: "Pro", Amount: 999, Currency: "USD", URL: "https://checkout.example/s1", CreatedAt: base},
		{OrderID: "o2", SessionID: "s2", Provider: "mpesa", OrderType: "product", ItemID: "album", ItemName: "Album", Amount: 50000, Currency: "KES", CreatedAt: base.Add(time.Hour)},
	}
	for _, rec := range records {
		if err := s.RecordSession(ctx, rec); err != nil {
			t.Fatalf("RecordSession(%s) error = %v", rec.OrderID, err)
		}
	}

	ok, err := s.UpdateStatus(ctx, "o1", string(core.OrderCompleted), base.Add(2*time.Hour))
	if err != nil || !ok {
		t.Fatalf("UpdateStatus(o1) = %v, %v", ok, err)
	}
	ok, err = s.UpdateStatus(ctx, "nope", "failed", base)
	if err != nil || ok {
		t.Fatalf("UpdateStatus(nope) = %v, %v", ok, err)
	}

	got, err := s.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListSessions() returned %d records, want 2", len(got))
	}
	if got[0].OrderID != "o2" {
		t.Errorf("first record = %s, want newest o2", got[0].OrderID)
	}
	if got[0].Status != "pending" || got[0].URL != "" {
		t.Errorf("o2 = %+v", got[0])
	}
	if got[1].Status != "completed" || got[1].URL != "https://checkout.example/s1" {
		t.Errorf("o1 = %+v", got[1])
	}

	limited, err := s.ListSessions(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("ListSessions(1) = %d records, %v", len(limited), err)
	}

	bad := records[0]
	bad.OrderID = "o3"
	bad.Amount = 0
	if err := s.RecordSession(ctx, bad); err == nil {
		t.Error("RecordSession() should reject a zero amount")
	}
}
