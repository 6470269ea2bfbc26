package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessro/tunes/internal/core"
)

func setupFeed(t *testing.T) (*Feed, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	f := NewFeed(rdb, "", nil)
	t.Cleanup(func() { _ = f.Close() })
	return f, mr
}

func TestFeedChannel(t *testing.T) {
	f, _ := setupFeed(t)
	assert.Equal(t, "orders:abc", f.Channel("abc"))
}

func TestFeedUpdates(t *testing.T) {
	f, mr := setupFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := f.Updates(ctx, "order-1")
	require.NoError(t, err)

	// Garbage is skipped, the valid message after it still arrives.
	mr.Publish("orders:order-1", "not json")
	mr.Publish("orders:order-1", `{"status":"bogus"}`)
	require.NoError(t, f.Publish(ctx, "order-1", Message{Status: core.OrderCompleted, ProviderID: "ps_1"}))

	select {
	case snap := <-updates:
		assert.Equal(t, "order-1", snap.ID)
		assert.Equal(t, core.OrderCompleted, snap.Status)
		assert.Equal(t, "ps_1", snap.ProviderID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status update")
	}

	cancel()
	select {
	case _, ok := <-updates:
		for ok {
			_, ok = <-updates
		}
	case <-time.After(2 * time.Second):
		t.Fatal("updates channel was not closed after cancel")
	}
}

func TestFeedIgnoresOtherOrders(t *testing.T) {
	f, _ := setupFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := f.Updates(ctx, "order-1")
	require.NoError(t, err)

	require.NoError(t, f.Publish(ctx, "order-2", Message{Status: core.OrderFailed}))

	select {
	case snap := <-updates:
		t.Fatalf("unexpected update %+v", snap)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDialFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = Dial(ctx, addr, "", nil)
	assert.Error(t, err)
}

func TestDialPlainAddress(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	f, err := Dial(context.Background(), mr.Addr(), "pay:", nil)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "pay:x", f.Channel("x"))
}

func TestDecode(t *testing.T) {
	snap, err := decode("o", `{"status":"CANCELLED"}`)
	require.NoError(t, err)
	assert.Equal(t, core.OrderCancelled, snap.Status)

	_, err = decode("o", `{}`)
	assert.Error(t, err)
}
