package playback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tessro/tunes/internal/core"
)

// MemoryKey is the preference key the player snapshot is stored under.
const MemoryKey = "player.memory"

// Memory is the persisted player snapshot used to restore the last track.
type Memory struct {
	Track    core.Track    `json:"track"`
	Position time.Duration `json:"position"`
	Duration time.Duration `json:"duration"`
	Volume   float64       `json:"volume"`
	Muted    bool          `json:"muted"`
	SavedAt  time.Time     `json:"saved_at"`
}

// MemoryStore persists the player snapshot.
type MemoryStore interface {
	LoadMemory(ctx context.Context) (*Memory, error)
	SaveMemory(ctx context.Context, m Memory) error
	DeleteMemory(ctx context.Context) error
}

// KV is a string key-value store.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// KVMemory stores the snapshot as JSON in a KV store.
type KVMemory struct {
	KV KV
}

// LoadMemory implements MemoryStore. A missing snapshot returns nil.
func (m KVMemory) LoadMemory(ctx context.Context) (*Memory, error) {
	raw, ok, err := m.KV.Get(ctx, MemoryKey)
	if err != nil || !ok {
		return nil, err
	}
	var mem Memory
	if err := json.Unmarshal([]byte(raw), &mem); err != nil {
		return nil, fmt.Errorf("failed to parse player memory: %w", err)
	}
	return &mem, nil
}

// SaveMemory implements MemoryStore.
func (m KVMemory) SaveMemory(ctx context.Context, mem Memory) error {
	data, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("failed to marshal player memory: %w", err)
	}
	return m.KV.Set(ctx, MemoryKey, string(data))
}

// DeleteMemory implements MemoryStore.
func (m KVMemory) DeleteMemory(ctx context.Context) error {
	return m.KV.Delete(ctx, MemoryKey)
}
