package session

import (
	"context"
	"sync"
	"time"
)

// Draft is the working state of an order being assembled by one actor. It is
// ephemeral: losing a draft before confirmation holds no stock and is
// harmless. Stage values are owned by the workflow engine.
type Draft struct {
	ActorID   string          `json:"actor_id"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	PhotoRef  string          `json:"photo_ref"`
	Channels  map[string]bool `json:"channels,omitempty"`
	Stage     string          `json:"stage"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ToggleChannel flips a destination channel in the target set.
func (d *Draft) ToggleChannel(channelID string) {
	if d.Channels == nil {
		d.Channels = make(map[string]bool)
	}
	if d.Channels[channelID] {
		delete(d.Channels, channelID)
	} else {
		d.Channels[channelID] = true
	}
}

// Registry maps actor id to in-progress draft. Not a durable source of truth.
type Registry interface {
	Get(ctx context.Context, actorID string) (Draft, bool, error)
	Put(ctx context.Context, d Draft) error
	Delete(ctx context.Context, actorID string) error
}

// Memory is the in-process registry used by the single-node bot and tests.
type Memory struct {
	mu     sync.RWMutex
	drafts map[string]Draft
}

func NewMemory() *Memory {
	return &Memory{drafts: make(map[string]Draft)}
}

func (m *Memory) Get(ctx context.Context, actorID string) (Draft, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drafts[actorID]
	return d, ok, nil
}

func (m *Memory) Put(ctx context.Context, d Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[d.ActorID] = d
	return nil
}

func (m *Memory) Delete(ctx context.Context, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, actorID)
	return nil
}
