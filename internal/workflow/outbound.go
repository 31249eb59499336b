package workflow

import (
	"context"
	"time"
)

// Action is one choice offered to the actor alongside rendered content.
type Action struct {
	Label  string `json:"label"`
	Action string `json:"action"`
	Value  string `json:"value,omitempty"`
}

// Presenter receives the latest content for a channel. The renderer on the
// other side decides whether to create or edit a platform message.
type Presenter interface {
	Render(ctx context.Context, channelID, content string, actions []Action) error
}

// OrderSummary is what the fan-out sender posts into a destination channel.
type OrderSummary struct {
	OrderID   uint64    `json:"order_id"`
	ActorID   string    `json:"actor_id"`
	Size      string    `json:"size"`
	Color     string    `json:"color"`
	PhotoRef  string    `json:"photo_ref"`
	CreatedAt time.Time `json:"created_at"`
}

// Deliverer hands a committed order's summary to the external fan-out sender
// and returns a reference to the emitted message.
type Deliverer interface {
	Deliver(ctx context.Context, channelID, prefix string, s OrderSummary) (messageRef string, err error)
}

// Channel is a destination that can receive order notifications.
type Channel struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Prefix string `json:"prefix"`
}

// ChannelDirectory lists the destinations currently open for fan-out.
type ChannelDirectory interface {
	Active(ctx context.Context) ([]Channel, error)
}

// StaticChannels is a config-backed directory.
type StaticChannels []Channel

func (s StaticChannels) Active(ctx context.Context) ([]Channel, error) {
	return s, nil
}

// OrderGate is the capability predicate guarding order creation.
type OrderGate interface {
	CanOrder(ctx context.Context, actorID string) (bool, error)
}
