package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/merchdesk/merchbot/internal/workflow"
)

const (
	EventTextInput      = "TextInput"
	EventMediaInput     = "MediaInput"
	EventSelectionMade  = "SelectionMade"
	EventRenderIntent   = "RenderIntent"
	EventDeliveryIntent = "DeliveryIntent"
)

const (
	TopicInbound  = "merch.events.in"
	TopicRender   = "merch.render.out"
	TopicDelivery = "merch.delivery.out"
)

// PartitionKey keys messages by actor so one actor's events stay on one
// partition and arrive in order.
func PartitionKey(actorID string) []byte { return []byte(actorID) }

// Envelope is the wire frame shared by inbound events and outbound intents.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	ActorID      string          `json:"actor_id,omitempty"`
	ChannelID    string          `json:"channel_id"`
	Payload      json.RawMessage `json:"payload"`
}

type TextInputPayload struct {
	Text string `json:"text"`
}

type MediaInputPayload struct {
	FileRef string `json:"file_ref"`
}

type SelectionPayload struct {
	Action string `json:"action"`
	Value  string `json:"value,omitempty"`
}

type RenderPayload struct {
	ChannelID string            `json:"channel_id"`
	Content   string            `json:"content"`
	Actions   []workflow.Action `json:"actions,omitempty"`
}

type DeliveryPayload struct {
	ChannelID  string                `json:"channel_id"`
	Prefix     string                `json:"prefix"`
	MessageRef string                `json:"message_ref"`
	Summary    workflow.OrderSummary `json:"summary"`
}

// DecodeEvent maps an inbound envelope onto the engine's closed event set.
func DecodeEvent(env Envelope) (workflow.Event, error) {
	switch env.EventType {
	case EventTextInput:
		var p TextInputPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode text payload: %w", err)
		}
		return workflow.TextInput{Text: p.Text}, nil
	case EventMediaInput:
		var p MediaInputPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode media payload: %w", err)
		}
		return workflow.MediaInput{Ref: p.FileRef}, nil
	case EventSelectionMade:
		var p SelectionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode selection payload: %w", err)
		}
		return workflow.SelectionMade{Action: p.Action, Value: p.Value}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.EventType)
	}
}
