package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/merchdesk/merchbot/internal/kafka"
	"github.com/merchdesk/merchbot/internal/workflow"
)

// KafkaPresenter publishes render intents for the external presentation
// layer. The core never talks to the chat platform directly.
type KafkaPresenter struct {
	Producer *kafkax.Producer
	Service  string
}

func (p *KafkaPresenter) Render(ctx context.Context, channelID, content string, actions []workflow.Action) error {
	env := Envelope{
		EventID:      uuid.NewString(),
		EventType:    EventRenderIntent,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     p.Service,
		ChannelID:    channelID,
		Payload: kafkax.MustMarshal(RenderPayload{
			ChannelID: channelID,
			Content:   content,
			Actions:   actions,
		}),
	}
	p.Producer.Publish([]byte(channelID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventRenderIntent)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}

// KafkaDeliverer publishes delivery intents for the external fan-out sender
// and returns the intent's message reference.
type KafkaDeliverer struct {
	Producer *kafkax.Producer
	Service  string
}

func (d *KafkaDeliverer) Deliver(ctx context.Context, channelID, prefix string, s workflow.OrderSummary) (string, error) {
	ref := uuid.NewString()
	env := Envelope{
		EventID:      uuid.NewString(),
		EventType:    EventDeliveryIntent,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     d.Service,
		ActorID:      s.ActorID,
		ChannelID:    channelID,
		Payload: kafkax.MustMarshal(DeliveryPayload{
			ChannelID:  channelID,
			Prefix:     prefix,
			MessageRef: ref,
			Summary:    s,
		}),
	}
	d.Producer.Publish([]byte(channelID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventDeliveryIntent)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return ref, nil
}
