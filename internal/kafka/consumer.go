package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler must return nil only when the message was handled and the offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// Consumer reads a topic as part of a consumer group and commits offsets
// after successful handling. Handling is sequential: per-actor ordering is
// the dispatcher's job downstream, so reordering here would defeat it.
type Consumer struct {
	r   *kafka.Reader
	log *zap.Logger
}

func NewConsumer(brokers []string, group, topic string, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return &Consumer{r: r, log: log}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		if err := h(ctx, m); err != nil {
			c.log.Warn("message handling failed", zap.Error(err))
			time.Sleep(200 * time.Millisecond)
			continue
		}
		if err := c.r.CommitMessages(ctx, m); err != nil {
			c.log.Warn("offset commit failed", zap.Error(err))
		}
	}
}
