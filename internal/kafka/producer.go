package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer writes messages through a buffered inbox so publishers never block
// on the broker. Publish is fire-and-forget; write errors are logged. The
// inbox channel is never closed, so Publish stays safe during and after
// shutdown: once the flush loop has finished, late messages are dropped.
type Producer struct {
	w     *kafka.Writer
	log   *zap.Logger
	inbox chan kafka.Message

	once    sync.Once
	done    chan struct{}
	flushed chan struct{}
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		log:     log,
		inbox:   make(chan kafka.Message, buf),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
	}
}

func (p *Producer) Start() {
	go func() {
		for {
			select {
			case <-p.done:
				for {
					select {
					case m := <-p.inbox:
						p.write(m)
					default:
						_ = p.w.Close()
						close(p.flushed)
						return
					}
				}
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Warn("kafka write failed",
			zap.String("topic", p.w.Topic), zap.Error(err))
	}
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	m := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case p.inbox <- m:
	case <-p.flushed:
		p.log.Warn("producer closed, message dropped", zap.String("topic", p.w.Topic))
	}
}

// Close tells the flush loop to drain the inbox and exit. Safe to call more
// than once. Call only after publishers are done if no message may be lost.
func (p *Producer) Close() {
	p.once.Do(func() { close(p.done) })
}

// WaitClosed blocks until the flush loop has finished.
func (p *Producer) WaitClosed() { <-p.flushed }
