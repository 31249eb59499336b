package kafka

import (
	"testing"
	"time"
)

func TestProducer_PublishAfterCloseDoesNotPanic(t *testing.T) {
	p := NewProducer([]string{"localhost:0"}, "test.topic", 1, nil)
	p.Start()

	p.Close()
	p.Close() // idempotent
	p.WaitClosed()

	// A publisher still finishing its work after shutdown must not bring the
	// process down; the message is dropped at worst.
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Publish([]byte("k"), []byte("v"))
		p.Publish([]byte("k"), []byte("v"))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish after close blocked")
	}
}
