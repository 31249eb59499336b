package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/merchdesk/merchbot/internal/workflow"
)

func TestDispatcher_PerActorOrdering(t *testing.T) {
	const (
		actors = 3
		events = 200
	)

	var (
		mu   sync.Mutex
		seen = make(map[string][]string)
		wg   sync.WaitGroup
	)
	d := New(func(ctx context.Context, in Inbound) error {
		text := in.Event.(workflow.TextInput).Text
		mu.Lock()
		seen[in.ActorID] = append(seen[in.ActorID], text)
		mu.Unlock()
		wg.Done()
		return nil
	}, events, time.Minute, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	wg.Add(actors * events)
	for i := 0; i < events; i++ {
		for a := 0; a < actors; a++ {
			d.Dispatch(ctx, Inbound{
				ActorID: fmt.Sprintf("actor-%d", a),
				Event:   workflow.TextInput{Text: fmt.Sprintf("%d", i)},
			})
		}
	}
	wg.Wait()
	cancel()
	d.Close()

	for a := 0; a < actors; a++ {
		got := seen[fmt.Sprintf("actor-%d", a)]
		if len(got) != events {
			t.Fatalf("actor-%d processed %d events, want %d", a, len(got), events)
		}
		for i, text := range got {
			if text != fmt.Sprintf("%d", i) {
				t.Fatalf("actor-%d event %d = %s, out of order", a, i, text)
			}
		}
	}
}

func TestDispatcher_IdleRetirementAndRevival(t *testing.T) {
	handled := make(chan string, 8)
	d := New(func(ctx context.Context, in Inbound) error {
		handled <- in.Event.(workflow.TextInput).Text
		return nil
	}, 8, 20*time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.Dispatch(ctx, Inbound{ActorID: "a", Event: workflow.TextInput{Text: "one"}})
	if got := <-handled; got != "one" {
		t.Fatalf("got %s, want one", got)
	}

	// Wait for the worker to retire.
	deadline := time.Now().Add(time.Second)
	for {
		d.mu.Lock()
		n := len(d.workers)
		d.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("worker did not retire")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A later event spawns a fresh worker for the same actor.
	d.Dispatch(ctx, Inbound{ActorID: "a", Event: workflow.TextInput{Text: "two"}})
	select {
	case got := <-handled:
		if got != "two" {
			t.Fatalf("got %s, want two", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event after retirement was not handled")
	}

	cancel()
	d.Close()
}

func TestDispatcher_DropOnFullMailbox(t *testing.T) {
	release := make(chan struct{})
	var dropped int
	d := New(func(ctx context.Context, in Inbound) error {
		<-release
		return nil
	}, 1, time.Minute, nil, func() { dropped++ })

	ctx, cancel := context.WithCancel(context.Background())

	// First event occupies the worker, second fills the mailbox, third drops.
	for i := 0; i < 3; i++ {
		d.Dispatch(ctx, Inbound{ActorID: "a", Event: workflow.TextInput{Text: "x"}})
	}
	close(release)
	cancel()
	d.Close()

	if dropped == 0 {
		t.Fatal("expected at least one drop")
	}
}
