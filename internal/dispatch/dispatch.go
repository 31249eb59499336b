package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/merchdesk/merchbot/internal/workflow"
)

// Inbound is one normalized actor action routed to a worker.
type Inbound struct {
	ActorID   string
	ChannelID string
	Event     workflow.Event
}

// Handler consumes one event. Errors are the handler's business; the
// dispatcher only logs them.
type Handler func(ctx context.Context, in Inbound) error

// Dispatcher gives every actor one logical worker: a goroutine with a FIFO
// mailbox, so an actor's events are processed strictly in arrival order while
// different actors proceed in parallel. Idle workers retire to bound memory.
type Dispatcher struct {
	handler     Handler
	mailboxSize int
	idleAfter   time.Duration
	log         *zap.Logger
	onDrop      func()

	// mu guards workers and every mailbox send; retirement checks the
	// mailbox under the same lock, so no event can land in a dead worker.
	mu      sync.Mutex
	workers map[string]*worker
	wg      sync.WaitGroup
	closed  bool
}

type worker struct {
	mailbox chan Inbound
}

func New(handler Handler, mailboxSize int, idleAfter time.Duration, log *zap.Logger, onDrop func()) *Dispatcher {
	if mailboxSize <= 0 {
		mailboxSize = 64
	}
	if idleAfter <= 0 {
		idleAfter = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	if onDrop == nil {
		onDrop = func() {}
	}
	return &Dispatcher{
		handler:     handler,
		mailboxSize: mailboxSize,
		idleAfter:   idleAfter,
		log:         log,
		onDrop:      onDrop,
		workers:     make(map[string]*worker),
	}
}

// Dispatch enqueues an event for its actor's worker, spawning one if needed.
// A full mailbox drops the event rather than blocking the consumer loop.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	w, ok := d.workers[in.ActorID]
	if !ok {
		w = &worker{mailbox: make(chan Inbound, d.mailboxSize)}
		d.workers[in.ActorID] = w
		d.wg.Add(1)
		go d.run(ctx, in.ActorID, w)
	}
	select {
	case w.mailbox <- in:
	default:
		d.onDrop()
		d.log.Warn("mailbox full, event dropped", zap.String("actor", in.ActorID))
	}
}

func (d *Dispatcher) run(ctx context.Context, actorID string, w *worker) {
	defer d.wg.Done()
	idle := time.NewTimer(d.idleAfter)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			delete(d.workers, actorID)
			d.mu.Unlock()
			return
		case in := <-w.mailbox:
			if err := d.handler(ctx, in); err != nil {
				d.log.Error("event handling failed",
					zap.String("actor", actorID), zap.Error(err))
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.idleAfter)
		case <-idle.C:
			if d.tryRetire(actorID, w) {
				return
			}
			idle.Reset(d.idleAfter)
		}
	}
}

// tryRetire removes the worker only when its mailbox is empty. Sends happen
// under the same mutex, so emptiness here means nothing is in flight.
func (d *Dispatcher) tryRetire(actorID string, w *worker) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(w.mailbox) > 0 {
		return false
	}
	delete(d.workers, actorID)
	return true
}

// Close stops accepting events and waits for workers to finish. Cancel the
// context passed to Dispatch first so workers can exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
