package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/merchdesk/merchbot/internal/catalog"
	"github.com/merchdesk/merchbot/internal/inventory"
	"github.com/merchdesk/merchbot/internal/metrics"
	"github.com/merchdesk/merchbot/internal/orders"
	"github.com/merchdesk/merchbot/internal/session"
)

// orderWriteAttempts bounds the order-write retry that runs while the
// reservation is held. On exhaustion the reservation is released before the
// failure surfaces; a reservation must never be left with neither an order
// nor a release.
const orderWriteAttempts = 3

// Engine drives one actor's order conversation. The dispatcher guarantees
// events for an actor arrive here strictly in order, so the engine itself
// holds no per-actor locks. The ledger is only touched at Confirm; no stock
// is held while the actor thinks.
type Engine struct {
	sessions  session.Registry
	ledger    *inventory.Ledger
	orders    *orders.Store
	catalog   *catalog.Catalog
	channels  ChannelDirectory
	gate      OrderGate
	presenter Presenter
	deliverer Deliverer
	log       *zap.Logger
	metrics   *metrics.Registry
}

func NewEngine(
	sessions session.Registry,
	ledger *inventory.Ledger,
	store *orders.Store,
	cat *catalog.Catalog,
	channels ChannelDirectory,
	gate OrderGate,
	presenter Presenter,
	deliverer Deliverer,
	log *zap.Logger,
	m *metrics.Registry,
) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewRegistry()
	}
	return &Engine{
		sessions:  sessions,
		ledger:    ledger,
		orders:    store,
		catalog:   cat,
		channels:  channels,
		gate:      gate,
		presenter: presenter,
		deliverer: deliverer,
		log:       log,
		metrics:   m,
	}
}

// flow carries the per-event context through the state handlers.
type flow struct {
	actorID   string
	channelID string
	draft     session.Draft
}

// Handle processes one normalized event for an actor.
func (e *Engine) Handle(ctx context.Context, actorID, channelID string, ev Event) error {
	e.metrics.EventsProcessed.Inc()

	d, active, err := e.sessions.Get(ctx, actorID)
	if err != nil {
		return fmt.Errorf("load draft: %w", err)
	}
	f := &flow{actorID: actorID, channelID: channelID, draft: d}

	// Flow-global events: cancel and (re)start work from any stage. Starting
	// a new order over an in-flight draft resets it, last write wins.
	switch t := ev.(type) {
	case TextInput:
		if t.Text == CommandOrder {
			return e.begin(ctx, f)
		}
	case SelectionMade:
		switch t.Action {
		case ActionNewOrder:
			return e.begin(ctx, f)
		case ActionCancel:
			return e.cancel(ctx, f)
		}
	}

	if !active {
		// No draft in flight: anything but a start is a stray tap.
		return e.reject(ctx, f, ev, "no order in progress")
	}

	switch State(d.Stage) {
	case StateStart:
		return e.handleStart(ctx, f, ev)
	case StatePickSize:
		return e.handlePickSize(ctx, f, ev)
	case StatePickColor:
		return e.handlePickColor(ctx, f, ev)
	case StateAwaitPhoto:
		return e.handleAwaitPhoto(ctx, f, ev)
	case StateReview:
		return e.handleReview(ctx, f, ev)
	case StatePickChannels:
		return e.handlePickChannels(ctx, f, ev)
	case StateConfirm:
		return e.handleConfirm(ctx, f, ev)
	case StateRejected:
		return e.handleRejected(ctx, f, ev)
	default:
		return e.reject(ctx, f, ev, "unknown stage "+d.Stage)
	}
}

// begin opens a fresh draft after checking the order capability predicate.
func (e *Engine) begin(ctx context.Context, f *flow) error {
	ok, err := e.gate.CanOrder(ctx, f.actorID)
	if err != nil {
		return fmt.Errorf("capability check: %w", err)
	}
	if !ok {
		return e.presenter.Render(ctx, f.channelID, msgLimitReached, nil)
	}
	f.draft = session.Draft{ActorID: f.actorID, Stage: string(StateStart)}
	if err := e.save(ctx, f); err != nil {
		return err
	}
	return e.renderStart(ctx, f)
}

// cancel discards the draft. Nothing was reserved before Confirm, so there is
// no ledger compensation.
func (e *Engine) cancel(ctx context.Context, f *flow) error {
	if err := e.sessions.Delete(ctx, f.actorID); err != nil {
		return err
	}
	return e.presenter.Render(ctx, f.channelID, msgCancelled, []Action{
		{Label: "New order", Action: ActionNewOrder},
	})
}

func (e *Engine) handleStart(ctx context.Context, f *flow, ev Event) error {
	if sel, ok := ev.(SelectionMade); ok && sel.Action == ActionStartOrder {
		return e.toPickSize(ctx, f)
	}
	return e.reject(ctx, f, ev, "expected start")
}

func (e *Engine) handlePickSize(ctx context.Context, f *flow, ev Event) error {
	sel, ok := ev.(SelectionMade)
	if !ok || sel.Action != ActionPickSize {
		return e.reject(ctx, f, ev, "expected size selection")
	}
	if !e.catalog.HasSize(sel.Value) {
		return e.renderPickSize(ctx, f)
	}
	if f.draft.Size != sel.Value {
		f.draft.Size = sel.Value
		f.draft.Color = ""
	}
	return e.afterVariantChange(ctx, f)
}

func (e *Engine) handlePickColor(ctx context.Context, f *flow, ev Event) error {
	sel, ok := ev.(SelectionMade)
	if !ok || sel.Action != ActionPickColor {
		return e.reject(ctx, f, ev, "expected color selection")
	}
	if !e.catalog.HasColor(f.draft.Size, sel.Value) {
		return e.renderPickColor(ctx, f)
	}
	f.draft.Color = sel.Value
	return e.afterVariantChange(ctx, f)
}

// afterVariantChange routes past color selection when the size has no colors
// and returns straight to review when the photo is already supplied, which is
// what makes the review edit loop preserve unrelated fields.
func (e *Engine) afterVariantChange(ctx context.Context, f *flow) error {
	if f.draft.Color == "" {
		if len(e.catalog.Colors(f.draft.Size)) > 0 {
			return e.toState(ctx, f, StatePickColor, e.renderPickColor)
		}
		f.draft.Color = inventory.ColorNone
	}
	if f.draft.PhotoRef == "" {
		return e.toState(ctx, f, StateAwaitPhoto, e.renderAwaitPhoto)
	}
	return e.toState(ctx, f, StateReview, e.renderReview)
}

func (e *Engine) handleAwaitPhoto(ctx context.Context, f *flow, ev Event) error {
	switch t := ev.(type) {
	case MediaInput:
		f.draft.PhotoRef = t.Ref
		return e.toState(ctx, f, StateReview, e.renderReview)
	case TextInput:
		return e.presenter.Render(ctx, f.channelID, msgPhotoHint, backActions())
	default:
		return e.reject(ctx, f, ev, "expected photo")
	}
}

func (e *Engine) handleReview(ctx context.Context, f *flow, ev Event) error {
	sel, ok := ev.(SelectionMade)
	if !ok {
		return e.reject(ctx, f, ev, "expected review action")
	}
	switch sel.Action {
	case ActionChangeSize:
		return e.toState(ctx, f, StatePickSize, e.renderPickSize)
	case ActionChangeColor:
		return e.toChangeColor(ctx, f)
	case ActionChangePhoto:
		f.draft.PhotoRef = ""
		return e.toState(ctx, f, StateAwaitPhoto, e.renderAwaitPhoto)
	case ActionPickChannels:
		return e.toState(ctx, f, StatePickChannels, e.renderPickChannels)
	default:
		return e.reject(ctx, f, ev, "unexpected review action "+sel.Action)
	}
}

// toChangeColor re-enters color selection, falling back to size selection for
// sizes without colors.
func (e *Engine) toChangeColor(ctx context.Context, f *flow) error {
	if len(e.catalog.Colors(f.draft.Size)) == 0 {
		return e.toState(ctx, f, StatePickSize, e.renderPickSize)
	}
	f.draft.Color = ""
	return e.toState(ctx, f, StatePickColor, e.renderPickColor)
}

func (e *Engine) handlePickChannels(ctx context.Context, f *flow, ev Event) error {
	sel, ok := ev.(SelectionMade)
	if !ok {
		return e.reject(ctx, f, ev, "expected channel action")
	}
	switch sel.Action {
	case ActionToggleChannel:
		f.draft.ToggleChannel(sel.Value)
		if err := e.save(ctx, f); err != nil {
			return err
		}
		return e.renderPickChannels(ctx, f)
	case ActionChannelsDone:
		if len(f.draft.Channels) == 0 {
			return e.presenter.Render(ctx, f.channelID, msgNoChannels, nil)
		}
		return e.toState(ctx, f, StateConfirm, e.renderConfirm)
	default:
		return e.reject(ctx, f, ev, "unexpected channel action "+sel.Action)
	}
}

func (e *Engine) handleConfirm(ctx context.Context, f *flow, ev Event) error {
	if sel, ok := ev.(SelectionMade); ok && sel.Action == ActionConfirm {
		return e.commit(ctx, f)
	}
	return e.reject(ctx, f, ev, "expected confirmation")
}

// handleRejected offers the manual way back after an out-of-stock refusal.
// There is deliberately no automatic retry.
func (e *Engine) handleRejected(ctx context.Context, f *flow, ev Event) error {
	sel, ok := ev.(SelectionMade)
	if !ok {
		return e.reject(ctx, f, ev, "expected retry action")
	}
	switch sel.Action {
	case ActionChangeSize:
		return e.toState(ctx, f, StatePickSize, e.renderPickSize)
	case ActionChangeColor:
		return e.toChangeColor(ctx, f)
	default:
		return e.reject(ctx, f, ev, "unexpected retry action "+sel.Action)
	}
}

// commit is the single point where the ledger is touched: reserve, persist
// the order, fan out, clear the draft.
func (e *Engine) commit(ctx context.Context, f *flow) error {
	key := inventory.NewVariantKey(f.draft.Size, f.draft.Color)

	err := e.ledger.Reserve(ctx, key, 1)
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock):
		e.metrics.ReservationRejects.Inc()
		f.draft.Stage = string(StateRejected)
		if serr := e.save(ctx, f); serr != nil {
			return serr
		}
		return e.presenter.Render(ctx, f.channelID, msgOutOfStock, retryActions())
	case err != nil:
		// Transient ledger trouble; stay on Confirm so the actor can retry.
		if rerr := e.presenter.Render(ctx, f.channelID, msgTryAgain, confirmActions()); rerr != nil {
			e.log.Warn("render failed", zap.Error(rerr))
		}
		return fmt.Errorf("reserve %s: %w", key, err)
	}
	e.metrics.Reservations.Inc()

	o := orders.Order{
		ActorID:  f.actorID,
		Size:     f.draft.Size,
		Color:    f.draft.Color,
		PhotoRef: f.draft.PhotoRef,
	}
	var id uint64
	var werr error
	for attempt := 0; attempt < orderWriteAttempts; attempt++ {
		if id, werr = e.orders.Create(ctx, o); werr == nil {
			break
		}
		e.log.Warn("order write failed, retrying while reservation held",
			zap.Int("attempt", attempt+1), zap.Error(werr))
	}
	if werr != nil {
		if rerr := e.ledger.Release(ctx, key, 1); rerr != nil {
			e.log.Error("reservation release after failed order write failed; ledger and orders disagree",
				zap.String("variant", key.String()), zap.Error(rerr))
		} else {
			e.metrics.Releases.Inc()
		}
		if perr := e.presenter.Render(ctx, f.channelID, msgTryAgain, confirmActions()); perr != nil {
			e.log.Warn("render failed", zap.Error(perr))
		}
		return fmt.Errorf("create order: %w", werr)
	}
	e.metrics.OrdersCommitted.Inc()

	e.fanOut(ctx, f, id)

	if err := e.sessions.Delete(ctx, f.actorID); err != nil {
		e.log.Warn("clear draft failed", zap.String("actor", f.actorID), zap.Error(err))
	}
	return e.renderReceipt(ctx, f, id)
}

// fanOut emits one delivery intent per selected channel and records each
// success. Failed channels are logged and counted but not retried here.
func (e *Engine) fanOut(ctx context.Context, f *flow, id uint64) {
	summary := OrderSummary{
		OrderID:   id,
		ActorID:   f.actorID,
		Size:      f.draft.Size,
		Color:     f.draft.Color,
		PhotoRef:  f.draft.PhotoRef,
		CreatedAt: time.Now().UTC(),
	}
	prefixes := e.channelPrefixes(ctx)
	for channelID := range f.draft.Channels {
		prefix, active := prefixes[channelID]
		if !active {
			// Selected before the directory changed; nothing to deliver to.
			e.metrics.DeliveryFailures.Inc()
			e.log.Warn("selected channel no longer active, skipped",
				zap.Uint64("order", id), zap.String("channel", channelID))
			continue
		}
		ref, err := e.deliverer.Deliver(ctx, channelID, prefix, summary)
		if err != nil {
			e.metrics.DeliveryFailures.Inc()
			e.log.Warn("delivery intent failed",
				zap.Uint64("order", id), zap.String("channel", channelID), zap.Error(err))
			continue
		}
		if _, err := e.orders.AppendDelivery(ctx, id, channelID, prefix, ref); err != nil {
			e.log.Error("record delivery failed",
				zap.Uint64("order", id), zap.String("channel", channelID), zap.Error(err))
			continue
		}
		e.metrics.DeliveriesAppended.Inc()
	}
}

func (e *Engine) channelPrefixes(ctx context.Context) map[string]string {
	out := make(map[string]string)
	chans, err := e.channels.Active(ctx)
	if err != nil {
		e.log.Warn("channel directory unavailable", zap.Error(err))
		return out
	}
	for _, ch := range chans {
		out[ch.ID] = ch.Prefix
	}
	return out
}

// reject handles an event the current stage has no transition for: keep
// state, count it, log it, nudge the actor.
func (e *Engine) reject(ctx context.Context, f *flow, ev Event, why string) error {
	e.metrics.InvalidTransitions.Inc()
	e.log.Info("event rejected",
		zap.String("actor", f.actorID),
		zap.String("stage", f.draft.Stage),
		zap.String("event", fmt.Sprintf("%T", ev)),
		zap.String("reason", why))
	return e.presenter.Render(ctx, f.channelID, msgUseButtons, nil)
}

func (e *Engine) toState(ctx context.Context, f *flow, st State, render func(context.Context, *flow) error) error {
	f.draft.Stage = string(st)
	if err := e.save(ctx, f); err != nil {
		return err
	}
	return render(ctx, f)
}

func (e *Engine) toPickSize(ctx context.Context, f *flow) error {
	return e.toState(ctx, f, StatePickSize, e.renderPickSize)
}

func (e *Engine) save(ctx context.Context, f *flow) error {
	f.draft.ActorID = f.actorID
	f.draft.UpdatedAt = time.Now().UTC()
	if err := e.sessions.Put(ctx, f.draft); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}
