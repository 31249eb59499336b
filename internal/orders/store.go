package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/merchdesk/merchbot/internal/store"
)

var (
	ErrNotFound = errors.New("orders: not found")
	// ErrBadStatus rejects a status change not allowed by the transition table.
	ErrBadStatus = errors.New("orders: invalid status transition")
	// ErrConflict is returned when CAS retries are exhausted.
	ErrConflict = errors.New("orders: concurrent update conflict")
)

const (
	orderPrefix = "order/"
	// seqKey lives outside orderPrefix so List never picks it up.
	seqKey      = "order_seq"
	actorPrefix = "actor_orders/"

	maxCASAttempts = 8
)

// Store persists committed orders. Ids come from a durable counter advanced
// with compare-and-swap, so they stay strictly monotonic across restarts and
// are never reused.
type Store struct {
	kv  store.KV
	log *zap.Logger
	now func() time.Time
}

func NewStore(kv store.KV, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: kv, log: log, now: time.Now}
}

func orderKey(id uint64) string { return fmt.Sprintf("%s%016d", orderPrefix, id) }

// Create assigns the next id, persists the order with StatusPending and bumps
// the actor's completed-order count.
func (s *Store) Create(ctx context.Context, o Order) (uint64, error) {
	id, err := s.nextID(ctx)
	if err != nil {
		return 0, err
	}
	o.ID = id
	o.Status = StatusPending
	o.CreatedAt = s.now().UTC()

	b, err := json.Marshal(o)
	if err != nil {
		return 0, err
	}
	if _, err := s.kv.Put(ctx, orderKey(id), b, 0); err != nil {
		return 0, fmt.Errorf("write order %d: %w", id, err)
	}
	if err := s.incCounter(ctx, actorPrefix+o.ActorID); err != nil {
		// The order exists; a stale per-actor count only loosens the order
		// limit, so log and keep going.
		s.log.Warn("bump actor order count failed",
			zap.String("actor", o.ActorID), zap.Error(err))
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id uint64) (Order, error) {
	e, err := s.kv.Get(ctx, orderKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	var o Order
	if err := json.Unmarshal(e.Value, &o); err != nil {
		return Order{}, fmt.Errorf("decode order %d: %w", id, err)
	}
	return o, nil
}

// List returns all orders in id order.
func (s *Store) List(ctx context.Context) ([]Order, error) {
	entries, err := s.kv.List(ctx, orderPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(entries))
	for _, e := range entries {
		var o Order
		if err := json.Unmarshal(e.Value, &o); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Key, err)
		}
		out = append(out, o)
	}
	return out, nil
}

// AppendDelivery records one fan-out. Idempotent per (order, channel):
// a redelivery returns the already-recorded entry unchanged. The first
// delivery flips a pending order to delivered.
func (s *Store) AppendDelivery(ctx context.Context, id uint64, channelID, prefix, messageRef string) (Delivery, error) {
	var recorded Delivery
	err := s.update(ctx, id, func(o *Order) error {
		for _, d := range o.Deliveries {
			if d.ChannelID == channelID {
				recorded = d
				return errNoop
			}
		}
		recorded = Delivery{
			ChannelID:  channelID,
			Prefix:     prefix,
			MessageRef: messageRef,
			SentAt:     s.now().UTC(),
		}
		o.Deliveries = append(o.Deliveries, recorded)
		if o.Status == StatusPending {
			o.Status = StatusDelivered
		}
		return nil
	})
	return recorded, err
}

// SetStatus applies a status change, validated against the transition table.
func (s *Store) SetStatus(ctx context.Context, id uint64, to Status) error {
	return s.update(ctx, id, func(o *Order) error {
		if !CanTransition(o.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrBadStatus, o.Status, to)
		}
		o.Status = to
		return nil
	})
}

// CompletedCount reports how many orders the actor has committed; feeds the
// per-actor order limit predicate.
func (s *Store) CompletedCount(ctx context.Context, actorID string) (int, error) {
	e, err := s.kv.Get(ctx, actorPrefix+actorID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(e.Value))
	if err != nil {
		return 0, fmt.Errorf("decode actor count: %w", err)
	}
	return n, nil
}

// errNoop aborts an update loop without writing, used for idempotent hits.
var errNoop = errors.New("orders: no-op")

func (s *Store) update(ctx context.Context, id uint64, fn func(*Order) error) error {
	key := orderKey(id)
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		e, err := s.kv.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var o Order
		if err := json.Unmarshal(e.Value, &o); err != nil {
			return fmt.Errorf("decode order %d: %w", id, err)
		}
		if err := fn(&o); err != nil {
			if errors.Is(err, errNoop) {
				return nil
			}
			return err
		}
		b, err := json.Marshal(o)
		if err != nil {
			return err
		}
		if _, err := s.kv.Put(ctx, key, b, e.Version); err == nil {
			return nil
		} else if !errors.Is(err, store.ErrVersionMismatch) {
			return err
		}
	}
	return ErrConflict
}

func (s *Store) nextID(ctx context.Context) (uint64, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		var cur uint64
		var expect uint64
		e, err := s.kv.Get(ctx, seqKey)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return 0, err
		default:
			cur, err = strconv.ParseUint(string(e.Value), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("decode order counter: %w", err)
			}
			expect = e.Version
		}
		next := cur + 1
		_, err = s.kv.Put(ctx, seqKey, []byte(strconv.FormatUint(next, 10)), expect)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, store.ErrVersionMismatch) {
			return 0, err
		}
	}
	return 0, ErrConflict
}

func (s *Store) incCounter(ctx context.Context, key string) error {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		var cur int
		var expect uint64
		e, err := s.kv.Get(ctx, key)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		default:
			if cur, err = strconv.Atoi(string(e.Value)); err != nil {
				return fmt.Errorf("decode counter %s: %w", key, err)
			}
			expect = e.Version
		}
		_, err = s.kv.Put(ctx, key, []byte(strconv.Itoa(cur+1)), expect)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrVersionMismatch) {
			return err
		}
	}
	return ErrConflict
}
