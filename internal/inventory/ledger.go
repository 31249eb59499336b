package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/merchdesk/merchbot/internal/catalog"
	"github.com/merchdesk/merchbot/internal/store"
)

var (
	// ErrInsufficientStock is the recoverable business condition: the caller
	// should prompt for an alternate selection.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrOverRelease means a release exceeded the reserved count. The workflow
	// never produces this on its own calls; seeing it signals a caller bug.
	ErrOverRelease = errors.New("inventory: release exceeds reserved")
	// ErrInvalidState means an adjustment would push total below reserved.
	ErrInvalidState = errors.New("inventory: total below reserved")
	// ErrConflict is returned when CAS retries are exhausted under contention.
	ErrConflict = errors.New("inventory: concurrent update conflict")
)

// maxCASAttempts bounds the optimistic retry loop per mutation.
const maxCASAttempts = 8

// Ledger owns the stock records. Every mutation is a compare-and-swap loop
// against the versioned store, so two concurrent reservations of the last
// unit can never both commit. Cross-variant operations never contend.
type Ledger struct {
	kv  store.KV
	log *zap.Logger
}

func NewLedger(kv store.KV, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{kv: kv, log: log}
}

// Reserve places a provisional hold of qty units. It either applies fully or
// not at all.
func (l *Ledger) Reserve(ctx context.Context, key VariantKey, qty uint32) error {
	return l.mutate(ctx, key, false, func(r *StockRecord) error {
		if r.Available() < qty {
			return ErrInsufficientStock
		}
		r.QtyReserved += qty
		return nil
	})
}

// Release returns qty previously reserved units. Releasing more than is
// reserved fails without touching the record.
func (l *Ledger) Release(ctx context.Context, key VariantKey, qty uint32) error {
	err := l.mutate(ctx, key, false, func(r *StockRecord) error {
		if r.QtyReserved < qty {
			return ErrOverRelease
		}
		r.QtyReserved -= qty
		return nil
	})
	if errors.Is(err, ErrOverRelease) {
		l.log.Error("over-release on variant, record left untouched",
			zap.String("variant", key.String()), zap.Uint32("qty", qty))
	}
	return err
}

// AdjustTotal shifts the total stock by delta (restock or write-off).
// The total can never drop below the reserved count.
func (l *Ledger) AdjustTotal(ctx context.Context, key VariantKey, delta int64) error {
	return l.mutate(ctx, key, true, func(r *StockRecord) error {
		next := int64(r.QtyTotal) + delta
		if next < int64(r.QtyReserved) || next < 0 {
			return ErrInvalidState
		}
		r.QtyTotal = uint32(next)
		return nil
	})
}

// SetTotal replaces the total stock outright, same floor rule as AdjustTotal.
func (l *Ledger) SetTotal(ctx context.Context, key VariantKey, total uint32) error {
	return l.mutate(ctx, key, true, func(r *StockRecord) error {
		if total < r.QtyReserved {
			return ErrInvalidState
		}
		r.QtyTotal = total
		return nil
	})
}

// Available reports how many units can still be reserved. Unknown variants
// read as zero.
func (l *Ledger) Available(ctx context.Context, key VariantKey) (uint32, error) {
	r, ok, err := l.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	return r.Available(), nil
}

func (l *Ledger) Get(ctx context.Context, key VariantKey) (StockRecord, bool, error) {
	e, err := l.kv.Get(ctx, key.storeKey())
	if errors.Is(err, store.ErrNotFound) {
		return StockRecord{}, false, nil
	}
	if err != nil {
		return StockRecord{}, false, err
	}
	r, err := decodeRecord(e.Value)
	return r, err == nil, err
}

// List returns every stock record, ordered by canonical size then color.
func (l *Ledger) List(ctx context.Context) ([]StockRecord, error) {
	entries, err := l.kv.List(ctx, stockPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]StockRecord, 0, len(entries))
	for _, e := range entries {
		r, err := decodeRecord(e.Value)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Key, err)
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if oa, ob := catalog.SizeOrder(a.Size), catalog.SizeOrder(b.Size); oa != ob {
			return oa < ob
		}
		return a.Color < b.Color
	})
	return out, nil
}

// LowStock returns variants at or below the availability threshold.
func (l *Ledger) LowStock(ctx context.Context, threshold uint32) ([]StockRecord, error) {
	all, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	var low []StockRecord
	for _, r := range all {
		if r.Available() <= threshold {
			low = append(low, r)
		}
	}
	return low, nil
}

// Report renders a plain-text stock report grouped by size.
func (l *Ledger) Report(ctx context.Context) (string, error) {
	all, err := l.List(ctx)
	if err != nil {
		return "", err
	}
	if len(all) == 0 {
		return "stock report: no records\n", nil
	}
	var b strings.Builder
	b.WriteString("stock report\n")
	lastSize := ""
	for _, r := range all {
		if r.Key.Size != lastSize {
			fmt.Fprintf(&b, "%s:\n", r.Key.Size)
			lastSize = r.Key.Size
		}
		fmt.Fprintf(&b, "  %-12s %d/%d (reserved %d)\n",
			r.Key.Color, r.Available(), r.QtyTotal, r.QtyReserved)
	}
	return b.String(), nil
}

// mutate runs fn inside a bounded CAS loop. When create is false, a missing
// record rejects a reserve as out of stock and a release as over-release
// rather than materializing an empty record.
func (l *Ledger) mutate(ctx context.Context, key VariantKey, create bool, fn func(*StockRecord) error) error {
	sk := key.storeKey()
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		e, err := l.kv.Get(ctx, sk)
		var rec StockRecord
		var expect uint64
		switch {
		case errors.Is(err, store.ErrNotFound):
			if !create {
				// No record means nothing to reserve or release; apply fn to
				// a zero record so the caller gets the precise error.
				return fn(&rec)
			}
			rec = StockRecord{Key: key}
		case err != nil:
			return err
		default:
			if rec, err = decodeRecord(e.Value); err != nil {
				return fmt.Errorf("decode %s: %w", sk, err)
			}
			expect = e.Version
		}

		if err := fn(&rec); err != nil {
			return err
		}
		if rec.QtyReserved > rec.QtyTotal {
			// Unreachable through the public operations; refuse to persist.
			return ErrInvalidState
		}

		b, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		_, err = l.kv.Put(ctx, sk, b, expect)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrVersionMismatch) {
			return err
		}
		// Lost the race on this variant, reread and retry.
	}
	l.log.Warn("CAS retries exhausted", zap.String("variant", key.String()))
	return ErrConflict
}
