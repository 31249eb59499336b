package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/merchdesk/merchbot/internal/store"
)

func newTestLedger() *Ledger {
	return NewLedger(store.NewMemory(), nil)
}

func mustSetTotal(t *testing.T, l *Ledger, key VariantKey, total uint32) {
	t.Helper()
	if err := l.SetTotal(context.Background(), key, total); err != nil {
		t.Fatalf("set total %s: %v", key, err)
	}
}

func TestLedger_ReserveRelease(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	key := NewVariantKey("M", "black")
	mustSetTotal(t, l, key, 3)

	if err := l.Reserve(ctx, key, 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	avail, err := l.Available(ctx, key)
	if err != nil || avail != 1 {
		t.Fatalf("available = (%d, %v), want (1, nil)", avail, err)
	}

	// One unit left, asking for two must fail atomically.
	if err := l.Reserve(ctx, key, 2); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("over-reserve err = %v, want ErrInsufficientStock", err)
	}
	rec, ok, err := l.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if rec.QtyReserved != 2 {
		t.Fatalf("reserved = %d after failed reserve, want 2", rec.QtyReserved)
	}

	if err := l.Release(ctx, key, 1); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := l.Release(ctx, key, 2); !errors.Is(err, ErrOverRelease) {
		t.Fatalf("over-release err = %v, want ErrOverRelease", err)
	}
	rec, _, _ = l.Get(ctx, key)
	if rec.QtyReserved != 1 || rec.QtyTotal != 3 {
		t.Fatalf("record after over-release attempt: %+v", rec)
	}
}

func TestLedger_UnknownVariant(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	key := NewVariantKey("XL", "")

	if err := l.Reserve(ctx, key, 1); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("reserve unknown err = %v, want ErrInsufficientStock", err)
	}
	if err := l.Release(ctx, key, 1); !errors.Is(err, ErrOverRelease) {
		t.Fatalf("release unknown err = %v, want ErrOverRelease", err)
	}
	// Failed operations must not materialize a record.
	if _, ok, err := l.Get(ctx, key); ok || err != nil {
		t.Fatalf("get after failed ops: ok=%v err=%v", ok, err)
	}
	avail, err := l.Available(ctx, key)
	if err != nil || avail != 0 {
		t.Fatalf("available unknown = (%d, %v), want (0, nil)", avail, err)
	}
}

func TestLedger_TotalFloor(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	key := NewVariantKey("S", "white")
	mustSetTotal(t, l, key, 5)
	if err := l.Reserve(ctx, key, 4); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := l.SetTotal(ctx, key, 3); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("set total below reserved err = %v, want ErrInvalidState", err)
	}
	if err := l.AdjustTotal(ctx, key, -2); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("adjust below reserved err = %v, want ErrInvalidState", err)
	}
	if err := l.AdjustTotal(ctx, key, -1); err != nil {
		t.Fatalf("adjust to floor: %v", err)
	}
	rec, _, _ := l.Get(ctx, key)
	if rec.QtyTotal != 4 || rec.QtyReserved != 4 || rec.Available() != 0 {
		t.Fatalf("record at floor: %+v", rec)
	}
}

func TestLedger_ListOrder(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	mustSetTotal(t, l, NewVariantKey("XL", "black"), 1)
	mustSetTotal(t, l, NewVariantKey("S", "white"), 1)
	mustSetTotal(t, l, NewVariantKey("S", "black"), 1)
	mustSetTotal(t, l, NewVariantKey("3XS", ""), 1)

	recs, err := l.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []string
	for _, r := range recs {
		got = append(got, r.Key.Size+"/"+r.Key.Color)
	}
	want := []string{"3XS/none", "S/black", "S/white", "XL/black"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLedger_LowStock(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	a := NewVariantKey("M", "black")
	b := NewVariantKey("L", "black")
	mustSetTotal(t, l, a, 10)
	mustSetTotal(t, l, b, 3)
	if err := l.Reserve(ctx, b, 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	low, err := l.LowStock(ctx, 2)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(low) != 1 || low[0].Key != b {
		t.Fatalf("low stock = %+v, want only %s", low, b)
	}
}
