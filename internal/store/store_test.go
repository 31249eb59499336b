package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemory_PutCAS(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	v, err := s.Put(ctx, "k", []byte("a"), 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v != 1 {
		t.Fatalf("version after create = %d, want 1", v)
	}

	// Creating again must fail.
	if _, err := s.Put(ctx, "k", []byte("b"), 0); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("second create err = %v, want ErrVersionMismatch", err)
	}

	// Stale version must fail.
	if _, err := s.Put(ctx, "k", []byte("b"), 2); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("stale put err = %v, want ErrVersionMismatch", err)
	}

	v, err = s.Put(ctx, "k", []byte("b"), 1)
	if err != nil || v != 2 {
		t.Fatalf("cas put = (%d, %v), want (2, nil)", v, err)
	}

	e, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(e.Value) != "b" || e.Version != 2 {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestMemory_GetMissing(t *testing.T) {
	s := NewMemory()
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemory_ListPrefixSorted(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	for _, k := range []string{"stock/M/none", "stock/L/black", "order_seq", "stock/L/white"} {
		if _, err := s.Put(ctx, k, []byte("x"), 0); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	got, err := s.List(ctx, "stock/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"stock/L/black", "stock/L/white", "stock/M/none"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i, ke := range got {
		if ke.Key != want[i] {
			t.Fatalf("entry %d = %s, want %s", i, ke.Key, want[i])
		}
	}
}
