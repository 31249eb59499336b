package store

import (
	"context"
	"errors"
	"testing"
)

func TestPebble_RoundTripAndReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	p, err := NewPebble(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := p.Put(ctx, "k", []byte("a"), 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := p.Put(ctx, "k", []byte("b"), 1); err != nil {
		t.Fatalf("cas put: %v", err)
	}
	if _, err := p.Put(ctx, "k", []byte("c"), 1); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("stale put err = %v, want ErrVersionMismatch", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Versions must survive a reopen.
	p, err = NewPebble(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p.Close()

	e, err := p.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(e.Value) != "b" || e.Version != 2 {
		t.Fatalf("unexpected entry after reopen: %+v", e)
	}
}

func TestPebble_ListPrefix(t *testing.T) {
	ctx := context.Background()
	p, err := NewPebble(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer p.Close()

	for _, k := range []string{"a/1", "a/2", "b/1"} {
		if _, err := p.Put(ctx, k, []byte(k), 0); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	got, err := p.List(ctx, "a/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Key != "a/1" || got[1].Key != "a/2" {
		t.Fatalf("unexpected listing: %+v", got)
	}
}
