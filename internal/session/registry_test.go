package session

import (
	"context"
	"testing"
)

func TestMemory_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, ok, err := m.Get(ctx, "u1"); ok || err != nil {
		t.Fatalf("get before put: ok=%v err=%v", ok, err)
	}

	d := Draft{ActorID: "u1", Size: "M", Stage: "review"}
	if err := m.Put(ctx, d); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := m.Get(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Size != "M" || got.Stage != "review" {
		t.Fatalf("unexpected draft: %+v", got)
	}

	if err := m.Delete(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "u1"); ok {
		t.Fatal("draft survived delete")
	}
	// Deleting again is a no-op.
	if err := m.Delete(ctx, "u1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestDraft_ToggleChannel(t *testing.T) {
	var d Draft
	d.ToggleChannel("c1")
	if !d.Channels["c1"] {
		t.Fatalf("channels after toggle on: %+v", d.Channels)
	}
	d.ToggleChannel("c2")
	d.ToggleChannel("c1")
	if d.Channels["c1"] || !d.Channels["c2"] || len(d.Channels) != 1 {
		t.Fatalf("channels after toggle off: %+v", d.Channels)
	}
}
