package events

import (
	"encoding/json"
	"testing"

	"github.com/merchdesk/merchbot/internal/workflow"
)

func env(t *testing.T, eventType string, payload any) Envelope {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return Envelope{
		EventID:      "e1",
		EventType:    eventType,
		EventVersion: 1,
		ActorID:      "u1",
		ChannelID:    "dm1",
		Payload:      b,
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent(env(t, EventTextInput, TextInputPayload{Text: "/order"}))
	if err != nil {
		t.Fatalf("decode text: %v", err)
	}
	if got := ev.(workflow.TextInput); got.Text != "/order" {
		t.Fatalf("text = %+v", got)
	}

	ev, err = DecodeEvent(env(t, EventMediaInput, MediaInputPayload{FileRef: "file-1"}))
	if err != nil {
		t.Fatalf("decode media: %v", err)
	}
	if got := ev.(workflow.MediaInput); got.Ref != "file-1" {
		t.Fatalf("media = %+v", got)
	}

	ev, err = DecodeEvent(env(t, EventSelectionMade, SelectionPayload{Action: "pick_size", Value: "M"}))
	if err != nil {
		t.Fatalf("decode selection: %v", err)
	}
	if got := ev.(workflow.SelectionMade); got.Action != "pick_size" || got.Value != "M" {
		t.Fatalf("selection = %+v", got)
	}
}

func TestDecodeEvent_Unknown(t *testing.T) {
	if _, err := DecodeEvent(env(t, "Mystery", map[string]string{})); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}
