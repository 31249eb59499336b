package roles

import (
	"context"
	"testing"
)

func TestLimits_CanOrder(t *testing.T) {
	counts := map[string]int{"done": 1, "busy": 3}
	l := NewLimits([]string{"boss"}, 1, func(ctx context.Context, actorID string) (int, error) {
		return counts[actorID], nil
	})

	cases := []struct {
		actor string
		want  bool
	}{
		{"fresh", true},
		{"done", false},
		{"busy", false},
		{"boss", true}, // elevated, past orders irrelevant
	}
	for _, c := range cases {
		got, err := l.CanOrder(context.Background(), c.actor)
		if err != nil {
			t.Fatalf("%s: %v", c.actor, err)
		}
		if got != c.want {
			t.Fatalf("CanOrder(%s) = %v, want %v", c.actor, got, c.want)
		}
	}

	if !l.Elevated("boss") || l.Elevated("fresh") {
		t.Fatal("elevation lookup broken")
	}
}
