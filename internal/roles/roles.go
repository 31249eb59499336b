package roles

import "context"

// CompletedFunc reports how many orders an actor has already committed.
type CompletedFunc func(ctx context.Context, actorID string) (int, error)

// Limits is the capability predicate consumed by the workflow. Elevated
// actors order without limit; ordinary actors are capped at MaxOrders
// completed orders (default one).
type Limits struct {
	elevated  map[string]bool
	maxOrders int
	completed CompletedFunc
}

func NewLimits(elevatedIDs []string, maxOrders int, completed CompletedFunc) *Limits {
	if maxOrders <= 0 {
		maxOrders = 1
	}
	m := make(map[string]bool, len(elevatedIDs))
	for _, id := range elevatedIDs {
		m[id] = true
	}
	return &Limits{elevated: m, maxOrders: maxOrders, completed: completed}
}

func (l *Limits) Elevated(actorID string) bool { return l.elevated[actorID] }

func (l *Limits) CanOrder(ctx context.Context, actorID string) (bool, error) {
	if l.elevated[actorID] {
		return true, nil
	}
	n, err := l.completed(ctx, actorID)
	if err != nil {
		return false, err
	}
	return n < l.maxOrders, nil
}
