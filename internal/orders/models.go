package orders

import "time"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered: {StatusCancelled: true},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Order is a committed merch order. Created exactly once at confirmation,
// append-only afterward except Status and Deliveries.
type Order struct {
	ID         uint64     `json:"id"`
	ActorID    string     `json:"actor_id"`
	Size       string     `json:"size"`
	Color      string     `json:"color"`
	PhotoRef   string     `json:"photo_ref"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	Deliveries []Delivery `json:"deliveries,omitempty"`
}

// Delivery records one successful fan-out of the order to a channel.
type Delivery struct {
	ChannelID  string    `json:"channel_id"`
	Prefix     string    `json:"prefix"`
	MessageRef string    `json:"message_ref"`
	SentAt     time.Time `json:"sent_at"`
}
