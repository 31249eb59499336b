package workflow

// Event is the closed set of normalized actor actions fed into the engine.
// The platform adapter translates transport updates into exactly these three.
type Event interface{ isEvent() }

// TextInput is a free-text message from the actor.
type TextInput struct {
	Text string
}

// MediaInput is an attached photo, carried as an opaque platform reference.
type MediaInput struct {
	Ref string
}

// SelectionMade is a menu action, optionally with a value (size, color,
// channel id).
type SelectionMade struct {
	Action string
	Value  string
}

func (TextInput) isEvent()     {}
func (MediaInput) isEvent()    {}
func (SelectionMade) isEvent() {}

// Menu actions understood by the engine.
const (
	ActionNewOrder      = "new_order"
	ActionStartOrder    = "order_start"
	ActionPickSize      = "pick_size"
	ActionPickColor     = "pick_color"
	ActionChangeSize    = "change_size"
	ActionChangeColor   = "change_color"
	ActionChangePhoto   = "change_photo"
	ActionPickChannels  = "pick_channels"
	ActionToggleChannel = "toggle_channel"
	ActionChannelsDone  = "channels_done"
	ActionConfirm       = "confirm"
	ActionCancel        = "cancel"
)

// CommandOrder is the text command that opens the order flow.
const CommandOrder = "/order"

// State names the conversation stages. Committed is terminal and leaves no
// stored draft behind, so it never appears as a Draft stage.
type State string

const (
	StateStart        State = "start"
	StatePickSize     State = "pick_size"
	StatePickColor    State = "pick_color"
	StateAwaitPhoto   State = "await_photo"
	StateReview       State = "review"
	StatePickChannels State = "pick_channels"
	StateConfirm      State = "confirm"
	StateRejected     State = "rejected"
)
