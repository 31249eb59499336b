package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/merchdesk/merchbot/internal/inventory"
)

// Actor-facing copy. Always an actionable prompt; internal error codes never
// leak here.
const (
	msgWelcome      = "Merch order assistant.\nWe will walk you through size, photo and destination channels."
	msgLimitReached = "You have already placed your order. Ask a coordinator if you need another one."
	msgCancelled    = "Order cancelled. Nothing was reserved."
	msgPhotoHint    = "Please attach the reference photo as an image."
	msgNoChannels   = "Select at least one channel before continuing."
	msgOutOfStock   = "That variant just ran out. Try another size or color."
	msgTryAgain     = "Something went wrong on our side. Please press confirm again."
	msgUseButtons   = "Please use the buttons of the current step."
)

func backActions() []Action {
	return []Action{{Label: "Cancel", Action: ActionCancel}}
}

func retryActions() []Action {
	return []Action{
		{Label: "Change size", Action: ActionChangeSize},
		{Label: "Change color", Action: ActionChangeColor},
		{Label: "Cancel", Action: ActionCancel},
	}
}

func confirmActions() []Action {
	return []Action{
		{Label: "Confirm order", Action: ActionConfirm},
		{Label: "Cancel", Action: ActionCancel},
	}
}

func (e *Engine) renderStart(ctx context.Context, f *flow) error {
	return e.presenter.Render(ctx, f.channelID, msgWelcome, []Action{
		{Label: "Make an order", Action: ActionStartOrder},
		{Label: "Cancel", Action: ActionCancel},
	})
}

func (e *Engine) renderPickSize(ctx context.Context, f *flow) error {
	var b strings.Builder
	b.WriteString("Pick a size:\n")
	actions := make([]Action, 0, len(e.catalog.Sizes())+1)
	for _, size := range e.catalog.Sizes() {
		avail := e.sizeAvailability(ctx, size)
		fmt.Fprintf(&b, "%s: %d left\n", size, avail)
		actions = append(actions, Action{
			Label:  fmt.Sprintf("%s (%d)", size, avail),
			Action: ActionPickSize,
			Value:  size,
		})
	}
	actions = append(actions, Action{Label: "Cancel", Action: ActionCancel})
	return e.presenter.Render(ctx, f.channelID, b.String(), actions)
}

// sizeAvailability sums availability across the size's colors, or reads the
// colorless variant directly.
func (e *Engine) sizeAvailability(ctx context.Context, size string) uint32 {
	colors := e.catalog.Colors(size)
	if len(colors) == 0 {
		n, err := e.ledger.Available(ctx, inventory.NewVariantKey(size, ""))
		if err != nil {
			return 0
		}
		return n
	}
	var total uint32
	for _, color := range colors {
		n, err := e.ledger.Available(ctx, inventory.NewVariantKey(size, color))
		if err != nil {
			continue
		}
		total += n
	}
	return total
}

func (e *Engine) renderPickColor(ctx context.Context, f *flow) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Pick a color for %s:\n", f.draft.Size)
	var actions []Action
	for _, color := range e.catalog.Colors(f.draft.Size) {
		n, err := e.ledger.Available(ctx, inventory.NewVariantKey(f.draft.Size, color))
		if err != nil {
			n = 0
		}
		fmt.Fprintf(&b, "%s: %d left\n", color, n)
		actions = append(actions, Action{
			Label:  fmt.Sprintf("%s (%d)", color, n),
			Action: ActionPickColor,
			Value:  color,
		})
	}
	actions = append(actions, Action{Label: "Cancel", Action: ActionCancel})
	return e.presenter.Render(ctx, f.channelID, b.String(), actions)
}

func (e *Engine) renderAwaitPhoto(ctx context.Context, f *flow) error {
	return e.presenter.Render(ctx, f.channelID,
		"Send the reference photo for your order.", backActions())
}

func (e *Engine) renderReview(ctx context.Context, f *flow) error {
	return e.presenter.Render(ctx, f.channelID,
		"Review your order:\n"+e.draftSummary(f),
		[]Action{
			{Label: "Change size", Action: ActionChangeSize},
			{Label: "Change color", Action: ActionChangeColor},
			{Label: "Change photo", Action: ActionChangePhoto},
			{Label: "Select channels", Action: ActionPickChannels},
			{Label: "Cancel", Action: ActionCancel},
		})
}

func (e *Engine) renderPickChannels(ctx context.Context, f *flow) error {
	chans, err := e.channels.Active(ctx)
	if err != nil {
		return fmt.Errorf("channel directory: %w", err)
	}
	var b strings.Builder
	b.WriteString("Where should the order be posted?\n")
	var actions []Action
	for _, ch := range chans {
		mark := "[ ]"
		if f.draft.Channels[ch.ID] {
			mark = "[x]"
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", mark, ch.Title, ch.Prefix)
		actions = append(actions, Action{
			Label:  fmt.Sprintf("%s %s", mark, ch.Title),
			Action: ActionToggleChannel,
			Value:  ch.ID,
		})
	}
	actions = append(actions,
		Action{Label: "Done", Action: ActionChannelsDone},
		Action{Label: "Cancel", Action: ActionCancel},
	)
	return e.presenter.Render(ctx, f.channelID, b.String(), actions)
}

func (e *Engine) renderConfirm(ctx context.Context, f *flow) error {
	ids := make([]string, 0, len(f.draft.Channels))
	for id := range f.draft.Channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	content := "Confirm your order:\n" + e.draftSummary(f) +
		"Channels: " + strings.Join(ids, ", ") + "\n" +
		"The order will be posted to every selected channel."
	return e.presenter.Render(ctx, f.channelID, content, confirmActions())
}

func (e *Engine) renderReceipt(ctx context.Context, f *flow, id uint64) error {
	return e.presenter.Render(ctx, f.channelID,
		fmt.Sprintf("Order #%d is on its way to the selected channels.\n%s", id, e.draftSummary(f)),
		[]Action{{Label: "New order", Action: ActionNewOrder}})
}

func (e *Engine) draftSummary(f *flow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Size: %s\n", f.draft.Size)
	if f.draft.Color != "" && f.draft.Color != inventory.ColorNone {
		fmt.Fprintf(&b, "Color: %s\n", f.draft.Color)
	}
	if f.draft.PhotoRef != "" {
		b.WriteString("Photo: attached\n")
	}
	return b.String()
}
