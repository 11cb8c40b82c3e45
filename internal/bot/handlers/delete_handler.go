package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"github.com/edgard/readwiser/internal/format"
	"github.com/edgard/readwiser/internal/metrics"
)

const deletedPreviewLen = 50

// NewDeleteHandler returns a handler for the /delete <id> command.
func NewDeleteHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "delete", deleteHandler{deps}.Handle)
}

type deleteHandler struct {
	deps HandlerDeps
}

func (h deleteHandler) Handle(ctx context.Context, m Messenger, ev Event) error {
	id, reply := parseQuoteID(ev.Args, "Usage: /delete <quote_id>")
	if reply != "" {
		return m.SendText(ctx, ev.ChatID, reply)
	}

	quote, err := h.deps.Store.GetQuote(ctx, ev.ChatID, id)
	if err != nil {
		return fmt.Errorf("failed to load quote: %w", err)
	}
	if quote == nil {
		return m.SendText(ctx, ev.ChatID, notFoundReply(id))
	}

	deleted, err := h.deps.Store.DeleteQuote(ctx, ev.ChatID, id)
	if err != nil {
		return fmt.Errorf("failed to delete quote: %w", err)
	}
	if !deleted {
		return m.SendText(ctx, ev.ChatID, "Failed to delete quote.")
	}
	metrics.QuoteDeleted()

	return m.SendText(ctx, ev.ChatID,
		fmt.Sprintf("Deleted quote #%d:\n\"%s\"", id, format.TruncateEllipsis(quote.Text, deletedPreviewLen)))
}
