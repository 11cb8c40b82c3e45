package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
)

const exportFilename = "readwiser_quotes.json"

// NewExportHandler returns a handler for the /export command.
func NewExportHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "export", exportHandler{deps}.Handle)
}

type exportHandler struct {
	deps HandlerDeps
}

func (h exportHandler) Handle(ctx context.Context, m Messenger, ev Event) error {
	count, err := h.deps.Store.CountQuotes(ctx, ev.ChatID)
	if err != nil {
		return fmt.Errorf("failed to count quotes: %w", err)
	}
	if count == 0 {
		return m.SendText(ctx, ev.ChatID, "No quotes to export.")
	}

	data, err := h.deps.Store.ExportAll(ctx, ev.ChatID)
	if err != nil {
		return fmt.Errorf("failed to export quotes: %w", err)
	}
	return m.SendDocument(ctx, ev.ChatID, exportFilename, data, fmt.Sprintf("Exported %d quotes", count))
}
