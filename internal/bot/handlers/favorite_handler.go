package handlers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"

	"github.com/edgard/readwiser/internal/format"
)

const (
	maxFavoritesShown = 10
	msgInvalidID      = "Invalid quote ID. Use a number."
)

// NewFavHandler returns a handler for the /fav <id> command.
func NewFavHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "fav", favoriteHandler{deps}.toggle)
}

// NewFavoritesHandler returns a handler for the /favorites command.
func NewFavoritesHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "favorites", favoriteHandler{deps}.list)
}

type favoriteHandler struct {
	deps HandlerDeps
}

func (h favoriteHandler) toggle(ctx context.Context, m Messenger, ev Event) error {
	id, reply := parseQuoteID(ev.Args, "Usage: /fav <quote_id>")
	if reply != "" {
		return m.SendText(ctx, ev.ChatID, reply)
	}

	favorite, found, err := h.deps.Store.ToggleFavorite(ctx, ev.ChatID, id)
	if err != nil {
		return fmt.Errorf("failed to toggle favorite: %w", err)
	}
	if !found {
		return m.SendText(ctx, ev.ChatID, notFoundReply(id))
	}

	status := "removed from"
	if favorite {
		status = "added to"
	}
	return m.SendText(ctx, ev.ChatID, fmt.Sprintf("Quote #%d %s favorites.", id, status))
}

func (h favoriteHandler) list(ctx context.Context, m Messenger, ev Event) error {
	quotes, err := h.deps.Store.ListFavorites(ctx, ev.ChatID)
	if err != nil {
		return fmt.Errorf("failed to list favorites: %w", err)
	}
	if len(quotes) == 0 {
		return m.SendText(ctx, ev.ChatID, "No favorite quotes yet. Use /fav <id> to add some!")
	}

	header := fmt.Sprintf("Your %d favorite quote(s):", len(quotes))
	shown := quotes
	if len(shown) > maxFavoritesShown {
		shown = shown[:maxFavoritesShown]
	}
	text := format.List(header, shown, h.deps.Clock.Now())
	if extra := len(quotes) - len(shown); extra > 0 {
		text = format.Truncate(fmt.Sprintf("%s... and %d more", text, extra), format.MaxMessageLength)
	}
	return m.SendText(ctx, ev.ChatID, text)
}

// parseQuoteID reads the quote id argument. When it cannot, reply holds the
// message to send instead.
func parseQuoteID(args []string, usage string) (id int64, reply string) {
	if len(args) == 0 {
		return 0, usage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, msgInvalidID
	}
	return id, ""
}

func notFoundReply(id int64) string {
	return fmt.Sprintf("Quote #%d not found.", id)
}
