package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
)

const (
	statsWindow  = 7 * 24 * time.Hour
	statsTopTags = 5
)

// NewStatsHandler returns a handler for the /stats command.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "stats", statsHandler{deps}.Handle)
}

type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) Handle(ctx context.Context, m Messenger, ev Event) error {
	store := h.deps.Store

	total, err := store.CountQuotes(ctx, ev.ChatID)
	if err != nil {
		return fmt.Errorf("failed to count quotes: %w", err)
	}
	thisWeek, err := store.CountQuotesSince(ctx, ev.ChatID, h.deps.Clock.Now().Add(-statsWindow))
	if err != nil {
		return fmt.Errorf("failed to count recent quotes: %w", err)
	}
	favorites, err := store.CountFavorites(ctx, ev.ChatID)
	if err != nil {
		return fmt.Errorf("failed to count favorites: %w", err)
	}
	tags, err := store.TopTags(ctx, ev.ChatID, statsTopTags)
	if err != nil {
		return fmt.Errorf("failed to load top tags: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your ReadWiser Stats\n\nTotal quotes: %d\nAdded this week: %d\nFavorites: %d", total, thisWeek, favorites)
	if len(tags) > 0 {
		b.WriteString("\n\nTop tags:")
		for _, t := range tags {
			fmt.Fprintf(&b, "\n  #%s: %d", t.Tag, t.Count)
		}
	}
	return m.SendText(ctx, ev.ChatID, b.String())
}
