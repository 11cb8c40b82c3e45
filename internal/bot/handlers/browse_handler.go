package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"

	"github.com/edgard/readwiser/internal/database"
	"github.com/edgard/readwiser/internal/format"
	"github.com/edgard/readwiser/internal/metrics"
)

const (
	defaultLastCount = 5
	maxLastCount     = 10
	shownResults     = 5
)

// NewRandomHandler returns a handler for the /random command.
func NewRandomHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "random", browseHandler{deps}.random)
}

// NewLastHandler returns a handler for the /last [n] command.
func NewLastHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "last", browseHandler{deps}.last)
}

// NewSearchHandler returns a handler for the /search <keyword> command.
func NewSearchHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "search", browseHandler{deps}.search)
}

// NewTagHandler returns a handler for the /tag <name> command.
func NewTagHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "tag", browseHandler{deps}.tag)
}

// NewSourceHandler returns a handler for the /source <domain> command.
func NewSourceHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "source", browseHandler{deps}.source)
}

// browseHandler implements the read-only quote listing commands.
type browseHandler struct {
	deps HandlerDeps
}

func (h browseHandler) random(ctx context.Context, m Messenger, ev Event) error {
	quotes, err := h.deps.Store.SelectRandom(ctx, ev.ChatID, 1, true)
	if err != nil {
		return fmt.Errorf("failed to select random quote: %w", err)
	}
	metrics.QuotesSelected(true, len(quotes))
	if len(quotes) == 0 {
		return m.SendText(ctx, ev.ChatID, "No quotes saved yet. Send me some!")
	}
	return m.SendText(ctx, ev.ChatID, format.Truncate(format.Quote(quotes[0], true, h.deps.Clock.Now()), format.MaxMessageLength))
}

func (h browseHandler) last(ctx context.Context, m Messenger, ev Event) error {
	n := defaultLastCount
	if len(ev.Args) > 0 {
		if v, err := strconv.Atoi(ev.Args[0]); err == nil {
			n = min(max(v, 1), maxLastCount)
		}
	}

	quotes, err := h.deps.Store.ListRecent(ctx, ev.ChatID, n)
	if err != nil {
		return fmt.Errorf("failed to list recent quotes: %w", err)
	}
	if len(quotes) == 0 {
		return m.SendText(ctx, ev.ChatID, "No quotes saved yet.")
	}
	header := fmt.Sprintf("Last %d quote(s):", len(quotes))
	return m.SendText(ctx, ev.ChatID, format.List(header, quotes, h.deps.Clock.Now()))
}

func (h browseHandler) search(ctx context.Context, m Messenger, ev Event) error {
	if len(ev.Args) == 0 {
		return m.SendText(ctx, ev.ChatID, "Usage: /search <keyword>")
	}
	keyword := strings.Join(ev.Args, " ")

	quotes, err := h.deps.Store.SearchQuotes(ctx, ev.ChatID, keyword)
	if err != nil {
		return fmt.Errorf("failed to search quotes: %w", err)
	}
	if len(quotes) == 0 {
		return m.SendText(ctx, ev.ChatID, fmt.Sprintf("No quotes found containing \"%s\"", keyword))
	}
	return h.sendResults(ctx, m, ev.ChatID, fmt.Sprintf("Found %d quote(s) for \"%s\":", len(quotes), keyword), quotes)
}

func (h browseHandler) tag(ctx context.Context, m Messenger, ev Event) error {
	if len(ev.Args) == 0 {
		return m.SendText(ctx, ev.ChatID, "Usage: /tag <tagname>")
	}
	tag := strings.ToLower(strings.TrimLeft(ev.Args[0], "#"))
	if tag == "" {
		return m.SendText(ctx, ev.ChatID, "Usage: /tag <tagname>")
	}

	quotes, err := h.deps.Store.QuotesByTag(ctx, ev.ChatID, tag)
	if err != nil {
		return fmt.Errorf("failed to list quotes by tag: %w", err)
	}
	if len(quotes) == 0 {
		return m.SendText(ctx, ev.ChatID, "No quotes found with tag #"+tag)
	}
	return h.sendResults(ctx, m, ev.ChatID, fmt.Sprintf("Found %d quote(s) with #%s:", len(quotes), tag), quotes)
}

func (h browseHandler) source(ctx context.Context, m Messenger, ev Event) error {
	if len(ev.Args) == 0 {
		return m.SendText(ctx, ev.ChatID, "Usage: /source <domain>")
	}
	domain := ev.Args[0]

	quotes, err := h.deps.Store.QuotesBySource(ctx, ev.ChatID, domain)
	if err != nil {
		return fmt.Errorf("failed to list quotes by source: %w", err)
	}
	if len(quotes) == 0 {
		return m.SendText(ctx, ev.ChatID, "No quotes found from "+domain)
	}
	return h.sendResults(ctx, m, ev.ChatID, fmt.Sprintf("Found %d quote(s) from %s:", len(quotes), domain), quotes)
}

// sendResults shows the first few matches under a header that counts all of them.
func (h browseHandler) sendResults(ctx context.Context, m Messenger, chatID int64, header string, quotes []database.Quote) error {
	if len(quotes) > shownResults {
		quotes = quotes[:shownResults]
	}
	return m.SendText(ctx, chatID, format.List(header, quotes, h.deps.Clock.Now()))
}
