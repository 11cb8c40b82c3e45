package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"

	"github.com/edgard/readwiser/internal/database"
	"github.com/edgard/readwiser/internal/format"
	"github.com/edgard/readwiser/internal/metadata"
	"github.com/edgard/readwiser/internal/metrics"
	"github.com/edgard/readwiser/internal/parser"
	"github.com/edgard/readwiser/internal/pending"
)

const (
	duplicateWindow  = time.Minute
	savedPreviewLen  = 100
	msgNoQuote       = "I couldn't find a quote in your message. Send me some text to save!"
	msgDuplicate     = "This quote was already saved recently."
	msgUnknownCmd    = "Unknown command. Use /help to see what I can do."
	msgPendingClear  = "Pending URL cleared."
	msgNothingCancel = "Nothing to cancel."
)

// NewMessageHandler returns the handler for plain text: it stores links and saves quotes.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "message", messageHandler{deps}.Handle)
}

// messageHandler classifies free text and runs the link / quote save flow.
type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, m Messenger, ev Event) error {
	// Stickers, photos without caption and service messages carry no text.
	if ev.Text == "" {
		return nil
	}
	if ev.Command != "" {
		return m.SendText(ctx, ev.ChatID, msgUnknownCmd)
	}

	msg := parser.Classify(ev.Text)
	h.deps.Logger.DebugContext(ctx, "Message classified", "chat_id", ev.ChatID, "kind", msg.Kind().String(), "tags", len(msg.Tags))
	switch msg.Kind() {
	case parser.KindURLOnly:
		return h.storeLink(ctx, m, ev.ChatID, msg.URL)
	case parser.KindEmpty:
		return m.SendText(ctx, ev.ChatID, msgNoQuote)
	}

	duplicate, err := h.deps.Store.IsDuplicate(ctx, ev.ChatID, msg.Quote, duplicateWindow)
	if err != nil {
		return fmt.Errorf("failed to check duplicate: %w", err)
	}
	if duplicate {
		return m.SendText(ctx, ev.ChatID, msgDuplicate)
	}

	quote := database.NewQuote{Text: msg.Quote, Tags: msg.Tags}
	if msg.URL != "" {
		md := h.fetchMetadata(ctx, msg.URL)
		h.deps.Pending.Clear(ev.ChatID)
		quote.URL, quote.Title, quote.Author, quote.Domain = msg.URL, md.Title, md.Author, md.Domain
	} else if entry, ok := h.deps.Pending.Take(ev.ChatID); ok {
		quote.URL, quote.Title, quote.Author, quote.Domain = entry.URL, entry.Title, entry.Author, entry.Domain
	}

	id, err := h.deps.Store.SaveQuote(ctx, ev.ChatID, quote)
	if err != nil {
		if errors.Is(err, database.ErrEmptyText) {
			return m.SendText(ctx, ev.ChatID, msgNoQuote)
		}
		return fmt.Errorf("failed to save quote: %w", err)
	}
	metrics.QuoteSaved()

	return m.SendText(ctx, ev.ChatID, savedReply(id, quote))
}

func (h messageHandler) storeLink(ctx context.Context, m Messenger, chatID int64, rawURL string) error {
	md := h.fetchMetadata(ctx, rawURL)
	h.deps.Pending.Set(chatID, pending.Entry{
		URL:    rawURL,
		Title:  md.Title,
		Author: md.Author,
		Domain: md.Domain,
	})

	var b strings.Builder
	b.WriteString("Got the link!")
	switch {
	case md.Title != "":
		fmt.Fprintf(&b, "\n\"%s\"", md.Title)
		if md.Domain != "" {
			fmt.Fprintf(&b, " (%s)", md.Domain)
		}
	case md.Domain != "":
		fmt.Fprintf(&b, "\n(%s)", md.Domain)
	}
	fmt.Fprintf(&b, "\n\nNow send me the quote from this article.\n(Link expires in %s, /cancel to clear)",
		expiresIn(h.deps.Pending.TTL()))

	return m.SendText(ctx, chatID, b.String())
}

// expiresIn renders whole minutes as "N min" and anything else as a duration.
func expiresIn(ttl time.Duration) string {
	if ttl >= time.Minute && ttl%time.Minute == 0 {
		return fmt.Sprintf("%d min", int(ttl/time.Minute))
	}
	return ttl.Round(time.Second).String()
}

// fetchMetadata never fails: on error the domain-only result is used.
func (h messageHandler) fetchMetadata(ctx context.Context, rawURL string) metadata.Metadata {
	md, err := h.deps.Fetcher.Fetch(ctx, rawURL)
	metrics.MetadataFetch(err)
	if err != nil {
		h.deps.Logger.WarnContext(ctx, "Failed to fetch article metadata", "error", err, "domain", md.Domain)
	}
	return md
}

func savedReply(id int64, q database.NewQuote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Saved (#%d): \"%s\"", id, format.TruncateEllipsis(q.Text, savedPreviewLen))

	if q.Title != "" || q.Domain != "" {
		source := q.Title
		if source == "" {
			source = q.Domain
		}
		switch {
		case q.Author != "":
			source += " by " + q.Author
		case q.Title != "" && q.Domain != "":
			source += " (" + q.Domain + ")"
		}
		b.WriteString("\nFrom: " + source)
	}

	if len(q.Tags) > 0 {
		b.WriteString("\nTags: #" + strings.Join(q.Tags, " #"))
	}
	return b.String()
}

// NewCancelHandler returns a handler for the /cancel command.
func NewCancelHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "cancel", cancelHandler{deps}.Handle)
}

type cancelHandler struct {
	deps HandlerDeps
}

func (h cancelHandler) Handle(ctx context.Context, m Messenger, ev Event) error {
	if h.deps.Pending.Clear(ev.ChatID) {
		return m.SendText(ctx, ev.ChatID, msgPendingClear)
	}
	return m.SendText(ctx, ev.ChatID, msgNothingCancel)
}
