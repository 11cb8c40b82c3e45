package handlers

import (
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/readwiser/internal/config"
	"github.com/edgard/readwiser/internal/database"
	"github.com/edgard/readwiser/internal/digest"
	"github.com/edgard/readwiser/internal/metadata"
	"github.com/edgard/readwiser/internal/pending"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger  *slog.Logger
	Config  *config.Config
	Store   database.Store
	Pending *pending.Cache
	Fetcher metadata.Fetcher
	Digest  *digest.Service
	Clock   clockwork.Clock
	// NewMessenger wraps the bot that delivered an update into the reply interface.
	NewMessenger func(b *bot.Bot) Messenger
}
