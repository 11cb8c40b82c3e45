package handlers

import (
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RegisteredHandler represents a command handler with its description and middleware.
type RegisteredHandler struct {
	HandlerType bot.HandlerType
	Pattern     string
	Handler     bot.HandlerFunc
	Middleware  []bot.Middleware
	MatchType   bot.MatchType
	Description string
}

type commandSpec struct {
	name        string
	description string
	newHandler  func(HandlerDeps) bot.HandlerFunc
}

// commands is ordered as it should appear in the Telegram command menu.
var commands = []commandSpec{
	{"start", "Welcome and usage", NewStartHandler},
	{"help", "How to save quotes", NewHelpHandler},
	{"random", "Get a random quote", NewRandomHandler},
	{"last", "Show recently saved quotes", NewLastHandler},
	{"search", "Search in quotes", NewSearchHandler},
	{"tag", "Find quotes by tag", NewTagHandler},
	{"source", "Find quotes by source domain", NewSourceHandler},
	{"fav", "Toggle favorite", NewFavHandler},
	{"favorites", "Show all favorites", NewFavoritesHandler},
	{"delete", "Delete a quote", NewDeleteHandler},
	{"stats", "View your statistics", NewStatsHandler},
	{"export", "Export all quotes as JSON", NewExportHandler},
	{"digest", "Get your digest now", NewDigestHandler},
	{"digest_on", "Enable the weekly digest", NewDigestOnHandler},
	{"digest_off", "Disable the weekly digest", NewDigestOffHandler},
	{"daily_on", "Enable the quote of the day", NewDailyOnHandler},
	{"daily_off", "Disable the quote of the day", NewDailyOffHandler},
	{"cancel", "Clear pending URL", NewCancelHandler},
}

// RegisterAllCommands returns every bot command keyed by "/name".
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler, len(commands))
	middleware := []bot.Middleware{Recover(deps)}

	for _, c := range commands {
		handlers["/"+c.name] = RegisteredHandler{
			HandlerType: bot.HandlerTypeMessageText,
			Pattern:     c.name,
			Handler:     c.newHandler(deps),
			Middleware:  middleware,
			MatchType:   bot.MatchTypeCommandStartOnly,
			Description: c.description,
		}
	}

	return handlers
}

// MenuCommands returns the commands to publish with SetMyCommands, in menu order.
func MenuCommands() []models.BotCommand {
	menu := make([]models.BotCommand, 0, len(commands))
	for _, c := range commands {
		menu = append(menu, models.BotCommand{Command: c.name, Description: c.description})
	}
	return menu
}

// NewDefaultHandler returns the handler for messages no command matched.
func NewDefaultHandler(deps HandlerDeps) bot.HandlerFunc {
	return Recover(deps)(NewMessageHandler(deps))
}
