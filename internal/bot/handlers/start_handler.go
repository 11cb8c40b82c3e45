package handlers

import (
	"context"

	"github.com/go-telegram/bot"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "start", welcomeHandler{deps}.Handle)
}

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "help", welcomeHandler{deps}.Handle)
}

// welcomeHandler answers /start and /help with the configured welcome text.
type welcomeHandler struct {
	deps HandlerDeps
}

func (h welcomeHandler) Handle(ctx context.Context, m Messenger, ev Event) error {
	return m.SendText(ctx, ev.ChatID, h.deps.Config.Messages.Welcome)
}
