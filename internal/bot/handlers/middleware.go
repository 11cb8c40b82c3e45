package handlers

import (
	"context"
	"runtime/debug"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Recover creates a middleware that turns a panicking handler into a logged
// error and a general error reply, so one bad update cannot stop polling.
func Recover(deps HandlerDeps) bot.Middleware {
	log := deps.Logger.With("middleware", "Recover")

	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				log.ErrorContext(ctx, "Handler panicked", "panic", r, "update_id", update.ID, "stack", string(debug.Stack()))
				if update.Message != nil {
					replyGeneralError(ctx, deps, log, deps.NewMessenger(b), update.Message.Chat.ID)
				}
			}()
			next(ctx, b, update)
		}
	}
}
