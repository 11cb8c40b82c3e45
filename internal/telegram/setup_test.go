package telegram

import (
	"context"
	"strings"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func TestApplyMiddlewareOrder(t *testing.T) {
	t.Parallel()

	var calls []string
	mark := func(name string) bot.Middleware {
		return func(next bot.HandlerFunc) bot.HandlerFunc {
			return func(ctx context.Context, b *bot.Bot, update *models.Update) {
				calls = append(calls, name)
				next(ctx, b, update)
			}
		}
	}
	handler := func(context.Context, *bot.Bot, *models.Update) { calls = append(calls, "handler") }

	applyMiddleware(handler, []bot.Middleware{mark("outer"), mark("inner")})(context.Background(), nil, &models.Update{})

	if got := strings.Join(calls, ","); got != "outer,inner,handler" {
		t.Errorf("call order = %s", got)
	}
}

func TestNewTelegramBotRejectsEmptyToken(t *testing.T) {
	t.Parallel()

	if _, err := NewTelegramBot("", nil); err == nil {
		t.Error("NewTelegramBot(\"\") returned nil error")
	}
	if err := RegisterHandlers(nil, nil, nil); err == nil {
		t.Error("RegisterHandlers(nil bot) returned nil error")
	}
}
