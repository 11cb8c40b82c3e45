// Package handlers contains the Telegram command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Messenger sends replies to a chat.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error
}

// Event is an inbound chat message reduced to what commands need.
// Command is empty for plain text; Args are the whitespace separated words after it.
type Event struct {
	ChatID    int64
	Username  string
	FirstName string
	Text      string
	Command   string
	Args      []string
}

// Command handles one event. A returned error is logged and answered with the
// general error message, so commands reply themselves only on success paths.
type Command func(ctx context.Context, m Messenger, ev Event) error

// Adapt turns a Command into a bot.HandlerFunc. The sender is registered
// before the command runs.
func Adapt(deps HandlerDeps, name string, cmd Command) bot.HandlerFunc {
	log := deps.Logger.With("handler", name)

	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			log.DebugContext(ctx, "Ignoring update without message or sender", "update_id", update.ID)
			return
		}

		ev := newEvent(update.Message)
		m := deps.NewMessenger(b)

		created, err := deps.Store.RegisterUser(ctx, ev.ChatID, ev.Username, ev.FirstName)
		if err != nil {
			log.ErrorContext(ctx, "Failed to register user", "error", err, "chat_id", ev.ChatID)
			replyGeneralError(ctx, deps, log, m, ev.ChatID)
			return
		}
		if created {
			log.InfoContext(ctx, "Registered new user", "chat_id", ev.ChatID, "username", ev.Username)
		}

		if err := cmd(ctx, m, ev); err != nil {
			log.ErrorContext(ctx, "Command failed", "error", err, "chat_id", ev.ChatID, "command", ev.Command)
			replyGeneralError(ctx, deps, log, m, ev.ChatID)
		}
	}
}

func replyGeneralError(ctx context.Context, deps HandlerDeps, log *slog.Logger, m Messenger, chatID int64) {
	if err := m.SendText(ctx, chatID, deps.Config.Messages.GeneralError); err != nil {
		log.ErrorContext(ctx, "Failed to send error reply", "error", err, "chat_id", chatID)
	}
}

func newEvent(msg *models.Message) Event {
	ev := Event{
		ChatID:    msg.Chat.ID,
		Username:  msg.From.Username,
		FirstName: msg.From.FirstName,
		Text:      msg.Text,
	}
	ev.Command, ev.Args = parseCommand(msg.Text)
	return ev
}

// parseCommand splits "/last@ReadWiserBot 20" into "last" and ["20"].
// Text that does not start with a slash has no command.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), fields[1:]
}
