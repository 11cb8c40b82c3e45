package telegram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/readwiser/internal/bot/handlers"
	"github.com/edgard/readwiser/internal/format"
)

// MaxTextLength is Telegram's limit for a text message, in characters.
const MaxTextLength = 4096

// Messenger sends plain text and documents through a bot.
type Messenger struct {
	b *bot.Bot
}

// NewMessenger wraps b.
func NewMessenger(b *bot.Bot) *Messenger {
	return &Messenger{b: b}
}

// HandlerMessenger adapts NewMessenger to the handlers.HandlerDeps factory.
func HandlerMessenger(b *bot.Bot) handlers.Messenger {
	return NewMessenger(b)
}

// SendText sends text, cut to the Telegram limit. Link previews are disabled
// so a quote's URL does not push the quote itself off screen.
func (m *Messenger) SendText(ctx context.Context, chatID int64, text string) error {
	disabled := true
	_, err := m.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:             chatID,
		Text:               format.Truncate(text, MaxTextLength),
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: &disabled},
	})
	if err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

// SendDocument uploads data as a file named filename.
func (m *Messenger) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	_, err := m.b.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   chatID,
		Document: &models.InputFileUpload{Filename: filename, Data: bytes.NewReader(data)},
		Caption:  caption,
	})
	if err != nil {
		return fmt.Errorf("failed to send document to chat %d: %w", chatID, err)
	}
	return nil
}
