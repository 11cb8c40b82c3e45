package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
)

// NewDigestHandler returns a handler for the /digest command.
func NewDigestHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "digest", digestHandler{deps}.Handle)
}

type digestHandler struct {
	deps HandlerDeps
}

func (h digestHandler) Handle(ctx context.Context, m Messenger, ev Event) error {
	text, err := h.deps.Digest.BuildDigest(ctx, ev.ChatID)
	if err != nil {
		return err
	}
	return m.SendText(ctx, ev.ChatID, text)
}

// NewDigestOnHandler returns a handler for the /digest_on command.
func NewDigestOnHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "digest_on", scheduleHandler{deps}.digest(true))
}

// NewDigestOffHandler returns a handler for the /digest_off command.
func NewDigestOffHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "digest_off", scheduleHandler{deps}.digest(false))
}

// NewDailyOnHandler returns a handler for the /daily_on command.
func NewDailyOnHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "daily_on", scheduleHandler{deps}.daily(true))
}

// NewDailyOffHandler returns a handler for the /daily_off command.
func NewDailyOffHandler(deps HandlerDeps) bot.HandlerFunc {
	return Adapt(deps, "daily_off", scheduleHandler{deps}.daily(false))
}

// scheduleHandler flips the per-user opt-in flags of the scheduled jobs.
type scheduleHandler struct {
	deps HandlerDeps
}

func (h scheduleHandler) digest(enabled bool) Command {
	return func(ctx context.Context, m Messenger, ev Event) error {
		if err := h.deps.Store.SetDigestEnabled(ctx, ev.ChatID, enabled); err != nil {
			return fmt.Errorf("failed to update digest setting: %w", err)
		}
		if enabled {
			return m.SendText(ctx, ev.ChatID, "Weekly digest enabled.")
		}
		return m.SendText(ctx, ev.ChatID, "Weekly digest disabled. Use /digest_on to turn it back on.")
	}
}

func (h scheduleHandler) daily(enabled bool) Command {
	return func(ctx context.Context, m Messenger, ev Event) error {
		if err := h.deps.Store.SetDailyQuoteEnabled(ctx, ev.ChatID, enabled); err != nil {
			return fmt.Errorf("failed to update daily quote setting: %w", err)
		}
		if enabled {
			return m.SendText(ctx, ev.ChatID, "Quote of the day enabled.")
		}
		return m.SendText(ctx, ev.ChatID, "Quote of the day disabled. Use /daily_on to turn it back on.")
	}
}
