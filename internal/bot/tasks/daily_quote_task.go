package tasks

import (
	"context"
	"fmt"
)

// newDailyQuoteTask creates the quote-of-the-day task.
func newDailyQuoteTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "daily_quote")

	return func(ctx context.Context) error {
		result, err := deps.Digest.SendDailyQuoteToAll(ctx)
		if err != nil {
			log.ErrorContext(ctx, "Daily quote run failed", "error", err)
			return fmt.Errorf("daily quote run failed: %w", err)
		}
		if len(result.Failed) > 0 {
			log.WarnContext(ctx, "Daily quote run finished with failures",
				"failed", len(result.Failed), "sent", result.Sent, "skipped", result.Skipped)
		}
		return ctx.Err()
	}
}
