package tasks

import (
	"context"
	"fmt"
)

// newDigestTask creates the weekly digest task. Delivery failures for single
// users are logged by the digest service and do not fail the run.
func newDigestTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "digest")

	return func(ctx context.Context) error {
		result, err := deps.Digest.SendDigestToAll(ctx)
		if err != nil {
			log.ErrorContext(ctx, "Digest run failed", "error", err)
			return fmt.Errorf("digest run failed: %w", err)
		}
		if len(result.Failed) > 0 {
			log.WarnContext(ctx, "Digest run finished with failures", "failed", len(result.Failed), "sent", result.Sent)
		}
		return ctx.Err()
	}
}
