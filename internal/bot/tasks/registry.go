package tasks

import (
	"context"

	"github.com/edgard/readwiser/internal/config"
)

// ScheduledTaskFunc defines the signature for all scheduled tasks.
// The context is cancelled when the scheduler shuts down.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns every task keyed by the name used in the scheduler config.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		config.TaskDigest:         newDigestTask(deps),
		config.TaskDailyQuote:     newDailyQuoteTask(deps),
		config.TaskSQLMaintenance: newSQLMaintenanceTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
