// Package tasks implements the scheduled jobs of the ReadWiser bot.
package tasks

import (
	"log/slog"

	"github.com/edgard/readwiser/internal/config"
	"github.com/edgard/readwiser/internal/database"
	"github.com/edgard/readwiser/internal/digest"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Digest *digest.Service
	Config *config.Config
}
