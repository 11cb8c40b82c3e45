package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Spaced-repetition bucket boundaries.
const (
	staleAfter  = 30 * 24 * time.Hour
	recentAfter = 7 * 24 * time.Hour
)

// weightedOrder sorts candidates into four buckets: never shown, shown more than
// 30 days ago, shown more than 7 days ago, shown within the last week. Inside a
// bucket the least shown quotes come first, ties are broken at random.
const weightedOrder = `
	ORDER BY
		CASE
			WHEN last_shown IS NULL THEN 0
			WHEN last_shown < ? THEN 1
			WHEN last_shown < ? THEN 2
			ELSE 3
		END,
		times_shown ASC,
		RANDOM()`

// SelectRandom picks up to n quotes for the user and records that they were shown.
// The read and the times_shown/last_shown update share one transaction; the
// returned values are the rows as read, before the update.
func (s *sqlxStore) SelectRandom(ctx context.Context, userID int64, n int, weighted bool) ([]Quote, error) {
	if n <= 0 {
		return []Quote{}, nil
	}

	now := s.now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for selection", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	quotes := []Quote{}
	if weighted {
		err = tx.SelectContext(ctx, &quotes,
			"SELECT "+quoteColumns+" FROM quotes WHERE user_id = ?"+weightedOrder+" LIMIT ?",
			userID, now.Add(-staleAfter), now.Add(-recentAfter), n)
	} else {
		err = tx.SelectContext(ctx, &quotes,
			"SELECT "+quoteColumns+" FROM quotes WHERE user_id = ? ORDER BY RANDOM() LIMIT ?",
			userID, n)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error selecting quotes", "user_id", userID, "weighted", weighted, "error", err)
		return nil, fmt.Errorf("failed to select quotes: %w", err)
	}
	if len(quotes) == 0 {
		return quotes, nil
	}

	ids := make([]int64, len(quotes))
	for i, q := range quotes {
		ids[i] = q.ID
	}

	query, args, err := sqlx.In(
		"UPDATE quotes SET times_shown = times_shown + 1, last_shown = ? WHERE user_id = ? AND id IN (?)",
		now, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build update query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		s.logger.ErrorContext(ctx, "Error marking quotes as shown", "user_id", userID, "count", len(ids), "error", err)
		return nil, fmt.Errorf("failed to mark quotes as shown: %w", err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit selection", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Quotes selected", "user_id", userID, "count", len(quotes), "weighted", weighted)
	return quotes, nil
}
