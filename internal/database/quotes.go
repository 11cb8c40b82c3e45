package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	quoteColumns = `id, user_id, text, url, source_title, source_author, source_domain, tags,
	                is_favorite, times_shown, last_shown, created_at`

	// searchLimit caps search, tag and source lookups.
	searchLimit = 10
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s anywhere in the column.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// SaveQuote inserts a quote owned by userID.
func (s *sqlxStore) SaveQuote(ctx context.Context, userID int64, quote NewQuote) (int64, error) {
	text := strings.TrimSpace(quote.Text)
	if text == "" {
		return 0, ErrEmptyText
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO quotes (user_id, text, url, source_title, source_author, source_domain, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, text,
		nullString(quote.URL), nullString(quote.Title), nullString(quote.Author), nullString(quote.Domain),
		nullString(joinTags(quote.Tags)), s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving quote", "user_id", userID, "error", err)
		return 0, fmt.Errorf("failed to save quote for user %d: %w", userID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		s.logger.ErrorContext(ctx, "Could not retrieve last insert ID after saving quote", "user_id", userID, "error", err)
		return 0, fmt.Errorf("failed to read quote id: %w", err)
	}

	s.logger.DebugContext(ctx, "Quote saved", "user_id", userID, "quote_id", id, "tags", len(quote.Tags))
	return id, nil
}

// DeleteQuote hard-deletes a quote owned by userID.
func (s *sqlxStore) DeleteQuote(ctx context.Context, userID, quoteID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM quotes WHERE id = ? AND user_id = ?", quoteID, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting quote", "user_id", userID, "quote_id", quoteID, "error", err)
		return false, fmt.Errorf("failed to delete quote %d: %w", quoteID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// GetQuote returns the quote or nil, nil if not found for this user.
func (s *sqlxStore) GetQuote(ctx context.Context, userID, quoteID int64) (*Quote, error) {
	var quote Quote
	err := s.db.GetContext(ctx, &quote,
		"SELECT "+quoteColumns+" FROM quotes WHERE id = ? AND user_id = ?", quoteID, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error fetching quote", "user_id", userID, "quote_id", quoteID, "error", err)
		return nil, fmt.Errorf("failed to get quote %d: %w", quoteID, err)
	}
	return &quote, nil
}

// ListRecent returns the newest quotes first.
func (s *sqlxStore) ListRecent(ctx context.Context, userID int64, limit int) ([]Quote, error) {
	if limit <= 0 {
		return []Quote{}, nil
	}
	return s.selectQuotes(ctx, "list recent",
		"SELECT "+quoteColumns+" FROM quotes WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		userID, limit)
}

// SearchQuotes matches keyword as a substring of the quote text.
func (s *sqlxStore) SearchQuotes(ctx context.Context, userID int64, keyword string) ([]Quote, error) {
	return s.selectQuotes(ctx, "search",
		"SELECT "+quoteColumns+` FROM quotes WHERE user_id = ? AND text LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, containsPattern(keyword), searchLimit)
}

// QuotesByTag matches tag as a substring of the stored tag string, so "art" also finds "smart".
func (s *sqlxStore) QuotesByTag(ctx context.Context, userID int64, tag string) ([]Quote, error) {
	return s.selectQuotes(ctx, "by tag",
		"SELECT "+quoteColumns+` FROM quotes WHERE user_id = ? AND tags LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, containsPattern(tag), searchLimit)
}

// QuotesBySource matches domain as a substring of the source domain.
func (s *sqlxStore) QuotesBySource(ctx context.Context, userID int64, domain string) ([]Quote, error) {
	return s.selectQuotes(ctx, "by source",
		"SELECT "+quoteColumns+` FROM quotes WHERE user_id = ? AND source_domain LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, containsPattern(domain), searchLimit)
}

// ListFavorites returns every favorite quote, newest first.
func (s *sqlxStore) ListFavorites(ctx context.Context, userID int64) ([]Quote, error) {
	return s.selectQuotes(ctx, "favorites",
		"SELECT "+quoteColumns+" FROM quotes WHERE user_id = ? AND is_favorite = 1 ORDER BY created_at DESC, id DESC",
		userID)
}

func (s *sqlxStore) selectQuotes(ctx context.Context, op, query string, args ...any) ([]Quote, error) {
	quotes := []Quote{}
	if err := s.db.SelectContext(ctx, &quotes, query, args...); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.WarnContext(ctx, "Quote query cancelled", "op", op, "error", err)
		} else {
			s.logger.ErrorContext(ctx, "Error querying quotes", "op", op, "error", err)
		}
		return nil, fmt.Errorf("failed to query quotes (%s): %w", op, err)
	}
	return quotes, nil
}

// ToggleFavorite flips the favorite flag in a transaction and returns the new value.
func (s *sqlxStore) ToggleFavorite(ctx context.Context, userID, quoteID int64) (bool, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for favorite toggle", "quote_id", quoteID, "error", err)
		return false, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	var current bool
	err = tx.GetContext(ctx, &current, "SELECT is_favorite FROM quotes WHERE id = ? AND user_id = ?", quoteID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error reading favorite flag", "quote_id", quoteID, "error", err)
		return false, false, fmt.Errorf("failed to read quote %d: %w", quoteID, err)
	}

	next := !current
	if _, err := tx.ExecContext(ctx,
		"UPDATE quotes SET is_favorite = ? WHERE id = ? AND user_id = ?", next, quoteID, userID); err != nil {
		s.logger.ErrorContext(ctx, "Error updating favorite flag", "quote_id", quoteID, "error", err)
		return false, false, fmt.Errorf("failed to update quote %d: %w", quoteID, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit favorite toggle", "quote_id", quoteID, "error", err)
		return false, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	return next, true, nil
}

// CountFavorites returns the number of favorite quotes.
func (s *sqlxStore) CountFavorites(ctx context.Context, userID int64) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM quotes WHERE user_id = ? AND is_favorite = 1", userID)
}

// CountQuotes returns the total number of quotes.
func (s *sqlxStore) CountQuotes(ctx context.Context, userID int64) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM quotes WHERE user_id = ?", userID)
}

// CountQuotesSince returns the number of quotes created at or after since.
func (s *sqlxStore) CountQuotesSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM quotes WHERE user_id = ? AND created_at >= ?", userID, since.UTC())
}

func (s *sqlxStore) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Error counting quotes", "error", err)
		return 0, fmt.Errorf("failed to count quotes: %w", err)
	}
	return n, nil
}

// TopTags counts tags across the user's quotes.
func (s *sqlxStore) TopTags(ctx context.Context, userID int64, limit int) ([]TagCount, error) {
	var rows []string
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT tags FROM quotes WHERE user_id = ? AND tags IS NOT NULL AND tags <> '' ORDER BY id", userID); err != nil {
		s.logger.ErrorContext(ctx, "Error reading tags", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	counts := make(map[string]int)
	var order []string
	for _, row := range rows {
		for _, tag := range splitTags(row) {
			if counts[tag] == 0 {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}

	result := make([]TagCount, 0, len(order))
	for _, tag := range order {
		result = append(result, TagCount{Tag: tag, Count: counts[tag]})
	}
	sortTagCounts(result)

	if limit >= 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// sortTagCounts orders by count descending, keeping first-seen order among equal counts.
func sortTagCounts(tags []TagCount) {
	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].Count > tags[j].Count
	})
}

// IsDuplicate reports whether the same text was saved within the window.
func (s *sqlxStore) IsDuplicate(ctx context.Context, userID int64, text string, within time.Duration) (bool, error) {
	cutoff := s.now().Add(-within)
	n, err := s.count(ctx,
		"SELECT COUNT(*) FROM quotes WHERE user_id = ? AND text = ? AND created_at >= ?",
		userID, strings.TrimSpace(text), cutoff)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// exportRecord is the JSON shape of one exported quote.
type exportRecord struct {
	ID           int64   `json:"id"`
	UserID       int64   `json:"user_id"`
	Text         string  `json:"text"`
	URL          *string `json:"url"`
	SourceTitle  *string `json:"source_title"`
	SourceAuthor *string `json:"source_author"`
	SourceDomain *string `json:"source_domain"`
	Tags         *string `json:"tags"`
	IsFavorite   bool    `json:"is_favorite"`
	TimesShown   int     `json:"times_shown"`
	LastShown    *string `json:"last_shown"`
	CreatedAt    string  `json:"created_at"`
}

func optional(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// ExportAll serializes all quotes of the user, newest first.
func (s *sqlxStore) ExportAll(ctx context.Context, userID int64) ([]byte, error) {
	quotes, err := s.selectQuotes(ctx, "export",
		"SELECT "+quoteColumns+" FROM quotes WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}

	records := make([]exportRecord, 0, len(quotes))
	for _, q := range quotes {
		rec := exportRecord{
			ID:           q.ID,
			UserID:       q.UserID,
			Text:         q.Text,
			URL:          optional(q.URL),
			SourceTitle:  optional(q.SourceTitle),
			SourceAuthor: optional(q.SourceAuthor),
			SourceDomain: optional(q.SourceDomain),
			Tags:         optional(q.Tags),
			IsFavorite:   q.IsFavorite,
			TimesShown:   q.TimesShown,
			CreatedAt:    q.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if q.LastShown.Valid {
			ls := q.LastShown.Time.UTC().Format(time.RFC3339Nano)
			rec.LastShown = &ls
		}
		records = append(records, rec)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return data, nil
}
