package database

import (
	"database/sql"
	"strings"
	"time"
)

// User is a chat that has interacted with the bot. ChatID is the owner key of every quote.
type User struct {
	ID                int64          `db:"id"`
	ChatID            int64          `db:"chat_id"`
	Username          sql.NullString `db:"username"`
	FirstName         sql.NullString `db:"first_name"`
	DigestEnabled     bool           `db:"digest_enabled"`
	DailyQuoteEnabled bool           `db:"daily_quote_enabled"`
	CreatedAt         time.Time      `db:"created_at"`
}

// Quote is a saved text snippet with optional source metadata and tags.
// TimesShown and LastShown change only through SelectRandom.
type Quote struct {
	ID           int64          `db:"id"`
	UserID       int64          `db:"user_id"`
	Text         string         `db:"text"`
	URL          sql.NullString `db:"url"`
	SourceTitle  sql.NullString `db:"source_title"`
	SourceAuthor sql.NullString `db:"source_author"`
	SourceDomain sql.NullString `db:"source_domain"`
	Tags         sql.NullString `db:"tags"`
	IsFavorite   bool           `db:"is_favorite"`
	TimesShown   int            `db:"times_shown"`
	LastShown    sql.NullTime   `db:"last_shown"`
	CreatedAt    time.Time      `db:"created_at"`
}

// TagList splits the stored comma-joined tag string.
func (q Quote) TagList() []string {
	return splitTags(q.Tags.String)
}

// NewQuote carries the fields supplied when saving a quote. Empty strings are stored as NULL.
type NewQuote struct {
	Text   string
	URL    string
	Title  string
	Author string
	Domain string
	Tags   []string
}

// TagCount is one entry of a user's tag histogram.
type TagCount struct {
	Tag   string
	Count int
}

const tagSeparator = ","

func joinTags(tags []string) string {
	return strings.Join(tags, tagSeparator)
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, tagSeparator)
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
