package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrEmptyText is returned when saving a quote without text.
	ErrEmptyText = errors.New("quote text is empty")
	// ErrNotFound is returned when a user-scoped update matches no row.
	ErrNotFound = errors.New("record not found")
)

// Store defines the data access operations of ReadWiser.
// Every quote operation is scoped to the owning user's chat ID; rows owned by
// another user behave exactly like rows that do not exist.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RegisterUser inserts the user on first contact and refreshes name fields afterwards.
	// It reports true only when the user was created by this call.
	RegisterUser(ctx context.Context, chatID int64, username, firstName string) (bool, error)
	// GetUser returns the user, or nil, nil if the chat is unknown.
	GetUser(ctx context.Context, chatID int64) (*User, error)
	// ListUsersForDigest returns users with the weekly digest enabled.
	ListUsersForDigest(ctx context.Context) ([]User, error)
	// ListUsersForDailyQuote returns users with the daily quote enabled.
	ListUsersForDailyQuote(ctx context.Context) ([]User, error)
	// SetDigestEnabled toggles the weekly digest opt-in flag.
	SetDigestEnabled(ctx context.Context, chatID int64, enabled bool) error
	// SetDailyQuoteEnabled toggles the daily quote opt-in flag.
	SetDailyQuoteEnabled(ctx context.Context, chatID int64, enabled bool) error

	// SaveQuote stores a quote and returns its new ID.
	SaveQuote(ctx context.Context, userID int64, quote NewQuote) (int64, error)
	// DeleteQuote removes a quote and reports whether a row was deleted.
	DeleteQuote(ctx context.Context, userID, quoteID int64) (bool, error)
	// GetQuote returns the quote, or nil, nil if it is missing or owned by someone else.
	GetQuote(ctx context.Context, userID, quoteID int64) (*Quote, error)
	// ListRecent returns up to limit quotes, newest first.
	ListRecent(ctx context.Context, userID int64, limit int) ([]Quote, error)
	// SearchQuotes returns up to 10 quotes whose text contains keyword, newest first.
	SearchQuotes(ctx context.Context, userID int64, keyword string) ([]Quote, error)
	// QuotesByTag returns up to 10 quotes whose stored tag string contains tag, newest first.
	QuotesByTag(ctx context.Context, userID int64, tag string) ([]Quote, error)
	// QuotesBySource returns up to 10 quotes whose domain contains domain, newest first.
	QuotesBySource(ctx context.Context, userID int64, domain string) ([]Quote, error)
	// ToggleFavorite flips the favorite flag. found is false when the quote does not exist for the user.
	ToggleFavorite(ctx context.Context, userID, quoteID int64) (favorite bool, found bool, err error)
	// ListFavorites returns all favorite quotes, newest first.
	ListFavorites(ctx context.Context, userID int64) ([]Quote, error)
	// CountFavorites returns the number of favorite quotes.
	CountFavorites(ctx context.Context, userID int64) (int, error)
	// CountQuotes returns the number of quotes the user owns.
	CountQuotes(ctx context.Context, userID int64) (int, error)
	// CountQuotesSince returns the number of quotes created at or after since.
	CountQuotesSince(ctx context.Context, userID int64, since time.Time) (int, error)
	// TopTags returns the most used tags, by count descending, ties in first-seen order.
	TopTags(ctx context.Context, userID int64, limit int) ([]TagCount, error)
	// IsDuplicate reports whether identical text was saved by the user within the window.
	IsDuplicate(ctx context.Context, userID int64, text string, within time.Duration) (bool, error)
	// ExportAll serializes every quote of the user as an indented JSON array, newest first.
	ExportAll(ctx context.Context, userID int64) ([]byte, error)

	// SelectRandom picks up to n quotes and marks them as shown in the same transaction.
	SelectRandom(ctx context.Context, userID int64, n int, weighted bool) ([]Quote, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	clock  clockwork.Clock
}

// NewStore creates a new Store implementation backed by sqlx.
// A nil logger discards output; a nil clock uses the wall clock.
func NewStore(db *sqlx.DB, logger *slog.Logger, clock clockwork.Clock) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		clock:  clock,
	}
}

func (s *sqlxStore) now() time.Time {
	return s.clock.Now().UTC()
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RegisterUser creates or refreshes a user inside a single transaction.
func (s *sqlxStore) RegisterUser(ctx context.Context, chatID int64, username, firstName string) (bool, error) {
	if chatID == 0 {
		return false, fmt.Errorf("chat_id cannot be zero")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for registering user", "chat_id", chatID, "error", err)
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	var exists bool
	if err := tx.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM users WHERE chat_id = ?)", chatID); err != nil {
		s.logger.ErrorContext(ctx, "Error checking if user exists", "chat_id", chatID, "error", err)
		return false, fmt.Errorf("failed to check user %d: %w", chatID, err)
	}

	if exists {
		_, err = tx.ExecContext(ctx,
			"UPDATE users SET username = ?, first_name = ? WHERE chat_id = ?",
			nullString(username), nullString(firstName), chatID)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO users (chat_id, username, first_name, created_at) VALUES (?, ?, ?, ?)",
			chatID, nullString(username), nullString(firstName), s.now())
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving user", "chat_id", chatID, "new", !exists, "error", err)
		return false, fmt.Errorf("failed to save user %d: %w", chatID, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction for user", "chat_id", chatID, "error", err)
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	if !exists {
		s.logger.InfoContext(ctx, "Registered new user", "chat_id", chatID)
	}
	return !exists, nil
}

// GetUser returns the user or nil, nil if not found.
func (s *sqlxStore) GetUser(ctx context.Context, chatID int64) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user,
		`SELECT id, chat_id, username, first_name, digest_enabled, daily_quote_enabled, created_at
		 FROM users WHERE chat_id = ?`, chatID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error fetching user", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get user %d: %w", chatID, err)
	}
	return &user, nil
}

// ListUsersForDigest returns users with the weekly digest enabled.
func (s *sqlxStore) ListUsersForDigest(ctx context.Context) ([]User, error) {
	return s.listUsersWhere(ctx, "digest_enabled")
}

// ListUsersForDailyQuote returns users with the daily quote enabled.
func (s *sqlxStore) ListUsersForDailyQuote(ctx context.Context) ([]User, error) {
	return s.listUsersWhere(ctx, "daily_quote_enabled")
}

// listUsersWhere selects users with the given flag column set; column is never user input.
func (s *sqlxStore) listUsersWhere(ctx context.Context, column string) ([]User, error) {
	var users []User
	query := `SELECT id, chat_id, username, first_name, digest_enabled, daily_quote_enabled, created_at
	          FROM users WHERE ` + column + ` = 1 ORDER BY chat_id`
	if err := s.db.SelectContext(ctx, &users, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing users", "flag", column, "error", err)
		return nil, fmt.Errorf("failed to list users by %s: %w", column, err)
	}
	return users, nil
}

// SetDigestEnabled toggles the weekly digest opt-in flag.
func (s *sqlxStore) SetDigestEnabled(ctx context.Context, chatID int64, enabled bool) error {
	return s.setUserFlag(ctx, chatID, "digest_enabled", enabled)
}

// SetDailyQuoteEnabled toggles the daily quote opt-in flag.
func (s *sqlxStore) SetDailyQuoteEnabled(ctx context.Context, chatID int64, enabled bool) error {
	return s.setUserFlag(ctx, chatID, "daily_quote_enabled", enabled)
}

func (s *sqlxStore) setUserFlag(ctx context.Context, chatID int64, column string, enabled bool) error {
	result, err := s.db.ExecContext(ctx, "UPDATE users SET "+column+" = ? WHERE chat_id = ?", enabled, chatID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating user flag", "chat_id", chatID, "flag", column, "error", err)
		return fmt.Errorf("failed to update %s for user %d: %w", column, chatID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("user %d: %w", chatID, ErrNotFound)
	}
	s.logger.DebugContext(ctx, "User flag updated", "chat_id", chatID, "flag", column, "enabled", enabled)
	return nil
}

// RunSQLMaintenance executes ANALYZE and VACUUM on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (ANALYZE, VACUUM)...")

	if _, err := s.db.ExecContext(ctx, "ANALYZE;"); err != nil {
		s.logger.WarnContext(ctx, "ANALYZE failed, continuing with VACUUM", "error", err)
	}

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
