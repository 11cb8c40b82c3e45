// Package digest assembles the scheduled quote messages and delivers them to opted-in users.
package digest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/readwiser/internal/database"
	"github.com/edgard/readwiser/internal/format"
	"github.com/edgard/readwiser/internal/metrics"
)

// Job names used in logs and metrics.
const (
	JobDigest     = "digest"
	JobDailyQuote = "daily_quote"
)

const (
	digestHeader     = "Your Weekly Quote Digest"
	dailyQuoteHeader = "Quote of the Day"
	emptyDigest      = digestHeader + "\n\nNo quotes saved yet. Start sending me quotes to build your collection!"
)

// Sender delivers a plain text message to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// FailedRecipient is a user the batch could not reach.
type FailedRecipient struct {
	ChatID int64
	Err    error
}

// FanOutResult summarizes one run over all opted-in users.
type FanOutResult struct {
	Sent    int
	Skipped int
	Failed  []FailedRecipient
}

// Service builds digests and daily quotes from the selection engine.
type Service struct {
	store  database.Store
	sender Sender
	count  int
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewService creates a digest service. count is the number of quotes per digest.
func NewService(store database.Store, sender Sender, count int, clock clockwork.Clock, logger *slog.Logger) *Service {
	if count <= 0 {
		count = 5
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		store:  store,
		sender: sender,
		count:  count,
		clock:  clock,
		logger: logger.With("component", "digest"),
	}
}

// BuildDigest selects up to count quotes for the user and renders the digest text.
// Selected quotes are marked as shown. A user without quotes gets an encouragement text.
func (s *Service) BuildDigest(ctx context.Context, userID int64) (string, error) {
	quotes, err := s.store.SelectRandom(ctx, userID, s.count, true)
	if err != nil {
		return "", fmt.Errorf("failed to select digest quotes: %w", err)
	}
	metrics.QuotesSelected(true, len(quotes))
	if len(quotes) == 0 {
		return emptyDigest, nil
	}

	total, err := s.store.CountQuotes(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to count quotes: %w", err)
	}

	now := s.clock.Now()
	var b strings.Builder
	b.WriteString(digestHeader + "\n\n")
	for i, q := range quotes {
		fmt.Fprintf(&b, "%d. %s\n\n", i+1, format.Quote(q, false, now))
	}
	fmt.Fprintf(&b, "Total saved: %d quotes", total)

	return format.TruncateEllipsis(b.String(), format.MaxMessageLength), nil
}

// BuildDailyQuote selects a single quote. ok is false when the user has none.
func (s *Service) BuildDailyQuote(ctx context.Context, userID int64) (text string, ok bool, err error) {
	quotes, err := s.store.SelectRandom(ctx, userID, 1, true)
	if err != nil {
		return "", false, fmt.Errorf("failed to select daily quote: %w", err)
	}
	metrics.QuotesSelected(true, len(quotes))
	if len(quotes) == 0 {
		return "", false, nil
	}
	msg := dailyQuoteHeader + "\n\n" + format.Quote(quotes[0], false, s.clock.Now())
	return format.Truncate(msg, format.MaxMessageLength), true, nil
}

// SendDigest builds and sends the digest to one user.
func (s *Service) SendDigest(ctx context.Context, chatID int64) error {
	text, err := s.BuildDigest(ctx, chatID)
	if err != nil {
		return err
	}
	return s.sender.SendText(ctx, chatID, text)
}

// SendDailyQuote builds and sends the daily quote; sent is false when the user had nothing to send.
func (s *Service) SendDailyQuote(ctx context.Context, chatID int64) (sent bool, err error) {
	text, ok, err := s.BuildDailyQuote(ctx, chatID)
	if err != nil || !ok {
		return false, err
	}
	if err := s.sender.SendText(ctx, chatID, text); err != nil {
		return false, err
	}
	return true, nil
}

// SendDigestToAll sends the digest to every user with the digest enabled.
func (s *Service) SendDigestToAll(ctx context.Context) (FanOutResult, error) {
	users, err := s.store.ListUsersForDigest(ctx)
	if err != nil {
		return FanOutResult{}, fmt.Errorf("failed to list digest users: %w", err)
	}
	return s.fanOut(ctx, JobDigest, users, func(ctx context.Context, chatID int64) (bool, error) {
		return true, s.SendDigest(ctx, chatID)
	}), nil
}

// SendDailyQuoteToAll sends the daily quote to every user with it enabled.
func (s *Service) SendDailyQuoteToAll(ctx context.Context) (FanOutResult, error) {
	users, err := s.store.ListUsersForDailyQuote(ctx)
	if err != nil {
		return FanOutResult{}, fmt.Errorf("failed to list daily quote users: %w", err)
	}
	return s.fanOut(ctx, JobDailyQuote, users, s.SendDailyQuote), nil
}

// fanOut delivers to each user in turn. A failure is recorded and the loop moves on;
// only cancellation of ctx stops it early, leaving the rest unattempted.
func (s *Service) fanOut(ctx context.Context, job string, users []database.User, send func(context.Context, int64) (bool, error)) FanOutResult {
	log := s.logger.With("job", job)
	log.InfoContext(ctx, "Starting scheduled send", "recipients", len(users))

	var result FanOutResult
	for _, u := range users {
		if ctx.Err() != nil {
			log.WarnContext(ctx, "Scheduled send interrupted", "error", ctx.Err(), "remaining", len(users)-result.Sent-result.Skipped-len(result.Failed))
			break
		}

		sent, err := send(ctx, u.ChatID)
		switch {
		case err != nil:
			log.ErrorContext(ctx, "Failed to deliver scheduled message", "chat_id", u.ChatID, "error", err)
			result.Failed = append(result.Failed, FailedRecipient{ChatID: u.ChatID, Err: err})
			metrics.ScheduledSend(job, metrics.StatusFailed)
		case !sent:
			result.Skipped++
			metrics.ScheduledSend(job, metrics.StatusSkipped)
		default:
			result.Sent++
			metrics.ScheduledSend(job, metrics.StatusSent)
		}
	}

	log.InfoContext(ctx, "Scheduled send finished",
		"sent", result.Sent, "skipped", result.Skipped, "failed", len(result.Failed))
	return result
}
