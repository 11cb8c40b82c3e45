// Package format renders quotes as plain chat text.
package format

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/edgard/readwiser/internal/database"
)

// MaxMessageLength is the character budget for one outgoing message.
const MaxMessageLength = 4000

const (
	favoriteMarker = " ⭐"
	ellipsis       = "..."
)

// Quote renders a quote block:
//
//	[#12] "text" ⭐
//	  -- Title by Author
//	  https://example.com/post
//	  #tag #other
//	  📅 Saved 3d ago
//
// The id prefix is included only when showID is set; other lines appear only when
// their data is present. now is the reference for the relative save time.
func Quote(q database.Quote, showID bool, now time.Time) string {
	var b strings.Builder

	if showID {
		fmt.Fprintf(&b, "[#%d] ", q.ID)
	}
	b.WriteString(`"` + q.Text + `"`)
	if q.IsFavorite {
		b.WriteString(favoriteMarker)
	}

	if source := sourceLine(q); source != "" {
		b.WriteString("\n  -- " + source)
	}
	if q.URL.Valid && q.URL.String != "" {
		b.WriteString("\n  " + q.URL.String)
	}
	if tags := q.TagList(); len(tags) > 0 {
		b.WriteString("\n  #" + strings.Join(tags, " #"))
	}
	if rel := RelativeTime(q.CreatedAt, now); rel != "" {
		b.WriteString("\n  📅 Saved " + rel)
	}

	return b.String()
}

// sourceLine prefers the title; the author follows with "by", otherwise the domain in parentheses.
func sourceLine(q database.Quote) string {
	var parts []string
	if q.SourceTitle.String != "" {
		parts = append(parts, q.SourceTitle.String)
	}
	switch {
	case q.SourceAuthor.String != "":
		parts = append(parts, "by "+q.SourceAuthor.String)
	case q.SourceDomain.String != "":
		parts = append(parts, "("+q.SourceDomain.String+")")
	}
	return strings.Join(parts, " ")
}

// RelativeTime describes how long before now t was, e.g. "5m ago" or "yesterday".
// A zero t yields "".
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := now.Sub(t)
	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	}
	if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	}

	days := int(diff / (24 * time.Hour))
	switch {
	case days == 1:
		return "yesterday"
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	case days < 30:
		return fmt.Sprintf("%dw ago", days/7)
	case days < 365:
		return fmt.Sprintf("%dmo ago", days/30)
	default:
		return fmt.Sprintf("%dy ago", days/365)
	}
}

// List renders header followed by each quote with its id, separated by blank lines,
// hard-cut at MaxMessageLength.
func List(header string, quotes []database.Quote, now time.Time) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	for _, q := range quotes {
		b.WriteString(Quote(q, true, now))
		b.WriteString("\n\n")
	}
	return Truncate(b.String(), MaxMessageLength)
}

// Truncate cuts s to at most limit characters without splitting a multi-byte character.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// TruncateEllipsis is Truncate that ends a shortened string with "...", keeping the result within limit.
func TruncateEllipsis(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return Truncate(ellipsis, limit)
	}
	return Truncate(s, limit-len(ellipsis)) + ellipsis
}
