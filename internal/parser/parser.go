// Package parser splits an incoming chat message into a source URL, quote text and tags.
package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"mvdan.cc/xurls/v2"
)

// Kind describes what a classified message contains.
type Kind int

const (
	// KindEmpty has neither URL nor quote text.
	KindEmpty Kind = iota
	// KindURLOnly carries a URL and nothing else worth saving.
	KindURLOnly
	// KindQuoteOnly carries quote text without a URL.
	KindQuoteOnly
	// KindURLAndQuote carries both.
	KindURLAndQuote
)

func (k Kind) String() string {
	switch k {
	case KindURLOnly:
		return "url_only"
	case KindQuoteOnly:
		return "quote_only"
	case KindURLAndQuote:
		return "url_and_quote"
	default:
		return "empty"
	}
}

// Message is the result of classifying raw message text.
// Empty URL or Quote means the part is absent.
type Message struct {
	URL   string
	Quote string
	Tags  []string
}

// Kind reports which parts are present.
func (m Message) Kind() Kind {
	switch {
	case m.URL != "" && m.Quote != "":
		return KindURLAndQuote
	case m.URL != "":
		return KindURLOnly
	case m.Quote != "":
		return KindQuoteOnly
	default:
		return KindEmpty
	}
}

var (
	urlPattern      = mustStrictScheme(`https?://`)
	tagPattern      = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	horizontalSpace = regexp.MustCompile(`[ \t\p{Zs}]+`)
)

func mustStrictScheme(scheme string) *regexp.Regexp {
	re, err := xurls.StrictMatchingScheme(scheme)
	if err != nil {
		panic(err)
	}
	return re
}

// Classify extracts the first http(s) URL and all hashtags from text and returns
// what remains as the quote. It never fails; an empty message yields KindEmpty.
func Classify(text string) Message {
	var msg Message

	if loc := urlPattern.FindStringIndex(text); loc != nil {
		msg.URL = text[loc[0]:loc[1]]
		text = text[:loc[0]] + " " + text[loc[1]:]
	}

	spans := tagSpans(text)
	msg.Tags = tagsFromSpans(text, spans)
	for i := len(spans) - 1; i >= 0; i-- {
		text = text[:spans[i][0]] + " " + text[spans[i][1]:]
	}

	msg.Quote = normalize(text)
	return msg
}

// ExtractTags returns the lower-cased hashtags in text without the marker,
// de-duplicated in order of first appearance. A hashtag must start the text or
// follow whitespace, so "issue#123" is left alone.
func ExtractTags(text string) []string {
	return tagsFromSpans(text, tagSpans(text))
}

// tagSpans returns the submatch indexes of standalone hashtags: preceded by
// whitespace or the start of text and not directly followed by another '#'.
func tagSpans(text string) [][]int {
	var spans [][]int
	for _, loc := range tagPattern.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > 0 {
			if r, _ := utf8.DecodeLastRuneInString(text[:loc[0]]); !unicode.IsSpace(r) {
				continue
			}
		}
		if loc[1] < len(text) && text[loc[1]] == '#' {
			continue
		}
		spans = append(spans, loc)
	}
	return spans
}

func tagsFromSpans(text string, spans [][]int) []string {
	if len(spans) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(spans))
	tags := make([]string, 0, len(spans))
	for _, loc := range spans {
		tag := strings.ToLower(text[loc[2]:loc[3]])
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// normalize collapses horizontal whitespace, trims every line and drops blank
// lines at both ends. Inner line breaks are kept.
func normalize(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
