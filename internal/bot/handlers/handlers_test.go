package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/readwiser/internal/config"
	"github.com/edgard/readwiser/internal/database"
	"github.com/edgard/readwiser/internal/digest"
	"github.com/edgard/readwiser/internal/metadata"
	"github.com/edgard/readwiser/internal/pending"
)

type sentDocument struct {
	chatID   int64
	filename string
	data     []byte
	caption  string
}

type fakeMessenger struct {
	mu    sync.Mutex
	texts []string
	docs  []sentDocument
}

func (f *fakeMessenger) SendText(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) SendDocument(_ context.Context, chatID int64, filename string, data []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, sentDocument{chatID, filename, data, caption})
	return nil
}

func (f *fakeMessenger) last(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		t.Fatal("no message was sent")
	}
	return f.texts[len(f.texts)-1]
}

type fakeFetcher struct {
	md    metadata.Metadata
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (metadata.Metadata, error) {
	f.calls++
	md := f.md
	if md.Domain == "" {
		md.Domain = metadata.Domain(rawURL)
	}
	return md, f.err
}

type testEnv struct {
	deps      HandlerDeps
	messenger *fakeMessenger
	fetcher   *fakeFetcher
	clock     *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "handlers.db"), time.Second)
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC))
	store := database.NewStore(db, log, clock)
	messenger := &fakeMessenger{}
	fetcher := &fakeFetcher{}

	return &testEnv{
		deps: HandlerDeps{
			Logger: log,
			Config: &config.Config{Messages: config.MessagesConfig{
				Welcome:      "Welcome to ReadWiser!",
				GeneralError: "An error occurred. Please try again later.",
			}},
			Store:        store,
			Pending:      pending.New(pending.DefaultTTL, clock),
			Fetcher:      fetcher,
			Digest:       digest.NewService(store, messenger, 3, clock, log),
			Clock:        clock,
			NewMessenger: func(*bot.Bot) Messenger { return messenger },
		},
		messenger: messenger,
		fetcher:   fetcher,
		clock:     clock,
	}
}

// send delivers text from chatID through handler and returns the last reply.
func (e *testEnv) send(t *testing.T, handler bot.HandlerFunc, chatID int64, text string) string {
	t.Helper()
	handler(context.Background(), nil, textUpdate(chatID, text))
	return e.messenger.last(t)
}

func (e *testEnv) save(t *testing.T, chatID int64, text string) {
	t.Helper()
	reply := e.send(t, NewMessageHandler(e.deps), chatID, text)
	if !strings.HasPrefix(reply, "Saved (#") {
		t.Fatalf("saving %q replied %q", text, reply)
	}
}

func textUpdate(chatID int64, text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   1,
			Chat: models.Chat{ID: chatID},
			From: &models.User{ID: chatID, Username: "reader", FirstName: "Ada"},
			Text: text,
		},
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text     string
		wantCmd  string
		wantArgs []string
	}{
		{"hello", "", nil},
		{"", "", nil},
		{"/last", "last", nil},
		{"/last 20", "last", []string{"20"}},
		{"/Last@ReadWiserBot  3", "last", []string{"3"}},
		{"/search deep   work", "search", []string{"deep", "work"}},
	}
	for _, tt := range tests {
		cmd, args := parseCommand(tt.text)
		if cmd != tt.wantCmd || strings.Join(args, "|") != strings.Join(tt.wantArgs, "|") {
			t.Errorf("parseCommand(%q) = %q, %v; want %q, %v", tt.text, cmd, args, tt.wantCmd, tt.wantArgs)
		}
	}
}

func TestLinkThenQuote(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.fetcher.md = metadata.Metadata{Title: "On Focus", Domain: "example.com"}
	handler := NewMessageHandler(env.deps)

	reply := env.send(t, handler, 1, "https://example.com")
	want := "Got the link!\n\"On Focus\" (example.com)\n\nNow send me the quote from this article.\n(Link expires in 5 min, /cancel to clear)"
	if reply != want {
		t.Errorf("link reply = %q, want %q", reply, want)
	}

	env.clock.Advance(2 * time.Minute)
	reply = env.send(t, handler, 1, "Great insight #wisdom #life")
	want = "Saved (#1): \"Great insight\"\nFrom: On Focus (example.com)\nTags: #wisdom #life"
	if reply != want {
		t.Errorf("save reply = %q, want %q", reply, want)
	}

	q, err := env.deps.Store.GetQuote(context.Background(), 1, 1)
	if err != nil || q == nil {
		t.Fatalf("GetQuote() = %v, %v", q, err)
	}
	if q.Text != "Great insight" || q.URL.String != "https://example.com" || q.SourceDomain.String != "example.com" {
		t.Errorf("saved quote = %+v", q)
	}
	if tags := q.TagList(); len(tags) != 2 || tags[0] != "wisdom" || tags[1] != "life" {
		t.Errorf("saved tags = %v", tags)
	}
	if _, ok := env.deps.Pending.Get(1); ok {
		t.Error("pending link not consumed by the save")
	}
}

func TestPendingLinkExpires(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	handler := NewMessageHandler(env.deps)

	env.send(t, handler, 1, "https://example.com/post")
	env.clock.Advance(pending.DefaultTTL + time.Second)

	reply := env.send(t, handler, 1, "Late quote")
	if reply != "Saved (#1): \"Late quote\"" {
		t.Errorf("reply = %q, want a save without source", reply)
	}
}

func TestLinkAndQuoteInOneMessage(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.fetcher.md = metadata.Metadata{Author: "Jane Doe"}
	handler := NewMessageHandler(env.deps)

	env.send(t, handler, 1, "https://old.example.org")
	reply := env.send(t, handler, 1, "Read this https://www.blog.dev/post now")
	if reply != "Saved (#1): \"Read this now\"\nFrom: blog.dev by Jane Doe" {
		t.Errorf("reply = %q", reply)
	}
	if _, ok := env.deps.Pending.Get(1); ok {
		t.Error("pending link should be cleared by a message with its own URL")
	}
	if env.fetcher.calls != 2 {
		t.Errorf("fetcher called %d times, want 2", env.fetcher.calls)
	}
}

func TestMetadataFailureKeepsDomain(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.fetcher.err = errors.New("timeout")

	reply := env.send(t, NewMessageHandler(env.deps), 1, "https://www.example.com/a")
	if !strings.HasPrefix(reply, "Got the link!\n(example.com)\n\n") {
		t.Errorf("reply = %q", reply)
	}
}

func TestMessageReplies(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	handler := NewMessageHandler(env.deps)

	if got := env.send(t, handler, 1, "#onlytags"); got != msgNoQuote {
		t.Errorf("tags only reply = %q", got)
	}
	if got := env.send(t, handler, 1, "/nope"); got != msgUnknownCmd {
		t.Errorf("unknown command reply = %q", got)
	}

	env.save(t, 1, "Same text")
	if got := env.send(t, handler, 1, "Same text"); got != msgDuplicate {
		t.Errorf("duplicate reply = %q", got)
	}
	env.clock.Advance(2 * time.Minute)
	env.save(t, 1, "Same text")
}

func TestMessageWithoutTextIsIgnored(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	handler := NewMessageHandler(env.deps)

	sticker := textUpdate(1, "")
	sticker.Message.Sticker = &models.Sticker{FileID: "sticker"}
	handler(context.Background(), nil, sticker)

	env.messenger.mu.Lock()
	sent := len(env.messenger.texts)
	env.messenger.mu.Unlock()
	if sent != 0 {
		t.Errorf("message without text got %d replies, want none", sent)
	}
	if n, _ := env.deps.Store.CountQuotes(context.Background(), 1); n != 0 {
		t.Errorf("CountQuotes() = %d, want 0", n)
	}
}

func TestExpiresIn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ttl  time.Duration
		want string
	}{
		{5 * time.Minute, "5 min"},
		{time.Minute, "1 min"},
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m30s"},
		{1500 * time.Millisecond, "2s"},
	}
	for _, tt := range tests {
		if got := expiresIn(tt.ttl); got != tt.want {
			t.Errorf("expiresIn(%v) = %q, want %q", tt.ttl, got, tt.want)
		}
	}
}

func TestLinkReplyWithShortTTL(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.deps.Pending = pending.New(30*time.Second, env.clock)

	got := env.send(t, NewMessageHandler(env.deps), 1, "https://example.com/a")
	if !strings.Contains(got, "(Link expires in 30s, /cancel to clear)") {
		t.Errorf("link reply = %q", got)
	}
}

func TestSavedReplyTruncatesLongQuotes(t *testing.T) {
	t.Parallel()
	got := savedReply(3, database.NewQuote{Text: strings.Repeat("a", 150)})
	want := "Saved (#3): \"" + strings.Repeat("a", 97) + "...\""
	if got != want {
		t.Errorf("savedReply() = %q", got)
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	cancel := NewCancelHandler(env.deps)

	if got := env.send(t, cancel, 1, "/cancel"); got != msgNothingCancel {
		t.Errorf("reply = %q", got)
	}
	env.send(t, NewMessageHandler(env.deps), 1, "https://example.com")
	if got := env.send(t, cancel, 1, "/cancel"); got != msgPendingClear {
		t.Errorf("reply = %q", got)
	}
}

func TestDeleteOtherUsersQuote(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.save(t, 1, "mine")

	del := NewDeleteHandler(env.deps)
	if got := env.send(t, del, 2, "/delete 1"); got != "Quote #1 not found." {
		t.Errorf("reply = %q", got)
	}
	if q, _ := env.deps.Store.GetQuote(context.Background(), 1, 1); q == nil {
		t.Fatal("quote of another user was deleted")
	}

	if got := env.send(t, del, 1, "/delete"); got != "Usage: /delete <quote_id>" {
		t.Errorf("usage reply = %q", got)
	}
	if got := env.send(t, del, 1, "/delete x"); got != msgInvalidID {
		t.Errorf("invalid id reply = %q", got)
	}
	if got := env.send(t, del, 1, "/delete 1"); got != "Deleted quote #1:\n\"mine\"" {
		t.Errorf("delete reply = %q", got)
	}
}

func TestLastCapsAtTen(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	for i := range 12 {
		env.save(t, 1, fmt.Sprintf("quote %d", i))
		env.clock.Advance(time.Second)
	}
	last := NewLastHandler(env.deps)

	reply := env.send(t, last, 1, "/last 20")
	if !strings.HasPrefix(reply, "Last 10 quote(s):\n\n[#12] \"quote 11\"") {
		t.Errorf("reply starts %q", reply[:min(len(reply), 60)])
	}
	if n := strings.Count(reply, "[#"); n != 10 {
		t.Errorf("/last 20 returned %d quotes, want 10", n)
	}

	if reply := env.send(t, last, 1, "/last abc"); !strings.HasPrefix(reply, "Last 5 quote(s):") {
		t.Errorf("/last abc should fall back to 5: %q", reply[:20])
	}
	if reply := env.send(t, last, 1, "/last 0"); !strings.HasPrefix(reply, "Last 1 quote(s):") {
		t.Errorf("/last 0 should clamp to 1: %q", reply[:20])
	}
	if reply := env.send(t, last, 2, "/last"); reply != "No quotes saved yet." {
		t.Errorf("empty /last reply = %q", reply)
	}
}

func TestSearchTagSource(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.save(t, 1, "Deep work matters #Focus")
	env.save(t, 1, "https://example.com Shallow work #art")

	tests := []struct {
		name    string
		handler bot.HandlerFunc
		text    string
		want    string
	}{
		{"search usage", NewSearchHandler(env.deps), "/search", "Usage: /search <keyword>"},
		{"search miss", NewSearchHandler(env.deps), "/search nothing here", "No quotes found containing \"nothing here\""},
		{"search hit", NewSearchHandler(env.deps), "/search work", "Found 2 quote(s) for \"work\":"},
		{"tag usage", NewTagHandler(env.deps), "/tag", "Usage: /tag <tagname>"},
		{"tag hit", NewTagHandler(env.deps), "/tag #FOCUS", "Found 1 quote(s) with #focus:"},
		{"tag miss", NewTagHandler(env.deps), "/tag music", "No quotes found with tag #music"},
		{"source usage", NewSourceHandler(env.deps), "/source", "Usage: /source <domain>"},
		{"source hit", NewSourceHandler(env.deps), "/source example", "Found 1 quote(s) from example:"},
		{"source miss", NewSourceHandler(env.deps), "/source nowhere.org", "No quotes found from nowhere.org"},
	}
	for _, tt := range tests {
		if got := env.send(t, tt.handler, 1, tt.text); !strings.HasPrefix(got, tt.want) {
			t.Errorf("%s: reply = %q, want prefix %q", tt.name, got, tt.want)
		}
	}
}

func TestRandom(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	random := NewRandomHandler(env.deps)

	if got := env.send(t, random, 1, "/random"); got != "No quotes saved yet. Send me some!" {
		t.Errorf("empty reply = %q", got)
	}
	env.save(t, 1, "Only one")
	if got := env.send(t, random, 1, "/random"); !strings.HasPrefix(got, "[#1] \"Only one\"") {
		t.Errorf("reply = %q", got)
	}
	q, _ := env.deps.Store.GetQuote(context.Background(), 1, 1)
	if q.TimesShown != 1 || !q.LastShown.Valid {
		t.Errorf("random selection not recorded: times_shown=%d last_shown=%v", q.TimesShown, q.LastShown)
	}
}

func TestFavorites(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.save(t, 1, "keeper")
	fav := NewFavHandler(env.deps)
	favorites := NewFavoritesHandler(env.deps)

	if got := env.send(t, favorites, 1, "/favorites"); got != "No favorite quotes yet. Use /fav <id> to add some!" {
		t.Errorf("empty favorites reply = %q", got)
	}
	if got := env.send(t, fav, 1, "/fav 1"); got != "Quote #1 added to favorites." {
		t.Errorf("reply = %q", got)
	}
	if got := env.send(t, favorites, 1, "/favorites"); !strings.HasPrefix(got, "Your 1 favorite quote(s):\n\n[#1] \"keeper\" ⭐") {
		t.Errorf("favorites reply = %q", got)
	}
	if got := env.send(t, fav, 1, "/fav 1"); got != "Quote #1 removed from favorites." {
		t.Errorf("reply = %q", got)
	}
	if got := env.send(t, fav, 2, "/fav 1"); got != "Quote #1 not found." {
		t.Errorf("other user reply = %q", got)
	}
	if got := env.send(t, fav, 1, "/fav"); got != "Usage: /fav <quote_id>" {
		t.Errorf("usage reply = %q", got)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.save(t, 1, "old #go")
	env.clock.Advance(10 * 24 * time.Hour)
	env.save(t, 1, "new #go #db")
	env.send(t, NewFavHandler(env.deps), 1, "/fav 2")

	got := env.send(t, NewStatsHandler(env.deps), 1, "/stats")
	want := "Your ReadWiser Stats\n\nTotal quotes: 2\nAdded this week: 1\nFavorites: 1\n\nTop tags:\n  #go: 2\n  #db: 1"
	if got != want {
		t.Errorf("stats = %q, want %q", got, want)
	}
}

func TestExport(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	export := NewExportHandler(env.deps)

	if got := env.send(t, export, 1, "/export"); got != "No quotes to export." {
		t.Errorf("empty export reply = %q", got)
	}

	env.save(t, 1, "exported")
	export(context.Background(), nil, textUpdate(1, "/export"))
	if len(env.messenger.docs) != 1 {
		t.Fatalf("sent %d documents, want 1", len(env.messenger.docs))
	}
	doc := env.messenger.docs[0]
	if doc.filename != exportFilename || doc.caption != "Exported 1 quotes" || !strings.Contains(string(doc.data), "\"exported\"") {
		t.Errorf("document = %s %q %s", doc.filename, doc.caption, doc.data)
	}
}

func TestDigestCommands(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	if got := env.send(t, NewDigestHandler(env.deps), 1, "/digest"); !strings.HasPrefix(got, "Your Weekly Quote Digest") {
		t.Errorf("digest reply = %q", got)
	}

	env.send(t, NewDigestOffHandler(env.deps), 1, "/digest_off")
	env.send(t, NewDailyOffHandler(env.deps), 1, "/daily_off")
	u, err := env.deps.Store.GetUser(ctx, 1)
	if err != nil || u == nil {
		t.Fatalf("GetUser() = %v, %v", u, err)
	}
	if u.DigestEnabled || u.DailyQuoteEnabled {
		t.Errorf("flags after off = %v, %v", u.DigestEnabled, u.DailyQuoteEnabled)
	}

	env.send(t, NewDigestOnHandler(env.deps), 1, "/digest_on")
	env.send(t, NewDailyOnHandler(env.deps), 1, "/daily_on")
	u, _ = env.deps.Store.GetUser(ctx, 1)
	if !u.DigestEnabled || !u.DailyQuoteEnabled {
		t.Errorf("flags after on = %v, %v", u.DigestEnabled, u.DailyQuoteEnabled)
	}
}

func TestStartRegistersUser(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	if got := env.send(t, NewStartHandler(env.deps), 7, "/start"); got != "Welcome to ReadWiser!" {
		t.Errorf("reply = %q", got)
	}
	u, err := env.deps.Store.GetUser(context.Background(), 7)
	if err != nil || u == nil || u.Username.String != "reader" {
		t.Errorf("GetUser() = %+v, %v", u, err)
	}
}

func TestStoreFailureRepliesGeneralError(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewStatsHandler(env.deps)(ctx, nil, textUpdate(1, "/stats"))
	if got := env.messenger.last(t); got != env.deps.Config.Messages.GeneralError {
		t.Errorf("reply = %q, want general error", got)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	panicking := func(context.Context, *bot.Bot, *models.Update) { panic("boom") }
	Recover(env.deps)(panicking)(context.Background(), nil, textUpdate(1, "/x"))

	if got := env.messenger.last(t); got != env.deps.Config.Messages.GeneralError {
		t.Errorf("reply = %q, want general error", got)
	}
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	registered := RegisterAllCommands(env.deps)
	menu := MenuCommands()
	if len(registered) != len(menu) {
		t.Fatalf("registered %d commands, menu has %d", len(registered), len(menu))
	}
	for _, c := range menu {
		h, ok := registered["/"+c.Command]
		if !ok || h.Handler == nil || h.Pattern != c.Command || h.Description == "" {
			t.Errorf("command %q not registered correctly: %+v", c.Command, h)
		}
	}
	for _, name := range []string{"/start", "/help", "/last", "/delete", "/export", "/cancel", "/digest_on"} {
		if _, ok := registered[name]; !ok {
			t.Errorf("missing %s", name)
		}
	}
}
