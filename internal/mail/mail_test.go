package mail

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant/internal/model"
)

func raw(from, subject, date, body string) string {
	return strings.Join([]string{
		"From: " + from,
		"To: me@example.com",
		"Subject: " + subject,
		"Date: " + date,
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
}

const multipartHTML = "From: News <news@example.com>\r\n" +
	"To: me@example.com\r\n" +
	"Subject: =?utf-8?q?Weekly_digest?=\r\n" +
	"Date: Wed, 14 Oct 2026 08:00:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=b1\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Top <b>stories</b></p>\r\n" +
	"--b1--\r\n"

func newTestStore(t *testing.T) (*Store, string, string) {
	t.Helper()
	root := t.TempDir()
	inbox := filepath.Join(root, "inbox")
	outbox := filepath.Join(root, "outbox")
	require.NoError(t, ensureMaildir(inbox))

	put := func(sub, name, data string) {
		require.NoError(t, os.WriteFile(filepath.Join(inbox, sub, name), []byte(data), 0o600))
	}
	put("cur", "1001.a.host:2,S", raw("Alice <alice@example.com>", "Quarterly report", "Mon, 12 Oct 2026 09:00:00 +0000", "Numbers attached."))
	put("new", "1002.b.host", raw("bob@example.com", "Lunch?", "Tue, 13 Oct 2026 11:30:00 +0000", "Tacos at noon"))
	put("cur", "1003.c.host:2,", multipartHTML)
	put("cur", ".hidden", "ignored")

	s, err := New(Config{Maildir: inbox, Outbox: outbox, Address: "me@example.com", CacheSize: 8})
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }
	return s, inbox, outbox
}

func TestListMessagesNewestFirst(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	ids, err := s.ListMessages(ctx, "in:inbox", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"1003.c.host", "1002.b.host", "1001.a.host"}, ids)

	ids, err = s.ListMessages(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestListMessagesQuery(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	cases := map[string][]string{
		"from:alice":           {"1001.a.host"},
		"subject:lunch":        {"1002.b.host"},
		"report":               {"1001.a.host"},
		"is:unread":            {"1003.c.host", "1002.b.host"},
		"from:bob subject:tax": nil,
	}
	for q, want := range cases {
		ids, err := s.ListMessages(ctx, q, 10)
		require.NoError(t, err, q)
		if want == nil {
			assert.Empty(t, ids, q)
			continue
		}
		assert.Equal(t, want, ids, q)
	}

	ids, err := s.ListMessages(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestGetMessage(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	m, err := s.GetMessage(ctx, "1001.a.host")
	require.NoError(t, err)
	assert.Equal(t, "Alice <alice@example.com>", m.From)
	assert.Equal(t, []string{"me@example.com"}, m.To)
	assert.Equal(t, "Quarterly report", m.Subject)
	assert.Equal(t, "Numbers attached.", m.Content)
	assert.True(t, m.Date.Equal(time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)))

	html, err := s.GetMessage(ctx, "1003.c.host")
	require.NoError(t, err)
	assert.Equal(t, "Weekly digest", html.Subject)
	assert.Equal(t, "Top stories", html.Content)

	_, err = s.GetMessage(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func readOutbox(t *testing.T, outbox string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(outbox, "new"))
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(outbox, "new", e.Name()))
		require.NoError(t, err)
		out = append(out, string(data))
	}
	return out
}

func TestSendWritesOutbox(t *testing.T) {
	s, _, outbox := newTestStore(t)

	id, err := s.Send(context.Background(), "carol@example.com", "Hello", "See you soon.")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := readOutbox(t, outbox)
	require.Len(t, msgs, 1)

	parsed, err := parseMessage(id, []byte(msgs[0]))
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", parsed.From)
	assert.Equal(t, []string{"carol@example.com"}, parsed.To)
	assert.Equal(t, "Hello", parsed.Subject)
	assert.Equal(t, "See you soon.", parsed.Content)
}

func TestSendRejectsBadRecipient(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, err := s.Send(context.Background(), "not an address", "x", "y")
	assert.Error(t, err)
	_, err = s.Send(context.Background(), " , ", "x", "y")
	assert.Error(t, err)
}

func TestNotifyAttachesInvitation(t *testing.T) {
	s, _, outbox := newTestStore(t)
	start := time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)

	err := s.Notify(context.Background(), model.Event{
		UID:       "evt-1@assistant",
		Summary:   "Design review",
		Location:  "Room 4",
		Start:     start,
		End:       start.Add(time.Hour),
		Attendees: []string{"bob@example.com", "amy@example.com"},
	})
	require.NoError(t, err)

	msgs := readOutbox(t, outbox)
	require.Len(t, msgs, 1)
	body := msgs[0]
	assert.Contains(t, body, "Subject: Invitation: Design review")
	assert.Contains(t, body, "text/calendar")
	assert.Contains(t, body, "invite.ics")

	// No attendees, nothing to send.
	require.NoError(t, s.Notify(context.Background(), model.Event{Summary: "Solo", Start: start, End: start}))
	assert.Len(t, readOutbox(t, outbox), 1)
}
