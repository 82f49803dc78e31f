package ics

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appLog "assistant/internal/log"
	"assistant/internal/model"
)

func calendar(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

var weekly = calendar(
	"BEGIN:VEVENT",
	"UID:weekly@test",
	"DTSTAMP:20261001T000000Z",
	"DTSTART:20261005T090000Z",
	"DTEND:20261005T093000Z",
	"SUMMARY:Weekly sync",
	"RRULE:FREQ=WEEKLY;COUNT=4",
	"EXDATE:20261012T090000Z",
	"ATTENDEE;RSVP=TRUE:mailto:amy@example.com",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:weekly@test",
	"RECURRENCE-ID:20261019T090000Z",
	"DTSTAMP:20261001T000000Z",
	"DTSTART:20261019T140000Z",
	"DTEND:20261019T143000Z",
	"SUMMARY:Weekly sync (moved)",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:holiday@test",
	"DTSTAMP:20261001T000000Z",
	"DTSTART;VALUE=DATE:20261009",
	"SUMMARY:Holiday",
	"END:VEVENT",
)

func TestParseAndExpand(t *testing.T) {
	parsed, err := ParseICS(Source{ID: "s"}, weekly, time.UTC)
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	assert.Equal(t, []string{"amy@example.com"}, parsed[0].Attendees)
	assert.True(t, parsed[2].AllDay)
	assert.Equal(t, parsed[2].Start.AddDate(0, 0, 1), parsed[2].End)

	res, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	starts := map[string]string{}
	for _, e := range res.Events {
		starts[e.Start.Format("2006-01-02 15:04")] = e.Summary
	}
	assert.Equal(t, map[string]string{
		"2026-10-05 09:00": "Weekly sync",
		"2026-10-09 00:00": "Holiday",
		"2026-10-19 14:00": "Weekly sync (moved)",
		"2026-10-26 09:00": "Weekly sync",
	}, starts)
}

func TestExpandRangeIsHalfOpen(t *testing.T) {
	parsed, err := ParseICS(Source{ID: "s"}, weekly, time.UTC)
	require.NoError(t, err)

	// The 05 Oct instance ends at 09:30, exactly where the range begins.
	res, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2026, 10, 5, 9, 30, 0, 0, time.UTC),
		RangeEnd:        time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Events)
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	now := time.Now()
	_, err := ExpandOccurrences(nil, ExpandConfig{RangeStart: now, RangeEnd: now.Add(-time.Hour)})
	assert.Error(t, err)
}

type fakeNotifier struct {
	got []model.Event
	err error
}

func (f *fakeNotifier) Notify(_ context.Context, ev model.Event) error {
	f.got = append(f.got, ev)
	return f.err
}

func TestStoreCreateThenList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal", "calendar.ics")
	n := &fakeNotifier{}
	s := NewStore(StoreConfig{Path: path, Location: time.UTC, Notifier: n})
	ctx := context.Background()

	start := time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)
	created, err := s.CreateEvent(ctx, model.Event{
		Summary:     "Design review",
		Description: "Q4 roadmap",
		Start:       start,
		End:         start.Add(45 * time.Minute),
		Attendees:   []string{"bob@example.com"},
	})
	require.NoError(t, err)
	require.NoError(t, created.NotifyErr)
	assert.NotEmpty(t, created.ID)
	require.Len(t, n.got, 1)
	assert.Equal(t, created.ID, n.got[0].UID)

	_, err = s.CreateEvent(ctx, model.Event{Summary: "Solo", Start: start.Add(-2 * time.Hour), End: start.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Len(t, n.got, 1, "events without attendees are not announced")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	events, err := s.ListEvents(ctx, start.Add(-24*time.Hour), start.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Solo", events[0].Summary)
	assert.Equal(t, "Design review", events[1].Summary)
	assert.Equal(t, []string{"bob@example.com"}, events[1].Attendees)
	assert.Equal(t, "Q4 roadmap", events[1].Description)
	assert.True(t, events[1].Start.Equal(start))
	assert.True(t, events[1].End.Equal(start.Add(45*time.Minute)))
	assert.Equal(t, LocalSourceID, events[1].SourceID)
}

func TestStoreNotifyFailureDoesNotFailCreate(t *testing.T) {
	n := &fakeNotifier{err: errors.New("smtp down")}
	s := NewStore(StoreConfig{Path: filepath.Join(t.TempDir(), "c.ics"), Location: time.UTC, Notifier: n})
	start := time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)

	created, err := s.CreateEvent(context.Background(), model.Event{
		Summary: "Sync", Start: start, End: start.Add(30 * time.Minute), Attendees: []string{"a@example.com"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.EqualError(t, created.NotifyErr, "smtp down")
}

func TestStoreValidation(t *testing.T) {
	s := NewStore(StoreConfig{Path: filepath.Join(t.TempDir(), "c.ics")})
	start := time.Now()
	_, err := s.CreateEvent(context.Background(), model.Event{Start: start, End: start})
	assert.Error(t, err)
	_, err = s.CreateEvent(context.Background(), model.Event{Summary: "x", Start: start, End: start.Add(-time.Minute)})
	assert.Error(t, err)
}

func TestStoreListMissingFileIsEmpty(t *testing.T) {
	s := NewStore(StoreConfig{Path: filepath.Join(t.TempDir(), "none.ics"), Location: time.UTC})
	events, err := s.ListEvents(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStoreMergesSubscriptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(weekly)
	}))
	defer srv.Close()

	s := NewStore(StoreConfig{
		Path:          filepath.Join(t.TempDir(), "c.ics"),
		Location:      time.UTC,
		Subscriptions: []Source{{ID: "team", URL: srv.URL + "/team.ics"}, {ID: "dead", URL: "http://127.0.0.1:1/x.ics"}},
		Fetcher:       NewFetcher(t.TempDir(), srv.Client()),
	})
	events, err := s.ListEvents(context.Background(),
		time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "team", events[0].SourceID)
}

func TestStoreSkipsUnparseableSubscription(t *testing.T) {
	var buf bytes.Buffer
	appLog.SetOutput(&buf)
	t.Cleanup(func() { appLog.SetOutput(os.Stderr) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("BEGIN:VEVENT\r\nSUMMARY:stray\r\nEND:VEVENT\r\n"))
	}))
	defer srv.Close()

	s := NewStore(StoreConfig{
		Path:          filepath.Join(t.TempDir(), "c.ics"),
		Location:      time.UTC,
		Subscriptions: []Source{{ID: "broken-feed", URL: srv.URL + "/broken.ics"}},
		Fetcher:       NewFetcher(t.TempDir(), srv.Client()),
	})
	_, err := s.CreateEvent(context.Background(), model.Event{
		Summary: "Review",
		Start:   time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 10, 5, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	events, err := s.ListEvents(context.Background(),
		time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Review", events[0].Summary)

	out := buf.String()
	assert.Contains(t, out, "skipping unparseable subscription")
	assert.Contains(t, out, "broken-feed")
}

func TestFetcherConditionalAndFallback(t *testing.T) {
	var (
		hits    int32
		failing atomic.Bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if failing.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(weekly)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "team", URL: srv.URL + "/feed.ics?token=secret"}
	ctx := context.Background()

	first, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)

	failing.Store(true)
	third, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, third.FromCache)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))

	_, err = NewFetcher(t.TempDir(), srv.Client()).FetchOne(ctx, src)
	assert.Error(t, err, "no cached body to fall back to")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://calendar.example.com/...(redacted)", redactURL("https://calendar.example.com/private/abc.ics?token=1"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
