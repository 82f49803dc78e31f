package ics

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "assistant/internal/log"
	"assistant/internal/model"
)

// Notifier tells attendees about a new event.
type Notifier interface {
	Notify(ctx context.Context, event model.Event) error
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// Path is the writable local calendar file. It is created on first write.
	Path string
	// Location is the display zone of listed events.
	Location *time.Location
	// Subscriptions are read-only remote calendars merged into listings.
	Subscriptions []Source
	Fetcher       *Fetcher
	// Notifier, if set, is called after creating an event with attendees.
	Notifier Notifier
}

// Store is the event store: a local .ics file plus optional subscriptions.
type Store struct {
	mu  sync.Mutex
	cfg StoreConfig
	now func() time.Time
}

// NewStore creates a Store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Fetcher == nil && len(cfg.Subscriptions) > 0 {
		cfg.Fetcher = NewFetcher("", nil)
	}
	return &Store{cfg: cfg, now: time.Now}
}

// ListEvents returns events overlapping [timeMin, timeMax) from the local
// calendar and every reachable subscription, expanded and sorted by start.
// Unreachable subscriptions without a cached copy are skipped.
func (s *Store) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]model.Event, error) {
	local, err := s.readLocal()
	if err != nil {
		return nil, err
	}
	parsed, err := ParseICS(Source{ID: LocalSourceID, Name: "Local"}, local, s.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.cfg.Path, err)
	}

	if len(s.cfg.Subscriptions) > 0 {
		results, _ := s.cfg.Fetcher.FetchAll(ctx, s.cfg.Subscriptions)
		for _, res := range results {
			evs, err := ParseICS(res.Source, res.Body, s.cfg.Location)
			if err != nil {
				appLog.Warn("skipping unparseable subscription", "id", res.Source.ID, "err", err.Error())
				continue
			}
			parsed = append(parsed, evs...)
		}
	}

	expanded, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: s.cfg.Location,
		RangeStart:      timeMin,
		RangeEnd:        timeMax,
	})
	if err != nil {
		return nil, err
	}

	events := expanded.Events
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].Summary < events[j].Summary
	})
	appLog.Info("calendar listed", "from", timeMin.Format(time.RFC3339), "to", timeMax.Format(time.RFC3339), "events", len(events))
	return events, nil
}

// CreateEvent appends ev to the local calendar. When ev has attendees and a
// Notifier is configured they are notified afterwards; a notification
// failure is returned in CreatedEvent.NotifyErr, not as an error.
func (s *Store) CreateEvent(ctx context.Context, ev model.Event) (model.CreatedEvent, error) {
	if strings.TrimSpace(ev.Summary) == "" {
		return model.CreatedEvent{}, errors.New("event summary is required")
	}
	if ev.End.Before(ev.Start) {
		return model.CreatedEvent{}, errors.New("event ends before it starts")
	}
	if s.cfg.Path == "" {
		return model.CreatedEvent{}, errors.New("calendar path is empty")
	}

	ev.UID = uuid.NewString() + "@assistant"
	ev.SourceID = LocalSourceID

	if err := s.appendEvent(ev); err != nil {
		appLog.Error("calendar create failed", err, "summary", ev.Summary)
		return model.CreatedEvent{}, err
	}
	appLog.Info("calendar event created", "uid", ev.UID, "summary", ev.Summary, "start", ev.Start.Format(time.RFC3339), "attendees", len(ev.Attendees))

	created := model.CreatedEvent{ID: ev.UID}
	if ev.HasAttendees() && s.cfg.Notifier != nil {
		if err := s.cfg.Notifier.Notify(ctx, ev); err != nil {
			appLog.Error("attendee notification failed", err, "uid", ev.UID)
			created.NotifyErr = err
		}
	}
	return created, nil
}

func (s *Store) appendEvent(ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := s.readLocal()
	if err != nil {
		return err
	}

	var cal *ical.Calendar
	if len(strings.TrimSpace(string(body))) == 0 {
		cal = ical.NewCalendarFor("assistant")
	} else {
		cal, err = ical.ParseCalendar(strings.NewReader(string(body)))
		if err != nil {
			return fmt.Errorf("parse %s: %w", s.cfg.Path, err)
		}
	}

	now := s.now().UTC()
	ve := cal.AddEvent(ev.UID)
	ve.SetDtStampTime(now)
	ve.SetCreatedTime(now)
	ve.SetStartAt(ev.Start.UTC())
	ve.SetEndAt(ev.End.UTC())
	ve.SetSummary(ev.Summary)
	if ev.Description != "" {
		ve.SetDescription(ev.Description)
	}
	if ev.Location != "" {
		ve.SetLocation(ev.Location)
	}
	for _, a := range ev.Attendees {
		ve.AddAttendee(a, ical.ParticipationStatusNeedsAction, ical.WithRSVP(true))
	}

	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o700); err != nil {
		return err
	}
	return writeFileAtomic(s.cfg.Path, []byte(cal.Serialize()))
}

func (s *Store) readLocal() ([]byte, error) {
	if s.cfg.Path == "" {
		return nil, nil
	}
	body, err := os.ReadFile(s.cfg.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return body, err
}

// writeFileAtomic writes data through a temp file in the same directory and
// renames it over path with 0600 permissions.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
