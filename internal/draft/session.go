// Package draft holds the single pending calendar event of a conversation and
// the transitions that create, modify, confirm or cancel it.
package draft

import (
	"context"
	"fmt"
	"strings"
	"time"

	"assistant/internal/datetime"
	"assistant/internal/fault"
	appLog "assistant/internal/log"
	"assistant/internal/model"
)

// State of a Session.
type State string

const (
	StateEmpty                State = "EMPTY"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
)

// Draft is an unconfirmed event proposal. End is always Start plus
// DurationMinutes.
type Draft struct {
	Summary         string
	Description     string
	Start           time.Time
	End             time.Time
	DurationMinutes int
	Attendees       []string
}

// Event converts the draft into the record handed to the event store.
func (d Draft) Event() model.Event {
	return model.Event{
		Summary:     d.Summary,
		Description: d.Description,
		Start:       d.Start,
		End:         d.End,
		Attendees:   append([]string(nil), d.Attendees...),
	}
}

func (d Draft) clone() Draft {
	d.Attendees = append([]string(nil), d.Attendees...)
	return d
}

func (d *Draft) recomputeEnd() {
	d.End = d.Start.Add(time.Duration(d.DurationMinutes) * time.Minute)
}

// HistoryEntry records one applied modification and the request that caused it.
type HistoryEntry struct {
	Request      string
	Modification Modification
}

// CreateRequest carries the fields of a create-event request. When Start is
// set it is used as the candidate start; otherwise Expression and Components
// are resolved against the session clock.
type CreateRequest struct {
	Summary         string
	Description     string
	Expression      string
	Components      datetime.Components
	Start           time.Time
	DurationMinutes int
	Attendees       []string
}

// EventCreator is the part of the event store confirm needs.
type EventCreator interface {
	CreateEvent(ctx context.Context, ev model.Event) (model.CreatedEvent, error)
}

// Session owns one conversation's draft slot and modification history. It is
// not safe for concurrent use; one session serves one conversation.
type Session struct {
	draft   *Draft
	history []HistoryEntry

	// Now returns the current time; injectable for testing.
	Now func() time.Time
	// Location is applied to resolved times. Nil means time.Local.
	Location *time.Location
}

// NewSession creates an empty session resolving times in loc.
func NewSession(loc *time.Location) *Session {
	return &Session{Now: time.Now, Location: loc}
}

func (s *Session) now() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}

// State reports whether a draft is pending.
func (s *Session) State() State {
	if s.draft == nil {
		return StateEmpty
	}
	return StateAwaitingConfirmation
}

// Draft returns a copy of the pending draft.
func (s *Session) Draft() (Draft, bool) {
	if s.draft == nil {
		return Draft{}, false
	}
	return s.draft.clone(), true
}

// History returns a copy of the modification history of the pending draft.
func (s *Session) History() []HistoryEntry {
	return append([]HistoryEntry(nil), s.history...)
}

// Create builds a new draft. A pending draft is replaced and its history
// dropped.
func (s *Session) Create(req CreateRequest) (Draft, error) {
	const op = "draft.create"

	summary := strings.TrimSpace(req.Summary)
	if summary == "" {
		return Draft{}, fault.New(fault.ValidationError, op, "summary is required")
	}
	if req.DurationMinutes < 0 {
		return Draft{}, fault.New(fault.InvalidDuration, op, "duration %d must be positive", req.DurationMinutes)
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = datetime.DefaultDurationMinutes
	}

	comp := req.Components
	expr := req.Expression
	if !req.Start.IsZero() {
		comp = datetime.FromTime(req.Start.In(s.now().Location()))
	}
	window, err := datetime.Resolve(s.now(), expr, comp, duration)
	if err != nil {
		return Draft{}, err
	}

	d := &Draft{
		Summary:         summary,
		Description:     strings.TrimSpace(req.Description),
		Start:           window.Start,
		End:             window.End,
		DurationMinutes: duration,
		Attendees:       mergeAttendees(nil, req.Attendees),
	}
	if s.draft != nil {
		appLog.Info("replacing pending draft", "old_summary", s.draft.Summary, "new_summary", d.Summary)
	}
	s.draft = d
	s.history = nil

	appLog.Debug("draft created", "summary", d.Summary, "start", d.Start.Format(time.RFC3339), "duration_minutes", d.DurationMinutes)
	return d.clone(), nil
}

// Modify applies m to the pending draft and records it. On any error the
// draft and history are left exactly as they were.
func (s *Session) Modify(request string, m Modification) (Draft, error) {
	return s.ModifyAll(request, []Modification{m})
}

// ModifyAll applies mods in order as one change: either every modification
// is applied and recorded, or none is. Each one sees the result of the
// previous ones.
func (s *Session) ModifyAll(request string, mods []Modification) (Draft, error) {
	const op = "draft.modify"

	if s.draft == nil {
		return Draft{}, fault.New(fault.NoActiveDraft, op, "there is no event draft to modify")
	}
	if len(mods) == 0 {
		return Draft{}, fault.New(fault.ValidationError, op, "no modifications given")
	}

	next := s.draft.clone()
	for i, m := range mods {
		if err := s.apply(&next, m); err != nil {
			if len(mods) > 1 {
				return Draft{}, fmt.Errorf("change %d: %w", i+1, err)
			}
			return Draft{}, err
		}
		next.recomputeEnd()
	}

	*s.draft = next
	for _, m := range mods {
		s.history = append(s.history, HistoryEntry{Request: request, Modification: m})
	}

	appLog.Debug("draft modified", "changes", len(mods), "start", next.Start.Format(time.RFC3339), "duration_minutes", next.DurationMinutes)
	return next.clone(), nil
}

func (s *Session) apply(d *Draft, m Modification) error {
	const op = "draft.modify"

	switch m.Kind {
	case KindDuration:
		minutes := m.Minutes
		switch m.Mode {
		case Relative:
			minutes = d.DurationMinutes + m.Minutes
		case Absolute:
		default:
			return fault.New(fault.ValidationError, op, "unknown mode %q", m.Mode)
		}
		if minutes < 1 {
			return fault.New(fault.InvalidDuration, op, "duration would become %d minutes", minutes)
		}
		d.DurationMinutes = minutes

	case KindTime:
		switch m.Mode {
		case Relative:
			d.Start = d.Start.Add(time.Duration(m.Minutes) * time.Minute)
		case Absolute:
			if strings.TrimSpace(m.Expression) == "" && m.Components.Empty() {
				return fault.New(fault.ValidationError, op, "no new time was given")
			}
			// A new day keeps the draft's clock time; a new clock time keeps its date.
			comp := m.Components.WithClockFrom(d.Start)
			if !weekdayOrRelativeDay(m.Expression) {
				comp = comp.WithDateFrom(d.Start)
			}
			window, err := datetime.Resolve(s.now(), m.Expression, comp, d.DurationMinutes)
			if err != nil {
				return err
			}
			d.Start = window.Start
		default:
			return fault.New(fault.ValidationError, op, "unknown mode %q", m.Mode)
		}

	case KindSummary:
		text := strings.TrimSpace(m.Text)
		if m.Mode != Absolute {
			return fault.New(fault.ValidationError, op, "summary can only be replaced")
		}
		if text == "" {
			return fault.New(fault.ValidationError, op, "summary cannot be empty")
		}
		d.Summary = text

	case KindDescription:
		text := strings.TrimSpace(m.Text)
		switch m.Mode {
		case Absolute:
			d.Description = text
		case Relative:
			if d.Description == "" {
				d.Description = text
			} else if text != "" {
				d.Description += "\n" + text
			}
		default:
			return fault.New(fault.ValidationError, op, "unknown mode %q", m.Mode)
		}

	case KindAttendees:
		switch m.Mode {
		case Absolute:
			d.Attendees = mergeAttendees(nil, m.Attendees)
		case Relative:
			d.Attendees = mergeAttendees(d.Attendees, m.Attendees)
		default:
			return fault.New(fault.ValidationError, op, "unknown mode %q", m.Mode)
		}

	default:
		return fault.New(fault.ValidationError, op, "unknown modification kind %q", m.Kind)
	}
	return nil
}

// Confirm hands the draft to the event store and clears it. When the store
// call fails the draft stays pending so the user can retry. A notification
// failure reported through CreatedEvent.NotifyErr does not keep the draft.
func (s *Session) Confirm(ctx context.Context, store EventCreator) (model.CreatedEvent, Draft, error) {
	const op = "draft.confirm"

	if s.draft == nil {
		return model.CreatedEvent{}, Draft{}, fault.New(fault.NoActiveDraft, op, "there is no event draft to confirm")
	}
	confirmed := s.draft.clone()

	created, err := store.CreateEvent(ctx, confirmed.Event())
	if err != nil {
		return model.CreatedEvent{}, Draft{}, fmt.Errorf("%s: create event: %w", op, err)
	}
	if created.NotifyErr != nil {
		appLog.Error("event created but attendee notification failed", created.NotifyErr, "event_id", created.ID)
	}

	s.draft = nil
	s.history = nil
	appLog.Info("draft confirmed", "event_id", created.ID, "summary", confirmed.Summary)
	return created, confirmed, nil
}

// Cancel drops the pending draft. It reports whether there was one.
func (s *Session) Cancel() bool {
	had := s.draft != nil
	s.draft = nil
	s.history = nil
	return had
}

// Describe renders the session state for prompt context.
func (s *Session) Describe() string {
	if s.draft == nil {
		return "No event draft is pending."
	}
	d := s.draft
	var b strings.Builder
	b.WriteString("An event draft is awaiting confirmation:\n")
	fmt.Fprintf(&b, "- summary: %s\n", d.Summary)
	fmt.Fprintf(&b, "- start: %s\n", d.Start.Format(time.RFC3339))
	fmt.Fprintf(&b, "- end: %s\n", d.End.Format(time.RFC3339))
	fmt.Fprintf(&b, "- duration_minutes: %d\n", d.DurationMinutes)
	if d.Description != "" {
		fmt.Fprintf(&b, "- description: %s\n", d.Description)
	}
	if len(d.Attendees) > 0 {
		fmt.Fprintf(&b, "- attendees: %s\n", strings.Join(d.Attendees, ", "))
	}
	if len(s.history) > 0 {
		b.WriteString("Changes so far:\n")
		for _, h := range s.history {
			fmt.Fprintf(&b, "- %q\n", h.Request)
		}
	}
	return b.String()
}

// mergeAttendees appends add to base, skipping blanks and case-insensitive
// duplicates while keeping first-seen order.
func mergeAttendees(base, add []string) []string {
	seen := make(map[string]struct{}, len(base)+len(add))
	out := make([]string, 0, len(base)+len(add))
	for _, list := range [][]string{base, add} {
		for _, a := range list {
			a = strings.TrimSpace(a)
			key := strings.ToLower(a)
			if a == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

func weekdayOrRelativeDay(expr string) bool {
	if _, ok := datetime.ParseWeekday(expr); ok {
		return true
	}
	lower := strings.ToLower(expr)
	return strings.Contains(lower, "tomorrow") || strings.Contains(lower, "today") || strings.Contains(lower, "tonight")
}
