package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"assistant/internal/datetime"
	"assistant/internal/draft"
	"assistant/internal/fault"
	appLog "assistant/internal/log"
	"assistant/internal/model"
	"assistant/internal/schedule"
)

const defaultListDays = 7

// MaxAgendaDays caps how far ahead an agenda may look.
const MaxAgendaDays = 366

// EventView is the JSON shape of a listed event.
type EventView struct {
	Source      string    `json:"source"`
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Attendees   []string  `json:"attendees,omitempty"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// DraftView is the JSON shape of a pending draft.
type DraftView struct {
	Summary         string    `json:"summary"`
	Description     string    `json:"description,omitempty"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
	Attendees       []string  `json:"attendees,omitempty"`
}

func viewOf(d draft.Draft) DraftView {
	return DraftView{
		Summary:         d.Summary,
		Description:     d.Description,
		Start:           d.Start,
		End:             d.End,
		DurationMinutes: d.DurationMinutes,
		Attendees:       d.Attendees,
	}
}

// Agenda is a listing window with its events and summary.
type Agenda struct {
	From    time.Time        `json:"from"`
	To      time.Time        `json:"to"`
	Events  []EventView      `json:"events"`
	Summary schedule.Summary `json:"summary"`
	// Fallback is set when the summary came from the local analysis because
	// the capability failed.
	Fallback bool `json:"fallback"`
}

// Agenda lists the next days of events from now and summarizes them. When
// the capability fails or answers out of schema the local analysis is used
// instead; store errors are returned.
func (a *Assistant) Agenda(ctx context.Context, days int) (Agenda, error) {
	if days <= 0 {
		days = defaultListDays
	}
	if days > MaxAgendaDays {
		days = MaxAgendaDays
	}
	from := a.now()
	to := from.AddDate(0, 0, days)

	events, err := a.cfg.Events.ListEvents(ctx, from, to)
	if err != nil {
		return Agenda{}, fmt.Errorf("list events: %w", err)
	}

	out := Agenda{From: from, To: to, Events: make([]EventView, 0, len(events))}
	for _, e := range events {
		out.Events = append(out.Events, eventView(e))
	}

	if a.cfg.Schedule == nil || len(events) == 0 {
		out.Summary = schedule.Analyze(events, a.cfg.Location)
		out.Fallback = a.cfg.Schedule == nil
		return out, nil
	}
	sum, err := a.cfg.Schedule.Summarize(ctx, events)
	switch {
	case err == nil:
		out.Summary = sum
	case fault.Recoverable(err):
		appLog.Warn("schedule summary unavailable; using local analysis", "err", err, "events", len(events))
		out.Summary = schedule.Analyze(events, a.cfg.Location)
		out.Fallback = true
	default:
		return Agenda{}, err
	}
	return out, nil
}

func eventView(e model.Event) EventView {
	return EventView{
		Source:      e.SourceID,
		UID:         e.UID,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Attendees:   e.Attendees,
		AllDay:      e.AllDay,
		Start:       e.Start,
		End:         e.End,
	}
}

type listParams struct {
	Days Number `json:"days"`
}

func (a *Assistant) listEvents(ctx context.Context, intent Intent) Response {
	var p listParams
	if err := intent.params(&p); err != nil {
		return failure("Invalid list request", fault.Wrap(fault.ValidationError, "assistant.list_events", err))
	}
	agenda, err := a.Agenda(ctx, p.Days.or(defaultListDays))
	if err != nil {
		return failure("Could not list events", err)
	}
	return Response{Success: true, Message: agenda.Summary.Overview, Data: agenda}
}

type createParams struct {
	Summary         Text      `json:"summary"`
	When            Text      `json:"when"`
	StartTime       Text      `json:"start_time"`
	EndTime         Text      `json:"end_time"`
	Year            Number    `json:"year"`
	Month           Number    `json:"month"`
	Day             Number    `json:"day"`
	Hour            Number    `json:"hour"`
	Minute          Number    `json:"minute"`
	DurationMinutes Number    `json:"duration_minutes"`
	Description     Text      `json:"description"`
	Attendees       Addresses `json:"attendees"`
}

func (p createParams) components() datetime.Components {
	c := datetime.Components{
		Year:   p.Year.ptr(),
		Month:  p.Month.ptr(),
		Day:    p.Day.ptr(),
		Hour:   p.Hour.ptr(),
		Minute: p.Minute.ptr(),
	}
	// "at 3pm" names the hour only; the minute is 0, not the current minute.
	if c.Hour != nil && c.Minute == nil {
		c.Minute = datetime.Int(0)
	}
	return c
}

func (a *Assistant) createEvent(intent Intent) Response {
	const op = "assistant.create_event"

	var p createParams
	if err := intent.params(&p); err != nil {
		return failure("Invalid event request", fault.Wrap(fault.ValidationError, op, err))
	}

	req := draft.CreateRequest{
		Summary:         strings.TrimSpace(string(p.Summary)),
		Description:     strings.TrimSpace(string(p.Description)),
		Expression:      strings.TrimSpace(string(p.When)),
		Components:      p.components(),
		DurationMinutes: p.DurationMinutes.or(a.cfg.DefaultDurationMinutes),
		Attendees:       p.Attendees,
	}

	// An explicit timestamp wins over expression and components.
	if st := strings.TrimSpace(string(p.StartTime)); st != "" {
		if start, err := time.Parse(time.RFC3339, st); err == nil {
			req.Start = start.In(a.cfg.Location)
			if end, err := time.Parse(time.RFC3339, strings.TrimSpace(string(p.EndTime))); err == nil && end.After(start) && !p.DurationMinutes.Set {
				req.DurationMinutes = int(end.Sub(start) / time.Minute)
			}
		} else if req.Expression == "" {
			req.Expression = st
		}
	}

	replaced := a.session.State() == draft.StateAwaitingConfirmation
	d, err := a.session.Create(req)
	if err != nil {
		return failure("Could not draft the event", err)
	}

	msg := "Drafted " + describeDraft(d) + ". Confirm to add it to the calendar, or tell me what to change."
	if replaced {
		msg = "Replaced the previous draft. " + msg
	}
	return Response{Success: true, Message: msg, Data: viewOf(d)}
}

type modParam struct {
	Kind   Text   `json:"kind"`
	Value  Text   `json:"value"`
	Year   Number `json:"year"`
	Month  Number `json:"month"`
	Day    Number `json:"day"`
	Hour   Number `json:"hour"`
	Minute Number `json:"minute"`
}

type modifyParams struct {
	Modifications []modParam `json:"modifications"`
	modParam
}

func (a *Assistant) modifyEvent(utterance string, intent Intent) Response {
	const op = "assistant.modify_event"

	var p modifyParams
	if err := intent.params(&p); err != nil {
		return failure("Invalid change request", fault.Wrap(fault.ValidationError, op, err))
	}
	mods := p.Modifications
	if len(mods) == 0 && p.Kind != "" {
		mods = []modParam{p.modParam}
	}
	if len(mods) == 0 {
		return failure("Invalid change request", fault.New(fault.ValidationError, op, "no modifications given"))
	}

	if a.session.State() == draft.StateEmpty {
		return failure("Nothing to change", fault.New(fault.NoActiveDraft, op, "there is no event draft to modify"))
	}

	request := utterance
	if request == "" {
		request = string(intent.Parameters)
	}

	// All changes apply together or not at all.
	parsed := make([]draft.Modification, 0, len(mods))
	for i, mp := range mods {
		m, err := toModification(mp)
		if err != nil {
			return failure(fmt.Sprintf("Could not apply change %d; the draft is unchanged", i+1), err)
		}
		parsed = append(parsed, m)
	}
	d, err := a.session.ModifyAll(request, parsed)
	if err != nil {
		return failure("Could not apply the changes; the draft is unchanged", err)
	}
	return Response{Success: true, Message: "Updated draft: " + describeDraft(d) + ".", Data: viewOf(d)}
}

func toModification(mp modParam) (draft.Modification, error) {
	kind := draft.Kind(strings.ToLower(strings.TrimSpace(string(mp.Kind))))
	value := strings.TrimSpace(string(mp.Value))

	switch kind {
	case draft.KindTime:
		if strings.HasPrefix(value, "+=") {
			m, err := draft.ParseDuration(value)
			if err != nil {
				return m, err
			}
			m.Kind = draft.KindTime
			return m, nil
		}
		m, err := draft.ParseText(kind, value)
		if err != nil {
			return m, err
		}
		m.Components = createParams{Year: mp.Year, Month: mp.Month, Day: mp.Day, Hour: mp.Hour, Minute: mp.Minute}.components()
		return m, nil
	case draft.KindDescription:
		if rest, ok := strings.CutPrefix(value, "+="); ok {
			return draft.Modification{Kind: kind, Mode: draft.Relative, Text: strings.TrimSpace(rest)}, nil
		}
	}
	return draft.ParseText(kind, value)
}

func (a *Assistant) confirmEvent(ctx context.Context) Response {
	created, d, err := a.session.Confirm(ctx, a.cfg.Events)
	if err != nil {
		return failure("Could not create the event", err)
	}
	msg := "Created " + describeDraft(d) + "."
	data := map[string]any{"event_id": created.ID, "event": viewOf(d)}
	if created.NotifyErr != nil {
		msg += " Invitations could not be sent: " + created.NotifyErr.Error()
		data["notify_error"] = created.NotifyErr.Error()
	} else if len(d.Attendees) > 0 {
		msg += fmt.Sprintf(" Invitations sent to %s.", strings.Join(d.Attendees, ", "))
	}
	return Response{Success: true, Message: msg, Data: data}
}

func (a *Assistant) cancelEvent() Response {
	if !a.session.Cancel() {
		return failure("Nothing to cancel", fault.New(fault.NoActiveDraft, "assistant.cancel_event", "there is no event draft"))
	}
	return Response{Success: true, Message: "Discarded the draft."}
}

func describeDraft(d draft.Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q on %s, %s-%s (%d min)", d.Summary,
		d.Start.Format("Mon Jan 2"), d.Start.Format("15:04"), d.End.Format("15:04"), d.DurationMinutes)
	if len(d.Attendees) > 0 {
		fmt.Fprintf(&b, " with %s", strings.Join(d.Attendees, ", "))
	}
	return b.String()
}
