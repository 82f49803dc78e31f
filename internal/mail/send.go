package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	ical "github.com/arran4/golang-ical"
	gomail "github.com/emersion/go-message/mail"

	appLog "assistant/internal/log"
	"assistant/internal/model"
)

// Send delivers a plain-text message to the outbox and returns its id.
func (s *Store) Send(ctx context.Context, to, subject, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rcpts, err := parseRecipients(to)
	if err != nil {
		return "", err
	}
	h, err := s.header(rcpts, subject)
	if err != nil {
		return "", err
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := gomail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return "", err
	}
	if _, err := io.WriteString(w, body); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	id, err := deliver(s.cfg.Outbox, buf.Bytes())
	if err != nil {
		appLog.Error("outbox delivery failed", err, "to", to)
		return "", err
	}
	appLog.Info("message queued", "id", id, "to", to, "subject", subject)
	return id, nil
}

// Notify sends an iTIP REQUEST invitation for ev to its attendees.
func (s *Store) Notify(ctx context.Context, ev model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ev.Attendees) == 0 {
		return nil
	}
	rcpts, err := parseRecipients(strings.Join(ev.Attendees, ","))
	if err != nil {
		return err
	}

	when := ev.Start.Format("Mon Jan 2, 2006 15:04 MST")
	h, err := s.header(rcpts, fmt.Sprintf("Invitation: %s @ %s", ev.Summary, when))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	mw, err := gomail.CreateWriter(&buf, h)
	if err != nil {
		return err
	}

	var th gomail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	tw, err := mw.CreateSingleInline(th)
	if err != nil {
		return err
	}
	fmt.Fprintf(tw, "You are invited to %q.\n\nWhen: %s to %s\n", ev.Summary, when, ev.End.Format("15:04 MST"))
	if ev.Location != "" {
		fmt.Fprintf(tw, "Where: %s\n", ev.Location)
	}
	if ev.Description != "" {
		fmt.Fprintf(tw, "\n%s\n", ev.Description)
	}
	if err := tw.Close(); err != nil {
		return err
	}

	var ah gomail.AttachmentHeader
	ah.SetContentType("text/calendar", map[string]string{"method": "REQUEST", "charset": "utf-8"})
	ah.SetFilename("invite.ics")
	aw, err := mw.CreateAttachment(ah)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(aw, s.invitation(ev)); err != nil {
		return err
	}
	if err := aw.Close(); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	id, err := deliver(s.cfg.Outbox, buf.Bytes())
	if err != nil {
		return err
	}
	appLog.Info("invitation queued", "id", id, "uid", ev.UID, "attendees", len(rcpts))
	return nil
}

func (s *Store) invitation(ev model.Event) string {
	cal := ical.NewCalendarFor("assistant")
	cal.SetMethod(ical.MethodRequest)
	ve := cal.AddEvent(ev.UID)
	ve.SetDtStampTime(s.now().UTC())
	ve.SetStartAt(ev.Start.UTC())
	ve.SetEndAt(ev.End.UTC())
	ve.SetSummary(ev.Summary)
	if ev.Description != "" {
		ve.SetDescription(ev.Description)
	}
	if ev.Location != "" {
		ve.SetLocation(ev.Location)
	}
	if s.cfg.Address != "" {
		ve.SetOrganizer("mailto:" + s.cfg.Address)
	}
	for _, a := range ev.Attendees {
		ve.AddAttendee(a, ical.ParticipationStatusNeedsAction, ical.WithRSVP(true))
	}
	return cal.Serialize()
}

func (s *Store) header(to []*gomail.Address, subject string) (gomail.Header, error) {
	var h gomail.Header
	h.SetDate(s.now())
	if s.cfg.Address != "" {
		h.SetAddressList("From", []*gomail.Address{{Address: s.cfg.Address}})
	}
	h.SetAddressList("To", to)
	h.SetSubject(subject)
	if err := h.GenerateMessageID(); err != nil {
		return h, err
	}
	return h, nil
}

func parseRecipients(to string) ([]*gomail.Address, error) {
	var out []*gomail.Address
	for _, part := range strings.Split(to, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		a, err := gomail.ParseAddress(part)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", part, err)
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, errors.New("no recipients")
	}
	return out, nil
}
