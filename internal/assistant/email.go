package assistant

import (
	"context"
	"fmt"
	"strings"

	"assistant/internal/fault"
	appLog "assistant/internal/log"
	"assistant/internal/model"
	"assistant/internal/summarize"
)

const (
	defaultInboxQuery = "in:inbox"
	maxEmailsCap      = 200
)

// InboxReport is a summarized slice of the inbox.
type InboxReport struct {
	Query   string                 `json:"query"`
	Count   int                    `json:"count"`
	Summary summarize.InboxSummary `json:"summary"`
}

// SummarizeInbox summarizes up to maxEmails messages matching query, newest
// first. Capability failures are returned; there is no local substitute for
// mail summaries.
func (a *Assistant) SummarizeInbox(ctx context.Context, query string, maxEmails int) (InboxReport, error) {
	if strings.TrimSpace(query) == "" {
		query = defaultInboxQuery
	}
	if maxEmails <= 0 {
		maxEmails = a.cfg.MaxEmails
	}
	if maxEmails > maxEmailsCap {
		maxEmails = maxEmailsCap
	}

	ids, err := a.cfg.Mail.ListMessages(ctx, query, maxEmails)
	if err != nil {
		return InboxReport{}, fmt.Errorf("list messages: %w", err)
	}
	msgs := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		m, err := a.cfg.Mail.GetMessage(ctx, id)
		if err != nil {
			appLog.Error("message fetch failed", err, "id", id)
			continue
		}
		msgs = append(msgs, m)
	}

	sum, err := a.cfg.Inbox.Summarize(ctx, msgs)
	if err != nil {
		return InboxReport{}, err
	}
	return InboxReport{Query: query, Count: len(msgs), Summary: sum}, nil
}

type summarizeParams struct {
	MaxEmails Number `json:"max_emails"`
	Query     Text   `json:"query"`
}

func (a *Assistant) summarizeInbox(ctx context.Context, intent Intent) Response {
	var p summarizeParams
	if err := intent.params(&p); err != nil {
		return failure("Invalid inbox request", fault.Wrap(fault.ValidationError, "assistant.summarize_inbox", err))
	}
	report, err := a.SummarizeInbox(ctx, string(p.Query), p.MaxEmails.or(a.cfg.MaxEmails))
	if err != nil {
		return failure("Could not summarize the inbox", err)
	}
	return Response{
		Success: true,
		Message: fmt.Sprintf("Summarized %d emails. %s", report.Count, report.Summary.Overview),
		Data:    report,
	}
}

type sendParams struct {
	To      Addresses `json:"to"`
	Subject Text      `json:"subject"`
	Body    Text      `json:"body"`
}

func (a *Assistant) sendEmail(ctx context.Context, intent Intent) Response {
	const op = "assistant.send_email"

	var p sendParams
	if err := intent.params(&p); err != nil {
		return failure("Invalid email request", fault.Wrap(fault.ValidationError, op, err))
	}
	to := strings.Join(p.To, ", ")
	subject := strings.TrimSpace(string(p.Subject))
	body := strings.TrimSpace(string(p.Body))

	var missing []string
	if to == "" {
		missing = append(missing, "to")
	}
	if subject == "" {
		missing = append(missing, "subject")
	}
	if body == "" {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		return failure("Missing required parameters", fault.New(fault.ValidationError, op, "%s", strings.Join(missing, ", ")))
	}

	id, err := a.cfg.Mail.Send(ctx, to, subject, body)
	if err != nil {
		return failure("Could not send the email", err)
	}
	return Response{
		Success: true,
		Message: fmt.Sprintf("Email sent to %s.", to),
		Data:    map[string]any{"message_id": id, "to": p.To, "subject": subject},
	}
}
