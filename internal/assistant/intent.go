package assistant

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Agents and actions the router understands.
const (
	AgentEmail    = "email"
	AgentCalendar = "calendar"

	ActionSummarizeInbox = "summarize_inbox"
	ActionSendEmail      = "send_email"

	ActionListEvents   = "list_events"
	ActionCreateEvent  = "create_event"
	ActionModifyEvent  = "modify_event"
	ActionConfirmEvent = "confirm_event"
	ActionCancelEvent  = "cancel_event"
)

// Intent is the structured reading of one utterance.
type Intent struct {
	Agent      string          `json:"agent"`
	Action     string          `json:"action"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// Validate requires an agent and an action.
func (i *Intent) Validate() error {
	if strings.TrimSpace(i.Agent) == "" {
		return errors.New("intent has no agent")
	}
	if strings.TrimSpace(i.Action) == "" {
		return errors.New("intent has no action")
	}
	return nil
}

// params decodes the parameters object into out. Missing parameters leave
// out untouched.
func (i Intent) params(out any) error {
	raw := bytes.TrimSpace(i.Parameters)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parameters: %w", err)
	}
	return nil
}

// Number accepts a JSON number or a numeric string. Models produce both.
type Number struct {
	Value int
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("%s is not a number", string(b))
	}
	n.Value, n.Set = int(f), true
	return nil
}

func (n Number) ptr() *int {
	if !n.Set {
		return nil
	}
	v := n.Value
	return &v
}

func (n Number) or(def int) int {
	if !n.Set {
		return def
	}
	return n.Value
}

// Text accepts a JSON string, number or boolean as text.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*t = Text(str)
		return nil
	}
	*t = Text(s)
	return nil
}

// Addresses accepts a list of strings or one comma separated string.
type Addresses []string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Addresses) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		return nil
	case strings.HasPrefix(s, "["):
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*a = list
		return nil
	default:
		var one string
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		for _, part := range strings.Split(one, ",") {
			if p := strings.TrimSpace(part); p != "" {
				*a = append(*a, p)
			}
		}
		return nil
	}
}

const intentPrompt = `You are the intent detector of a personal assistant that manages email and a calendar.
Given the user input, pick the agent and action that should handle it and extract the parameters.

Current time: %s (%s)

%s

Agents and actions:

1. Email agent ("email"):
   - summarize_inbox: summarize recent emails
     parameters: max_emails (optional number, default %d), query (optional, e.g. "from:alice subject:invoice", default "in:inbox")
   - send_email: send a new email
     parameters: to (recipient address), subject, body

2. Calendar agent ("calendar"):
   - list_events: list upcoming events
     parameters: days (optional number of days ahead, default 7)
   - create_event: start a new event draft that the user confirms later
     parameters: summary, when (the user's own words for the date and time, e.g. "next friday 3pm"),
     year, month, day, hour, minute (optional numbers you are sure of; hour is 0-23),
     duration_minutes (optional number, default %d), description (optional), attendees (optional list of email addresses)
   - modify_event: change the pending draft
     parameters: modifications, a list of {"kind": one of duration|time|summary|description|attendees, "value": text}
       duration: "45" sets the length, "+=30" adds 30 minutes, "+=-15" removes 15
       time: the new date/time in the user's words (add "hour" and "minute" numbers when you know them), or "+=60" to shift by minutes
       attendees: comma separated addresses, prefix "+=" to add instead of replace
       description: prefix "+=" to append instead of replace
   - confirm_event: the user accepts the pending draft
   - cancel_event: the user discards the pending draft

User input: %s

Respond with ONLY a JSON object: {"agent": "...", "action": "...", "parameters": {...}}

Examples:
"Show me my recent emails" -> {"agent": "email", "action": "summarize_inbox", "parameters": {"max_emails": 5}}
"Set up a sync with john@example.com friday at 2pm for an hour" -> {"agent": "calendar", "action": "create_event", "parameters": {"summary": "Sync", "when": "friday 2pm", "hour": 14, "minute": 0, "duration_minutes": 60, "attendees": ["john@example.com"]}}
"make it 30 minutes longer" -> {"agent": "calendar", "action": "modify_event", "parameters": {"modifications": [{"kind": "duration", "value": "+=30"}]}}
`

func buildIntentPrompt(now time.Time, draftState, utterance string, maxEmails, durationMinutes int) string {
	return fmt.Sprintf(intentPrompt,
		now.Format("Monday, 2006-01-02 15:04"), now.Location().String(),
		draftState,
		maxEmails, durationMinutes,
		utterance,
	)
}
