// Package assistant routes natural-language requests to calendar and email
// actions. The text-generation capability reads each utterance into an
// Intent; the router validates it and runs the matching action against the
// event and message stores.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"assistant/internal/datetime"
	"assistant/internal/draft"
	"assistant/internal/fault"
	appLog "assistant/internal/log"
	"assistant/internal/llm"
	"assistant/internal/model"
	"assistant/internal/schedule"
	"assistant/internal/summarize"
)

const defaultMaxEmails = 5

// EventStore lists and creates calendar events.
type EventStore interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]model.Event, error)
	draft.EventCreator
}

// MessageStore lists, reads and sends email.
type MessageStore interface {
	ListMessages(ctx context.Context, query string, maxResults int) ([]string, error)
	GetMessage(ctx context.Context, id string) (model.Message, error)
	Send(ctx context.Context, to, subject, body string) (string, error)
}

// Response is the uniform result of every routed action.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Config wires an Assistant.
type Config struct {
	Completer llm.Completer
	Events    EventStore
	Mail      MessageStore

	// Inbox and Schedule summarize through Completer. Nil Schedule means
	// listings always use the local analysis.
	Inbox    *summarize.Inbox
	Schedule *schedule.Analyzer

	Location               *time.Location
	DefaultDurationMinutes int
	MaxEmails              int

	// Now is injectable for testing.
	Now func() time.Time
}

// Assistant holds the conversation's draft session. Handle and Dispatch are
// serialized so concurrent callers share one draft safely.
type Assistant struct {
	cfg     Config
	mu      sync.Mutex
	session *draft.Session
}

// New creates an Assistant.
func New(cfg Config) *Assistant {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DefaultDurationMinutes <= 0 {
		cfg.DefaultDurationMinutes = datetime.DefaultDurationMinutes
	}
	if cfg.MaxEmails <= 0 {
		cfg.MaxEmails = defaultMaxEmails
	}
	if cfg.Completer == nil {
		cfg.Completer = llm.Unavailable
	}
	if cfg.Inbox == nil {
		cfg.Inbox = &summarize.Inbox{Completer: cfg.Completer}
	}
	s := draft.NewSession(cfg.Location)
	s.Now = cfg.Now
	return &Assistant{cfg: cfg, session: s}
}

func (a *Assistant) now() time.Time {
	return a.cfg.Now().In(a.cfg.Location)
}

// Handle reads one utterance and runs the action it asks for.
func (a *Assistant) Handle(ctx context.Context, utterance string) Response {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return Response{Message: "Say something to get started."}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	intent, ok := a.quickIntent(utterance)
	if !ok {
		var err error
		intent, err = a.detect(ctx, utterance)
		if err != nil {
			appLog.Error("intent detection failed", err, "utterance_len", len(utterance))
			return failure("I could not understand that request", err)
		}
	}
	appLog.Info("intent detected", "agent", intent.Agent, "action", intent.Action, "draft", string(a.session.State()))
	return a.dispatch(ctx, utterance, intent)
}

// Dispatch runs an already structured intent.
func (a *Assistant) Dispatch(ctx context.Context, intent Intent) Response {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dispatch(ctx, "", intent)
}

// DraftState reports the session state and, when pending, the draft.
func (a *Assistant) DraftState() (draft.State, *DraftView) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.session.Draft()
	if !ok {
		return draft.StateEmpty, nil
	}
	v := viewOf(d)
	return draft.StateAwaitingConfirmation, &v
}

func (a *Assistant) detect(ctx context.Context, utterance string) (Intent, error) {
	const op = "assistant.detect_intent"
	prompt := buildIntentPrompt(a.now(), a.session.Describe(), utterance, a.cfg.MaxEmails, a.cfg.DefaultDurationMinutes)
	text, err := llm.Call(ctx, a.cfg.Completer, op, prompt)
	if err != nil {
		return Intent{}, err
	}
	var intent Intent
	if err := llm.DecodeLenient(op, text, &intent); err != nil {
		return Intent{}, err
	}
	intent.Agent = strings.ToLower(strings.TrimSpace(intent.Agent))
	intent.Action = strings.ToLower(strings.TrimSpace(intent.Action))
	return intent, nil
}

// quickIntent answers bare confirmations while a draft is pending without a
// capability round trip.
func (a *Assistant) quickIntent(utterance string) (Intent, bool) {
	if a.session.State() != draft.StateAwaitingConfirmation {
		return Intent{}, false
	}
	switch strings.Trim(strings.ToLower(utterance), " .!") {
	case "yes", "y", "confirm", "ok", "okay", "sounds good", "do it":
		return Intent{Agent: AgentCalendar, Action: ActionConfirmEvent}, true
	case "no", "n", "cancel", "discard", "never mind", "nevermind":
		return Intent{Agent: AgentCalendar, Action: ActionCancelEvent}, true
	}
	return Intent{}, false
}

func (a *Assistant) dispatch(ctx context.Context, utterance string, intent Intent) Response {
	switch intent.Agent {
	case AgentEmail:
		switch intent.Action {
		case ActionSummarizeInbox:
			return a.summarizeInbox(ctx, intent)
		case ActionSendEmail:
			return a.sendEmail(ctx, intent)
		}
	case AgentCalendar:
		switch intent.Action {
		case ActionListEvents:
			return a.listEvents(ctx, intent)
		case ActionCreateEvent:
			return a.createEvent(intent)
		case ActionModifyEvent:
			return a.modifyEvent(utterance, intent)
		case ActionConfirmEvent:
			return a.confirmEvent(ctx)
		case ActionCancelEvent:
			return a.cancelEvent()
		}
	default:
		return Response{
			Message: fmt.Sprintf("Unknown agent: %s", intent.Agent),
			Data:    map[string]any{"available_agents": []string{AgentEmail, AgentCalendar}},
		}
	}
	return Response{Message: fmt.Sprintf("Unknown action %q for the %s agent", intent.Action, intent.Agent)}
}

// failure converts an error into a failed Response carrying its kind.
func failure(msg string, err error) Response {
	data := map[string]any{}
	if kind := fault.KindOf(err); kind != "" {
		data["error_kind"] = string(kind)
	}
	var fe *fault.Error
	detail := err.Error()
	// Show the bare detail only when nothing wraps the classified error.
	if errors.As(err, &fe) && fe.Err != nil && error(fe) == err {
		detail = fe.Err.Error()
	}
	return Response{Message: fmt.Sprintf("%s: %s", msg, detail), Data: data}
}
