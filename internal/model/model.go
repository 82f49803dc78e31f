package model

import "time"

// Event is a single concrete calendar entry as returned by the event store
// (after recurrence expansion and timezone normalization).
type Event struct {
	SourceID string // calendar source ID ("local" or a subscription ID)
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string
	Attendees   []string

	// AllDay is set for date-only DTSTART values; Start is then midnight.
	AllDay bool

	Start time.Time
	End   time.Time
}

// HasAttendees reports whether the event lists anyone besides the owner.
func (e Event) HasAttendees() bool {
	return len(e.Attendees) > 0
}

// CreatedEvent is what the event store returns after a successful create.
type CreatedEvent struct {
	ID string

	// NotifyErr is set when the event exists but attendee notification
	// failed. It never means the create itself failed.
	NotifyErr error
}

// Message is a single email as seen by the assistant.
type Message struct {
	ID      string
	From    string
	To      []string
	Subject string
	Date    time.Time
	Content string
}

// Size is the character size used for batching.
func (m Message) Size() int {
	return len([]rune(m.From)) + len([]rune(m.Subject)) + len([]rune(m.Content))
}
