package draft

import (
	"strconv"
	"strings"

	"assistant/internal/datetime"
	"assistant/internal/fault"
)

// Kind names the draft field a Modification changes.
type Kind string

const (
	KindDuration    Kind = "duration"
	KindTime        Kind = "time"
	KindSummary     Kind = "summary"
	KindDescription Kind = "description"
	KindAttendees   Kind = "attendees"
)

// Mode says whether Value replaces the current field or is applied on top of it.
type Mode string

const (
	Absolute Mode = "absolute"
	Relative Mode = "relative"
)

// relativePrefix marks a textual duration as a delta ("+=30").
const relativePrefix = "+="

// Modification is one requested change. Only the value field matching Kind
// is read:
//
//	duration     Minutes (absolute: new length, relative: signed delta)
//	time         Expression/Components (absolute) or Minutes shift (relative)
//	summary      Text (absolute only)
//	description  Text (absolute replaces, relative appends a line)
//	attendees    Attendees (absolute replaces, relative adds)
type Modification struct {
	Kind Kind `json:"kind"`
	Mode Mode `json:"mode"`

	Minutes    int                 `json:"minutes,omitempty"`
	Text       string              `json:"text,omitempty"`
	Expression string              `json:"expression,omitempty"`
	Components datetime.Components `json:"components,omitempty"`
	Attendees  []string            `json:"attendees,omitempty"`
}

// ParseDuration translates the textual duration convention into a
// Modification: "+=N" is a relative delta of N minutes, anything else must
// be a plain integer and is absolute.
func ParseDuration(value string) (Modification, error) {
	const op = "draft.parse_duration"

	v := strings.TrimSpace(value)
	mode := Absolute
	if strings.HasPrefix(v, relativePrefix) {
		mode = Relative
		v = strings.TrimSpace(strings.TrimPrefix(v, relativePrefix))
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return Modification{}, fault.New(fault.InvalidDuration, op, "%q is not a whole number of minutes", value)
	}
	return Modification{Kind: KindDuration, Mode: mode, Minutes: n}, nil
}

// ParseText builds a modification for a free-text value of the given kind.
// Durations go through ParseDuration; attendees are comma separated; a time
// value is treated as an expression for the date resolver.
func ParseText(kind Kind, value string) (Modification, error) {
	switch kind {
	case KindDuration:
		return ParseDuration(value)
	case KindSummary, KindDescription:
		return Modification{Kind: kind, Mode: Absolute, Text: value}, nil
	case KindAttendees:
		mode := Absolute
		v := strings.TrimSpace(value)
		if strings.HasPrefix(v, relativePrefix) {
			mode = Relative
			v = strings.TrimPrefix(v, relativePrefix)
		}
		return Modification{Kind: kind, Mode: mode, Attendees: splitAddresses(v)}, nil
	case KindTime:
		return Modification{Kind: kind, Mode: Absolute, Expression: value}, nil
	default:
		return Modification{}, fault.New(fault.ValidationError, "draft.parse", "unknown modification kind %q", kind)
	}
}

func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
