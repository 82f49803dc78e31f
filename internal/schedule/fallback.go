package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"assistant/internal/model"
)

const (
	dateLayout  = "2006-01-02"
	startLayout = "2006-01-02 15:04"

	// busyThreshold is the number of events a block or day may hold before
	// it is considered busy.
	busyThreshold = 2
)

// BlockOf maps a local hour to its time-of-day block.
func BlockOf(hour int) Block {
	switch {
	case hour >= 5 && hour < 12:
		return Morning
	case hour >= 12 && hour < 17:
		return Afternoon
	default:
		return Evening
	}
}

// Importance rates an event high by default. Missing attendees and missing
// details (no description and no location) each lower it one step, so only an
// event lacking both is low.
func Importance(e model.Event) string {
	importance := ImportanceHigh
	if !e.HasAttendees() {
		importance = ImportanceMedium
	}
	if strings.TrimSpace(e.Description) == "" && strings.TrimSpace(e.Location) == "" {
		if importance == ImportanceMedium {
			importance = ImportanceLow
		} else {
			importance = ImportanceMedium
		}
	}
	return importance
}

// Analyze builds a Summary from events without any external call. Days are
// taken from each start in loc (UTC if nil) and reported in ascending order;
// events keep their input order within a day and block. Output is identical
// for identical input.
func Analyze(events []model.Event, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}
	if len(events) == 0 {
		return Summary{
			Overview:        "No events scheduled.",
			TimeBlocks:      []TimeBlock{},
			KeyEvents:       []KeyEvent{},
			SchedulingNotes: []string{},
		}
	}

	byDay := make(map[string][]model.Event)
	var days []string
	for _, e := range events {
		d := e.Start.In(loc).Format(dateLayout)
		if _, ok := byDay[d]; !ok {
			days = append(days, d)
		}
		byDay[d] = append(byDay[d], e)
	}
	sort.Strings(days)

	var (
		blocks   []TimeBlock
		busyDays []string
	)
	for _, d := range days {
		dayEvents := byDay[d]
		if len(dayEvents) > busyThreshold {
			busyDays = append(busyDays, d)
		}

		titles := map[Block][]string{}
		for _, e := range dayEvents {
			b := BlockOf(e.Start.In(loc).Hour())
			titles[b] = append(titles[b], title(e))
		}
		for _, b := range []Block{Morning, Afternoon, Evening} {
			ts := titles[b]
			if len(ts) == 0 {
				continue
			}
			status := StatusModerate
			if len(ts) > busyThreshold {
				status = StatusBusy
			}
			blocks = append(blocks, TimeBlock{
				Date:        d,
				Block:       b,
				Status:      status,
				Description: fmt.Sprintf("%s: %s", plural(len(ts), "event"), strings.Join(ts, ", ")),
				Events:      ts,
			})
		}
	}

	keyEvents := make([]KeyEvent, 0, len(events))
	for _, e := range events {
		keyEvents = append(keyEvents, KeyEvent{
			Title:      title(e),
			Start:      e.Start.In(loc).Format(startLayout),
			Importance: Importance(e),
		})
	}

	overview := fmt.Sprintf("Your %d-day schedule contains %s", len(days), plural(len(events), "event"))
	if len(busyDays) > 0 {
		overview += ", with particularly busy days on " + strings.Join(busyDays, ", ")
	}
	overview += "."

	return Summary{
		Overview:        overview,
		TimeBlocks:      blocks,
		KeyEvents:       keyEvents,
		SchedulingNotes: notes(events, days),
	}
}

func notes(events []model.Event, days []string) []string {
	var out []string
	if len(days) == 1 {
		out = append(out, fmt.Sprintf("All events fall on %s.", days[0]))
	} else {
		out = append(out, fmt.Sprintf("Events span %d days, from %s to %s.", len(days), days[0], days[len(days)-1]))
	}

	locations := map[string]struct{}{}
	withAttendees := 0
	for _, e := range events {
		if l := strings.TrimSpace(e.Location); l != "" {
			locations[strings.ToLower(l)] = struct{}{}
		}
		if e.HasAttendees() {
			withAttendees++
		}
	}
	if len(locations) > 0 {
		out = append(out, fmt.Sprintf("Events take place at %s.", plural(len(locations), "distinct location")))
	}
	if withAttendees > 0 {
		out = append(out, fmt.Sprintf("%s other attendees.", pluralVerb(withAttendees, "event", "involves", "involve")))
	}
	return out
}

func title(e model.Event) string {
	if t := strings.TrimSpace(e.Summary); t != "" {
		return t
	}
	return "(untitled)"
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func pluralVerb(n int, noun, singular, pluralForm string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s %s", noun, singular)
	}
	return fmt.Sprintf("%d %ss %s", n, noun, pluralForm)
}
