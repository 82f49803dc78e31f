// Package schedule summarizes a list of calendar events, either through the
// text-generation capability or with a deterministic local analysis.
package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// Block is a time-of-day bucket.
type Block string

const (
	Morning   Block = "morning"
	Afternoon Block = "afternoon"
	Evening   Block = "evening"
)

// Status of a time block.
const (
	StatusBusy     = "busy"
	StatusModerate = "moderate"
)

// Importance of a key event.
const (
	ImportanceHigh   = "high"
	ImportanceMedium = "medium"
	ImportanceLow    = "low"
)

// TimeBlock describes the events of one block on one day.
type TimeBlock struct {
	Date        string   `json:"date"`
	Block       Block    `json:"block"`
	Status      string   `json:"status"`
	Description string   `json:"description"`
	Events      []string `json:"events"`
}

// KeyEvent is one event with a coarse importance rating.
type KeyEvent struct {
	Title      string `json:"title"`
	Start      string `json:"start"`
	Importance string `json:"importance"`
}

// Summary is the structured schedule summary produced by both analyzers.
type Summary struct {
	Overview        string      `json:"overview"`
	TimeBlocks      []TimeBlock `json:"time_blocks"`
	KeyEvents       []KeyEvent  `json:"key_events"`
	SchedulingNotes []string    `json:"scheduling_notes"`
}

// Validate checks the enumerations a model might get wrong.
func (s *Summary) Validate() error {
	if strings.TrimSpace(s.Overview) == "" {
		return errors.New("overview is required")
	}
	for i, b := range s.TimeBlocks {
		switch b.Block {
		case Morning, Afternoon, Evening:
		default:
			return fmt.Errorf("time_blocks[%d]: unknown block %q", i, b.Block)
		}
		switch b.Status {
		case StatusBusy, StatusModerate:
		default:
			return fmt.Errorf("time_blocks[%d]: unknown status %q", i, b.Status)
		}
	}
	for i, e := range s.KeyEvents {
		switch e.Importance {
		case ImportanceHigh, ImportanceMedium, ImportanceLow:
		default:
			return fmt.Errorf("key_events[%d]: unknown importance %q", i, e.Importance)
		}
	}
	return nil
}

// Text renders s for terminals and briefings.
func (s Summary) Text() string {
	var b strings.Builder
	b.WriteString(s.Overview)
	b.WriteString("\n")
	for _, tb := range s.TimeBlocks {
		fmt.Fprintf(&b, "\n%s %s (%s): %s", tb.Date, tb.Block, tb.Status, tb.Description)
	}
	if len(s.KeyEvents) > 0 {
		b.WriteString("\n\nKey events:")
		for _, e := range s.KeyEvents {
			fmt.Fprintf(&b, "\n  [%s] %s  %s", e.Importance, e.Start, e.Title)
		}
	}
	if len(s.SchedulingNotes) > 0 {
		b.WriteString("\n\nNotes:")
		for _, n := range s.SchedulingNotes {
			fmt.Fprintf(&b, "\n  - %s", n)
		}
	}
	return b.String()
}
