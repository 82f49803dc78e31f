package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"assistant/internal/chunk"
	appLog "assistant/internal/log"
	"assistant/internal/llm"
	"assistant/internal/model"
	"assistant/internal/summarize"
)

const defaultMaxBatchChars = 12000

// Analyzer summarizes events through the text-generation capability. Large
// listings are split into batches and merged. Errors are CAPABILITY_FAILURE or
// SCHEMA_MISMATCH; callers that want a result regardless fall back to Analyze.
type Analyzer struct {
	Completer    llm.Completer
	Location     *time.Location
	MaxBatchSize int
	Size         func(string) int
}

// Summarize returns the capability's summary of events.
func (a *Analyzer) Summarize(ctx context.Context, events []model.Event) (Summary, error) {
	loc := a.Location
	if loc == nil {
		loc = time.UTC
	}
	if len(events) == 0 {
		return Analyze(nil, loc), nil
	}

	size := a.Size
	if size == nil {
		size = chunk.CharCount
	}
	maxSize := a.MaxBatchSize
	if maxSize <= 0 {
		maxSize = defaultMaxBatchChars
	}
	batches, err := chunk.Chunk(events, func(e model.Event) int { return size(renderEvent(e, loc)) }, maxSize)
	if err != nil {
		return Summary{}, err
	}

	partials := make([]Summary, 0, len(batches))
	for i, batch := range batches {
		op := fmt.Sprintf("schedule.batch[%d/%d]", i+1, len(batches))
		text, err := llm.Call(ctx, a.Completer, op, batchPrompt(batch, loc))
		if err != nil {
			return Summary{}, err
		}
		var s Summary
		if err := llm.Decode(op, text, &s); err != nil {
			return Summary{}, err
		}
		partials = append(partials, s)
	}
	appLog.Debug("schedule batches summarized", "events", len(events), "batches", len(batches))

	reducer := summarize.Reducer[Summary]{
		Completer: a.Completer,
		Prompt:    mergePrompt,
		Op:        "schedule.merge",
	}
	return reducer.Reduce(ctx, partials, len(events))
}

func renderEvent(e model.Event, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- %s | %s - %s", title(e), e.Start.In(loc).Format(startLayout), e.End.In(loc).Format(startLayout))
	if e.AllDay {
		b.WriteString(" (all day)")
	}
	if e.Location != "" {
		fmt.Fprintf(&b, " | at %s", e.Location)
	}
	if len(e.Attendees) > 0 {
		fmt.Fprintf(&b, " | with %s", strings.Join(e.Attendees, ", "))
	}
	if d := strings.TrimSpace(e.Description); d != "" {
		fmt.Fprintf(&b, " | %s", strings.ReplaceAll(d, "\n", " "))
	}
	b.WriteString("\n")
	return b.String()
}

const schema = `{
  "overview": "one or two sentences",
  "time_blocks": [{"date": "YYYY-MM-DD", "block": "morning|afternoon|evening", "status": "busy|moderate", "description": "...", "events": ["titles"]}],
  "key_events": [{"title": "...", "start": "YYYY-MM-DD HH:MM", "importance": "high|medium|low"}],
  "scheduling_notes": ["observations such as conflicts, gaps or travel"]
}`

func batchPrompt(events []model.Event, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following %d calendar events (times in %s).\n", len(events), loc.String())
	b.WriteString("Morning is 05:00-12:00, afternoon 12:00-17:00, evening otherwise. A block with more than 2 events is busy.\n")
	b.WriteString("Respond with a JSON object in exactly this schema and nothing else:\n")
	b.WriteString(schema)
	b.WriteString("\n\nEvents:\n")
	for _, e := range events {
		b.WriteString(renderEvent(e, loc))
	}
	return b.String()
}

func mergePrompt(partials []Summary, totalEvents int) string {
	var b strings.Builder
	b.WriteString(summarize.MergeHeader("schedule", "calendar events", len(partials), totalEvents))
	b.WriteString("Keep dates in ascending order.\n\nSchema:\n")
	b.WriteString(schema)
	b.WriteString("\n\nPartial summaries in order:\n")
	b.WriteString(llm.MustJSON(partials))
	return b.String()
}
