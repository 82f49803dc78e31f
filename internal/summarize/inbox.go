package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"assistant/internal/chunk"
	appLog "assistant/internal/log"
	"assistant/internal/llm"
	"assistant/internal/model"
)

const (
	defaultMaxBatchChars = 12000
	// maxContentChars caps one message body inside a prompt.
	maxContentChars = 4000
)

// KeyMessage is one email worth the user's attention.
type KeyMessage struct {
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Summary  string `json:"summary"`
	Priority string `json:"priority"`
}

// InboxSummary is the schema both batch and merged summaries share.
type InboxSummary struct {
	Overview    string       `json:"overview"`
	KeyMessages []KeyMessage `json:"key_messages"`
	ActionItems []string     `json:"action_items"`
}

// Validate rejects summaries without an overview.
func (s *InboxSummary) Validate() error {
	if strings.TrimSpace(s.Overview) == "" {
		return errors.New("overview is required")
	}
	for i, m := range s.KeyMessages {
		switch m.Priority {
		case "high", "medium", "low", "":
		default:
			return fmt.Errorf("key_messages[%d]: unknown priority %q", i, m.Priority)
		}
	}
	return nil
}

// Inbox summarizes messages batch by batch and merges the batch results.
type Inbox struct {
	Completer llm.Completer
	// MaxBatchSize bounds each batch in the unit measured by Size.
	MaxBatchSize int
	// Size measures the text of a message; nil counts characters.
	Size func(string) int
	// Parallelism > 1 dispatches batches concurrently. Results are still
	// merged in batch order.
	Parallelism int
}

// Summarize produces one InboxSummary for msgs.
func (s *Inbox) Summarize(ctx context.Context, msgs []model.Message) (InboxSummary, error) {
	if len(msgs) == 0 {
		return InboxSummary{Overview: "No messages matched."}, nil
	}

	size := s.Size
	if size == nil {
		size = chunk.CharCount
	}
	maxSize := s.MaxBatchSize
	if maxSize <= 0 {
		maxSize = defaultMaxBatchChars
	}

	batches, err := chunk.Chunk(msgs, func(m model.Message) int { return size(renderMessage(m)) }, maxSize)
	if err != nil {
		return InboxSummary{}, err
	}
	appLog.Info("summarizing inbox", "messages", len(msgs), "batches", len(batches), "parallelism", s.Parallelism)

	partials, err := s.summarizeBatches(ctx, batches)
	if err != nil {
		return InboxSummary{}, err
	}

	reducer := Reducer[InboxSummary]{
		Completer: s.Completer,
		Prompt:    inboxMergePrompt,
		Op:        "summarize.inbox.merge",
	}
	return reducer.Reduce(ctx, partials, len(msgs))
}

func (s *Inbox) summarizeBatches(ctx context.Context, batches [][]model.Message) ([]InboxSummary, error) {
	partials := make([]InboxSummary, len(batches))

	if s.Parallelism <= 1 {
		for i, b := range batches {
			sum, err := s.summarizeBatch(ctx, i, len(batches), b)
			if err != nil {
				return nil, err
			}
			partials[i] = sum
		}
		return partials, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Parallelism)
	for i, b := range batches {
		g.Go(func() error {
			sum, err := s.summarizeBatch(gctx, i, len(batches), b)
			if err != nil {
				return err
			}
			partials[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return partials, nil
}

func (s *Inbox) summarizeBatch(ctx context.Context, index, total int, batch []model.Message) (InboxSummary, error) {
	op := fmt.Sprintf("summarize.inbox.batch[%d/%d]", index+1, total)
	started := time.Now()

	text, err := llm.Call(ctx, s.Completer, op, inboxBatchPrompt(batch))
	if err != nil {
		return InboxSummary{}, err
	}
	var sum InboxSummary
	if err := llm.Decode(op, text, &sum); err != nil {
		return InboxSummary{}, err
	}
	appLog.Debug("inbox batch summarized", "batch", index+1, "of", total, "messages", len(batch), "elapsed", time.Since(started).String())
	return sum, nil
}

func renderMessage(m model.Message) string {
	content := strings.TrimSpace(m.Content)
	if r := []rune(content); len(r) > maxContentChars {
		content = string(r[:maxContentChars]) + "..."
	}
	date := ""
	if !m.Date.IsZero() {
		date = m.Date.Format(time.RFC1123Z)
	}
	return fmt.Sprintf("From: %s\nSubject: %s\nDate: %s\n\n%s\n", m.From, m.Subject, date, content)
}

const inboxSchema = `{
  "overview": "two or three sentences about the messages as a whole",
  "key_messages": [{"from": "...", "subject": "...", "summary": "one sentence", "priority": "high|medium|low"}],
  "action_items": ["things the reader needs to do"]
}`

func inboxBatchPrompt(batch []model.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following %d emails for a busy reader.\n", len(batch))
	b.WriteString("Respond with a JSON object in exactly this schema and nothing else:\n")
	b.WriteString(inboxSchema)
	b.WriteString("\n\nEmails:\n")
	for i, m := range batch {
		fmt.Fprintf(&b, "--- email %d ---\n%s\n", i+1, renderMessage(m))
	}
	return b.String()
}

func inboxMergePrompt(partials []InboxSummary, totalDocuments int) string {
	var b strings.Builder
	b.WriteString(MergeHeader("email", "documents", len(partials), totalDocuments))
	b.WriteString("Schema:\n")
	b.WriteString(inboxSchema)
	b.WriteString("\n\nPartial summaries in order:\n")
	b.WriteString(llm.MustJSON(partials))
	return b.String()
}
