// Package summarize turns many documents into one structured summary by
// summarizing bounded batches and merging the partial results.
package summarize

import (
	"context"
	"fmt"

	"assistant/internal/fault"
	"assistant/internal/llm"
)

// MergePrompt renders the merge request for a set of partial summaries.
type MergePrompt[S any] func(partials []S, totalDocuments int) string

// Reducer combines ordered batch summaries into one summary of the same schema.
type Reducer[S any] struct {
	Completer llm.Completer
	Prompt    MergePrompt[S]
	// Op names the reduction in errors and logs.
	Op string
}

// Reduce merges partials. A single partial is returned as is without calling
// the capability. For more than one, the capability must answer with one
// summary in the same schema or the call fails with SCHEMA_MISMATCH; no
// partial merge is ever returned.
func (r Reducer[S]) Reduce(ctx context.Context, partials []S, totalDocuments int) (S, error) {
	var zero S
	op := r.Op
	if op == "" {
		op = "summarize.reduce"
	}

	switch len(partials) {
	case 0:
		return zero, fault.New(fault.ValidationError, op, "nothing to reduce")
	case 1:
		return partials[0], nil
	}
	if r.Prompt == nil {
		return zero, fault.New(fault.ValidationError, op, "merge prompt is not configured")
	}

	text, err := llm.Call(ctx, r.Completer, op, r.Prompt(partials, totalDocuments))
	if err != nil {
		return zero, err
	}

	var merged S
	if err := llm.Decode(op, text, &merged); err != nil {
		return zero, err
	}
	return merged, nil
}

// MergeHeader opens every merge prompt: batches partial kind summaries
// together covering count items of unit.
func MergeHeader(kind, unit string, batches, count int) string {
	return fmt.Sprintf(
		"You are merging %d partial %s summaries that together cover %d %s.\n"+
			"Combine them into ONE summary using exactly the same JSON schema as the inputs.\n"+
			"Keep every important item, remove duplicates, and keep chronological order where it exists.\n"+
			"Respond with the JSON object only.\n\n",
		batches, kind, count, unit)
}
