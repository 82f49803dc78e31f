// Package llm is the boundary to the text-generation capability. Everything
// returned from it is untrusted text until Decode accepts it.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"assistant/internal/fault"
	appLog "assistant/internal/log"
)

// Completer maps a prompt to free-form text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ErrUnavailable is returned by Unavailable.
var ErrUnavailable = errors.New("text generation is not configured")

// Unavailable is a Completer that always fails; used when no API key is set
// so that callers exercise their fallbacks.
var Unavailable = CompleterFunc(func(context.Context, string) (string, error) {
	return "", ErrUnavailable
})

// Call runs one completion. Transport errors, a nil completer and blank
// output are all CAPABILITY_FAILURE.
func Call(ctx context.Context, c Completer, op, prompt string) (string, error) {
	if c == nil {
		return "", fault.Wrap(fault.CapabilityFailure, op, ErrUnavailable)
	}

	started := time.Now()
	text, err := c.Complete(ctx, prompt)
	if err != nil {
		appLog.Error("text generation failed", err, "op", op, "elapsed", time.Since(started).String())
		return "", fault.Wrap(fault.CapabilityFailure, op, err)
	}
	if strings.TrimSpace(text) == "" {
		appLog.Warn("text generation returned empty output", "op", op)
		return "", fault.New(fault.CapabilityFailure, op, "empty response")
	}

	appLog.Debug("text generation done", "op", op, "prompt_chars", len(prompt), "response_chars", len(text), "elapsed", time.Since(started).String())
	return text, nil
}
