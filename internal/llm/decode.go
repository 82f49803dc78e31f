package llm

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/kaptinlin/jsonrepair"

	"assistant/internal/fault"
)

// Validator is implemented by schemas that check more than JSON shape.
type Validator interface {
	Validate() error
}

// StripCodeFence removes a surrounding ``` or ```json fence, if any.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string (e.g. "json") up to the first newline.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Decode strictly parses capability output into out. Unknown fields, trailing
// data, non-JSON text and failed Validate calls are SCHEMA_MISMATCH.
func Decode(op, text string, out any) error {
	body := StripCodeFence(text)
	if body == "" {
		return fault.New(fault.SchemaMismatch, op, "no JSON payload in response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fault.Wrap(fault.SchemaMismatch, op, err)
	}
	if dec.More() {
		return fault.New(fault.SchemaMismatch, op, "unexpected data after JSON value")
	}
	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fault.Wrap(fault.SchemaMismatch, op, err)
		}
	}
	return nil
}

// DecodeLenient repairs common model mistakes (single quotes, trailing
// commas, missing brackets) before decoding. Unknown fields are ignored. Use
// it only where a best-effort reading is acceptable, such as intent routing.
func DecodeLenient(op, text string, out any) error {
	body := StripCodeFence(text)
	if body == "" {
		return fault.New(fault.SchemaMismatch, op, "no JSON payload in response")
	}
	if !json.Valid([]byte(body)) {
		repaired, err := jsonrepair.JSONRepair(body)
		if err != nil {
			return fault.Wrap(fault.SchemaMismatch, op, fmt.Errorf("repair: %w", err))
		}
		body = repaired
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fault.Wrap(fault.SchemaMismatch, op, err)
	}
	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fault.Wrap(fault.SchemaMismatch, op, err)
		}
	}
	return nil
}

// MustJSON renders v for embedding in a prompt.
func MustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
