package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant/internal/fault"
)

type sample struct {
	Overview string   `json:"overview"`
	Items    []string `json:"items"`
}

func (s *sample) Validate() error {
	if s.Overview == "" {
		return errors.New("overview is required")
	}
	return nil
}

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
		"```json{\"a\":1}```":     `{"a":1}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, StripCodeFence(in), "input %q", in)
	}
}

func TestDecodeStrict(t *testing.T) {
	var s sample
	require.NoError(t, Decode("test", "```json\n{\"overview\":\"ok\",\"items\":[\"a\"]}\n```", &s))
	assert.Equal(t, "ok", s.Overview)

	for _, bad := range []string{
		"Sure! Here is your summary.",
		`{"overview":"ok","extra":1}`,
		`{"items":["a"]}`,
		`{"overview":"ok"} {"overview":"again"}`,
		"",
	} {
		var out sample
		err := Decode("test", bad, &out)
		assert.True(t, fault.Is(err, fault.SchemaMismatch), "input %q gave %v", bad, err)
	}
}

func TestDecodeLenientRepairs(t *testing.T) {
	var s sample
	require.NoError(t, DecodeLenient("test", `{"overview": "ok", "items": ["a", "b",],}`, &s))
	assert.Equal(t, []string{"a", "b"}, s.Items)
}

func TestCallClassifiesFailures(t *testing.T) {
	ctx := context.Background()

	_, err := Call(ctx, Unavailable, "op", "hi")
	assert.True(t, fault.Is(err, fault.CapabilityFailure))
	assert.ErrorIs(t, err, ErrUnavailable)

	blank := CompleterFunc(func(context.Context, string) (string, error) { return "  \n", nil })
	_, err = Call(ctx, blank, "op", "hi")
	assert.True(t, fault.Is(err, fault.CapabilityFailure))

	_, err = Call(ctx, nil, "op", "hi")
	assert.True(t, fault.Is(err, fault.CapabilityFailure))

	echo := CompleterFunc(func(_ context.Context, p string) (string, error) { return "re: " + p, nil })
	text, err := Call(ctx, echo, "op", "hi")
	require.NoError(t, err)
	assert.Equal(t, "re: hi", text)
}
