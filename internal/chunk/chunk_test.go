package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant/internal/fault"
)

func length(s string) int { return len(s) }

func flatten(batches [][]string) []string {
	var out []string
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

func TestChunkGreedy(t *testing.T) {
	items := []string{"aaaa", "bb", "cccc", "d", "eeeeee"}
	batches, err := Chunk(items, length, 6)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"aaaa", "bb"}, {"cccc", "d"}, {"eeeeee"}}, batches)
	assert.Equal(t, items, flatten(batches))
}

func TestChunkOversizedItemStandsAlone(t *testing.T) {
	items := []string{"ab", strings.Repeat("x", 20), "cd"}
	batches, err := Chunk(items, length, 5)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ab"}, {strings.Repeat("x", 20)}, {"cd"}}, batches)
}

func TestChunkEmpty(t *testing.T) {
	batches, err := Chunk([]string{}, length, 10)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestChunkInvalidBound(t *testing.T) {
	_, err := Chunk([]string{"a"}, length, 0)
	assert.True(t, fault.Is(err, fault.ValidationError))
}

func TestChunkProperties(t *testing.T) {
	words := strings.Fields("the quick brown fox jumps over the lazy dog while seven tiny elephants quietly juggle oranges")
	for limit := 1; limit <= 40; limit++ {
		batches, err := Chunk(words, length, limit)
		require.NoError(t, err)
		assert.Equal(t, words, flatten(batches), "limit=%d", limit)
		for _, b := range batches {
			require.NotEmpty(t, b)
			total := 0
			for _, w := range b {
				total += len(w)
			}
			if len(b) > 1 {
				assert.LessOrEqual(t, total, limit, "limit=%d batch=%v", limit, b)
			}
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens("   "))
	assert.Equal(t, 3, estimateTokens("a b c"))
	assert.Equal(t, 4, estimateTokens(strings.Repeat("x", 16)))
	assert.Equal(t, 5, CharCount("héllo"))
}
