package chunk

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	appLog "assistant/internal/log"
)

// Unit selects how text size is measured.
type Unit string

const (
	UnitChars  Unit = "chars"
	UnitTokens Unit = "tokens"
)

var (
	encOnce  sync.Once
	encoding *tiktoken.Tiktoken
)

// CharCount counts runes.
func CharCount(text string) int {
	return len([]rune(text))
}

// TokenCount counts cl100k_base tokens. When the encoding cannot be loaded it
// falls back to max(runes/4, words).
func TokenCount(text string) int {
	encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			appLog.Warn("tiktoken unavailable; using heuristic token estimate", "err", err)
			return
		}
		encoding = enc
	})
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return estimateTokens(text)
}

func estimateTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	estimate := len([]rune(trimmed)) / 4
	if words := len(strings.Fields(trimmed)); estimate < words {
		estimate = words
	}
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}

// TextSize returns the measuring function for unit. Unknown units measure
// characters.
func TextSize(unit Unit) func(string) int {
	if unit == UnitTokens {
		return TokenCount
	}
	return CharCount
}
