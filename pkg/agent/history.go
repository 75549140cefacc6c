package agent

import (
	"sync"

	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/tiktoken-go/tokenizer"
)

// DefaultHistoryTokens bounds the transcript sent along with each call.
const DefaultHistoryTokens = 2048

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// CountTokens estimates the token length of text with the cl100k_base encoding.
// When the encoding is unavailable it falls back to four bytes per token.
func CountTokens(text string) int {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			codec = c
		}
	})
	if codec == nil {
		return (len(text) + 3) / 4
	}
	ids, _, _ := codec.Encode(text)
	return len(ids)
}

// TrimHistory keeps the most recent turns whose combined size fits budget.
// Turns are dropped in user/agent pairs so the window never starts mid-exchange.
func TrimHistory(history []domain.Turn, budget int) []domain.Turn {
	if budget <= 0 || len(history) == 0 {
		return nil
	}

	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		n := CountTokens(history[i].Text)
		if used+n > budget {
			break
		}
		used += n
		start = i
	}
	if start%2 == 1 {
		start++
	}
	if start >= len(history) {
		return nil
	}

	out := make([]domain.Turn, len(history)-start)
	copy(out, history[start:])
	return out
}
