// Package budget estimates prompt size in tokens and trims conversation
// history to fit. Backends use different tokenizers, so the estimate is a
// character heuristic: 1 token ≈ 4 characters.
package budget

import (
	"github.com/54b3r/raglab-go/internal/memory"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxPromptTokens is the default prompt budget in tokens. It fits
	// 8k-context models while leaving room for the answer.
	DefaultMaxPromptTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateTurn returns the estimated cost of one rendered "role: content"
// history line, including its line break.
func EstimateTurn(t memory.Turn) int {
	return 1 + Estimate(string(t.Role)+": "+t.Content)
}

// EstimateTurns sums EstimateTurn over turns.
func EstimateTurns(turns []memory.Turn) int {
	total := 0
	for _, t := range turns {
		total += EstimateTurn(t)
	}
	return total
}

// TrimHistory drops the oldest turns from a newest-first history until
// fixedTokens plus the remaining history fits within maxTokens. fixedTokens
// is the cost of everything in the prompt that cannot be dropped (instructions,
// chunks, query). A non-positive maxTokens disables trimming.
//
// If fixedTokens alone exceeds the budget the result is empty; callers warn
// separately since the prompt is still sent.
func TrimHistory(fixedTokens int, history []memory.Turn, maxTokens int) []memory.Turn {
	if maxTokens <= 0 || len(history) == 0 {
		return history
	}
	for len(history) > 0 {
		if fixedTokens+EstimateTurns(history) <= maxTokens {
			break
		}
		history = history[:len(history)-1]
	}
	return history
}
