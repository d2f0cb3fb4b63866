// Package prompt renders conversation history and retrieved chunks into the
// single augmented prompt sent to the language model.
//
// Everything here is pure: identical inputs always produce byte-identical
// output and nothing can fail.
package prompt

import (
	"slices"
	"strings"

	"github.com/54b3r/raglab-go/internal/memory"
)

// DefaultWindow is the number of turns rendered when the caller passes zero.
const DefaultWindow = memory.DefaultWindow

// NoHistoryText stands in for an empty conversation.
const NoHistoryText = "Nenhum histórico disponível."

// BuildWindow renders the most recent maxMessages turns of a newest-first
// history in chronological order, one "role: content" line per turn.
// maxMessages <= 0 selects DefaultWindow. An empty history renders
// NoHistoryText.
func BuildWindow(history []memory.Turn, maxMessages int) string {
	if len(history) == 0 {
		return NoHistoryText
	}
	if maxMessages <= 0 {
		maxMessages = DefaultWindow
	}

	recent := slices.Clone(history[:min(maxMessages, len(history))])
	slices.Reverse(recent)

	lines := make([]string, len(recent))
	for i, t := range recent {
		lines[i] = string(t.Role) + ": " + t.Content
	}
	return strings.Join(lines, "\n")
}
