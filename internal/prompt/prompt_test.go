package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/raglab-go/internal/memory"
)

// newestFirst builds n alternating turns, numbered so that turn n is the
// most recent and comes first.
func newestFirst(n int) []memory.Turn {
	turns := make([]memory.Turn, 0, n)
	for i := n; i >= 1; i-- {
		role := memory.RoleUser
		if i%2 == 0 {
			role = memory.RoleAssistant
		}
		turns = append(turns, memory.Turn{Role: role, Content: fmt.Sprintf("msg %d", i)})
	}
	return turns
}

func TestBuildWindow_Empty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, NoHistoryText, BuildWindow(nil, 5))
	assert.Equal(t, NoHistoryText, BuildWindow([]memory.Turn{}, 5))
}

func TestBuildWindow_BoundsAndOrder(t *testing.T) {
	t.Parallel()

	history := newestFirst(10)
	got := BuildWindow(history, 5)

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, []string{
		"assistant: msg 6",
		"user: msg 7",
		"assistant: msg 8",
		"user: msg 9",
		"assistant: msg 10",
	}, lines)
	for i := 1; i <= 5; i++ {
		assert.NotContains(t, lines, fmt.Sprintf("user: msg %d", i))
		assert.NotContains(t, lines, fmt.Sprintf("assistant: msg %d", i))
	}

	// The input slice is left untouched.
	assert.Equal(t, "msg 10", history[0].Content)
}

func TestBuildWindow_DefaultAndShortHistory(t *testing.T) {
	t.Parallel()

	assert.Len(t, strings.Split(BuildWindow(newestFirst(8), 0), "\n"), DefaultWindow)
	assert.Equal(t, "user: msg 1", BuildWindow(newestFirst(1), 5))
	assert.Equal(t, "user: msg 1\nassistant: msg 2", BuildWindow(newestFirst(2), 5))
}

func TestCompose_EndToEndScenario(t *testing.T) {
	t.Parallel()

	got := Compose("What is RAG?", []string{"RAG combines retrieval and generation."}, BuildWindow(nil, 5))

	assert.Contains(t, got, "<query>What is RAG?</query>")
	assert.Contains(t, got, "<chunks>\n"+ChunkHeader+"RAG combines retrieval and generation.\n</chunks>")
	assert.Contains(t, got, "<historico>\n"+NoHistoryText+"\n</historico>")
	assert.Contains(t, got, PriorityStatement)
	assert.Contains(t, got, InsufficientKnowledgeInstruction)
	assert.Contains(t, got, "Responda em pt-br e em markdown")
}

func TestCompose_Deterministic(t *testing.T) {
	t.Parallel()

	chunks := []string{"one", "two", "three"}
	a := Compose("q", chunks, "user: hi")
	b := Compose("q", chunks, "user: hi")
	assert.Equal(t, a, b)
}

func TestCompose_ChunkSeparator(t *testing.T) {
	t.Parallel()

	got := Compose("q", []string{"alpha", "beta"}, "")
	assert.Contains(t, got, "alpha"+ChunkSeparator+"beta")
	assert.Equal(t, 1, strings.Count(got, ChunkSeparator))
}

func TestCompose_EmptyStates(t *testing.T) {
	t.Parallel()

	got := Compose("q", nil, "   ")
	assert.Contains(t, got, ChunkHeader+NoChunksText)
	assert.Contains(t, got, NoHistoryText)
}

func TestCompose_SectionOrder(t *testing.T) {
	t.Parallel()

	got := Compose("q", []string{"c"}, "user: h")
	chunks := strings.Index(got, "<chunks>\n"+ChunkHeader)
	query := strings.Index(got, "<query>q</query>")
	history := strings.Index(got, "<historico>\nuser: h")
	require.True(t, chunks >= 0 && query >= 0 && history >= 0)
	assert.Less(t, chunks, query)
	assert.Less(t, query, history)
}

func TestTemplate_CustomLanguage(t *testing.T) {
	t.Parallel()

	tpl := Template{Language: "en", Format: "plain text"}
	require.NoError(t, tpl.Validate())
	assert.Contains(t, tpl.Compose("q", nil, ""), "Responda em en e em plain text")

	assert.Error(t, Template{Format: "markdown"}.Validate())
	assert.Error(t, Template{Language: "pt-br"}.Validate())
}
