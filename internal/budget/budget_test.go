package budget

import (
	"strings"
	"testing"

	"github.com/54b3r/raglab-go/internal/memory"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateTurns(t *testing.T) {
	t.Parallel()
	turns := []memory.Turn{
		{Role: memory.RoleUser, Content: "hello world"}, // "user: hello world" = 17 chars → 4, +1 = 5
		{Role: memory.RoleUser, Content: "hello world"},
	}
	if got := EstimateTurns(turns); got != 10 {
		t.Errorf("EstimateTurns = %d, want 10", got)
	}
}

func Test_TrimHistory_NoTrimNeeded(t *testing.T) {
	t.Parallel()
	history := []memory.Turn{
		{Role: memory.RoleUser, Content: "hi"},
		{Role: memory.RoleAssistant, Content: "there"},
	}
	got := TrimHistory(10, history, DefaultMaxPromptTokens)
	if len(got) != 2 {
		t.Errorf("want 2 history turns, got %d", len(got))
	}
}

func Test_TrimHistory_DropsOldest(t *testing.T) {
	t.Parallel()
	// Newest first. Each turn: "user: newest" = 12 chars → 3, +1 = 4 tokens.
	history := []memory.Turn{
		{Role: memory.RoleUser, Content: "newest"},
		{Role: memory.RoleUser, Content: "oldest"},
	}
	got := TrimHistory(0, history, 5)
	if len(got) != 1 {
		t.Fatalf("want 1 history turn after trim, got %d", len(got))
	}
	if got[0].Content != "newest" {
		t.Errorf("want newest turn retained, got %q", got[0].Content)
	}
}

func Test_TrimHistory_Disabled(t *testing.T) {
	t.Parallel()
	history := []memory.Turn{{Role: memory.RoleUser, Content: strings.Repeat("x", 1000)}}
	if got := TrimHistory(1_000_000, history, 0); len(got) != 1 {
		t.Errorf("want history untouched when budget disabled, got %d", len(got))
	}
}

func Test_TrimHistory_AllDroppedWhenFixedExceedsBudget(t *testing.T) {
	t.Parallel()
	history := []memory.Turn{
		{Role: memory.RoleUser, Content: "a"},
		{Role: memory.RoleAssistant, Content: "b"},
	}
	got := TrimHistory(7000, history, 6000)
	if len(got) != 0 {
		t.Errorf("want 0 history turns, got %d", len(got))
	}
}
