package segment

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment_RejectsInvalidConfiguration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		chunkSize int
		overlap   int
	}{
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 15},
		{"zero size", 0, 0},
		{"negative size", -5, 0},
		{"negative overlap", 10, -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			chunks, err := Segment("some text to split", tc.chunkSize, tc.overlap)
			require.Error(t, err)
			assert.Nil(t, chunks)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration))

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.chunkSize, cfgErr.ChunkSize)
			assert.Equal(t, tc.overlap, cfgErr.Overlap)
		})
	}
}

func TestConfigError_NamesBothValues(t *testing.T) {
	t.Parallel()

	err := Validate(10, 15)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_size=10")
	assert.Contains(t, err.Error(), "overlap=15")
}

func TestSegment_EmptyText(t *testing.T) {
	t.Parallel()

	chunks, err := Segment("", 100, 20)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = Segment("   \n\n  ", 100, 20)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSegment_ShortText(t *testing.T) {
	t.Parallel()

	chunks, err := Segment("Short", 100, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"Short"}, chunks)

	chunks, err = Segment("  padded  ", 100, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"padded"}, chunks)
}

func TestSegment_ExactSize(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("A", 100)
	chunks, err := Segment(text, 100, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{text}, chunks)
}

func TestSegment_HardCutsWithOverlap(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("0123456789", 5)
	chunks, err := Segment(text, 20, 5)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i, want := range []int{0, 15, 30} {
		assert.Len(t, chunks[i], 20)
		assert.Equal(t, text[want:want+20], chunks[i])
	}

	// Adjacent chunks share the overlap region.
	for i := 0; i+1 < len(chunks); i++ {
		assert.Equal(t, chunks[i][15:], chunks[i+1][:5])
	}
}

func TestSegment_NaturalBreaks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		size  int
		first string
	}{
		{
			name:  "paragraph in tail",
			text:  strings.Repeat("a", 80) + "\n\n" + strings.Repeat("b", 50),
			size:  100,
			first: strings.Repeat("a", 80),
		},
		{
			name:  "paragraph too early falls back to hard cut",
			text:  strings.Repeat("a", 30) + "\n\n" + strings.Repeat("b", 100),
			size:  100,
			first: strings.Repeat("a", 30) + "\n\n" + strings.Repeat("b", 68),
		},
		{
			name:  "sentence in tail",
			text:  strings.Repeat("a", 75) + ". " + strings.Repeat("b", 50),
			size:  100,
			first: strings.Repeat("a", 75) + ".",
		},
		{
			name:  "word in tail",
			text:  strings.Repeat("a", 85) + " " + strings.Repeat("b", 50),
			size:  100,
			first: strings.Repeat("a", 85),
		},
		{
			name:  "word outside last fifth is ignored",
			text:  strings.Repeat("a", 75) + " " + strings.Repeat("b", 50),
			size:  100,
			first: strings.Repeat("a", 75) + " " + strings.Repeat("b", 24),
		},
		{
			name:  "early sentence does not block word break",
			text:  strings.Repeat("a", 20) + ". " + strings.Repeat("b", 63) + " " + strings.Repeat("c", 50),
			size:  100,
			first: strings.Repeat("a", 20) + ". " + strings.Repeat("b", 63),
		},
		{
			name:  "paragraph wins over later sentence",
			text:  strings.Repeat("a", 72) + "\n\n" + strings.Repeat("b", 10) + ". " + strings.Repeat("c", 50),
			size:  100,
			first: strings.Repeat("a", 72),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			chunks, err := Segment(tc.text, tc.size, 0)
			require.NoError(t, err)
			require.NotEmpty(t, chunks)
			assert.Equal(t, tc.first, chunks[0])
		})
	}
}

func TestSegment_Deterministic(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("Retrieval augmented generation. It mixes search and models.\n\n", 20)
	a, err := Segment(text, 120, 30)
	require.NoError(t, err)
	b, err := Segment(text, 120, 30)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSegment_CountsCharactersNotBytes(t *testing.T) {
	t.Parallel()

	chunks, err := Segment(strings.Repeat("é", 30), 10, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Equal(t, strings.Repeat("é", 10), c)
	}
}

func TestWindows_CoverWholeText(t *testing.T) {
	t.Parallel()

	text := []rune(strings.Repeat("Lorem ipsum dolor sit amet. Consectetur adipiscing elit.\n\n", 15))
	spans := windows(text, 64, 16)
	require.NotEmpty(t, spans)

	assert.Equal(t, 0, spans[0].start)
	assert.Equal(t, len(text), spans[len(spans)-1].end)
	for i := 0; i+1 < len(spans); i++ {
		assert.Greater(t, spans[i+1].start, spans[i].start, "cursor must advance")
		assert.LessOrEqual(t, spans[i+1].start, spans[i].end, "no gap between windows")
		assert.LessOrEqual(t, spans[i].end-spans[i+1].start, 16, "overlap bounded")
	}
}

func TestWindows_MinimumAdvance(t *testing.T) {
	t.Parallel()

	// A word break at index 17 shortens the window to 18 characters, which
	// is less than the overlap of 19.
	text := []rune(strings.Repeat("a", 17) + " " + strings.Repeat("b", 21))
	spans := windows(text, 20, 19)

	require.Greater(t, len(spans), 1)
	assert.Equal(t, span{start: 0, end: 18}, spans[0])
	assert.Equal(t, 1, spans[1].start)
	assert.Equal(t, len(text), spans[len(spans)-1].end)
}

func TestSegmentWithMetadata(t *testing.T) {
	t.Parallel()

	source := map[string]string{"source": "numbers.txt"}
	chunks, err := SegmentWithMetadata(strings.Repeat("0123456789", 5), 20, 5, source)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i, want := range []int{0, 15, 30} {
		assert.Equal(t, i, chunks[i].Index)
		assert.Equal(t, 20, chunks[i].Length)
		assert.Equal(t, want, chunks[i].StartOffset)
		assert.Equal(t, 3, chunks[i].Total)
		assert.Equal(t, source, chunks[i].SourceInfo)
	}
}

func TestSegmentWithMetadata_InvalidConfiguration(t *testing.T) {
	t.Parallel()

	chunks, err := SegmentWithMetadata("text", 10, 10, nil)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Nil(t, chunks)
}

func TestInfo(t *testing.T) {
	t.Parallel()

	s, err := Info(1000, 100)
	require.NoError(t, err)
	assert.Equal(t, Settings{ChunkSize: 1000, Overlap: 100, Step: 900}, s)

	_, err = Info(100, 100)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())
	err := Config{ChunkSize: 100, Overlap: 100}.Validate()
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}
