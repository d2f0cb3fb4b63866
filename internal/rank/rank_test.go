package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 1},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tc.want, Cosine(tc.a, tc.b), 1e-6)
		})
	}
}

func TestRank_OrdersByScore(t *testing.T) {
	t.Parallel()

	query := []float32{1, 0}
	candidates := [][]float32{
		{0, 1},     // orthogonal
		{1, 0},     // identical
		{0.7, 0.7}, // 45 degrees
	}

	got := Rank(query, candidates, 3)
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Index)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
	assert.Equal(t, 2, got[1].Index)
	assert.Equal(t, 0, got[2].Index)
	assert.InDelta(t, 0.0, got[2].Score, 1e-6)
}

func TestRank_StableOnTies(t *testing.T) {
	t.Parallel()

	query := []float32{1, 1}
	candidates := [][]float32{{2, 2}, {0, 0}, {1, 1}, {5, 5}}

	got := Rank(query, candidates, 10)
	require.Len(t, got, 4)
	assert.Equal(t, []int{0, 2, 3, 1}, []int{got[0].Index, got[1].Index, got[2].Index, got[3].Index})
}

func TestRank_TopK(t *testing.T) {
	t.Parallel()

	query := []float32{1, 0}
	candidates := [][]float32{{1, 0}, {0, 1}, {1, 1}}

	assert.Len(t, Rank(query, candidates, 2), 2)
	assert.Len(t, Rank(query, candidates, 50), 3)
	assert.Empty(t, Rank(query, candidates, 0))
	assert.Empty(t, Rank(query, nil, 5))
}
