// Package rank scores candidate embeddings against a query embedding with
// cosine similarity and returns the best matches in order.
package rank

import (
	"math"
	"sort"
)

// Result pairs a candidate's position in the input slice with its score.
type Result struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// Cosine returns dot(a,b) / (|a| * |b|). It returns 0 when either vector has
// zero norm or the vectors differ in length.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Rank scores every candidate against query and returns at most topK results
// ordered by descending score. Ties keep their input order. A topK larger
// than the candidate count returns every candidate; topK <= 0 returns none.
func Rank(query []float32, candidates [][]float32, topK int) []Result {
	if topK <= 0 || len(candidates) == 0 {
		return []Result{}
	}

	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{Index: i, Score: Cosine(query, c)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results
}
