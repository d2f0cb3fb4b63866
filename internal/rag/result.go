package rag

// RetrievalStatus tags the outcome of a retrieval.
type RetrievalStatus string

const (
	// RetrievalSuccess means at least one document was found.
	RetrievalSuccess RetrievalStatus = "success"
	// RetrievalEmpty means the search ran and matched nothing.
	RetrievalEmpty RetrievalStatus = "empty"
	// RetrievalError means embedding or search failed; Err holds the cause.
	RetrievalError RetrievalStatus = "error"
)

// RetrievalResult is the explicit outcome of Retriever.Retrieve. Callers
// branch on Status instead of inspecting errors.
type RetrievalResult struct {
	Status    RetrievalStatus
	Documents []Document
	Err       error
}

// Succeeded wraps a non-empty document list. An empty list is reported as
// RetrievalEmpty.
func Succeeded(docs []Document) RetrievalResult {
	if len(docs) == 0 {
		return RetrievalResult{Status: RetrievalEmpty}
	}
	return RetrievalResult{Status: RetrievalSuccess, Documents: docs}
}

// Failed wraps a retrieval error.
func Failed(err error) RetrievalResult {
	return RetrievalResult{Status: RetrievalError, Err: err}
}

// Contents returns the text of every retrieved document in rank order.
func (r RetrievalResult) Contents() []string {
	out := make([]string, len(r.Documents))
	for i, d := range r.Documents {
		out[i] = d.Content
	}
	return out
}
