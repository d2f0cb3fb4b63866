package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of a non-JSON error body is quoted.
const maxErrorBody = 512

// APIError is a non-2xx answer from an embedding endpoint.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s embedder: HTTP %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s embedder: HTTP %d: %s", e.Provider, e.Status, e.Message)
}

// IsAPIError reports whether err carries an *APIError with the given status.
func IsAPIError(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// postJSON sends body as JSON and decodes a 2xx answer into out. On other
// statuses errMessage extracts a message from the raw body.
func postJSON(ctx context.Context, client *http.Client, provider, url string, header http.Header, body, out any, errMessage func([]byte) string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s embedder: marshal request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s embedder: create request: %w", provider, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s embedder: request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s embedder: read response: %w", provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := errMessage(raw)
		if msg == "" && len(raw) > 0 {
			msg = string(bytes.TrimSpace(raw[:min(len(raw), maxErrorBody)]))
		}
		return &APIError{Provider: provider, Status: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s embedder: decode response: %w", provider, err)
	}
	return nil
}

// checkShape verifies one vector per text, all of the same length.
func checkShape(provider string, texts int, vecs [][]float32) error {
	if len(vecs) != texts {
		return fmt.Errorf("%s embedder: expected %d embeddings, got %d", provider, texts, len(vecs))
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return fmt.Errorf("%s embedder: embedding %d is empty", provider, i)
		}
		if len(v) != len(vecs[0]) {
			return fmt.Errorf("%s embedder: embedding %d has %d dimensions, embedding 0 has %d", provider, i, len(v), len(vecs[0]))
		}
	}
	return nil
}
