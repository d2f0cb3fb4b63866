// Package segment splits raw text into overlapping chunks that end on the
// best natural boundary available near the end of each window.
//
// Lengths and offsets are measured in characters (runes), not bytes, so
// accented text is cut at the same places regardless of encoding width.
package segment

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfiguration is matched by every *ConfigError.
var ErrInvalidConfiguration = errors.New("segment: invalid configuration")

// Break search windows, expressed as the fraction of the window a break must
// lie beyond to be accepted.
const (
	paragraphThreshold = 0.7
	sentenceThreshold  = 0.7
	wordThreshold      = 0.8
)

// ConfigError reports an unusable chunk size / overlap pair.
type ConfigError struct {
	ChunkSize int
	Overlap   int
	Reason    string
}

// Error implements error. Both offending values are always named.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("segment: invalid configuration chunk_size=%d overlap=%d: %s", e.ChunkSize, e.Overlap, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidConfiguration) match.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// Validate checks a chunk size / overlap pair before any text is touched.
func Validate(chunkSize, overlap int) error {
	switch {
	case chunkSize <= 0:
		return &ConfigError{ChunkSize: chunkSize, Overlap: overlap, Reason: "chunk size must be positive"}
	case overlap < 0:
		return &ConfigError{ChunkSize: chunkSize, Overlap: overlap, Reason: "overlap must not be negative"}
	case overlap >= chunkSize:
		return &ConfigError{ChunkSize: chunkSize, Overlap: overlap, Reason: "overlap must be smaller than chunk size"}
	}
	return nil
}

// span is a half-open rune range [start, end) of the source text.
type span struct {
	start, end int
}

// Segment splits text into chunks of at most chunkSize characters, with
// consecutive windows sharing up to overlap characters. Empty text yields an
// empty slice. Chunks are trimmed of surrounding whitespace and chunks that
// are blank after trimming are dropped.
func Segment(text string, chunkSize, overlap int) ([]string, error) {
	if err := Validate(chunkSize, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	chunks := []string{}
	for _, s := range windows(runes, chunkSize, overlap) {
		chunk := strings.TrimSpace(string(runes[s.start:s.end]))
		if chunk == "" {
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// windows walks the text and returns the untrimmed span of every window.
// The cursor always moves forward by at least one character, even when a
// natural break lands close to the previous start.
func windows(runes []rune, chunkSize, overlap int) []span {
	n := len(runes)
	if n == 0 {
		return nil
	}

	var out []span
	start := 0
	for start < n {
		end := start + chunkSize
		if end < n {
			end = start + cutPoint(runes[start:end], chunkSize)
		} else {
			end = n
		}
		out = append(out, span{start: start, end: end})

		if end >= n {
			break
		}

		next := end - overlap
		if next < 0 {
			next = 0
		}
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}

// cutPoint returns the length of the window to keep. It prefers a paragraph
// break, then a sentence break, then a word break, each only when it falls in
// the tail of the window, and otherwise cuts at chunkSize.
func cutPoint(window []rune, chunkSize int) int {
	size := float64(chunkSize)

	if idx := lastIndex(window, "\n\n"); idx >= 0 && float64(idx) > size*paragraphThreshold {
		return idx + 2
	}
	if idx := lastIndex(window, ". "); idx >= 0 && float64(idx) > size*sentenceThreshold {
		return idx + 2
	}
	if idx := lastIndex(window, " "); idx >= 0 && float64(idx) > size*wordThreshold {
		return idx + 1
	}
	return chunkSize
}

// lastIndex is strings.LastIndex over runes, returning a rune offset.
func lastIndex(window []rune, sep string) int {
	pat := []rune(sep)
	for i := len(window) - len(pat); i >= 0; i-- {
		match := true
		for j, r := range pat {
			if window[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
