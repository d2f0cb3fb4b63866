package segment

import "unicode/utf8"

// Chunk is one segment of a document together with its position metadata.
type Chunk struct {
	// Index is the ordinal position of the chunk, starting at zero.
	Index int `json:"index"`
	// Text is the trimmed chunk content.
	Text string `json:"text"`
	// Length is the character count of Text.
	Length int `json:"length"`
	// StartOffset is a best-effort estimate of where the chunk begins in the
	// source text. It subtracts the overlap at every step and ignores the
	// shift introduced by natural-break cuts, so it is not exact.
	StartOffset int `json:"start_offset"`
	// Total is the number of chunks produced from the same text.
	Total int `json:"total"`
	// SourceInfo is copied from the caller untouched.
	SourceInfo map[string]string `json:"source_info,omitempty"`
}

// SegmentWithMetadata segments text like Segment and decorates every chunk
// with its index, length, estimated start offset and the total chunk count.
// source is attached to every chunk as-is.
func SegmentWithMetadata(text string, chunkSize, overlap int, source map[string]string) ([]Chunk, error) {
	texts, err := Segment(text, chunkSize, overlap)
	if err != nil {
		return nil, err
	}

	out := make([]Chunk, len(texts))
	offset := 0
	for i, t := range texts {
		length := utf8.RuneCountInString(t)
		out[i] = Chunk{
			Index:       i,
			Text:        t,
			Length:      length,
			StartOffset: max(offset, 0),
			Total:       len(texts),
			SourceInfo:  source,
		}
		offset += length - overlap
	}
	return out, nil
}

// Settings summarises a chunking configuration.
type Settings struct {
	ChunkSize int `json:"chunk_size"`
	Overlap   int `json:"overlap"`
	// Step is how far the cursor moves per window when no natural break
	// shortens it.
	Step int `json:"step"`
}

// Info validates the pair and reports the effective step.
func Info(chunkSize, overlap int) (Settings, error) {
	if err := Validate(chunkSize, overlap); err != nil {
		return Settings{}, err
	}
	return Settings{ChunkSize: chunkSize, Overlap: overlap, Step: chunkSize - overlap}, nil
}
