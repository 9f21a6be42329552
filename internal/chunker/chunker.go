// Package chunker splits raw document text into overlapping fixed-size
// windows for embedding.
//
// Splitting is character-exact: no sentence or paragraph awareness. The
// overlap between consecutive windows preserves context that would
// otherwise be lost at a boundary. Split is a pure function: identical
// input and parameters always produce identical chunk boundaries.
package chunker

import (
	"errors"
	"fmt"
)

// Sentinel errors for parameter validation.
var (
	// ErrInvalidChunkSize indicates maxChars is not positive.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidOverlap indicates the overlap is negative or not smaller
	// than the chunk size (the window would never advance).
	ErrInvalidOverlap = errors.New("invalid overlap")
)

// Chunk is a bounded contiguous slice of a source document. Ordering
// within a document is significant (sequential Index); chunks are
// immutable once created.
type Chunk struct {
	Content string            // window text
	Source  string            // identifier of the originating document
	Index   int               // position within the source, starting at 0
	Extra   map[string]string // optional metadata attached by the caller
}

// Split divides text into windows of at most maxChars characters where
// consecutive windows share exactly overlapChars characters.
//
// Windows are measured in runes, not bytes, so multibyte text is never
// cut mid-character and every chunk is valid UTF-8.
//
// An empty text yields an empty slice, not an error. Callers that
// require at least one chunk must treat zero chunks as a validation
// failure rather than silent success.
func Split(text string, maxChars, overlapChars int, source string) ([]Chunk, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("%w: maxChars must be positive, got %d", ErrInvalidChunkSize, maxChars)
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidOverlap, maxChars, overlapChars)
	}

	if text == "" {
		return []Chunk{}, nil
	}

	runes := []rune(text)
	step := maxChars - overlapChars
	chunks := make([]Chunk, 0, (len(runes)+step-1)/step)

	for start := 0; start < len(runes); start += step {
		end := min(start+maxChars, len(runes))
		chunks = append(chunks, Chunk{
			Content: string(runes[start:end]),
			Source:  source,
			Index:   len(chunks),
		})
		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}
