package services

import "fmt"

// DefaultChunkSize bounds how much text a single generation call sees.
const DefaultChunkSize = 8000

// Chunk is one bounded-length contiguous slice of the extracted text.
type Chunk struct {
	Index int
	Text  string
}

// SplitChunks splits text into contiguous, non-overlapping spans of at most
// maxLen runes, preserving order. The final chunk may be shorter.
// Concatenating the chunks reconstructs the input exactly. Splitting is by
// length only; mid-sentence splits are accepted.
func SplitChunks(text string, maxLen int) ([]Chunk, error) {
	if maxLen <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", maxLen)
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	chunks := make([]Chunk, 0, (len(runes)+maxLen-1)/maxLen)
	for start := 0; start < len(runes); start += maxLen {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
		})
	}
	return chunks, nil
}
