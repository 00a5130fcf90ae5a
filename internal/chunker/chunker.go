package chunker

import "strings"

// Chunk splits text into consecutive rune-positional slices of at most maxLen
// runes. Boundaries are purely positional; concatenating the result always
// reproduces the input exactly. Empty input yields zero chunks.
func Chunk(text string, maxLen int) []string {
    if text == "" || maxLen <= 0 {
        return nil
    }
    runes := []rune(text)
    chunks := make([]string, 0, (len(runes)+maxLen-1)/maxLen)
    for i := 0; i < len(runes); i += maxLen {
        end := i + maxLen
        if end > len(runes) {
            end = len(runes)
        }
        chunks = append(chunks, string(runes[i:end]))
    }
    return chunks
}

// Group joins up to groupSize consecutive chunks per batch, separated by a
// newline. Batching amortizes per-call overhead against the remote model;
// batch count is ceil(len(chunks)/groupSize).
func Group(chunks []string, groupSize int) []string {
    if len(chunks) == 0 {
        return nil
    }
    if groupSize < 1 {
        groupSize = 1
    }
    batches := make([]string, 0, (len(chunks)+groupSize-1)/groupSize)
    for i := 0; i < len(chunks); i += groupSize {
        end := i + groupSize
        if end > len(chunks) {
            end = len(chunks)
        }
        batches = append(batches, strings.Join(chunks[i:end], "\n"))
    }
    return batches
}
