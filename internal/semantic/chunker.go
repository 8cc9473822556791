package semantic

// ChunkText splits text into overlapping byte windows. Windows start at
// multiples of size-overlap; the last window is truncated to the text end.
// Text no longer than size yields a single chunk. Overlap must satisfy
// 0 <= overlap < size.
//
// Chunks are byte-sliced, not grapheme-aware, so a window boundary can land
// inside a multi-byte sequence.
func ChunkText(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, ErrInvalidInput("chunk_size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, ErrInvalidInput("overlap must satisfy 0 <= overlap < chunk_size, got %d", overlap)
	}
	if len(text) == 0 {
		return nil, nil
	}
	if len(text) <= size {
		return []string{text}, nil
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}
	return chunks, nil
}
