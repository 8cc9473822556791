package semantic

import (
	"context"
	"os"
	"strconv"
	"strings"
)

// ChunkRange selects stored chunks by 1-indexed inclusive ordinals.
type ChunkRange struct {
	Start int
	End   int
}

// ParseChunkRange parses "N" or "N-M" into a range. Ordinals are 1-indexed
// and Start must not exceed End.
func ParseChunkRange(s string) (ChunkRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ChunkRange{}, ErrInvalidInput("empty chunk range")
	}

	parse := func(part string) (int, error) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, ErrInvalidInput("invalid chunk range %q", s)
		}
		if n < 1 {
			return 0, ErrInvalidInput("chunk ordinals are 1-indexed, got %d in %q", n, s)
		}
		return n, nil
	}

	if idx := strings.Index(s, "-"); idx >= 0 {
		start, err := parse(s[:idx])
		if err != nil {
			return ChunkRange{}, err
		}
		end, err := parse(s[idx+1:])
		if err != nil {
			return ChunkRange{}, err
		}
		if start > end {
			return ChunkRange{}, ErrInvalidInput("chunk range start %d exceeds end %d", start, end)
		}
		return ChunkRange{Start: start, End: end}, nil
	}

	n, err := parse(s)
	if err != nil {
		return ChunkRange{}, err
	}
	return ChunkRange{Start: n, End: n}, nil
}

// bandCount is the number of synthetic line bands used when a file has no
// stored chunks.
const bandCount = 10

// GetFileContent returns file content, either whole or narrowed to a chunk
// range. With stored chunks the range indexes the chunk list; without, the
// file's lines are split into equal bands and the range indexes bands.
func (e *Engine) GetFileContent(ctx context.Context, filePath string, rng *ChunkRange) (string, error) {
	norm, err := NormalizePath(filePath)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound("file does not exist: %s", filePath)
		}
		return "", Wrap(KindIO, err, "failed to access %s", filePath)
	}
	if !info.Mode().IsRegular() {
		return "", ErrInvalidInput("path is not a regular file: %s", filePath)
	}

	if rng == nil {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", Wrap(KindFileProcessing, err, "failed to read %s", filePath)
		}
		return string(content), nil
	}
	if rng.Start < 1 || rng.End < rng.Start {
		return "", ErrInvalidInput("malformed chunk range (%d, %d)", rng.Start, rng.End)
	}

	chunks, err := e.meta.FileChunks(ctx, norm)
	if err != nil {
		return "", err
	}
	if len(chunks) > 0 {
		if rng.Start > len(chunks) {
			return "", ErrInvalidInput("chunk range start %d exceeds chunk count %d", rng.Start, len(chunks))
		}
		end := rng.End
		if end > len(chunks) {
			end = len(chunks)
		}
		return strings.Join(chunks[rng.Start-1:end], "\n"), nil
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", Wrap(KindFileProcessing, err, "failed to read %s", filePath)
	}
	return selectLineBands(string(content), rng.Start, rng.End)
}

// selectLineBands splits content's lines into bandCount equal bands and
// joins bands start..end. Bands past the last populated one are empty, so
// only start > bandCount is out of range.
func selectLineBands(content string, start, end int) (string, error) {
	if start > bandCount {
		return "", ErrInvalidInput("chunk range start %d exceeds band count %d", start, bandCount)
	}
	if end > bandCount {
		end = bandCount
	}

	lines := strings.Split(content, "\n")
	bandSize := (len(lines) + bandCount - 1) / bandCount
	if bandSize < 1 {
		bandSize = 1
	}

	var out []string
	for band := start; band <= end; band++ {
		lo := (band - 1) * bandSize
		hi := band * bandSize
		if lo >= len(lines) {
			break
		}
		if hi > len(lines) {
			hi = len(lines)
		}
		out = append(out, lines[lo:hi]...)
	}
	return strings.Join(out, "\n"), nil
}
