package semantic

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// SearchOptions parameterizes one search call.
type SearchOptions struct {
	DirectoryFilter string  // restrict hits to files under this directory
	Limit           int     // required, >= 1
	Threshold       float32 // minimum score, in [0, 1]; 0 disables
	HasThreshold    bool
}

// Engine is the retrieval side: it embeds queries, searches the vector
// store, post-filters, and hydrates previews from the metadata store.
type Engine struct {
	meta     *MetadataStore
	vectors  VectorStore
	embedder Embedder
	logger   *slog.Logger
}

// NewEngine wires a retrieval engine over the shared stores.
func NewEngine(meta *MetadataStore, vectors VectorStore, embedder Embedder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{meta: meta, vectors: vectors, embedder: embedder, logger: logger}
}

// Search embeds the query, fetches the nearest points, and applies the
// directory and threshold filters client-side. Filtering happens after the
// fetch, so a tight filter can return fewer than limit results.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidInput("query text must not be empty")
	}
	if opts.Limit < 1 {
		return nil, ErrInvalidInput("limit must be at least 1, got %d", opts.Limit)
	}
	if opts.HasThreshold && (opts.Threshold < 0 || opts.Threshold > 1) {
		return nil, ErrInvalidInput("similarity_threshold must be in [0, 1], got %v", opts.Threshold)
	}

	var filterPrefix string
	if opts.DirectoryFilter != "" {
		norm, err := NormalizePath(opts.DirectoryFilter)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(opts.DirectoryFilter)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrNotFound("directory does not exist: %s", opts.DirectoryFilter)
			}
			return nil, Wrap(KindIO, err, "failed to access %s", opts.DirectoryFilter)
		}
		if !info.IsDir() {
			return nil, ErrInvalidInput("directory_filter is not a directory: %s", opts.DirectoryFilter)
		}
		filterPrefix = norm
		if !strings.HasSuffix(filterPrefix, "/") {
			filterPrefix += "/"
		}
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := e.vectors.Search(ctx, vec, opts.Limit)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if filterPrefix != "" && !strings.HasPrefix(hit.FilePath, filterPrefix) {
			continue
		}
		if opts.HasThreshold && hit.Score < opts.Threshold {
			continue
		}
		results = append(results, SearchResult{
			FilePath:   hit.FilePath,
			ChunkID:    hit.ChunkID,
			Score:      hit.Score,
			ParentDirs: hit.ParentDirs,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// previewLimit caps hydrated chunk previews.
const previewLimit = 200

// HydratePreviews fills each result's Preview with the start of its chunk
// text. Hydration failures are logged and skipped; previews are a rendering
// concern and never fail a search.
func (e *Engine) HydratePreviews(ctx context.Context, results []SearchResult) {
	for i := range results {
		chunks, err := e.meta.FileChunks(ctx, results[i].FilePath)
		if err != nil {
			e.logger.Debug("preview hydration failed", "path", results[i].FilePath, "error", err)
			continue
		}
		if results[i].ChunkID < 0 || results[i].ChunkID >= len(chunks) {
			continue
		}
		results[i].Preview = makePreview(chunks[results[i].ChunkID])
	}
}

func makePreview(chunk string) string {
	text := strings.Join(strings.Fields(chunk), " ")
	runes := []rune(text)
	if len(runes) > previewLimit {
		return string(runes[:previewLimit])
	}
	return text
}

// similarOverfetch widens the nearest-point fetch so the self-drop and
// per-file grouping still leave enough distinct files.
const similarOverfetch = 5

// representativeBytes is how much of an unindexed file is embedded to stand
// in for it during similarity lookup.
const representativeBytes = 512

// FindSimilarFiles returns up to limit files ranked by the similarity of
// their best chunk to the query file's representative text.
func (e *Engine) FindSimilarFiles(ctx context.Context, filePath string, limit int) ([]SimilarFile, error) {
	if limit < 1 {
		return nil, ErrInvalidInput("limit must be at least 1, got %d", limit)
	}
	norm, err := NormalizePath(filePath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound("file does not exist: %s", filePath)
		}
		return nil, Wrap(KindIO, err, "failed to access %s", filePath)
	}
	if !info.Mode().IsRegular() {
		return nil, ErrInvalidInput("path is not a regular file: %s", filePath)
	}

	rep, err := e.representativeText(ctx, norm, filePath)
	if err != nil {
		return nil, err
	}

	vec, err := e.embedder.Embed(ctx, rep)
	if err != nil {
		return nil, err
	}
	hits, err := e.vectors.Search(ctx, vec, limit+similarOverfetch)
	if err != nil {
		return nil, err
	}

	// Group by file, keeping each file's best-scoring chunk. The hits
	// arrive score-descending, so the first sighting of a path wins.
	best := make(map[string]SimilarFile)
	var order []string
	for _, hit := range hits {
		if hit.FilePath == norm {
			continue
		}
		if _, seen := best[hit.FilePath]; !seen {
			best[hit.FilePath] = SimilarFile{
				FilePath: hit.FilePath,
				ChunkID:  hit.ChunkID,
				Score:    hit.Score,
			}
			order = append(order, hit.FilePath)
		}
	}

	results := make([]SimilarFile, 0, len(order))
	for _, path := range order {
		results = append(results, best[path])
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// representativeText picks the text that stands in for a file: its first
// stored chunk when indexed, otherwise the head of the file read from disk.
func (e *Engine) representativeText(ctx context.Context, norm, original string) (string, error) {
	chunks, err := e.meta.FileChunks(ctx, norm)
	if err != nil {
		return "", err
	}
	if len(chunks) > 0 {
		return chunks[0], nil
	}

	f, err := os.Open(original)
	if err != nil {
		return "", Wrap(KindFileProcessing, err, "failed to read %s", original)
	}
	defer f.Close()

	buf := make([]byte, representativeBytes)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", Wrap(KindFileProcessing, err, "failed to read %s", original)
	}
	if n == 0 {
		return "", ErrInvalidInput("file is empty: %s", original)
	}
	return string(buf[:n]), nil
}
