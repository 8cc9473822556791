package semantic

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of files processed in parallel when the
// configuration does not say otherwise.
const DefaultConcurrency = 4

// DefaultEmbedBatchSize is the number of chunks sent per embedding request.
const DefaultEmbedBatchSize = 32

// PipelineConfig tunes one indexing run.
type PipelineConfig struct {
	ChunkSize   int
	Overlap     int
	Concurrency int
	BatchSize   int
	Force       bool // re-embed every file regardless of change detection
}

// ProgressFunc receives per-file progress during an indexing run. done is
// the number of files finished so far out of total for the current root.
type ProgressFunc func(root string, done, total int)

// Pipeline drives one indexing run over one or more roots. It owns the
// dual-store write protocol: vector points are committed before the
// metadata record, so the metadata store never references embeddings that
// were not stored.
type Pipeline struct {
	meta     *MetadataStore
	vectors  VectorStore
	embedder Embedder
	scanner  *Scanner
	cfg      PipelineConfig
	logger   *slog.Logger
	Progress ProgressFunc

	mu    sync.Mutex
	stats IndexStats
}

// NewPipeline wires the stores, embedder, and scanner together. Zero
// Concurrency and BatchSize fall back to the package defaults.
func NewPipeline(meta *MetadataStore, vectors VectorStore, embedder Embedder, scanner *Scanner, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultEmbedBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		meta:     meta,
		vectors:  vectors,
		embedder: embedder,
		scanner:  scanner,
		cfg:      cfg,
		logger:   logger,
	}
}

// IndexRoots reconciles store state, then indexes each root in turn. Roots
// are processed sequentially; files within a root are processed with
// bounded parallelism. A per-file failure is recorded and counted, never
// fatal; a per-root failure marks that root failed and aborts the run.
func (p *Pipeline) IndexRoots(ctx context.Context, roots []string) (*IndexStats, error) {
	forceAll, err := p.reconcile(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.vectors.EnsureCollection(ctx, p.embedder.Dimensions()); err != nil {
		return nil, err
	}

	for _, root := range roots {
		normRoot, err := NormalizePath(root)
		if err != nil {
			return nil, err
		}
		if err := p.indexRoot(ctx, root, normRoot, forceAll); err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.stats.DirsProcessed++
		p.mu.Unlock()
	}

	p.mu.Lock()
	out := p.stats
	p.mu.Unlock()
	return &out, nil
}

// reconcile detects divergence between the two stores before any write.
// Vectors without metadata cannot be repaired (the chunk text lives only in
// the metadata store), so that state refuses the run. Metadata without a
// collection is repairable: recreate the collection and re-embed everything.
func (p *Pipeline) reconcile(ctx context.Context) (forceAll bool, err error) {
	points, err := p.vectors.PointCount(ctx)
	if err != nil {
		return false, err
	}
	files, err := p.meta.CountFiles(ctx)
	if err != nil {
		return false, err
	}

	if points > 0 && files == 0 {
		return false, Errf(KindVectorStore,
			"vector collection holds %d points but the metadata store is empty", points).
			WithHint("Delete the collection (or point at a fresh one) and re-index.")
	}
	if files > 0 && points == 0 {
		exists, err := p.vectors.CollectionExists(ctx)
		if err != nil {
			return false, err
		}
		if !exists {
			p.logger.Warn("vector collection missing; re-embedding all indexed files",
				"files", files)
			return true, nil
		}
	}
	return p.cfg.Force, nil
}

// indexRoot scans first so an invalid root is reported before any directory
// record exists for it.
func (p *Pipeline) indexRoot(ctx context.Context, root, normRoot string, forceAll bool) error {
	result, err := p.scanner.Scan(root)
	if err != nil {
		return err
	}
	p.logger.Info("scanned root", "root", normRoot,
		"admitted", len(result.Files), "skipped", len(result.Skipped))

	if err := p.meta.UpsertDirectory(ctx, normRoot, DirStatusPending, time.Now().Unix()); err != nil {
		return err
	}
	if err := p.indexScanned(ctx, normRoot, result, forceAll); err != nil {
		_ = p.meta.UpsertDirectory(ctx, normRoot, DirStatusFailed, time.Now().Unix())
		return err
	}
	return p.meta.UpsertDirectory(ctx, normRoot, DirStatusCompleted, time.Now().Unix())
}

func (p *Pipeline) indexScanned(ctx context.Context, normRoot string, result *ScanResult, forceAll bool) error {
	if err := p.removeDisappeared(ctx, normRoot, result); err != nil {
		return err
	}
	for _, skip := range result.Skipped {
		if err := p.recordSkip(ctx, skip); err != nil {
			return err
		}
	}

	total := len(result.Files)
	var done int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, file := range result.Files {
		file := file
		g.Go(func() error {
			if err := p.processFile(gctx, file, forceAll); err != nil {
				return err
			}
			p.mu.Lock()
			done++
			d := done
			p.mu.Unlock()
			if p.Progress != nil {
				p.Progress(normRoot, d, total)
			}
			return nil
		})
	}
	return g.Wait()
}

// removeDisappeared deletes records for files that were indexed under this
// root but no longer appear on disk. Vector points go first, matching the
// commit order used for writes.
func (p *Pipeline) removeDisappeared(ctx context.Context, normRoot string, result *ScanResult) error {
	stored, err := p.meta.ListFilePaths(ctx, normRoot+"/")
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		return nil
	}

	present := make(map[string]bool, len(result.Files)+len(result.Skipped))
	for _, f := range result.Files {
		present[f.Path] = true
	}
	for _, s := range result.Skipped {
		present[s.Path] = true
	}

	for _, path := range stored {
		if present[path] {
			continue
		}
		p.logger.Debug("removing record for deleted file", "path", path)
		if err := p.vectors.DeleteByFilePath(ctx, path); err != nil {
			return err
		}
		if err := p.meta.DeleteFile(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

// recordSkip remembers a rejected file so repeated runs report it
// consistently and so status output can surface it.
func (p *Pipeline) recordSkip(ctx context.Context, skip SkipReason) error {
	rec := &FileRecord{
		Path:         skip.Path,
		Size:         skip.Size,
		ModifiedTime: skip.Mtime,
		ParentDirs:   skip.Parents,
		Error:        &FileError{Kind: KindFileProcessing.String(), Message: skip.Reason},
	}
	if err := p.meta.UpsertFile(ctx, rec); err != nil {
		return err
	}
	p.mu.Lock()
	p.stats.FilesSkipped++
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) processFile(ctx context.Context, file FileInfo, forceAll bool) error {
	content, err := os.ReadFile(file.Path)
	if err != nil {
		p.logger.Warn("failed to read file", "path", file.Path, "error", err)
		return p.recordFileError(ctx, file, "", KindFileProcessing, err.Error())
	}

	hash := HashBytes(content)
	if !forceAll {
		existing, err := p.meta.GetFile(ctx, file.Path)
		if err != nil {
			return err
		}
		if existing != nil && existing.Hash == hash && existing.ModifiedTime == file.Mtime && existing.Error == nil {
			p.mu.Lock()
			p.stats.FilesSkipped++
			p.mu.Unlock()
			return nil
		}
	}

	chunks, err := ChunkText(string(content), p.cfg.ChunkSize, p.cfg.Overlap)
	if err != nil {
		return err
	}

	// Drop stale points before writing the new generation.
	if err := p.vectors.DeleteByFilePath(ctx, file.Path); err != nil {
		return err
	}

	if len(chunks) == 0 {
		// Empty file: nothing to embed, but the record keeps change
		// detection working.
		return p.commitFile(ctx, file, hash, nil, nil, nil)
	}

	points, embedErr := p.embedChunks(ctx, file, chunks)
	if len(points) == 0 && embedErr != nil {
		p.logger.Warn("embedding failed for every chunk", "path", file.Path, "error", embedErr)
		return p.recordFileError(ctx, file, hash, KindEmbedding, embedErr.Error())
	}

	var fe *FileError
	if embedErr != nil {
		fe = &FileError{Kind: KindEmbedding.String(),
			Message: "some chunks failed to embed: " + embedErr.Error()}
	}
	return p.commitFile(ctx, file, hash, chunks, points, fe)
}

// embedChunks embeds in batches, falling back to per-chunk requests when a
// batch fails so one poisoned chunk cannot sink the file. A chunk that still
// fails gets no vector point; every point's ChunkID is the chunk's position
// in the full list, so failed chunks keep their ordinal in the metadata
// store.
func (p *Pipeline) embedChunks(ctx context.Context, file FileInfo, chunks []string) (points []VectorPoint, lastErr error) {
	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vecs, err := p.embedder.EmbedBatch(ctx, batch)
		if err == nil {
			for i, vec := range vecs {
				points = append(points, VectorPoint{
					FilePath:   file.Path,
					ChunkID:    start + i,
					ParentDirs: file.ParentDirs,
					Vector:     vec,
				})
			}
			continue
		}

		for i, chunk := range batch {
			vec, err := p.embedder.Embed(ctx, chunk)
			if err != nil {
				lastErr = err
				continue
			}
			points = append(points, VectorPoint{
				FilePath:   file.Path,
				ChunkID:    start + i,
				ParentDirs: file.ParentDirs,
				Vector:     vec,
			})
		}
	}
	return points, lastErr
}

// commitFile performs the dual-store commit: vector points first, then the
// metadata record that references them.
func (p *Pipeline) commitFile(ctx context.Context, file FileInfo, hash string, chunks []string, points []VectorPoint, fe *FileError) error {
	if err := p.vectors.UpsertPoints(ctx, points); err != nil {
		return err
	}
	rec := &FileRecord{
		Path:         file.Path,
		Size:         file.Size,
		ModifiedTime: file.Mtime,
		Hash:         hash,
		ParentDirs:   file.ParentDirs,
		Chunks:       chunks,
		Error:        fe,
	}
	if err := p.meta.UpsertFile(ctx, rec); err != nil {
		return err
	}

	p.mu.Lock()
	p.stats.FilesProcessed++
	p.stats.ChunksCreated += len(chunks)
	if fe != nil {
		p.stats.FilesErrored++
	}
	p.mu.Unlock()
	return nil
}

// recordFileError stores an error-only record for a file that produced no
// chunks this run.
func (p *Pipeline) recordFileError(ctx context.Context, file FileInfo, hash string, kind Kind, msg string) error {
	rec := &FileRecord{
		Path:         file.Path,
		Size:         file.Size,
		ModifiedTime: file.Mtime,
		Hash:         hash,
		ParentDirs:   file.ParentDirs,
		Error:        &FileError{Kind: kind.String(), Message: msg},
	}
	if err := p.meta.UpsertFile(ctx, rec); err != nil {
		return err
	}
	p.mu.Lock()
	p.stats.FilesErrored++
	p.mu.Unlock()
	return nil
}
