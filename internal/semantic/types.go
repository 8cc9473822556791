package semantic

import (
	"crypto/sha256"
	"encoding/hex"
)

// Directory status values stored in the metadata store.
const (
	DirStatusPending   = "pending"
	DirStatusCompleted = "completed"
	DirStatusFailed    = "failed"
)

// DirectoryRecord is the durable record of an indexed root.
type DirectoryRecord struct {
	Path      string `json:"path"`
	Status    string `json:"status"`
	IndexedAt int64  `json:"indexed_at"`
}

// FileInfo describes an admitted file as produced by the scanner.
type FileInfo struct {
	Path       string   // normalized absolute path
	Size       int64    // bytes
	Mtime      int64    // seconds since epoch
	ParentDirs []string // normalized ancestor directories, outermost first
}

// SkipReason explains why the scanner rejected a file that should still be
// remembered by the metadata store.
type SkipReason struct {
	Path    string
	Size    int64
	Mtime   int64
	Parents []string
	Reason  string
}

// FileError is the structured error descriptor persisted in errors_json.
type FileError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// FileRecord is the durable per-file record in the metadata store.
// Chunks holds the literal chunk strings in order; it is empty for files
// that were recorded only to remember a skip or read failure.
type FileRecord struct {
	Path         string
	Size         int64
	ModifiedTime int64
	Hash         string
	ParentDirs   []string
	Chunks       []string
	Error        *FileError
}

// IndexStats aggregates the outcome of one IndexRoots invocation.
type IndexStats struct {
	DirsProcessed  int `json:"dirs_processed"`
	FilesProcessed int `json:"files_processed"`
	FilesSkipped   int `json:"files_skipped"`
	FilesErrored   int `json:"files_errored"`
	ChunksCreated  int `json:"chunks_created"`
}

// SearchResult is one ranked hit from the retrieval engine. Preview is a
// rendering concern: it is populated only when the caller asks for
// hydration and never affects ranking.
type SearchResult struct {
	FilePath   string   `json:"file_path"`
	ChunkID    int      `json:"chunk_id"`
	Score      float32  `json:"score"`
	ParentDirs []string `json:"parent_dirs,omitempty"`
	Preview    string   `json:"preview,omitempty"`
}

// SimilarFile is one entry of a similar-file lookup: the best-scoring chunk
// of a file other than the query file.
type SimilarFile struct {
	FilePath string  `json:"file_path"`
	ChunkID  int     `json:"chunk_id"`
	Score    float32 `json:"score"`
}

// HashBytes returns the SHA-256 hex digest of content.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
