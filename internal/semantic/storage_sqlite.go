package semantic

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// MetadataStore is the durable relational side of the dual store. It is
// single-writer per process: one handle, writes serialized by mu, and a
// filesystem lock guarding against a second dirindex process opening the
// same database.
type MetadataStore struct {
	db     *sql.DB
	lock   *flock.Flock
	path   string
	mu     sync.Mutex
	closed bool
}

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = Errf(KindDatabase, "metadata store is closed")

// NewMetadataStore opens (creating if necessary) the metadata database at
// dbPath. Pass ":memory:" for an ephemeral store in tests.
func NewMetadataStore(dbPath string) (*MetadataStore, error) {
	var lk *flock.Flock
	if dbPath != ":memory:" && dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, Wrap(KindIO, err, "failed to create metadata directory")
		}
		lk = flock.New(dbPath + ".lock")
		locked, err := lk.TryLock()
		if err != nil {
			return nil, Wrap(KindDatabase, err, "failed to lock metadata database")
		}
		if !locked {
			return nil, Errf(KindDatabase, "metadata database %s is locked by another process", dbPath)
		}
	}
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, Wrap(KindDatabase, err, "failed to open metadata database")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, Wrap(KindDatabase, err, "failed to enable WAL mode")
	}

	s := &MetadataStore{db: db, lock: lk, path: dbPath}
	if err := s.initSchema(); err != nil {
		s.Close()
		return nil, Wrap(KindDatabase, err, "failed to initialize schema")
	}
	return s, nil
}

func (s *MetadataStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS directories (
		id INTEGER PRIMARY KEY,
		path TEXT UNIQUE NOT NULL,
		status TEXT NOT NULL,
		indexed_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY,
		path TEXT UNIQUE NOT NULL,
		size INTEGER NOT NULL,
		modified_time INTEGER NOT NULL,
		hash TEXT NOT NULL,
		parent_dirs TEXT NOT NULL,
		chunks_json TEXT,
		errors_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_files_path ON files(path);
	CREATE INDEX IF NOT EXISTS idx_files_parent_dirs ON files(parent_dirs);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertDirectory creates or updates a directory record.
func (s *MetadataStore) UpsertDirectory(ctx context.Context, path, status string, indexedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO directories (path, status, indexed_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET status = excluded.status, indexed_at = excluded.indexed_at
	`, path, status, indexedAt)
	if err != nil {
		return Wrap(KindDatabase, err, "failed to upsert directory %s", path)
	}
	return nil
}

// GetDirectory returns the record for a root, or nil when absent.
func (s *MetadataStore) GetDirectory(ctx context.Context, path string) (*DirectoryRecord, error) {
	var rec DirectoryRecord
	var indexedAt sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT path, status, indexed_at FROM directories WHERE path = ?`,
		path).Scan(&rec.Path, &rec.Status, &indexedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, Wrap(KindDatabase, err, "failed to read directory %s", path)
	}
	rec.IndexedAt = indexedAt.Int64
	return &rec, nil
}

// UpsertFile replaces the record for rec.Path in place.
func (s *MetadataStore) UpsertFile(ctx context.Context, rec *FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	parents, err := json.Marshal(rec.ParentDirs)
	if err != nil {
		return Wrap(KindJSON, err, "failed to encode parent_dirs")
	}
	var chunks, errs interface{}
	if rec.Chunks != nil {
		b, err := json.Marshal(rec.Chunks)
		if err != nil {
			return Wrap(KindJSON, err, "failed to encode chunks")
		}
		chunks = string(b)
	}
	if rec.Error != nil {
		b, err := json.Marshal(rec.Error)
		if err != nil {
			return Wrap(KindJSON, err, "failed to encode error descriptor")
		}
		errs = string(b)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO files (path, size, modified_time, hash, parent_dirs, chunks_json, errors_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			modified_time = excluded.modified_time,
			hash = excluded.hash,
			parent_dirs = excluded.parent_dirs,
			chunks_json = excluded.chunks_json,
			errors_json = excluded.errors_json
	`, rec.Path, rec.Size, rec.ModifiedTime, rec.Hash, string(parents), chunks, errs)
	if err != nil {
		return Wrap(KindDatabase, err, "failed to upsert file %s", rec.Path)
	}
	return nil
}

// GetFile returns the record for a normalized path, or nil when absent.
func (s *MetadataStore) GetFile(ctx context.Context, path string) (*FileRecord, error) {
	var rec FileRecord
	var parents string
	var chunks, errs sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT path, size, modified_time, hash, parent_dirs, chunks_json, errors_json
		FROM files WHERE path = ?
	`, path).Scan(&rec.Path, &rec.Size, &rec.ModifiedTime, &rec.Hash, &parents, &chunks, &errs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, Wrap(KindDatabase, err, "failed to read file %s", path)
	}

	if err := json.Unmarshal([]byte(parents), &rec.ParentDirs); err != nil {
		return nil, Wrap(KindJSON, err, "corrupt parent_dirs for %s", path)
	}
	if chunks.Valid && chunks.String != "" {
		if err := json.Unmarshal([]byte(chunks.String), &rec.Chunks); err != nil {
			return nil, Wrap(KindJSON, err, "corrupt chunks_json for %s", path)
		}
	}
	if errs.Valid && errs.String != "" {
		var fe FileError
		if err := json.Unmarshal([]byte(errs.String), &fe); err != nil {
			return nil, Wrap(KindJSON, err, "corrupt errors_json for %s", path)
		}
		rec.Error = &fe
	}
	return &rec, nil
}

// FileChunks returns the stored chunk strings for a path, or nil when the
// file is unknown or carries no chunks.
func (s *MetadataStore) FileChunks(ctx context.Context, path string) ([]string, error) {
	rec, err := s.GetFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return rec.Chunks, nil
}

// DeleteFile removes the record for a path. Deleting an unknown path is
// not an error.
func (s *MetadataStore) DeleteFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
		return Wrap(KindDatabase, err, "failed to delete file %s", path)
	}
	return nil
}

// ListFilePaths returns every stored path that begins with prefix, in
// lexical order.
func (s *MetadataStore) ListFilePaths(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM files WHERE path LIKE ? || '%' ORDER BY path`, prefix)
	if err != nil {
		return nil, Wrap(KindDatabase, err, "failed to list files")
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, Wrap(KindDatabase, err, "failed to scan file path")
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// CountFiles returns the number of file records.
func (s *MetadataStore) CountFiles(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, Wrap(KindDatabase, err, "failed to count files")
	}
	return n, nil
}

// CountDirectories returns the number of directory records.
func (s *MetadataStore) CountDirectories(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM directories`).Scan(&n); err != nil {
		return 0, Wrap(KindDatabase, err, "failed to count directories")
	}
	return n, nil
}

// CountChunks returns the total number of stored chunks across all files.
func (s *MetadataStore) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(json_array_length(chunks_json)), 0) FROM files WHERE chunks_json IS NOT NULL`).Scan(&n)
	if err != nil {
		return 0, Wrap(KindDatabase, err, "failed to count chunks")
	}
	return n, nil
}

// DatabaseSize returns the on-disk size in bytes, or 0 for an in-memory
// store.
func (s *MetadataStore) DatabaseSize() int64 {
	if s.path == ":memory:" {
		return 0
	}
	var total int64
	for _, p := range []string{s.path, s.path + "-wal"} {
		if fi, err := os.Stat(p); err == nil {
			total += fi.Size()
		}
	}
	return total
}

// Close releases the database handle and the process lock.
func (s *MetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.db.Close()
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	return err
}
