package semantic

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestMeta(t *testing.T) *MetadataStore {
	t.Helper()
	store, err := NewMetadataStore(":memory:")
	if err != nil {
		t.Fatalf("NewMetadataStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDirectoryUpsertAndGet(t *testing.T) {
	store := newTestMeta(t)
	ctx := context.Background()

	if err := store.UpsertDirectory(ctx, "/projects/docs", DirStatusPending, 100); err != nil {
		t.Fatalf("UpsertDirectory failed: %v", err)
	}
	if err := store.UpsertDirectory(ctx, "/projects/docs", DirStatusCompleted, 200); err != nil {
		t.Fatalf("UpsertDirectory update failed: %v", err)
	}

	rec, err := store.GetDirectory(ctx, "/projects/docs")
	if err != nil {
		t.Fatalf("GetDirectory failed: %v", err)
	}
	if rec == nil {
		t.Fatal("expected directory record")
	}
	if rec.Status != DirStatusCompleted || rec.IndexedAt != 200 {
		t.Errorf("unexpected record: %+v", rec)
	}

	missing, err := store.GetDirectory(ctx, "/absent")
	if err != nil {
		t.Fatalf("GetDirectory failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for absent directory, got %+v", missing)
	}
}

func TestFileRoundTrip(t *testing.T) {
	store := newTestMeta(t)
	ctx := context.Background()

	rec := &FileRecord{
		Path:         "/projects/docs/guide.md",
		Size:         42,
		ModifiedTime: 1700000000,
		Hash:         "abc123",
		ParentDirs:   []string{"/projects", "/projects/docs"},
		Chunks:       []string{"first chunk", "second chunk"},
	}
	if err := store.UpsertFile(ctx, rec); err != nil {
		t.Fatalf("UpsertFile failed: %v", err)
	}

	got, err := store.GetFile(ctx, rec.Path)
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected file record")
	}
	if got.Hash != rec.Hash || got.Size != rec.Size || got.ModifiedTime != rec.ModifiedTime {
		t.Errorf("field mismatch: %+v", got)
	}
	if len(got.Chunks) != 2 || got.Chunks[0] != "first chunk" {
		t.Errorf("chunk mismatch: %v", got.Chunks)
	}
	if len(got.ParentDirs) != 2 || got.ParentDirs[1] != "/projects/docs" {
		t.Errorf("parent_dirs mismatch: %v", got.ParentDirs)
	}
	if got.Error != nil {
		t.Errorf("expected no error descriptor, got %+v", got.Error)
	}
}

func TestFileErrorRecord(t *testing.T) {
	store := newTestMeta(t)
	ctx := context.Background()

	rec := &FileRecord{
		Path:         "/projects/big.md",
		Size:         1 << 24,
		ModifiedTime: 1,
		ParentDirs:   []string{"/projects"},
		Error:        &FileError{Kind: "file_processing", Message: "file exceeds maximum size"},
	}
	if err := store.UpsertFile(ctx, rec); err != nil {
		t.Fatalf("UpsertFile failed: %v", err)
	}

	got, err := store.GetFile(ctx, rec.Path)
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if got.Error == nil || got.Error.Kind != "file_processing" {
		t.Errorf("expected error descriptor, got %+v", got.Error)
	}
	if got.Chunks != nil {
		t.Errorf("expected no chunks, got %v", got.Chunks)
	}
}

func TestFileUpsertReplaces(t *testing.T) {
	store := newTestMeta(t)
	ctx := context.Background()

	first := &FileRecord{Path: "/f.md", Hash: "h1", ParentDirs: []string{"/"}, Chunks: []string{"a"}}
	if err := store.UpsertFile(ctx, first); err != nil {
		t.Fatalf("UpsertFile failed: %v", err)
	}
	second := &FileRecord{Path: "/f.md", Hash: "h2", ParentDirs: []string{"/"}, Chunks: []string{"b", "c"}}
	if err := store.UpsertFile(ctx, second); err != nil {
		t.Fatalf("UpsertFile failed: %v", err)
	}

	got, _ := store.GetFile(ctx, "/f.md")
	if got.Hash != "h2" || len(got.Chunks) != 2 {
		t.Errorf("upsert did not replace: %+v", got)
	}
	n, err := store.CountFiles(ctx)
	if err != nil {
		t.Fatalf("CountFiles failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 file, got %d", n)
	}
}

func TestDeleteFile(t *testing.T) {
	store := newTestMeta(t)
	ctx := context.Background()

	rec := &FileRecord{Path: "/gone.md", ParentDirs: []string{"/"}}
	if err := store.UpsertFile(ctx, rec); err != nil {
		t.Fatalf("UpsertFile failed: %v", err)
	}
	if err := store.DeleteFile(ctx, "/gone.md"); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	got, _ := store.GetFile(ctx, "/gone.md")
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
	// Deleting an unknown path is not an error.
	if err := store.DeleteFile(ctx, "/never-existed.md"); err != nil {
		t.Errorf("delete of unknown path failed: %v", err)
	}
}

func TestListFilePathsPrefix(t *testing.T) {
	store := newTestMeta(t)
	ctx := context.Background()

	for _, p := range []string{"/a/one.md", "/a/two.md", "/b/three.md"} {
		if err := store.UpsertFile(ctx, &FileRecord{Path: p, ParentDirs: []string{"/"}}); err != nil {
			t.Fatalf("UpsertFile failed: %v", err)
		}
	}

	paths, err := store.ListFilePaths(ctx, "/a/")
	if err != nil {
		t.Fatalf("ListFilePaths failed: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/a/one.md" || paths[1] != "/a/two.md" {
		t.Errorf("unexpected paths: %v", paths)
	}
}

func TestCountChunks(t *testing.T) {
	store := newTestMeta(t)
	ctx := context.Background()

	files := []*FileRecord{
		{Path: "/1.md", ParentDirs: []string{"/"}, Chunks: []string{"a", "b"}},
		{Path: "/2.md", ParentDirs: []string{"/"}, Chunks: []string{"c"}},
		{Path: "/3.md", ParentDirs: []string{"/"}},
	}
	for _, f := range files {
		if err := store.UpsertFile(ctx, f); err != nil {
			t.Fatalf("UpsertFile failed: %v", err)
		}
	}

	n, err := store.CountChunks(ctx)
	if err != nil {
		t.Fatalf("CountChunks failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 chunks, got %d", n)
	}
}

func TestStoreLocking(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "meta.db")
	first, err := NewMetadataStore(dbPath)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	defer first.Close()

	if _, err := NewMetadataStore(dbPath); err == nil {
		t.Error("expected second open of the same database to fail")
	}
}

func TestClosedStore(t *testing.T) {
	store, err := NewMetadataStore(":memory:")
	if err != nil {
		t.Fatalf("NewMetadataStore failed: %v", err)
	}
	store.Close()

	if err := store.UpsertFile(context.Background(), &FileRecord{Path: "/x.md"}); err == nil {
		t.Error("expected write to closed store to fail")
	}
}
