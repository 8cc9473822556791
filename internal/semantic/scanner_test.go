package semantic

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func scanPaths(result *ScanResult) []string {
	var names []string
	for _, f := range result.Files {
		names = append(names, filepath.Base(f.Path))
	}
	return names
}

func TestScanAdmitsByExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.md", "docs")
	writeFile(t, dir, "main.go", "package main")
	writeFile(t, dir, "binary.exe", "junk")
	writeFile(t, dir, "noext", "junk")

	result, err := NewScanner(ScanConfig{}).Scan(dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	names := scanPaths(result)
	if len(names) != 2 {
		t.Fatalf("expected 2 admitted files, got %v", names)
	}
	for _, n := range names {
		if n != "readme.md" && n != "main.go" {
			t.Errorf("unexpected admitted file %s", n)
		}
	}
}

func TestScanIgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.md", "x")
	writeFile(t, dir, ".hidden.md", "x")
	writeFile(t, dir, "notes.tmp.md", "x")
	writeFile(t, dir, "exact.md", "x")
	writeFile(t, dir, filepath.Join("node_modules", "dep.js"), "x")

	scanner := NewScanner(ScanConfig{
		IgnorePatterns: []string{".*", "*.tmp.md", "exact.md", "node_modules"},
	})
	result, err := scanner.Scan(dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	names := scanPaths(result)
	if len(names) != 1 || names[0] != "keep.md" {
		t.Errorf("expected only keep.md, got %v", names)
	}
}

func TestScanOversizeRecorded(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.md", strings.Repeat("a", 2048))
	writeFile(t, dir, "small.md", "tiny")

	scanner := NewScanner(ScanConfig{MaxFileSize: 1024})
	result, err := scanner.Scan(dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(result.Files) != 1 || filepath.Base(result.Files[0].Path) != "small.md" {
		t.Errorf("expected only small.md admitted, got %v", scanPaths(result))
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("expected 1 skip record, got %d", len(result.Skipped))
	}
	skip := result.Skipped[0]
	if filepath.Base(skip.Path) != "big.md" || skip.Size != 2048 {
		t.Errorf("unexpected skip record: %+v", skip)
	}
}

func TestScanOversizeBeforeExtension(t *testing.T) {
	// The size cap applies before the extension filter, so an oversized
	// file with an unknown extension still produces a skip record.
	dir := t.TempDir()
	writeFile(t, dir, "huge.bin", strings.Repeat("a", 2048))

	result, err := NewScanner(ScanConfig{MaxFileSize: 1024}).Scan(dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(result.Skipped) != 1 {
		t.Errorf("expected skip record for oversized file, got %d", len(result.Skipped))
	}
}

func TestScanMissingRoot(t *testing.T) {
	_, err := NewScanner(ScanConfig{}).Scan(filepath.Join(t.TempDir(), "nope"))
	if !IsKind(err, KindNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestScanRootNotDirectory(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "f.md", "x")
	_, err := NewScanner(ScanConfig{}).Scan(file)
	if !IsKind(err, KindInvalidInput) {
		t.Errorf("expected invalid_input, got %v", err)
	}
}

func TestScanSkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "real.md", "x")
	link := filepath.Join(dir, "link.md")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	result, err := NewScanner(ScanConfig{}).Scan(dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	names := scanPaths(result)
	if len(names) != 1 || names[0] != "real.md" {
		t.Errorf("expected only real.md, got %v", names)
	}
}

func TestScanRespectsGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "generated.md\n")
	writeFile(t, dir, "generated.md", "x")
	writeFile(t, dir, "source.md", "x")

	scanner := NewScanner(ScanConfig{RespectGitignore: true})
	result, err := scanner.Scan(dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	for _, f := range result.Files {
		if filepath.Base(f.Path) == "generated.md" {
			t.Errorf("gitignored file was admitted")
		}
	}
}

func TestExtensionCategory(t *testing.T) {
	cases := map[string]string{
		"a.md":   "text",
		"a.go":   "code",
		"a.json": "data",
		"a.html": "markup",
		"a.ini":  "config",
		"a.exe":  "",
		"a":      "",
	}
	for name, want := range cases {
		if got := ExtensionCategory(name); got != want {
			t.Errorf("ExtensionCategory(%s): expected %q, got %q", name, want, got)
		}
	}
}

func TestScanParentDirsPopulated(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("sub", "deep.md"), "x")

	result, err := NewScanner(ScanConfig{}).Scan(dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(result.Files) != 1 {
		t.Fatalf("expected one file, got %d", len(result.Files))
	}
	parents := result.Files[0].ParentDirs
	if len(parents) == 0 {
		t.Fatal("expected parent dirs")
	}
	normSub, _ := NormalizePath(filepath.Join(dir, "sub"))
	if parents[len(parents)-1] != normSub {
		t.Errorf("expected innermost parent %s, got %s", normSub, parents[len(parents)-1])
	}
}
