package semantic

import (
	"path/filepath"
	"strings"
)

// NormalizePath converts a path to the canonical form stored everywhere in
// the index: absolute, forward slashes, lower-cased drive letter on
// platforms that have one. Every path written to the metadata store or a
// vector payload goes through this function.
func NormalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", Wrap(KindInvalidInput, err, "invalid path: %s", path)
	}
	norm := filepath.ToSlash(abs)
	if len(norm) >= 2 && norm[1] == ':' {
		norm = strings.ToLower(norm[:1]) + norm[1:]
	}
	return norm, nil
}

// ParentDirs returns the normalized ancestor directories of a file path,
// outermost first. The input must already be normalized.
func ParentDirs(normPath string) []string {
	var parents []string
	dir := normPath
	for {
		parent := filepath.ToSlash(filepath.Dir(filepath.FromSlash(dir)))
		if parent == dir || parent == "." {
			break
		}
		parents = append(parents, parent)
		dir = parent
	}
	// Reverse so the outermost ancestor comes first.
	for i, j := 0, len(parents)-1; i < j; i, j = i+1, j-1 {
		parents[i], parents[j] = parents[j], parents[i]
	}
	return parents
}
