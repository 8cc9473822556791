package semantic

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultMaxFileSize is the admission cap applied when none is configured.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Extension categories. Only files whose extension appears here are
// admissible; everything else is skipped silently.
var extensionCategories = map[string]string{
	// text
	"md": "text", "txt": "text", "rst": "text", "org": "text",
	// code
	"rs": "code", "py": "code", "js": "code", "ts": "code", "go": "code",
	"java": "code", "cpp": "code", "c": "code", "h": "code",
	// data
	"json": "data", "yaml": "data", "yml": "data", "toml": "data", "csv": "data",
	// markup
	"html": "markup", "xml": "markup",
	// config
	"env": "config", "conf": "config", "ini": "config", "cfg": "config",
}

// ExtensionCategory returns the textual category for a file name, or ""
// when the extension is not admissible.
func ExtensionCategory(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return ""
	}
	return extensionCategories[strings.ToLower(ext)]
}

// ScanConfig controls file admission.
type ScanConfig struct {
	IgnorePatterns   []string
	MaxFileSize      int64
	RespectGitignore bool
}

// Scanner produces the admissible-file sequence for a directory root.
type Scanner struct {
	cfg ScanConfig
}

// NewScanner creates a scanner with the given admission rules. A zero
// MaxFileSize falls back to DefaultMaxFileSize.
func NewScanner(cfg ScanConfig) *Scanner {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	return &Scanner{cfg: cfg}
}

// ScanResult separates admitted files from skips the metadata store should
// remember (currently only the oversize case).
type ScanResult struct {
	Files   []FileInfo
	Skipped []SkipReason
}

// Scan walks root and applies the admission rules in order: ignore
// patterns, size cap, extension category. Symbolic links are not followed.
// Traversal order is WalkDir's lexical order, so it is stable within a
// platform.
func (s *Scanner) Scan(root string) (*ScanResult, error) {
	normRoot, err := NormalizePath(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound("directory does not exist: %s", root)
		}
		return nil, Wrap(KindIO, err, "failed to access %s", root)
	}
	if !info.IsDir() {
		return nil, ErrInvalidInput("path is not a directory: %s", root)
	}

	var gi *ignore.GitIgnore
	if s.cfg.RespectGitignore {
		if parsed, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
			gi = parsed
		}
	}

	result := &ScanResult{}
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		norm, err := NormalizePath(path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && s.isIgnored(norm, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if s.isIgnored(norm, d.Name()) {
			return nil
		}
		if gi != nil {
			if rel, relErr := filepath.Rel(root, path); relErr == nil && gi.MatchesPath(rel) {
				return nil
			}
		}

		fi, err := d.Info()
		if err != nil {
			return nil // raced with deletion; nothing to admit
		}
		if fi.Size() > s.cfg.MaxFileSize {
			result.Skipped = append(result.Skipped, SkipReason{
				Path:    norm,
				Size:    fi.Size(),
				Mtime:   fi.ModTime().Unix(),
				Parents: ParentDirs(norm),
				Reason:  "file exceeds maximum size",
			})
			return nil
		}
		if ExtensionCategory(d.Name()) == "" {
			return nil
		}

		result.Files = append(result.Files, FileInfo{
			Path:       norm,
			Size:       fi.Size(),
			Mtime:      fi.ModTime().Unix(),
			ParentDirs: ParentDirs(norm),
		})
		return nil
	})
	if walkErr != nil {
		return nil, Wrap(KindIO, walkErr, "failed to walk %s", normRoot)
	}
	return result, nil
}

// isIgnored applies the four pattern rules in order: substring of the full
// path, the ".*" dotfile rule, "*suffix" matching, exact name match.
func (s *Scanner) isIgnored(normPath, name string) bool {
	for _, pat := range s.cfg.IgnorePatterns {
		if pat == "" {
			continue
		}
		if strings.Contains(normPath, pat) {
			return true
		}
		if pat == ".*" && strings.HasPrefix(name, ".") {
			return true
		}
		if strings.HasPrefix(pat, "*") && strings.HasSuffix(name, pat[1:]) {
			return true
		}
		if name == pat {
			return true
		}
	}
	return false
}
