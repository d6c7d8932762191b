// Package vault provides the filesystem-backed collaborators of the sync
// engine: document storage and note-name resolution.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ryotapoi/anchorsync/internal/core"
)

// DataDirName holds anchorsync's own files inside the vault.
const DataDirName = ".anchorsync"

// ErrPathEscape is returned when a path resolves outside the vault.
var ErrPathEscape = errors.New("path escapes vault boundary")

// ErrNotMarkdown is returned when a path does not name a markdown document.
var ErrNotMarkdown = errors.New("not a markdown document")

// FS implements core.Storage over a vault directory.
type FS struct {
	root    string
	exclude []string
}

var _ core.Storage = (*FS)(nil)

// NewFS returns storage rooted at vaultPath. A leading "~" is expanded.
// Documents matching any exclude pattern are not listed.
func NewFS(vaultPath string, exclude []string) *FS {
	if strings.HasPrefix(vaultPath, "~") {
		home, _ := os.UserHomeDir()
		vaultPath = filepath.Join(home, vaultPath[1:])
	}
	return &FS{root: vaultPath, exclude: exclude}
}

// Root returns the vault directory.
func (f *FS) Root() string {
	return f.root
}

// Rel converts an absolute or working-directory-relative path into a
// vault-relative document path.
func (f *FS) Rel(path string) (string, error) {
	if !filepath.IsAbs(path) {
		if _, err := os.Stat(filepath.Join(f.root, path)); err == nil {
			return core.NormalizePath(path), nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", err
		}
		path = abs
	}
	rootAbs, err := filepath.Abs(f.root)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(rootAbs, path)
	if err != nil {
		return "", err
	}
	rel = core.NormalizePath(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, path)
	}
	return rel, nil
}

// safePath resolves a vault-relative path and rejects paths outside the vault.
func (f *FS) safePath(relPath string) (string, error) {
	absPath, err := filepath.Abs(filepath.Join(f.root, filepath.FromSlash(relPath)))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rootAbs, err := filepath.Abs(f.root)
	if err != nil {
		return "", fmt.Errorf("resolve vault path: %w", err)
	}
	if !strings.HasPrefix(absPath, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, relPath)
	}
	return absPath, nil
}

// Read returns the content of a document.
func (f *FS) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := f.safePath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ModTime returns when a document was last modified.
func (f *FS) ModTime(path string) (time.Time, error) {
	full, err := f.safePath(path)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Write replaces the content of a document, keeping its permission bits.
// New documents are created with mode 0644.
func (f *FS) Write(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !IsMarkdown(path) {
		return fmt.Errorf("%w: %s", ErrNotMarkdown, path)
	}
	full, err := f.safePath(path)
	if err != nil {
		return err
	}
	perm := os.FileMode(0o644)
	if info, err := os.Stat(full); err == nil {
		perm = info.Mode().Perm()
	}
	return writeFilePreservePerm(full, []byte(content), perm)
}

// List returns every markdown document in the vault, sorted. Hidden
// directories (".git", ".obsidian", ".anchorsync") are skipped.
func (f *FS) List(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(f.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != f.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsMarkdown(d.Name()) {
			rel, err := filepath.Rel(f.root, path)
			if err != nil {
				return err
			}
			files = append(files, core.NormalizePath(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	files = core.FilterExcludes(files, f.exclude)
	sort.Strings(files)
	return files, nil
}

// Excluded reports whether a vault-relative path is excluded by configuration.
func (f *FS) Excluded(path string) bool {
	return core.IsExcluded(path, f.exclude)
}

// IsMarkdown reports whether path has a .md extension.
func IsMarkdown(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".md")
}

// writeFilePreservePerm writes data to path with the given permission bits.
// os.WriteFile applies umask on file creation, so os.Chmod is called to
// ensure the exact permission bits are set.
func writeFilePreservePerm(path string, data []byte, perm os.FileMode) error {
	if err := os.WriteFile(path, data, perm); err != nil {
		return err
	}
	return os.Chmod(path, perm)
}
