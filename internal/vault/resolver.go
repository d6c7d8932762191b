package vault

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ryotapoi/anchorsync/internal/core"
)

// Resolver maps note references to vault-relative document paths.
//
// Basename references ([[Note]]) match case-insensitively. When several
// documents share a basename, a document at the vault root wins, then one in
// the linking document's directory, then the lexicographically first path.
// References containing "/" are vault-relative paths; "./" and "../"
// references are relative to the linking document and never leave the vault.
type Resolver struct {
	mu     sync.RWMutex
	paths  map[string]string   // lower path, with and without ".md" → path
	byBase map[string][]string // lower basename → sorted paths
}

var _ core.Resolver = (*Resolver)(nil)

// NewResolver returns a resolver over the given document paths.
func NewResolver(files []string) *Resolver {
	r := &Resolver{
		paths:  make(map[string]string),
		byBase: make(map[string][]string),
	}
	for _, f := range files {
		r.add(f)
	}
	return r
}

// LoadResolver lists the documents of s and returns a resolver over them.
func LoadResolver(ctx context.Context, s core.Storage) (*Resolver, error) {
	files, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return NewResolver(files), nil
}

// Add registers a new document path.
func (r *Resolver) Add(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(path)
}

func (r *Resolver) add(path string) {
	path = core.NormalizePath(path)
	lower := strings.ToLower(path)
	if _, ok := r.paths[lower]; ok {
		return
	}
	r.paths[lower] = path
	r.paths[strings.TrimSuffix(lower, ".md")] = path

	bk := strings.ToLower(core.BaseName(path))
	list := append(r.byBase[bk], path)
	sort.Strings(list)
	r.byBase[bk] = list
}

// Remove forgets a document path.
func (r *Resolver) Remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path = core.NormalizePath(path)
	lower := strings.ToLower(path)
	if _, ok := r.paths[lower]; !ok {
		return
	}
	delete(r.paths, lower)
	delete(r.paths, strings.TrimSuffix(lower, ".md"))

	bk := strings.ToLower(core.BaseName(path))
	list := r.byBase[bk][:0]
	for _, p := range r.byBase[bk] {
		if p != path {
			list = append(list, p)
		}
	}
	if len(list) == 0 {
		delete(r.byBase, bk)
		return
	}
	r.byBase[bk] = list
}

// Resolve implements core.Resolver.
func (r *Resolver) Resolve(note, sourcePath string) (string, bool) {
	note = strings.TrimSpace(note)
	if note == "" {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch {
	case isRelative(note):
		if escapesVault(sourcePath, note) {
			return "", false
		}
		return r.lookupPath(filepath.Join(filepath.Dir(sourcePath), note))
	case strings.HasPrefix(note, "/"):
		return r.lookupPath(strings.TrimPrefix(note, "/"))
	case strings.Contains(note, "/"):
		if pathEscapesVault(note) {
			return "", false
		}
		return r.lookupPath(note)
	}
	return r.lookupBasename(note, sourcePath)
}

func (r *Resolver) lookupPath(p string) (string, bool) {
	lower := strings.ToLower(core.NormalizePath(p))
	if actual, ok := r.paths[lower]; ok {
		return actual, true
	}
	if actual, ok := r.paths[lower+".md"]; ok {
		return actual, true
	}
	return "", false
}

func (r *Resolver) lookupBasename(name, sourcePath string) (string, bool) {
	candidates := r.byBase[strings.ToLower(name)]
	switch len(candidates) {
	case 0:
		return "", false
	case 1:
		return candidates[0], true
	}
	for _, c := range candidates {
		if !strings.Contains(c, "/") {
			return c, true
		}
	}
	dir := filepath.ToSlash(filepath.Dir(sourcePath))
	for _, c := range candidates {
		if filepath.ToSlash(filepath.Dir(c)) == dir {
			return c, true
		}
	}
	return candidates[0], true
}

func isRelative(note string) bool {
	return strings.HasPrefix(note, "./") || strings.HasPrefix(note, "../")
}

func escapesVault(fromPath, target string) bool {
	joined := filepath.ToSlash(filepath.Clean(filepath.Join(filepath.Dir(fromPath), target)))
	return joined == ".." || strings.HasPrefix(joined, "../")
}

func pathEscapesVault(target string) bool {
	cleaned := filepath.ToSlash(filepath.Clean(target))
	return cleaned == ".." || strings.HasPrefix(cleaned, "../")
}
