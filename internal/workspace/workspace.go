// Package workspace opens a vault with its configuration and exposes the
// batch operations shared by the command line and the MCP server.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ryotapoi/anchorsync/internal/core"
	"github.com/ryotapoi/anchorsync/internal/index"
	"github.com/ryotapoi/anchorsync/internal/logging"
	"github.com/ryotapoi/anchorsync/internal/vault"
)

// ErrHeadingNotFound is returned by RenameHeading when the document has no
// heading with the given text.
var ErrHeadingNotFound = errors.New("heading not found")

// Workspace is an opened vault.
type Workspace struct {
	Root     string
	Config   core.Config
	FS       *vault.FS
	Resolver *vault.Resolver
	Engine   *core.Engine
	// Index is open when Config.Sync.Scope is backlinks.
	Index *index.Index

	logger *slog.Logger
}

// Open assembles the collaborators of the vault at root. With the
// backlinks scope the link index is opened, and built first when missing.
// An existing index is brought up to date with documents changed, added or
// deleted since it was last written.
func Open(ctx context.Context, root string, cfg core.Config, logger *slog.Logger) (*Workspace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	fs := vault.NewFS(root, cfg.Exclude.Paths)
	resolver, err := vault.LoadResolver(ctx, fs)
	if err != nil {
		return nil, fmt.Errorf("scan vault: %w", err)
	}

	w := &Workspace{
		Root:     fs.Root(),
		Config:   cfg,
		FS:       fs,
		Resolver: resolver,
		logger:   logger,
	}
	opts := []core.Option{
		core.WithCrossFileMarkdown(cfg.Sync.CrossFileMarkdown),
		core.WithTopK(cfg.Suggest.TopK),
		core.WithLogger(logger),
	}
	if cfg.Sync.Scope == core.ScopeBacklinks {
		ix, err := w.openIndex(ctx)
		if err != nil {
			return nil, err
		}
		w.Index = ix
		opts = append(opts, core.WithBacklinks(ix))
	}
	w.Engine = core.NewEngine(fs, resolver, core.NewMemorySnapshots(cfg.Cache.Size), opts...)
	return w, nil
}

func (w *Workspace) openIndex(ctx context.Context) (*index.Index, error) {
	ix, err := index.Open(w.Root)
	if errors.Is(err, index.ErrNotFound) {
		w.logger.Info("building link index", "root", w.Root)
		if err := index.Build(ctx, w.Root, w.FS, w.Resolver); err != nil {
			return nil, fmt.Errorf("build index: %w", err)
		}
		return index.Open(w.Root)
	}
	if err != nil {
		return nil, err
	}
	if err := w.refreshIndex(ctx, ix); err != nil {
		ix.Close()
		return nil, fmt.Errorf("refresh index: %w", err)
	}
	return ix, nil
}

// refreshIndex re-indexes documents modified after the index was last
// written, indexes new documents and drops deleted ones.
func (w *Workspace) refreshIndex(ctx context.Context, ix *index.Index) error {
	written, err := ix.ModTime()
	if err != nil {
		return err
	}
	indexed, err := ix.Paths(ctx)
	if err != nil {
		return err
	}
	docs, err := w.FS.List(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(indexed))
	for _, p := range indexed {
		known[p] = true
	}
	present := make(map[string]bool, len(docs))
	updated := 0
	for _, p := range docs {
		present[p] = true
		if known[p] {
			mt, err := w.FS.ModTime(p)
			if err != nil {
				return err
			}
			if !mt.After(written) {
				continue
			}
		}
		content, err := w.FS.Read(ctx, p)
		if err != nil {
			return err
		}
		if err := ix.Update(ctx, p, content, w.Resolver); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		updated++
	}
	removed := 0
	for _, p := range indexed {
		if present[p] {
			continue
		}
		if err := ix.Remove(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		removed++
	}
	if updated > 0 || removed > 0 {
		w.logger.Info("refreshed link index", "updated", updated, "removed", removed)
	}
	return nil
}

// Close releases the index, if open.
func (w *Workspace) Close() error {
	if w.Index == nil {
		return nil
	}
	return w.Index.Close()
}

// documents returns paths, or every document when paths is empty. Given
// paths may be absolute or relative to the working directory.
func (w *Workspace) documents(ctx context.Context, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return w.FS.List(ctx)
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := w.FS.Rel(p)
		if err != nil {
			return nil, err
		}
		if !vault.IsMarkdown(rel) {
			return nil, fmt.Errorf("%w: %s", vault.ErrNotMarkdown, p)
		}
		out = append(out, rel)
	}
	return out, nil
}

// reindex refreshes the index for written documents.
func (w *Workspace) reindex(ctx context.Context, docs map[string]string) {
	if w.Index == nil {
		return
	}
	for p, c := range docs {
		if err := w.Index.Update(ctx, p, c, w.Resolver); err != nil {
			w.logger.Warn("index update failed", "path", p, "err", err)
		}
	}
}

func sortedPaths(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
