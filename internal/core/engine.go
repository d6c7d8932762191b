package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ryotapoi/anchorsync/internal/logging"
)

// Storage reads and writes documents by vault-relative path.
type Storage interface {
	Read(ctx context.Context, path string) (string, error)
	Write(ctx context.Context, path, content string) error
	List(ctx context.Context) ([]string, error)
}

// BacklinkSource lists the documents that link to target.
type BacklinkSource interface {
	Backlinks(ctx context.Context, target string) ([]string, error)
}

// ModifyResult is the outcome of processing one modification event.
type ModifyResult struct {
	Path    string
	Content string          // content of Path after in-file rewriting
	Rewrote bool            // Content differs from the modified content
	Seeded  bool            // no prior snapshot existed; nothing was diffed
	Changes []HeadingChange // detected renames
	Updated map[string]string
	Broken  []BrokenLink
	Failed  map[string]error // documents skipped because of storage errors
}

// RepairCandidate is a broken heading link with ranked replacement headings.
type RepairCandidate struct {
	Occurrence  LinkOccurrence
	RawLink     string
	Target      string
	Suggestions []Suggestion
}

// Engine keeps heading links consistent across a vault.
type Engine struct {
	storage       Storage
	resolver      Resolver
	snapshots     SnapshotStore
	backlinks     BacklinkSource
	crossMarkdown bool
	topK          int
	logger        *slog.Logger

	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithBacklinks restricts cross-file propagation to the documents src
// reports as linking to the renamed document, instead of every document.
func WithBacklinks(src BacklinkSource) Option {
	return func(e *Engine) { e.backlinks = src }
}

// WithCrossFileMarkdown also rewrites [label](Note.md#Heading) links in
// other documents.
func WithCrossFileMarkdown(enabled bool) Option {
	return func(e *Engine) { e.crossMarkdown = enabled }
}

// WithTopK limits the suggestions returned per repair candidate.
func WithTopK(k int) Option {
	return func(e *Engine) { e.topK = k }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an Engine over the given collaborators.
func NewEngine(storage Storage, resolver Resolver, snapshots SnapshotStore, opts ...Option) *Engine {
	e := &Engine{
		storage:   storage,
		resolver:  resolver,
		snapshots: snapshots,
		topK:      defaultTopK,
		logger:    logging.Discard(),
		inflight:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// lock serializes event handling per document.
func (e *Engine) lock(path string) func() {
	e.mu.Lock()
	m, ok := e.inflight[path]
	if !ok {
		m = &sync.Mutex{}
		e.inflight[path] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Prime records the current headings of every document so that the first
// modification of each one can be diffed. It returns the number of
// documents recorded; unreadable documents are skipped.
func (e *Engine) Prime(ctx context.Context) (int, error) {
	paths, err := e.storage.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}
	n := 0
	for _, p := range paths {
		content, err := e.storage.Read(ctx, p)
		if err != nil {
			e.logger.Warn("skip unreadable document", "path", p, "err", err)
			continue
		}
		e.snapshots.Put(p, ExtractHeadings(content))
		n++
	}
	return n, nil
}

// Snapshot returns the heading list last recorded for path.
func (e *Engine) Snapshot(path string) ([]string, bool) {
	return e.snapshots.Get(path)
}

// Observe records the headings of content as the current snapshot of path.
func (e *Engine) Observe(path, content string) {
	unlock := e.lock(path)
	defer unlock()
	e.snapshots.Put(path, ExtractHeadings(content))
}

// Broken returns every heading link in content that does not resolve.
func (e *Engine) Broken(ctx context.Context, path, content string) ([]BrokenLink, error) {
	return FindBroken(content, path, e.resolver, e.headingsFor(ctx, path, content, nil))
}

// OnDocumentOpened returns a description of every broken heading link in
// content. It returns nil when there is nothing to report.
func (e *Engine) OnDocumentOpened(ctx context.Context, path, content string) ([]string, error) {
	broken, err := e.Broken(ctx, path, content)
	if err != nil {
		return nil, err
	}
	if len(broken) == 0 {
		return nil, nil
	}
	out := make([]string, len(broken))
	for i, b := range broken {
		out[i] = b.Describe()
	}
	return out, nil
}

// OnDocumentModified diffs the headings of newContent against the last
// snapshot of path, rewrites links to renamed headings in path and in other
// documents, and re-validates path. Links in path that name path itself
// ([[Self#Old]], [x](Self.md#Old)) are rewritten along with internal links. Nothing is written; the caller persists
// Content and Updated (see Commit).
func (e *Engine) OnDocumentModified(ctx context.Context, path, newContent string) (*ModifyResult, error) {
	unlock := e.lock(path)
	defer unlock()

	res := &ModifyResult{Path: path, Content: newContent}
	old, ok := e.snapshots.Get(path)
	if !ok {
		res.Seeded = true
		e.logger.Debug("seeded heading snapshot", "path", path)
	} else {
		res.Changes = DiffHeadings(old, ExtractHeadings(newContent))
	}

	if len(res.Changes) > 0 {
		for _, c := range res.Changes {
			e.logger.Info("heading renamed", "path", path, "old", c.Old, "new", c.New)
		}
		res.Content = Rewrite(newContent, res.Changes)
		res.Content, _ = e.retarget(res.Content, path, path, res.Changes, true)
		res.Rewrote = res.Content != newContent

		updated, failed, err := e.propagate(ctx, path, res.Changes)
		if err != nil {
			return nil, err
		}
		res.Updated = updated
		res.Failed = failed
	}

	e.snapshots.Put(path, ExtractHeadings(res.Content))

	broken, err := FindBroken(res.Content, path, e.resolver, e.headingsFor(ctx, path, res.Content, res.Updated))
	if err != nil {
		e.logger.Warn("re-validation failed", "path", path, "err", err)
		if res.Failed == nil {
			res.Failed = make(map[string]error)
		}
		res.Failed[path] = err
	}
	res.Broken = broken
	return res, nil
}

// propagate rewrites cross-file links to path in every candidate document.
// Documents that cannot be read are recorded in failed and skipped.
func (e *Engine) propagate(ctx context.Context, path string, changes []HeadingChange) (map[string]string, map[string]error, error) {
	candidates, err := e.candidates(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	updated := make(map[string]string)
	var failed map[string]error
	for _, p := range candidates {
		if p == path {
			continue
		}
		content, err := e.storage.Read(ctx, p)
		if err != nil {
			e.logger.Warn("skip unreadable document", "path", p, "err", err)
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[p] = err
			continue
		}
		next, changed := e.retarget(content, p, path, changes, e.crossMarkdown)
		if changed {
			e.logger.Info("cross-file links updated", "path", p, "target", path)
			updated[p] = next
		}
	}
	return updated, failed, nil
}

// retarget rewrites links in content, a document at source, that point at
// target. Without a resolver only basename references ([[Target#Old]]) are
// recognised.
func (e *Engine) retarget(content, source, target string, changes []HeadingChange, markdown bool) (string, bool) {
	if e.resolver != nil {
		return RetargetLinks(content, source, target, e.resolver, changes, markdown)
	}
	base := BaseName(target)
	next, changed := RewriteCrossFile(content, base, changes)
	if markdown {
		var mdChanged bool
		next, mdChanged = RewriteCrossFileMarkdown(next, base, changes)
		changed = changed || mdChanged
	}
	return next, changed
}

func (e *Engine) candidates(ctx context.Context, path string) ([]string, error) {
	if e.backlinks != nil {
		paths, err := e.backlinks.Backlinks(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("backlinks of %s: %w", path, err)
		}
		return paths, nil
	}
	paths, err := e.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return paths, nil
}

// headingsFor returns a HeadingsFunc that prefers in-flight content (the
// document being processed and pending updates) over stored content.
func (e *Engine) headingsFor(ctx context.Context, path, content string, pending map[string]string) HeadingsFunc {
	return func(p string) ([]string, error) {
		if p == path {
			return ExtractHeadings(content), nil
		}
		if c, ok := pending[p]; ok {
			return ExtractHeadings(c), nil
		}
		c, err := e.storage.Read(ctx, p)
		if err != nil {
			return nil, err
		}
		return ExtractHeadings(c), nil
	}
}

// CollectRepairCandidates returns, for every link to a missing heading in
// content, the ranked headings of its target document.
func (e *Engine) CollectRepairCandidates(ctx context.Context, path, content string) ([]RepairCandidate, error) {
	broken, err := e.Broken(ctx, path, content)
	if err != nil {
		return nil, err
	}
	var out []RepairCandidate
	for _, b := range broken {
		if b.Reason != ReasonMissingHeading {
			continue
		}
		out = append(out, RepairCandidate{
			Occurrence:  b.Occurrence,
			RawLink:     b.Occurrence.Raw,
			Target:      b.Occurrence.Target,
			Suggestions: TopK(Rank(b.Occurrence.Heading, b.TargetHeadings), e.topK),
		})
	}
	return out, nil
}

// ApplyRepair retargets exactly one link occurrence in content.
func (e *Engine) ApplyRepair(path, content string, occ LinkOccurrence, chosenHeading string) string {
	e.logger.Debug("repair link", "path", path, "link", occ.Raw, "heading", chosenHeading)
	return ReplaceOne(content, occ, chosenHeading)
}

// Commit writes the results of OnDocumentModified: the modified document
// when it was rewritten, then every updated document. A failed write is
// skipped and the remaining documents are still written; all failures are
// returned joined.
func (e *Engine) Commit(ctx context.Context, res *ModifyResult) error {
	var errs []error
	if res.Rewrote {
		if err := e.storage.Write(ctx, res.Path, res.Content); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", res.Path, err))
		}
	}
	for _, p := range sortedKeys(res.Updated) {
		if err := e.storage.Write(ctx, p, res.Updated[p]); err != nil {
			e.logger.Warn("skip unwritable document", "path", p, "err", err)
			errs = append(errs, fmt.Errorf("write %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
