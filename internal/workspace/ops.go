package workspace

import (
	"context"
	"fmt"

	"github.com/ryotapoi/anchorsync/internal/core"
)

// FileChange is a pending or applied rewrite of one document.
type FileChange struct {
	Path string
	Old  string
	New  string
}

// DocumentBroken lists the broken heading links of one document.
type DocumentBroken struct {
	Path  string
	Links []core.BrokenLink
}

// CheckResult reports broken heading links.
type CheckResult struct {
	Checked int
	Broken  []DocumentBroken
}

// Check validates every heading link in the given documents (all documents
// when paths is empty).
func (w *Workspace) Check(ctx context.Context, paths []string) (*CheckResult, error) {
	docs, err := w.documents(ctx, paths)
	if err != nil {
		return nil, err
	}
	res := &CheckResult{}
	for _, p := range docs {
		content, err := w.FS.Read(ctx, p)
		if err != nil {
			return nil, err
		}
		broken, err := w.Engine.Broken(ctx, p, content)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", p, err)
		}
		res.Checked++
		if len(broken) > 0 {
			res.Broken = append(res.Broken, DocumentBroken{Path: p, Links: broken})
		}
	}
	return res, nil
}

// DocumentCandidates lists the repair candidates of one document.
type DocumentCandidates struct {
	Path       string
	Candidates []core.RepairCandidate
}

// Suggest ranks replacement headings for every link to a missing heading.
func (w *Workspace) Suggest(ctx context.Context, paths []string) ([]DocumentCandidates, error) {
	docs, err := w.documents(ctx, paths)
	if err != nil {
		return nil, err
	}
	var out []DocumentCandidates
	for _, p := range docs {
		content, err := w.FS.Read(ctx, p)
		if err != nil {
			return nil, err
		}
		cands, err := w.Engine.CollectRepairCandidates(ctx, p, content)
		if err != nil {
			return nil, fmt.Errorf("suggest %s: %w", p, err)
		}
		if len(cands) > 0 {
			out = append(out, DocumentCandidates{Path: p, Candidates: cands})
		}
	}
	return out, nil
}

// RepairOptions controls the repair operation.
type RepairOptions struct {
	Paths []string
	// MinScore is the lowest top-suggestion score repaired automatically.
	MinScore float64
	DryRun   bool
}

// RepairedLink is a link retargeted by Repair.
type RepairedLink struct {
	File    string
	RawLink string
	Heading string
	Score   float64
}

// SkippedLink is a broken link Repair left alone.
type SkippedLink struct {
	File    string
	RawLink string
	Best    *core.Suggestion // nil when the target has no headings
}

// RepairResult reports the outcome of the repair operation.
type RepairResult struct {
	Repaired []RepairedLink
	Skipped  []SkippedLink
	Changes  []FileChange
}

// Repair retargets each link to a missing heading whose best suggestion
// scores at least MinScore. Nothing is written in dry-run mode.
func (w *Workspace) Repair(ctx context.Context, opts RepairOptions) (*RepairResult, error) {
	docs, err := w.documents(ctx, opts.Paths)
	if err != nil {
		return nil, err
	}
	res := &RepairResult{}
	for _, p := range docs {
		content, err := w.FS.Read(ctx, p)
		if err != nil {
			return nil, err
		}
		cands, err := w.Engine.CollectRepairCandidates(ctx, p, content)
		if err != nil {
			return nil, fmt.Errorf("repair %s: %w", p, err)
		}

		var apply []core.RepairCandidate
		for _, c := range cands {
			if len(c.Suggestions) == 0 || c.Suggestions[0].Score < opts.MinScore {
				sk := SkippedLink{File: p, RawLink: c.RawLink}
				if len(c.Suggestions) > 0 {
					best := c.Suggestions[0]
					sk.Best = &best
				}
				res.Skipped = append(res.Skipped, sk)
				continue
			}
			best := c.Suggestions[0]
			apply = append(apply, c)
			res.Repaired = append(res.Repaired, RepairedLink{File: p, RawLink: c.RawLink, Heading: best.Heading, Score: best.Score})
		}
		updated := content
		// From the end so that earlier offsets stay valid.
		for i := len(apply) - 1; i >= 0; i-- {
			updated = w.Engine.ApplyRepair(p, updated, apply[i].Occurrence, apply[i].Suggestions[0].Heading)
		}
		if updated != content {
			res.Changes = append(res.Changes, FileChange{Path: p, Old: content, New: updated})
		}
	}
	if opts.DryRun {
		return res, nil
	}
	return res, w.write(ctx, res.Changes)
}

// RepairLink retargets the first occurrence of rawLink in path to heading.
func (w *Workspace) RepairLink(ctx context.Context, path, rawLink, heading string, dryRun bool) (*FileChange, error) {
	docs, err := w.documents(ctx, []string{path})
	if err != nil {
		return nil, err
	}
	rel := docs[0]
	content, err := w.FS.Read(ctx, rel)
	if err != nil {
		return nil, err
	}
	for _, occ := range core.ScanLinks(content, rel, w.Resolver) {
		if occ.Raw != rawLink {
			continue
		}
		change := &FileChange{Path: rel, Old: content, New: w.Engine.ApplyRepair(rel, content, occ, heading)}
		if dryRun || change.New == content {
			return change, nil
		}
		return change, w.write(ctx, []FileChange{*change})
	}
	return nil, fmt.Errorf("link not found in %s: %s", rel, rawLink)
}

// RenameResult reports the outcome of RenameHeading.
type RenameResult struct {
	Changes []FileChange
	Broken  []core.BrokenLink
	Failed  map[string]error
}

// RenameHeading renames a heading of path and updates every link to it, as
// if the document had been edited and saved.
func (w *Workspace) RenameHeading(ctx context.Context, path, oldHeading, newHeading string, dryRun bool) (*RenameResult, error) {
	docs, err := w.documents(ctx, []string{path})
	if err != nil {
		return nil, err
	}
	rel := docs[0]
	content, err := w.FS.Read(ctx, rel)
	if err != nil {
		return nil, err
	}
	edited, ok := core.RenameHeading(content, oldHeading, newHeading)
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrHeadingNotFound, oldHeading, rel)
	}

	w.Engine.Observe(rel, content)
	mod, err := w.Engine.OnDocumentModified(ctx, rel, edited)
	if err != nil {
		return nil, err
	}
	res := &RenameResult{Broken: mod.Broken, Failed: mod.Failed}
	res.Changes = append(res.Changes, FileChange{Path: rel, Old: content, New: mod.Content})
	for _, p := range sortedPaths(mod.Updated) {
		old, err := w.FS.Read(ctx, p)
		if err != nil {
			return nil, err
		}
		res.Changes = append(res.Changes, FileChange{Path: p, Old: old, New: mod.Updated[p]})
	}
	if dryRun {
		// Keep the snapshot in line with what is on disk.
		w.Engine.Observe(rel, content)
		return res, nil
	}
	return res, w.write(ctx, res.Changes)
}

// write persists changes and refreshes the index. Every change is attempted;
// the first error is returned.
func (w *Workspace) write(ctx context.Context, changes []FileChange) error {
	var firstErr error
	written := make(map[string]string, len(changes))
	for _, c := range changes {
		if err := w.FS.Write(ctx, c.Path, c.New); err != nil {
			w.logger.Warn("write failed", "path", c.Path, "err", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("write %s: %w", c.Path, err)
			}
			continue
		}
		written[c.Path] = c.New
	}
	w.reindex(ctx, written)
	return firstErr
}
