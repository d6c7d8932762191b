// Package index maintains a SQLite index of the headings and heading links of
// a vault. It answers backlink queries so that cross-file propagation only
// reads the documents that link to a renamed one.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ryotapoi/anchorsync/internal/core"
)

// ErrNotFound is returned by Open when the vault has no index yet.
var ErrNotFound = errors.New("index not found: run 'anchorsync index' first")

// Index is an open link index.
type Index struct {
	db   *sql.DB
	path string
}

var _ core.BacklinkSource = (*Index)(nil)

// Stats summarizes the contents of an index.
type Stats struct {
	Notes      int `json:"notes"`
	Headings   int `json:"headings"`
	Links      int `json:"links"`
	Unresolved int `json:"unresolved"`
}

type scannedDoc struct {
	path     string
	headings []string
	links    []core.LinkOccurrence
}

// Build scans every document of storage and replaces the index of the vault
// at vaultPath. The new database is written to a temporary file and renamed
// into place, so a failed build leaves the previous index intact.
func Build(ctx context.Context, vaultPath string, storage core.Storage, resolver core.Resolver) error {
	if _, err := ensureDataDir(vaultPath); err != nil {
		return err
	}
	docs, err := scanAll(ctx, storage, resolver)
	if err != nil {
		return err
	}

	tmpPath := Path(vaultPath) + ".tmp"
	_ = os.Remove(tmpPath)
	defer os.Remove(tmpPath)

	db, err := openDBAt(tmpPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := initSchema(ctx, db); err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	// Pass 1: insert all notes so link targets have IDs.
	pathToID := make(map[string]int64, len(docs))
	for _, d := range docs {
		id, err := upsertNote(ctx, tx, d.path, core.BaseName(d.path))
		if err != nil {
			return err
		}
		pathToID[d.path] = id
	}

	// Pass 2: headings and links.
	for _, d := range docs {
		if err := insertDoc(ctx, tx, pathToID[d.path], d, pathToID); err != nil {
			return fmt.Errorf("index %s: %w", d.path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	if err := db.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, Path(vaultPath))
}

// scanAll reads and scans documents concurrently.
func scanAll(ctx context.Context, storage core.Storage, resolver core.Resolver) ([]scannedDoc, error) {
	files, err := storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs := make([]scannedDoc, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range files {
		g.Go(func() error {
			content, err := storage.Read(gctx, p)
			if err != nil {
				return fmt.Errorf("read %s: %w", p, err)
			}
			docs[i] = scanDoc(p, content, resolver)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func scanDoc(path, content string, resolver core.Resolver) scannedDoc {
	return scannedDoc{
		path:     path,
		headings: core.ExtractHeadings(content),
		links:    core.ScanLinks(content, path, resolver),
	}
}

// insertDoc writes the headings and links of one document. Targets missing
// from pathToID are looked up, and inserted when absent.
func insertDoc(ctx context.Context, db dbExecer, sourceID int64, d scannedDoc, pathToID map[string]int64) error {
	for i, h := range d.headings {
		if err := insertHeading(ctx, db, sourceID, i, h); err != nil {
			return err
		}
	}
	for _, l := range d.links {
		var target sql.NullInt64
		if l.Resolved {
			id, ok := pathToID[l.Target]
			if !ok {
				var err error
				id, err = upsertNote(ctx, db, l.Target, core.BaseName(l.Target))
				if err != nil {
					return err
				}
			}
			target = sql.NullInt64{Int64: id, Valid: true}
		}
		if err := insertLink(ctx, db, sourceID, target, l.Kind.String(), l.Raw, l.Note, l.Heading, l.Start); err != nil {
			return err
		}
	}
	return nil
}

// Open opens the index of the vault at vaultPath.
func Open(vaultPath string) (*Index, error) {
	p := Path(vaultPath)
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	db, err := openDBAt(p)
	if err != nil {
		return nil, err
	}
	return &Index{db: db, path: p}, nil
}

// ModTime reports when the index database was last written.
func (ix *Index) ModTime() (time.Time, error) {
	info, err := os.Stat(ix.path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Paths returns every indexed document, sorted.
func (ix *Index) Paths(ctx context.Context) ([]string, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT path FROM notes ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Close closes the database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Backlinks returns the documents, other than target itself, that contain a
// heading link resolving to target. The result is sorted.
func (ix *Index) Backlinks(ctx context.Context, target string) ([]string, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT DISTINCT s.path
		   FROM links l
		   JOIN notes s ON s.id = l.source_id
		   JOIN notes t ON t.id = l.target_id
		  WHERE t.path = ? AND l.source_id <> l.target_id
		  ORDER BY s.path`,
		core.NormalizePath(target),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Headings returns the indexed headings of path in document order.
func (ix *Index) Headings(ctx context.Context, path string) ([]string, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT h.text FROM headings h JOIN notes n ON n.id = h.note_id
		  WHERE n.path = ? ORDER BY h.position`,
		core.NormalizePath(path),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Update re-indexes one document from its current content. Unresolved links
// of other documents that now resolve to path are pointed at it, so a
// document that was removed and re-created gets its backlinks back.
func (ix *Index) Update(ctx context.Context, path, content string, resolver core.Resolver) error {
	path = core.NormalizePath(path)
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := upsertNote(ctx, tx, path, core.BaseName(path))
	if err != nil {
		return err
	}
	if err := clearNote(ctx, tx, id); err != nil {
		return err
	}
	if err := relinkInbound(ctx, tx, id, path, resolver); err != nil {
		return err
	}
	pathToID := map[string]int64{path: id}
	if err := insertDoc(ctx, tx, id, scanDoc(path, content, resolver), pathToID); err != nil {
		return err
	}
	return tx.Commit()
}

// relinkInbound points unresolved links that resolver now maps to path at
// the note id.
func relinkInbound(ctx context.Context, db dbExecer, id int64, path string, resolver core.Resolver) error {
	if resolver == nil {
		return nil
	}
	rows, err := db.QueryContext(ctx,
		`SELECT l.id, l.note, s.path
		   FROM links l
		   JOIN notes s ON s.id = l.source_id
		  WHERE l.target_id IS NULL AND COALESCE(l.note, '') <> ''`)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var (
			linkID       int64
			note, source string
		)
		if err := rows.Scan(&linkID, &note, &source); err != nil {
			rows.Close()
			return err
		}
		if target, ok := resolver.Resolve(note, source); ok && target == path {
			ids = append(ids, linkID)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, linkID := range ids {
		if _, err := db.ExecContext(ctx, `UPDATE links SET target_id = ? WHERE id = ?`, id, linkID); err != nil {
			return err
		}
	}
	return nil
}

// Remove drops a document and the links it contains. Links from other
// documents to it become unresolved.
func (ix *Index) Remove(ctx context.Context, path string) error {
	path = core.NormalizePath(path)
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := getNoteID(ctx, tx, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := clearNote(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE links SET target_id = NULL WHERE target_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// Stats counts the contents of the index.
func (ix *Index) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	queries := []struct {
		dst *int
		sql string
	}{
		{&s.Notes, `SELECT COUNT(*) FROM notes`},
		{&s.Headings, `SELECT COUNT(*) FROM headings`},
		{&s.Links, `SELECT COUNT(*) FROM links`},
		{&s.Unresolved, `SELECT COUNT(*) FROM links WHERE target_id IS NULL`},
	}
	for _, q := range queries {
		if err := ix.db.QueryRowContext(ctx, q.sql).Scan(q.dst); err != nil {
			return Stats{}, err
		}
	}
	return s, nil
}
