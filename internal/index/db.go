package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	dataDirName = ".anchorsync"
	dbFileName  = "index.sqlite"
)

// Path returns the location of the index database for a vault.
func Path(vaultPath string) string {
	return filepath.Join(vaultPath, dataDirName, dbFileName)
}

func ensureDataDir(vaultPath string) (string, error) {
	dir := filepath.Join(vaultPath, dataDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func openDBAt(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; watch mode updates from several goroutines.
	db.SetMaxOpenConns(1)
	return db, nil
}

// dbExecer is satisfied by both *sql.DB and *sql.Tx.
type dbExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func initSchema(ctx context.Context, db dbExecer) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS notes (
			id    INTEGER PRIMARY KEY,
			path  TEXT NOT NULL UNIQUE,
			name  TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_notes_name ON notes(name);`,
		`CREATE TABLE IF NOT EXISTS headings (
			note_id  INTEGER NOT NULL,
			position INTEGER NOT NULL,
			text     TEXT NOT NULL,
			FOREIGN KEY(note_id) REFERENCES notes(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_headings_note ON headings(note_id);`,
		`CREATE TABLE IF NOT EXISTS links (
			id         INTEGER PRIMARY KEY,
			source_id  INTEGER NOT NULL,
			target_id  INTEGER,
			kind       TEXT NOT NULL,
			raw_link   TEXT NOT NULL,
			note       TEXT,
			heading    TEXT NOT NULL,
			byte_start INTEGER NOT NULL,
			FOREIGN KEY(source_id) REFERENCES notes(id),
			FOREIGN KEY(target_id) REFERENCES notes(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_id);`,
		`CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func upsertNote(ctx context.Context, db dbExecer, path, name string) (int64, error) {
	_, err := db.ExecContext(ctx,
		`INSERT INTO notes (path, name) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET name=excluded.name`,
		path, name,
	)
	if err != nil {
		return 0, err
	}
	return getNoteID(ctx, db, path)
}

func getNoteID(ctx context.Context, db dbExecer, path string) (int64, error) {
	var id int64
	row := db.QueryRowContext(ctx, "SELECT id FROM notes WHERE path = ?", path)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func insertHeading(ctx context.Context, db dbExecer, noteID int64, position int, text string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO headings (note_id, position, text) VALUES (?, ?, ?)`,
		noteID, position, text,
	)
	return err
}

func insertLink(ctx context.Context, db dbExecer, sourceID int64, targetID sql.NullInt64, kind, rawLink, note, heading string, start int) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO links (source_id, target_id, kind, raw_link, note, heading, byte_start)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sourceID, targetID, kind, rawLink, note, heading, start,
	)
	return err
}

func clearNote(ctx context.Context, db dbExecer, noteID int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM headings WHERE note_id = ?`, noteID); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `DELETE FROM links WHERE source_id = ?`, noteID)
	return err
}
