package vault

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVault(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func TestFSList(t *testing.T) {
	dir := writeVault(t, map[string]string{
		"A.md":                "# A\n",
		"sub/B.md":            "# B\n",
		"sub/notes.txt":       "not markdown",
		".obsidian/x.md":      "hidden",
		".anchorsync/y.md":    "hidden",
		"daily/2024-01-01.md": "# day\n",
	})
	fs := NewFS(dir, []string{"daily/*"})

	files, err := fs.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A.md", "sub/B.md"}, files)
	assert.True(t, fs.Excluded("daily/2024-01-01.md"))
}

func TestFSReadWrite(t *testing.T) {
	dir := writeVault(t, map[string]string{"A.md": "old"})
	require.NoError(t, os.Chmod(filepath.Join(dir, "A.md"), 0o600))
	fs := NewFS(dir, nil)
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, "A.md", "new"))
	got, err := fs.Read(ctx, "A.md")
	require.NoError(t, err)
	assert.Equal(t, "new", got)

	info, err := os.Stat(filepath.Join(dir, "A.md"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFSModTime(t *testing.T) {
	dir := writeVault(t, map[string]string{"A.md": "# A\n"})
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "A.md"), stamp, stamp))
	fs := NewFS(dir, nil)

	got, err := fs.ModTime("A.md")
	require.NoError(t, err)
	assert.True(t, got.Equal(stamp))

	_, err = fs.ModTime("Missing.md")
	assert.True(t, os.IsNotExist(err))
	_, err = fs.ModTime("../outside.md")
	assert.True(t, errors.Is(err, ErrPathEscape))
}

func TestFSRejectsEscape(t *testing.T) {
	fs := NewFS(t.TempDir(), nil)
	ctx := context.Background()

	_, err := fs.Read(ctx, "../outside.md")
	assert.True(t, errors.Is(err, ErrPathEscape))

	err = fs.Write(ctx, "../outside.md", "x")
	assert.True(t, errors.Is(err, ErrPathEscape))

	err = fs.Write(ctx, "notes.txt", "x")
	assert.True(t, errors.Is(err, ErrNotMarkdown))
}

func TestFSRel(t *testing.T) {
	dir := writeVault(t, map[string]string{"sub/B.md": ""})
	fs := NewFS(dir, nil)

	rel, err := fs.Rel(filepath.Join(dir, "sub", "B.md"))
	require.NoError(t, err)
	assert.Equal(t, "sub/B.md", rel)

	rel, err = fs.Rel("sub/B.md")
	require.NoError(t, err)
	assert.Equal(t, "sub/B.md", rel)

	_, err = fs.Rel(filepath.Join(filepath.Dir(dir), "elsewhere.md"))
	assert.True(t, errors.Is(err, ErrPathEscape))
}

func TestResolver(t *testing.T) {
	r := NewResolver([]string{
		"Wireguard.md",
		"Dup.md",
		"a/Dup.md",
		"b/Shared.md",
		"c/Shared.md",
		"c/Other.md",
		"deep/dir/Leaf.md",
	})

	tests := []struct {
		name   string
		note   string
		source string
		want   string
		ok     bool
	}{
		{"basename", "Wireguard", "x.md", "Wireguard.md", true},
		{"basename case-insensitive", "wireguard", "x.md", "Wireguard.md", true},
		{"basename with spaces", "  Wireguard ", "x.md", "Wireguard.md", true},
		{"root wins", "Dup", "a/x.md", "Dup.md", true},
		{"same directory wins", "Shared", "c/Other.md", "c/Shared.md", true},
		{"first path otherwise", "Shared", "x.md", "b/Shared.md", true},
		{"vault path", "deep/dir/Leaf", "x.md", "deep/dir/Leaf.md", true},
		{"vault path with ext", "deep/dir/Leaf.md", "x.md", "deep/dir/Leaf.md", true},
		{"absolute path", "/c/Other", "x.md", "c/Other.md", true},
		{"relative", "./Other", "c/Shared.md", "c/Other.md", true},
		{"parent relative", "../Wireguard", "c/Other.md", "Wireguard.md", true},
		{"relative escape", "../../Wireguard", "c/Other.md", "", false},
		{"path escape", "../x/Leaf", "x.md", "", false},
		{"missing", "Nope", "x.md", "", false},
		{"empty", " ", "x.md", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(tt.note, tt.source)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolverAddRemove(t *testing.T) {
	r := NewResolver([]string{"a/Note.md"})

	r.Add("Note.md")
	got, ok := r.Resolve("Note", "b/x.md")
	require.True(t, ok)
	assert.Equal(t, "Note.md", got)

	r.Remove("Note.md")
	got, ok = r.Resolve("Note", "b/x.md")
	require.True(t, ok)
	assert.Equal(t, "a/Note.md", got)

	r.Remove("a/Note.md")
	_, ok = r.Resolve("Note", "b/x.md")
	assert.False(t, ok)
}

func TestLoadResolver(t *testing.T) {
	dir := writeVault(t, map[string]string{"Note.md": "# H\n"})
	r, err := LoadResolver(context.Background(), NewFS(dir, nil))
	require.NoError(t, err)

	got, ok := r.Resolve("note", "x.md")
	assert.True(t, ok)
	assert.Equal(t, "Note.md", got)
}
