package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryotapoi/anchorsync/internal/core"
	"github.com/ryotapoi/anchorsync/internal/index"
	"github.com/ryotapoi/anchorsync/internal/vault"
)

type fixture struct {
	dir      string
	fs       *vault.FS
	resolver *vault.Resolver
	engine   *core.Engine
}

func newFixture(t *testing.T, files map[string]string, opts ...core.Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		writeFile(t, dir, rel, content)
	}
	fs := vault.NewFS(dir, nil)
	r, err := vault.LoadResolver(context.Background(), fs)
	require.NoError(t, err)
	return &fixture{
		dir:      dir,
		fs:       fs,
		resolver: r,
		engine:   core.NewEngine(fs, r, core.NewMemorySnapshots(0), opts...),
	}
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func readFile(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestProcessPropagatesRename(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{
		"Wireguard.md": "# Setup\nsee [[#Setup]]\n",
		"Notes.md":     "[[Wireguard#Setup|how]]\n",
	})
	var results []*core.ModifyResult
	w := New(f.fs, f.resolver, f.engine, Config{
		OnResult: func(r *core.ModifyResult) { results = append(results, r) },
	})
	_, err := f.engine.Prime(ctx)
	require.NoError(t, err)

	writeFile(t, f.dir, "Wireguard.md", "# Installation\nsee [[#Setup]]\n")
	require.NoError(t, w.Process(ctx, "Wireguard.md"))

	assert.Equal(t, "# Installation\nsee [[#Installation]]\n", readFile(t, f.dir, "Wireguard.md"))
	assert.Equal(t, "[[Wireguard#Installation|how]]\n", readFile(t, f.dir, "Notes.md"))
	require.Len(t, results, 1)
	assert.Equal(t, []core.HeadingChange{{Old: "Setup", New: "Installation"}}, results[0].Changes)

	// The write-back is recognized and not processed again.
	require.NoError(t, w.Process(ctx, "Wireguard.md"))
	assert.Len(t, results, 1)
}

func TestProcessUpdatesIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{
		"A.md": "# Top\n",
		"B.md": "plain\n",
	})
	require.NoError(t, index.Build(ctx, f.dir, f.fs, f.resolver))
	ix, err := index.Open(f.dir)
	require.NoError(t, err)
	defer ix.Close()

	w := New(f.fs, f.resolver, f.engine, Config{Index: ix})
	writeFile(t, f.dir, "B.md", "[[A#Top]]\n")
	require.NoError(t, w.Process(ctx, "B.md"))

	got, err := ix.Backlinks(ctx, "A.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"B.md"}, got)
}

func TestProcessMissingDocument(t *testing.T) {
	f := newFixture(t, nil)
	w := New(f.fs, f.resolver, f.engine, Config{})
	assert.NoError(t, w.Process(context.Background(), "gone.md"))
}

func TestRunReactsToSave(t *testing.T) {
	f := newFixture(t, map[string]string{
		"Wireguard.md": "# Setup\n",
		"Notes.md":     "[[Wireguard#Setup]]\n",
	})
	var mu sync.Mutex
	var processed []string
	w := New(f.fs, f.resolver, f.engine, Config{
		Debounce: 20 * time.Millisecond,
		OnResult: func(r *core.ModifyResult) {
			mu.Lock()
			processed = append(processed, r.Path)
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Saving before the watcher is primed would be seeded instead of diffed.
	require.Eventually(t, func() bool {
		_, ok := f.engine.Snapshot("Wireguard.md")
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	writeFile(t, f.dir, "Wireguard.md", "# Installation\n")
	assert.Eventually(t, func() bool {
		return readFile(t, f.dir, "Notes.md") == "[[Wireguard#Installation]]\n"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, processed, "Wireguard.md")
}
