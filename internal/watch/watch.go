// Package watch drives the sync engine from filesystem events: every saved
// markdown document is treated as a modification event.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ryotapoi/anchorsync/internal/core"
	"github.com/ryotapoi/anchorsync/internal/index"
	"github.com/ryotapoi/anchorsync/internal/logging"
	"github.com/ryotapoi/anchorsync/internal/vault"
)

// DefaultDebounce coalesces the burst of write events editors emit on save.
const DefaultDebounce = 200 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	Debounce time.Duration
	// Index, when set, is kept current with every processed document.
	Index *index.Index
	// OnResult is called after each processed modification.
	OnResult func(*core.ModifyResult)
	Logger   *slog.Logger
}

// Watcher feeds filesystem changes of a vault into an Engine.
type Watcher struct {
	fs       *vault.FS
	resolver *vault.Resolver
	engine   *core.Engine
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	written map[string]string // content this watcher last wrote, per path
	wg      sync.WaitGroup
}

// New returns a watcher. Call Run to start it.
func New(fs *vault.FS, resolver *vault.Resolver, engine *core.Engine, cfg Config) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Watcher{
		fs:       fs,
		resolver: resolver,
		engine:   engine,
		cfg:      cfg,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
		written:  make(map[string]string),
	}
}

// Run primes the engine's heading snapshots and processes events until ctx
// is cancelled. Pending debounced events are dropped on return.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addWatchRoots(fw); err != nil {
		return fmt.Errorf("watch %s: %w", w.fs.Root(), err)
	}
	n, err := w.engine.Prime(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("watching vault", "root", w.fs.Root(), "documents", n)

	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "err", err)
		}
	}
}

func (w *Watcher) addWatchRoots(fw *fsnotify.Watcher) error {
	return filepath.WalkDir(w.fs.Root(), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.fs.Root() && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func (w *Watcher) handleEvent(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Name == "" {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			if !strings.HasPrefix(filepath.Base(event.Name), ".") {
				if err := w.addWatchRoots(fw); err != nil {
					w.logger.Warn("watch new directory", "path", event.Name, "err", err)
				}
			}
			return
		}
	}
	if !vault.IsMarkdown(event.Name) {
		return
	}
	rel, err := w.fs.Rel(event.Name)
	if err != nil || w.fs.Excluded(rel) {
		return
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.forget(ctx, rel)
	case event.Op&fsnotify.Create != 0:
		w.resolver.Add(rel)
		w.schedule(ctx, rel)
	default:
		w.schedule(ctx, rel)
	}
}

func (w *Watcher) forget(ctx context.Context, rel string) {
	w.resolver.Remove(rel)
	w.mu.Lock()
	if t, ok := w.timers[rel]; ok {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.timers, rel)
	}
	delete(w.written, rel)
	w.mu.Unlock()
	if w.cfg.Index != nil {
		if err := w.cfg.Index.Remove(ctx, rel); err != nil {
			w.logger.Warn("index remove failed", "path", rel, "err", err)
		}
	}
	w.logger.Debug("document removed", "path", rel)
}

func (w *Watcher) schedule(ctx context.Context, rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[rel]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	w.timers[rel] = time.AfterFunc(w.cfg.Debounce, func() {
		defer w.wg.Done()
		if err := w.Process(ctx, rel); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("process document", "path", rel, "err", err)
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	for path, t := range w.timers {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.timers, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Process handles one modification of rel: it runs the engine, writes the
// results and refreshes the index. Content this watcher wrote itself is
// ignored.
func (w *Watcher) Process(ctx context.Context, rel string) error {
	content, err := w.fs.Read(ctx, rel)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if w.ownWrite(rel, content) {
		return nil
	}

	res, err := w.engine.OnDocumentModified(ctx, rel, content)
	if err != nil {
		return err
	}
	w.remember(res)
	commitErr := w.engine.Commit(ctx, res)

	if w.cfg.Index != nil {
		w.reindex(ctx, rel, res)
	}
	for _, b := range res.Broken {
		w.logger.Warn("broken heading link", "path", rel, "link", b.Describe())
	}
	for p, ferr := range res.Failed {
		w.logger.Warn("document skipped", "path", p, "err", ferr)
	}
	if w.cfg.OnResult != nil {
		w.cfg.OnResult(res)
	}
	return commitErr
}

func (w *Watcher) ownWrite(rel, content string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.written[rel]
	if !ok {
		return false
	}
	delete(w.written, rel)
	return last == content
}

func (w *Watcher) remember(res *core.ModifyResult) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if res.Rewrote {
		w.written[res.Path] = res.Content
	}
	for p, c := range res.Updated {
		w.written[p] = c
	}
}

func (w *Watcher) reindex(ctx context.Context, rel string, res *core.ModifyResult) {
	docs := map[string]string{rel: res.Content}
	for p, c := range res.Updated {
		docs[p] = c
	}
	for p, c := range docs {
		if err := w.cfg.Index.Update(ctx, p, c, w.resolver); err != nil {
			w.logger.Warn("index update failed", "path", p, "err", err)
		}
	}
}
