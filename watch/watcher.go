// Package watch reports changes to shader and deck files under a directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// DefaultExtensions are the file types a deck is made of.
var DefaultExtensions = []string{".glsl", ".shader", ".vert", ".frag", ".html", ".css", ".js"}

type Config struct {
	// Root is watched recursively.  Hidden directories are skipped.
	Root string

	// Extensions filters events by file extension.  Empty means
	// DefaultExtensions.
	Extensions []string

	// Debounce is the quiet period after the last event before OnChange
	// runs.
	Debounce time.Duration

	// OnChange receives the sorted paths (relative to Root) changed during
	// one debounce window.
	OnChange func(ctx context.Context, changed []string)
}

type Watcher struct {
	cfg Config
	fsw *fsnotify.Watcher
}

func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	w := &Watcher{cfg: cfg, fsw: fsw}
	if err := w.addTree(cfg.Root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run dispatches debounced change notifications until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var (
		mu      sync.Mutex
		changed = map[string]struct{}{}
	)
	fire := func() {
		mu.Lock()
		paths := slices.Sorted(maps.Keys(changed))
		clear(changed)
		mu.Unlock()
		if len(paths) > 0 && ctx.Err() == nil && w.cfg.OnChange != nil {
			w.cfg.OnChange(ctx, paths)
		}
	}
	timer := time.AfterFunc(time.Hour, fire)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: event channel closed")
			}
			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					if err := w.addTree(evt.Name); err != nil {
						slog.Warn("watch: cannot watch new directory", "path", evt.Name, "error", err)
					}
					continue
				}
			}
			if !w.matches(evt.Name) {
				continue
			}
			rel, err := filepath.Rel(w.cfg.Root, evt.Name)
			if err != nil {
				rel = evt.Name
			}
			mu.Lock()
			changed[filepath.ToSlash(rel)] = struct{}{}
			mu.Unlock()
			timer.Reset(w.cfg.Debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: error channel closed")
			}
			slog.Warn("watch: fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) matches(path string) bool {
	return slices.Contains(w.cfg.Extensions, strings.ToLower(filepath.Ext(path)))
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			slog.Debug("watch: skipping path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		return nil
	})
}
