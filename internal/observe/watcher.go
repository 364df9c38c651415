// Package observe remounts fragments when their source files change.
package observe

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/psantana5/landing/pkg/fragments"
	"github.com/psantana5/landing/pkg/loader"
	"github.com/psantana5/landing/pkg/logging"
)

// Remounter reloads a single module
type Remounter interface {
	Remount(ctx context.Context, id string) (loader.Result, error)
}

// Config configures a FragmentWatcher
type Config struct {
	Root     string // directory fragment paths are relative to
	Registry *fragments.Registry
	Debounce time.Duration
	Logger   *logging.Logger
}

// FragmentWatcher maps file changes under Root back to registry entries
// and remounts them once the changes have been quiet for Debounce.
type FragmentWatcher struct {
	root     string
	registry *fragments.Registry
	debounce time.Duration
	logger   *logging.Logger
	target   Remounter
	fsw      *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   map[string]time.Time // module id -> last change

	done chan struct{}
	wg   sync.WaitGroup
}

// NewFragmentWatcher creates a watcher. Call Start to begin watching.
func NewFragmentWatcher(cfg Config, target Remounter) (*FragmentWatcher, error) {
	if cfg.Registry == nil || target == nil {
		return nil, fmt.Errorf("watcher requires a registry and a remount target")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve fragment root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &FragmentWatcher{
		root:     root,
		registry: cfg.Registry,
		debounce: debounce,
		logger:   logger,
		target:   target,
		fsw:      fsw,
		pending:  make(map[string]time.Time),
		done:     make(chan struct{}),
	}, nil
}

// Start watches the directory of every registered fragment
func (w *FragmentWatcher) Start(ctx context.Context) error {
	dirs := make(map[string]bool)
	for _, d := range w.registry.All() {
		dirs[filepath.Join(w.root, filepath.FromSlash(filepath.Dir(d.SourcePath)))] = true
	}
	for dir := range dirs {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Debug("Watching fragment directory", map[string]interface{}{"dir": dir})
	}

	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Info("Fragment watcher started", map[string]interface{}{
		"root":     w.root,
		"debounce": w.debounce.String(),
	})
	return nil
}

// Stop ends watching and waits for the event loop to exit
func (w *FragmentWatcher) Stop() error {
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *FragmentWatcher) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Fragment watcher error", map[string]interface{}{"error": err.Error()})
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *FragmentWatcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	d, ok := w.registry.LookupByPath(filepath.ToSlash(rel))
	if !ok {
		return
	}

	w.pendingMu.Lock()
	w.pending[d.ID] = time.Now()
	w.pendingMu.Unlock()

	w.logger.Debug("Fragment change detected", map[string]interface{}{
		"module": d.ID,
		"op":     event.Op.String(),
	})
}

// flush remounts every module whose last change is older than the debounce
func (w *FragmentWatcher) flush(ctx context.Context, now time.Time) {
	w.pendingMu.Lock()
	var ready []string
	for id, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, id)
			delete(w.pending, id)
		}
	}
	w.pendingMu.Unlock()

	sort.Strings(ready)
	for _, id := range ready {
		res, err := w.target.Remount(ctx, id)
		if err != nil {
			w.logger.Error("Remount failed", map[string]interface{}{"module": id, "error": err.Error()})
			continue
		}
		w.logger.Info("Fragment remounted after change", map[string]interface{}{
			"module":  id,
			"outcome": string(res.Outcome),
		})
	}
}
