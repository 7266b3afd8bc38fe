// Package watcher keeps the merged tree consistent with live edits to the
// override source directories during a dev session.
//
// Only override locations are watched; base and plugin layers are treated
// as immutable for the session. Raw filesystem notifications are
// classified once against the typed watch roots from the layer resolver
// and applied by a single consumer loop, so events are handled strictly
// in delivery order and two events for the same path can never race.
// A failed sync step is logged and the watcher keeps running.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/idreaminteractive/strapi/internal/clock"
	"github.com/idreaminteractive/strapi/internal/config"
	"github.com/idreaminteractive/strapi/internal/fsops"
	"github.com/idreaminteractive/strapi/internal/layers"
	"github.com/idreaminteractive/strapi/internal/manifest"
)

// EventKind classifies a sync event.
type EventKind string

// Sync event kinds.
const (
	EventCreate     EventKind = "create"
	EventModify     EventKind = "modify"
	EventDeleteFile EventKind = "delete_file"
	EventDeleteDir  EventKind = "delete_dir"
)

// SyncEvent is one classified override change.
type SyncEvent struct {
	// Root is the watch root the changed path belongs to.
	Root layers.WatchRoot

	// Kind is the change class.
	Kind EventKind

	// Path is the absolute changed path in the override source.
	Path string
}

// Stats tracks watcher activity for status display and tests.
type Stats struct {
	Copied          int
	Removed         int
	Restored        int
	ManifestRegens  int
	Failures        int
	LastEventTime   time.Time
	LastEventPath   string
	LastEventKind   EventKind
	EventsProcessed int
}

// Watcher applies incremental override changes to the merged tree.
type Watcher struct {
	fsOps     fsops.FS
	resolver  *layers.Resolver
	generator *manifest.Generator
	clock     clock.Clock
	logger    *zap.Logger

	projectRoot string
	rt          *config.Runtime
	roots       []layers.WatchRoot
	paths       *config.Paths

	notify  *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.RWMutex
	running bool
	stats   Stats
}

// New creates a Watcher for a materialized tree.
func New(fsOps fsops.FS, resolver *layers.Resolver, generator *manifest.Generator, clk clock.Clock, logger *zap.Logger) *Watcher {
	return &Watcher{
		fsOps:     fsOps,
		resolver:  resolver,
		generator: generator,
		clock:     clk,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start subscribes to the override source locations of the given
// resolution and begins applying changes. Non-blocking; the consumer loop
// runs until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context, projectRoot string, res *layers.Resolution, rt *config.Runtime) error {
	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// running flips only once the watcher exists; a failed Start leaves
	// Stop a no-op instead of blocking on a loop that never ran.
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		_ = notify.Close()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.notify = notify
	w.projectRoot = projectRoot
	w.rt = rt
	w.roots = res.WatchRoots
	w.paths = res.Paths

	for _, root := range w.roots {
		if err := w.watchRecursive(root.Source); err != nil {
			w.logger.Warn("failed to watch override root",
				zap.String("source", root.Source),
				zap.Error(err))
			continue
		}
		w.logger.Info("watching override source",
			zap.String("kind", root.Kind),
			zap.String("source", root.Source))
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the consumer loop to drain.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.notify.Close(); err != nil {
		w.logger.Error("error closing filesystem watcher", zap.Error(err))
	}
}

// Stats returns a copy of the current watcher statistics.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// watchRecursive adds dir and every directory below it to the
// subscription. fsnotify watches are not recursive on their own.
func (w *Watcher) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Permission errors and racing deletions are ignored; the
			// session continues with whatever could be subscribed.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return w.notify.Add(path)
	})
}

// run is the single consumer loop. Events are applied to completion in
// delivery order before the next one is read.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("watcher context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.notify.Events:
			if !ok {
				return
			}
			if ev, ok := w.classify(event); ok {
				w.apply(ev)
			}

		case err, ok := <-w.notify.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Failures++
			w.mu.Unlock()
		}
	}
}

// classify maps a raw notification onto a typed sync event. Events
// outside every watch root (and chmod noise) are dropped.
func (w *Watcher) classify(event fsnotify.Event) (SyncEvent, bool) {
	root, ok := w.rootFor(event.Name)
	if !ok {
		return SyncEvent{}, false
	}

	ev := SyncEvent{Root: root, Path: event.Name}

	switch {
	case event.Op&fsnotify.Create != 0:
		ev.Kind = EventCreate
	case event.Op&fsnotify.Write != 0:
		ev.Kind = EventModify
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// The source is gone; the merged destination tells us whether a
		// file or a directory disappeared.
		ev.Kind = EventDeleteFile
		if dest, err := root.DestFor(event.Name); err == nil {
			if info, err := w.fsOps.Lstat(dest); err == nil && info.IsDir() {
				ev.Kind = EventDeleteDir
			}
		}
	default:
		return SyncEvent{}, false
	}

	return ev, true
}

// rootFor finds the watch root containing path.
func (w *Watcher) rootFor(path string) (layers.WatchRoot, bool) {
	for _, root := range w.roots {
		if path == root.Source || strings.HasPrefix(path, root.Source+string(filepath.Separator)) {
			return root, true
		}
	}
	return layers.WatchRoot{}, false
}

// apply executes one reconciliation action. Failures are logged and
// swallowed; the watcher keeps processing subsequent events.
func (w *Watcher) apply(ev SyncEvent) {
	w.mu.Lock()
	w.stats.EventsProcessed++
	w.stats.LastEventTime = w.clock.Now()
	w.stats.LastEventPath = ev.Path
	w.stats.LastEventKind = ev.Kind
	w.mu.Unlock()

	var err error
	switch ev.Kind {
	case EventCreate, EventModify:
		err = w.applyCopy(ev)
	case EventDeleteFile, EventDeleteDir:
		err = w.applyDelete(ev)
	}

	if err != nil {
		w.logger.Warn("sync event failed",
			zap.String("kind", string(ev.Kind)),
			zap.String("path", ev.Path),
			zap.Error(err))
		w.mu.Lock()
		w.stats.Failures++
		w.mu.Unlock()
	}
}

// applyCopy mirrors a created or modified override path into the merged
// tree, overwriting unconditionally.
func (w *Watcher) applyCopy(ev SyncEvent) error {
	dest, err := ev.Root.DestFor(ev.Path)
	if err != nil {
		return err
	}

	info, err := w.fsOps.Lstat(ev.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// Already gone again; the pending delete event will handle it.
			return nil
		}
		return err
	}

	// A freshly created directory must be subscribed before its contents
	// start changing.
	if info.IsDir() && ev.Kind == EventCreate {
		if err := w.watchRecursive(ev.Path); err != nil {
			w.logger.Warn("failed to watch new directory",
				zap.String("path", ev.Path),
				zap.Error(err))
		}
	}

	if err := w.fsOps.Copy(ev.Path, dest); err != nil {
		return err
	}

	w.mu.Lock()
	w.stats.Copied++
	w.mu.Unlock()

	w.logger.Debug("override synced",
		zap.String("source", ev.Path),
		zap.String("dest", dest))
	return nil
}

// applyDelete removes the merged destination for a deleted override path
// and restores the content of the next-lower layer when it still exists.
// Deletions touching the plugin entry point or the manifest destination
// trigger a manifest regeneration with a freshly recomputed plugin set.
func (w *Watcher) applyDelete(ev SyncEvent) error {
	dest, err := ev.Root.DestFor(ev.Path)
	if err != nil {
		return err
	}

	if err := w.fsOps.RemoveAll(dest); err != nil {
		return err
	}
	w.mu.Lock()
	w.stats.Removed++
	w.mu.Unlock()

	fallback, err := ev.Root.FallbackFor(ev.Path)
	if err != nil {
		return err
	}
	fallbackExists, err := w.fsOps.Exists(fallback)
	if err != nil {
		return err
	}
	if fallbackExists {
		if err := w.fsOps.Copy(fallback, dest); err != nil {
			return err
		}
		w.mu.Lock()
		w.stats.Restored++
		w.mu.Unlock()
		w.logger.Debug("fallback restored",
			zap.String("dest", dest),
			zap.String("fallback", fallback))
	}

	if w.affectsManifest(ev.Root, dest) {
		if err := w.regenerateManifest(); err != nil {
			return err
		}
	}
	return nil
}

// affectsManifest reports whether a deletion at dest can change the
// manifest: it does when dest is, or is an ancestor directory of, the
// manifest destination or the owning plugin's admin entry point.
func (w *Watcher) affectsManifest(root layers.WatchRoot, dest string) bool {
	if isOrAncestor(dest, w.paths.ManifestPath()) {
		return true
	}
	if root.Kind == layers.WatchExtension {
		entry := filepath.Join(w.paths.PluginDest(root.PluginName), filepath.FromSlash(layers.AdminEntryRelPath))
		return isOrAncestor(dest, entry)
	}
	return false
}

// isOrAncestor reports whether p equals target or is an ancestor
// directory of it.
func isOrAncestor(p, target string) bool {
	return p == target || strings.HasPrefix(target, p+string(filepath.Separator))
}

// regenerateManifest recomputes the plugin set and rewrites the manifest.
// The plugin set is only rediscovered here and at full materialization;
// a plugin losing its installed entry point mid-session drops out of the
// manifest the next time one of these triggers fires.
func (w *Watcher) regenerateManifest() error {
	res, err := w.resolver.Resolve(w.projectRoot)
	if err != nil {
		return err
	}

	text := manifest.Generate(res.ActivePlugins(), w.rt)
	changed, err := w.generator.Write(res.Paths, text)
	if err != nil {
		return err
	}
	if changed {
		w.mu.Lock()
		w.stats.ManifestRegens++
		w.mu.Unlock()
		w.logger.Info("plugin manifest regenerated",
			zap.Int("plugins", len(res.ActivePlugins())))
	}
	return nil
}
