package livereload

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/pkg/logger"
)

// fingerprint identifies one file version.
type fingerprint struct {
	size    int64
	modTime time.Time
}

// Watcher polls a directory tree and reports changed files. Polling
// keeps the behavior identical across platforms and network mounts.
type Watcher struct {
	root     string
	interval time.Duration
	notifier port.ReloadNotifier

	// invalidate, when set, receives changed request paths so cached
	// copies can be dropped before clients re-fetch.
	invalidate func(ctx context.Context, paths []string)

	seen   map[string]fingerprint
	logger *logger.Logger
}

func NewWatcher(root string, interval time.Duration, notifier port.ReloadNotifier, invalidate func(ctx context.Context, paths []string), log *logger.Logger) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		root:       root,
		interval:   interval,
		notifier:   notifier,
		invalidate: invalidate,
		seen:       make(map[string]fingerprint),
		logger:     log,
	}
}

// Run polls until ctx is canceled. The first scan only primes the
// fingerprint map; notifications start with the second.
func (w *Watcher) Run(ctx context.Context) {
	w.seen = w.scan()
	w.logger.Info("Live reload watcher started", "root", w.root, "interval", w.interval.String(), "files", len(w.seen))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Live reload watcher stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	current := w.scan()
	changed := diff(w.seen, current)
	w.seen = current

	if len(changed) == 0 {
		return
	}

	w.logger.Debug("Content changed", "paths", strings.Join(changed, ","))
	if w.invalidate != nil {
		w.invalidate(ctx, changed)
	}
	w.notifier.BroadcastReload(port.ChangeSet{Paths: changed})
}

// scan fingerprints every regular file under root, keyed by request
// path. Dotfiles are ignored, matching what the content source serves.
func (w *Watcher) scan() map[string]fingerprint {
	result := make(map[string]fingerprint, len(w.seen))

	_ = filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && p != w.root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		result[requestPath(w.root, p)] = fingerprint{size: info.Size(), modTime: info.ModTime()}
		return nil
	})

	return result
}

// diff returns request paths that were added, removed or modified,
// sorted for deterministic notifications.
func diff(before, after map[string]fingerprint) []string {
	var changed []string

	for p, fp := range after {
		prev, ok := before[p]
		if !ok || prev.size != fp.size || !prev.modTime.Equal(fp.modTime) {
			changed = append(changed, p)
		}
	}
	for p := range before {
		if _, ok := after[p]; !ok {
			changed = append(changed, p)
		}
	}

	sort.Strings(changed)
	return changed
}

func requestPath(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "/" + filepath.ToSlash(abs)
	}
	return "/" + filepath.ToSlash(rel)
}
