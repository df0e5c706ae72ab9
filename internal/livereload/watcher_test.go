package livereload

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/pkg/logger"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changes []port.ChangeSet
}

func (n *recordingNotifier) BroadcastReload(changes port.ChangeSet) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, changes)
}

func (n *recordingNotifier) ClientCount() int { return 0 }

func (n *recordingNotifier) last() (port.ChangeSet, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.changes) == 0 {
		return port.ChangeSet{}, false
	}
	return n.changes[len(n.changes)-1], true
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherDetectsModification(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "v1")

	notifier := &recordingNotifier{}
	w := NewWatcher(dir, time.Second, notifier, nil, logger.New("error"))

	w.seen = w.scan()

	// Force a distinct mtime regardless of filesystem resolution.
	writeFile(t, dir, "index.html", "v2 longer")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(filepath.Join(dir, "index.html"), future, future); err != nil {
		t.Fatal(err)
	}

	w.tick(context.Background())

	got, ok := notifier.last()
	if !ok {
		t.Fatal("expected a reload broadcast")
	}
	if len(got.Paths) != 1 || got.Paths[0] != "/index.html" {
		t.Errorf("changed paths = %v", got.Paths)
	}
}

func TestWatcherDetectsAddAndRemove(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.js", "keep")
	writeFile(t, dir, "old.js", "old")

	notifier := &recordingNotifier{}
	w := NewWatcher(dir, time.Second, notifier, nil, logger.New("error"))
	w.seen = w.scan()

	writeFile(t, dir, "assets/new.css", "body{}")
	if err := os.Remove(filepath.Join(dir, "old.js")); err != nil {
		t.Fatal(err)
	}

	w.tick(context.Background())

	got, ok := notifier.last()
	if !ok {
		t.Fatal("expected a reload broadcast")
	}
	want := []string{"/assets/new.css", "/old.js"}
	if len(got.Paths) != len(want) {
		t.Fatalf("changed paths = %v, want %v", got.Paths, want)
	}
	for i := range want {
		if got.Paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, got.Paths[i], want[i])
		}
	}
}

func TestWatcherIgnoresDotfiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.js", "app")

	notifier := &recordingNotifier{}
	w := NewWatcher(dir, time.Second, notifier, nil, logger.New("error"))
	w.seen = w.scan()

	writeFile(t, dir, ".hidden", "secret")
	writeFile(t, dir, ".git/config", "[core]")

	w.tick(context.Background())

	if _, ok := notifier.last(); ok {
		t.Error("dotfile changes must not trigger a reload")
	}
}

func TestWatcherInvalidatesBeforeBroadcast(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "style.css", "a{}")

	notifier := &recordingNotifier{}
	var invalidated []string
	w := NewWatcher(dir, time.Second, notifier, func(_ context.Context, paths []string) {
		invalidated = append(invalidated, paths...)
	}, logger.New("error"))
	w.seen = w.scan()

	writeFile(t, dir, "style.css", "a{color:red}")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(filepath.Join(dir, "style.css"), future, future); err != nil {
		t.Fatal(err)
	}

	w.tick(context.Background())

	if len(invalidated) != 1 || invalidated[0] != "/style.css" {
		t.Errorf("invalidated = %v", invalidated)
	}
}

func TestWatcherNoChangesNoBroadcast(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "stable")

	notifier := &recordingNotifier{}
	w := NewWatcher(dir, time.Second, notifier, nil, logger.New("error"))
	w.seen = w.scan()

	w.tick(context.Background())

	if _, ok := notifier.last(); ok {
		t.Error("unchanged tree must not trigger a reload")
	}
}
