package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"modwatch/internal/adapters/segment"
	"modwatch/internal/platform/logger"
	kit "modwatch/internal/platform/testkit"
)

func TestHandle_FiltersEvents(t *testing.T) {
	var got []string
	w := &Watcher{found: func(p string) { got = append(got, p) }, log: *logger.Named("watch")}
	w.matcher = segment.NewMatcher("comments.log")

	w.handle(fsnotify.Event{Name: "/d/comments.log.2024-01-01_00-00-00", Op: fsnotify.Create})
	w.handle(fsnotify.Event{Name: "/d/comments.log.2024-01-01_00-00-00", Op: fsnotify.Write})
	w.handle(fsnotify.Event{Name: "/d/comments.log", Op: fsnotify.Create})
	w.handle(fsnotify.Event{Name: "/d/comments.log.2024-01-01_00-00-00.lock", Op: fsnotify.Create})
	w.handle(fsnotify.Event{Name: "/d/comments.log.2024-01-01_00-00-00.zst", Op: fsnotify.Create})

	if len(got) != 1 || got[0] != "/d/comments.log.2024-01-01_00-00-00" {
		t.Fatalf("found = %v", got)
	}
}

func TestWatcher_SeesRename(t *testing.T) {
	dir := t.TempDir()
	found := make(chan string, 4)
	w, err := New(dir, "comments.log", func(p string) { found <- p })
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	active := kit.WriteLines(t, dir, "comments.log", `{"name":"t1_a"}`)
	sealed := filepath.Join(dir, "comments.log.2024-01-01_00-00-00")
	if err := os.Rename(active, sealed); err != nil {
		t.Fatalf("rename: %v", err)
	}

	select {
	case p := <-found:
		if p != sealed {
			t.Fatalf("found %q, want %q", p, sealed)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("sealed segment not reported")
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(t.TempDir(), "comments.log", nil); err == nil {
		t.Fatalf("nil callback should fail")
	}
	if _, err := New(filepath.Join(t.TempDir(), "missing"), "comments.log", func(string) {}); err == nil {
		t.Fatalf("missing dir should fail")
	}
}
