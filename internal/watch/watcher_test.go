package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestRelevantEvents(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	deny := filepath.Join(other, "excluded.txt")
	w := New(dir, deny, nil)

	cases := []struct {
		evt  fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: filepath.Join(dir, "signups.csv"), Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: filepath.Join(dir, "config.yml"), Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: filepath.Join(dir, "bots.csv"), Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: filepath.Join(other, "signups.csv"), Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: deny, Op: fsnotify.Remove}, true},
	}
	for _, tc := range cases {
		if got := w.relevant(tc.evt); got != tc.want {
			t.Fatalf("relevant(%v) = %v, want %v", tc.evt, got, tc.want)
		}
	}
}

func TestWatcherDebouncesRebuilds(t *testing.T) {
	dir := t.TempDir()
	var calls int32
	done := make(chan struct{}, 4)
	warm := WarmFunc(func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		done <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := New(dir, "", warm).WithDebounce(100 * time.Millisecond)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "signups.csv")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("company_id\n1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("no rebuild after the data changed")
	}
	time.Sleep(300 * time.Millisecond)
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("burst of writes should trigger one rebuild, got %d", n)
	}
}
