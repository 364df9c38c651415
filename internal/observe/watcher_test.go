package observe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/psantana5/landing/pkg/fragments"
	"github.com/psantana5/landing/pkg/loader"
)

type recordingRemounter struct {
	ids chan string
}

func (r *recordingRemounter) Remount(_ context.Context, id string) (loader.Result, error) {
	r.ids <- id
	return loader.Result{ID: id, Outcome: loader.OutcomeMounted}, nil
}

func TestWatcherRemountsChangedFragment(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "modules"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"hero", "about"} {
		if err := os.WriteFile(filepath.Join(root, "modules", id+".html"), []byte("<p>"+id+"</p>"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	target := &recordingRemounter{ids: make(chan string, 10)}
	w, err := NewFragmentWatcher(Config{
		Root:     root,
		Registry: fragments.Default(),
		Debounce: 50 * time.Millisecond,
	}, target)
	if err != nil {
		t.Fatalf("NewFragmentWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// Several quick writes collapse into one remount
	path := filepath.Join(root, "modules", "hero.html")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("<p>hero v2</p>"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Files outside the registry are ignored
	if err := os.WriteFile(filepath.Join(root, "modules", "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-target.ids:
		if id != "hero" {
			t.Errorf("Expected hero remount, got %s", id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for remount")
	}

	select {
	case id := <-target.ids:
		t.Errorf("Unexpected second remount of %s", id)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w, err := NewFragmentWatcher(Config{Root: t.TempDir(), Registry: fragments.Default()}, &recordingRemounter{ids: make(chan string, 1)})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("First stop failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Second stop failed: %v", err)
	}
}

func TestNewFragmentWatcherRequiresTarget(t *testing.T) {
	if _, err := NewFragmentWatcher(Config{Root: t.TempDir(), Registry: fragments.Default()}, nil); err == nil {
		t.Error("Expected error without a remount target")
	}
}
