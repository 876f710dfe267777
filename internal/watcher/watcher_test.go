package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/reportqa/internal/embedding"
	"github.com/hyperjump/reportqa/internal/extract"
	"github.com/hyperjump/reportqa/internal/fileid"
	"github.com/hyperjump/reportqa/internal/indexer"
	"github.com/hyperjump/reportqa/internal/storage"
)

// sinkFuncs adapts plain functions to Sink. Nil functions are skipped.
type sinkFuncs struct {
	Changed func(ctx context.Context, path string)
	Removed func(ctx context.Context, path string)
}

func (f sinkFuncs) FileChanged(ctx context.Context, path string) {
	if f.Changed != nil {
		f.Changed(ctx, path)
	}
}

func (f sinkFuncs) FileRemoved(ctx context.Context, path string) {
	if f.Removed != nil {
		f.Removed(ctx, path)
	}
}

type recorder struct {
	mu      sync.Mutex
	changed []string
	removed []string
}

func (r *recorder) sink() sinkFuncs {
	return sinkFuncs{
		Changed: func(_ context.Context, path string) {
			r.mu.Lock()
			r.changed = append(r.changed, path)
			r.mu.Unlock()
		},
		Removed: func(_ context.Context, path string) {
			r.mu.Lock()
			r.removed = append(r.removed, path)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() (changed, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changed...), append([]string(nil), r.removed...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func contains(paths []string, suffix string) bool {
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func TestInbox_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := New(nil, []string{".txt"}, true, rec.sink())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || dirs[0] != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}
	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestInbox_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := New([]string{dir}, []string{".txt"}, true, rec.sink(), WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(sub, "f.txt")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(strings.Repeat("x", i+1)), 0600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(sub, "skip.bin"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		changed, _ := rec.snapshot()
		return len(changed) >= 1
	})
	time.Sleep(200 * time.Millisecond)
	changed, _ := rec.snapshot()
	if len(changed) != 1 || !strings.HasSuffix(changed[0], "f.txt") {
		t.Errorf("expected one debounced f.txt event, got %v", changed)
	}
}

func TestInbox_Remove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := New([]string{dir}, []string{".txt"}, true, rec.sink())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, removed := rec.snapshot()
		return contains(removed, "gone.txt")
	})
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.pdf", []string{".pdf"}, true},
		{"/a/b.PDF", []string{"pdf"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir, path string
		want      bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestInbox_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignore.xyz"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := New([]string{dir}, []string{".txt"}, true, rec.sink())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SyncExisting()

	changed, _ := rec.snapshot()
	if len(changed) != 1 || !strings.HasSuffix(changed[0], "a.txt") {
		t.Errorf("expected a.txt, got %v", changed)
	}
}

func TestInbox_Start_createsMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inbox", "reports")
	w := New([]string{root}, nil, true, sinkFuncs{})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root should exist after Start: %v", err)
	}
}

func TestInbox_NewNestedDirectory(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := New([]string{dir}, []string{".txt", ".md"}, true, rec.sink(), WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "deep.txt"), []byte("deep"), 0600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		changed, _ := rec.snapshot()
		return contains(changed, "deep.txt")
	})
}

func TestIngestSink(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	chunker, _ := indexer.NewChunker(50, 5)
	idx := indexer.NewIndexer(store, embedding.NewMockEmbedder(4), chunker, extract.NewExtractor())
	sink := NewIngestSink(idx, []string{".txt"}, nil)

	inbox := filepath.Join(dir, "inbox")
	if err := os.MkdirAll(inbox, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(inbox, "memo.txt")
	if err := os.WriteFile(path, []byte("Board memo about capital spending."), 0600); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	sink.FileChanged(ctx, path)
	id := fileid.ForPath(path)
	if _, err := store.GetReport(ctx, id); err != nil {
		t.Fatalf("report not ingested: %v", err)
	}
	sink.FileRemoved(ctx, path)
	if n, _ := store.CountReports(ctx); n != 0 {
		t.Errorf("report should be removed, %d left", n)
	}
}
