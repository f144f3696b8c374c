package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bibsearch/internal/indexing"
)

var _ Target = (*indexing.Manager)(nil)

type call struct {
	op    string
	paths []string
}

type fakeTarget struct {
	calls chan call
}

func (f *fakeTarget) ReindexFiles(_ context.Context, paths ...string) error {
	f.calls <- call{"reindex", paths}
	return nil
}

func (f *fakeTarget) RemoveFiles(_ context.Context, paths ...string) error {
	f.calls <- call{"remove", paths}
	return nil
}

func start(t *testing.T, dir string) *fakeTarget {
	t.Helper()
	target := &fakeTarget{calls: make(chan call, 16)}
	w := New([]string{dir}, target, WithDebounce(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	select {
	case <-w.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher not ready")
	}
	return target
}

func next(t *testing.T, target *fakeTarget) call {
	t.Helper()
	select {
	case c := <-target.calls:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no call")
		return call{}
	}
}

func TestWatcher_WriteAndRemove(t *testing.T) {
	dir := t.TempDir()
	target := start(t, dir)

	path := filepath.Join(dir, "paper.PDF")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	c := next(t, target)
	assert.Equal(t, call{"reindex", []string{path}}, c)

	require.NoError(t, os.Remove(path))
	c = next(t, target)
	assert.Equal(t, call{"remove", []string{path}}, c)
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	target := start(t, dir)

	sub := filepath.Join(dir, "2024")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher time to pick up the new directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "a.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644))

	c := next(t, target)
	assert.Equal(t, call{"reindex", []string{path}}, c)
}

func TestIsPDF(t *testing.T) {
	assert.True(t, isPDF("/a/b.pdf"))
	assert.True(t, isPDF("B.Pdf"))
	assert.False(t, isPDF("b.pdf.txt"))
	assert.False(t, isPDF("pdf"))
}
