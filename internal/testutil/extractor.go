package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// FakeExtractor returns canned page texts keyed by file base name. It
// satisfies fulltext.Extractor.
type FakeExtractor struct {
	mu    sync.Mutex
	pages map[string][]string
	errs  map[string]error
	calls map[string]int
}

// NewFakeExtractor creates an empty fake.
func NewFakeExtractor() *FakeExtractor {
	return &FakeExtractor{
		pages: make(map[string][]string),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

// SetPages registers the page texts for a base name.
func (f *FakeExtractor) SetPages(name string, pages ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[name] = pages
}

// SetNumberedPages registers n pages whose text is "<prefix> page <i>".
func (f *FakeExtractor) SetNumberedPages(name, prefix string, n int) {
	pages := make([]string, n)
	for i := range pages {
		pages[i] = fmt.Sprintf("%s page %d", prefix, i+1)
	}
	f.SetPages(name, pages...)
}

// FailOn makes extraction of a base name fail.
func (f *FakeExtractor) FailOn(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[name] = err
}

// Calls returns how often a base name was extracted.
func (f *FakeExtractor) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *FakeExtractor) ExtractPages(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := filepath.Base(path)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	pages, ok := f.pages[name]
	if !ok {
		return nil, fmt.Errorf("no pages registered for %s", name)
	}
	return append([]string(nil), pages...), nil
}

// WriteFile creates a placeholder file under dir and returns its path.
func WriteFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
