package testutil

import (
	"os"
	"sync"
	"testing"
	"time"
)

// FileClock hands out strictly increasing modification times and applies
// them to files, so mtime-driven reindexing is deterministic in tests.
//
// Thread-safety: all methods are safe for concurrent use.
type FileClock struct {
	mu   sync.Mutex
	base time.Time
	seq  int64
}

// NewFileClock creates a clock starting at a fixed instant.
// The first call to Next returns base + 1s.
func NewFileClock() *FileClock {
	return &FileClock{base: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Next advances the clock by one second and returns the new time.
func (c *FileClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.base.Add(time.Duration(c.seq) * time.Second)
}

// Touch sets path's modification time to Next and returns it.
func (c *FileClock) Touch(t *testing.T, path string) time.Time {
	t.Helper()
	ts := c.Next()
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
	return ts
}
