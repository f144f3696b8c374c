package testutil

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileClock_Monotonic(t *testing.T) {
	c := NewFileClock()
	a := c.Next()
	b := c.Next()
	assert.True(t, b.After(a))
}

func TestFileClock_Touch(t *testing.T) {
	path := WriteFile(t, t.TempDir(), "a.pdf")
	c := NewFileClock()
	ts := c.Touch(t, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(ts))
}

func TestFakeExtractor(t *testing.T) {
	f := NewFakeExtractor()
	f.SetNumberedPages("a.pdf", "alpha", 3)
	f.FailOn("b.pdf", errors.New("broken"))

	pages, err := f.ExtractPages(context.Background(), "/x/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha page 1", "alpha page 2", "alpha page 3"}, pages)
	assert.Equal(t, 1, f.Calls("a.pdf"))

	_, err = f.ExtractPages(context.Background(), "/x/b.pdf")
	assert.EqualError(t, err, "broken")

	_, err = f.ExtractPages(context.Background(), "/x/c.pdf")
	assert.Error(t, err)
}

func TestRecordingProgress(t *testing.T) {
	var p RecordingProgress
	assert.Equal(t, ProgressUpdate{}, p.Last())

	p.Update(1, 2, "one")
	p.Update(2, 2, "two")
	p.Failed("x", errors.New("bad"))

	assert.Len(t, p.Updates(), 2)
	assert.Equal(t, ProgressUpdate{Done: 2, Total: 2, Message: "two"}, p.Last())
	require.Len(t, p.Failures(), 1)
	assert.Equal(t, "x", p.Failures()[0].Item)
}

func TestCorpusIDsUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, e := range Corpus() {
		assert.False(t, seen[e.ID], e.ID)
		seen[e.ID] = true
	}
}
