package fields

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bibsearch/internal/index"
	"github.com/roach88/bibsearch/internal/library"
	"github.com/roach88/bibsearch/internal/metrics"
	"github.com/roach88/bibsearch/internal/testutil"
)

func TestIndex_Idempotent(t *testing.T) {
	ix := createTestIndexer(t)
	ctx := context.Background()
	entries := testutil.Corpus()

	require.NoError(t, ix.Index(ctx, entries, nil))
	first, err := ix.Store().Count(ctx)
	require.NoError(t, err)

	require.NoError(t, ix.Index(ctx, entries, nil))
	second, err := ix.Store().Count(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for _, e := range entries {
		for _, name := range e.FieldNames() {
			n, err := ix.Store().CountField(ctx, e.ID, name)
			require.NoError(t, err)
			assert.Equal(t, 1, n, "%s/%s", e.ID, name)
		}
	}
}

func TestIndex_PseudoFields(t *testing.T) {
	ix := createTestIndexer(t, WithKeywordSeparator(";"))
	ctx := context.Background()

	e := library.NewEntry("e1", "Article").
		WithKey("Smith2020").
		Set("keywords", "b; a;; b").
		Link(library.LinkedFile{Link: "a.pdf", FileType: "PDF"})
	require.NoError(t, ix.Index(ctx, []*library.Entry{e}, nil))

	got, err := ix.Store().Fields(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Smith2020", got["citationkey"])
	assert.Equal(t, "article", got["entrytype"])
	assert.Equal(t, "b; a", got["keywords"])
	assert.Equal(t, ":a.pdf:PDF", got["file"])
}

func TestIndex_ChangedEntryReplacesRows(t *testing.T) {
	ix := createTestIndexer(t)
	ctx := context.Background()

	e := library.NewEntry("e1", "book").Set("title", "Draft").Set("note", "temp")
	require.NoError(t, ix.Index(ctx, []*library.Entry{e}, nil))

	e = library.NewEntry("e1", "book").Set("title", "Final")
	require.NoError(t, ix.Index(ctx, []*library.Entry{e}, nil))

	got, err := ix.Store().Fields(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"title": "Final", "entrytype": "book"}, got)
}

func TestIndex_ConcurrentSameEntry(t *testing.T) {
	ix := createTestIndexer(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := library.NewEntry("shared", "misc").Set("title", fmt.Sprintf("v%d", i))
			assert.NoError(t, ix.Index(ctx, []*library.Entry{e}, nil))
		}(i)
	}
	wg.Wait()

	n, err := ix.Store().CountField(ctx, "shared", "title")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIndex_Progress(t *testing.T) {
	ix := createTestIndexer(t)
	progress := &testutil.RecordingProgress{}

	require.NoError(t, ix.Index(context.Background(), testutil.Corpus(), progress))

	updates := progress.Updates()
	require.Len(t, updates, 6)
	assert.Equal(t, testutil.ProgressUpdate{Done: 6, Total: 6, Message: "6 of 6 entries indexed"}, progress.Last())
}

func TestIndex_CancelledKeepsCommittedEntries(t *testing.T) {
	ix := createTestIndexer(t)
	ctx, cancel := context.WithCancel(context.Background())

	entries := testutil.Corpus()
	progress := cancelAfter{n: 2, cancel: cancel}
	err := ix.Index(ctx, entries, progress)
	require.Error(t, err)
	assert.True(t, index.IsCancelled(err))

	ids, err := ix.Store().EntryIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, ids)
}

// cancelAfter cancels the batch once n entries are reported done.
type cancelAfter struct {
	n      int
	cancel context.CancelFunc
}

func (c cancelAfter) Update(done, _ int, _ string) {
	if done >= c.n {
		c.cancel()
	}
}

func (c cancelAfter) Failed(string, error) {}

func TestRemoveEntriesAndAll(t *testing.T) {
	ix := createTestIndexer(t)
	ctx := context.Background()
	require.NoError(t, ix.Index(ctx, testutil.Corpus(), nil))

	require.NoError(t, ix.RemoveEntries(ctx, []string{"e1", "e2"}))
	ids, err := ix.Store().EntryIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"e3", "e4", "e5", "e6"}, ids)

	require.NoError(t, ix.RemoveAll(ctx))
	ids, err = ix.Store().EntryIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestClose_Idempotent(t *testing.T) {
	ix := createTestIndexer(t)
	require.NoError(t, ix.Close())
	require.NoError(t, ix.Close())

	err := ix.Index(context.Background(), testutil.Corpus(), nil)
	assert.True(t, index.IsClosed(err))
	assert.Equal(t, index.ErrCodeClosed, index.CodeOf(err))
}

func TestIndex_Metrics(t *testing.T) {
	m := metrics.New()
	ix := createTestIndexer(t, WithMetrics(m), WithBatchIDs(index.NewSequenceGenerator("b1")))

	require.NoError(t, ix.Index(context.Background(), testutil.Corpus(), nil))

	count, err := ix.Store().Count(context.Background())
	require.NoError(t, err)
	assert.Positive(t, count)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "bibsearch_entries_indexed_total" {
			found = true
			assert.Equal(t, 6.0, f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}
