package search

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bibsearch/internal/index/fields"
	"github.com/roach88/bibsearch/internal/index/fulltext"
	"github.com/roach88/bibsearch/internal/library"
	"github.com/roach88/bibsearch/internal/metrics"
	"github.com/roach88/bibsearch/internal/query"
	"github.com/roach88/bibsearch/internal/query/ast"
	"github.com/roach88/bibsearch/internal/query/matcher"
	"github.com/roach88/bibsearch/internal/query/syntax"
	"github.com/roach88/bibsearch/internal/search/iql"
	"github.com/roach88/bibsearch/internal/testutil"
)

// indexCorpus builds a fresh structured index of entries.
func indexCorpus(t *testing.T, entries []*library.Entry) *fields.Indexer {
	t.Helper()
	store, err := fields.Open(filepath.Join(t.TempDir(), "fields.db"))
	require.NoError(t, err)
	ix := fields.NewIndexer(store)
	t.Cleanup(func() { ix.Close() })
	require.NoError(t, ix.Index(context.Background(), entries, nil))
	return ix
}

func ids(entries []*library.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

var loveAndHateOrWar = syntax.Binary{
	Left: syntax.Term("love"),
	Op:   "AND",
	Right: syntax.Group(syntax.Binary{
		Left:  syntax.Term("hate"),
		Op:    "OR",
		Right: syntax.Term("war"),
	}),
}

var loveOrVerona = syntax.Binary{Left: syntax.Term("love"), Op: "OR", Right: syntax.Term("verona")}

// TestAgreement checks that the in-memory matcher and the translated index
// query select the same entries.
func TestAgreement(t *testing.T) {
	corpus := testutil.Corpus()
	engine := New(indexCorpus(t, corpus).Store())

	testCases := []struct {
		name string
		tree syntax.Node
		want []string
	}{
		{"love and hate or war", loveAndHateOrWar, []string{"e2", "e3"}},
		{"implicit and with or", syntax.And(syntax.Term("war"), loveOrVerona), []string{"e3"}},
		{"right nested or", syntax.Binary{Left: syntax.Term("war"), Op: "AND", Right: loveOrVerona}, []string{"e3"}},
		{"left nested or", syntax.Binary{Left: loveOrVerona, Op: "AND", Right: syntax.Term("war")}, []string{"e3"}},
		{"fielded contains", syntax.Field("title", "=", syntax.Word("war")), []string{"e1"}},
		{"not keyword", syntax.Negated{Expr: syntax.Term("love")}, []string{"e1", "e5", "e6"}},
		{"negated operator", syntax.Field("title", "!=", syntax.Word("war")), []string{"e2", "e3", "e4", "e5", "e6"}},
		{"regex", syntax.Field("year", "=~", syntax.Word("^18")), []string{"e1"}},
		{"quoted phrase", syntax.Field("title", "=", syntax.Quoted("and peace")), []string{"e1"}},
		{"unfielded backslash", syntax.Term(`papers\\hate`), []string{"e6"}},
		{"keywords", syntax.Field("keywords", "=", syntax.Word("computing")), []string{"e4"}},
		{"pseudo key exact", syntax.Field("key", "==", syntax.Word("Tolstoy1869")), []string{"e1"}},
		{"entry type", syntax.Field("entrytype", "=", syntax.Word("book")), []string{"e2", "e3"}},
		{
			"or",
			syntax.Binary{
				Left:  syntax.Field("author", "=", syntax.Word("hemingway")),
				Op:    "OR",
				Right: syntax.Field("journal", "=", syntax.Word("history")),
			},
			[]string{"e3", "e4"},
		},
		{"implicit and", syntax.And(syntax.Term("love"), syntax.Field("title", "=", syntax.Word("arms"))), []string{"e3"}},
		{
			"not group",
			syntax.Negated{Expr: syntax.Group(syntax.Binary{Left: syntax.Term("love"), Op: "OR", Right: syntax.Term("war")})},
			[]string{"e5", "e6"},
		},
		{"unicode folding", syntax.Field("author", "=", syntax.Word("TOLSTOY")), []string{"e1"}},
		{"no match", syntax.Term("zeppelin"), []string{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := matcher.Compile(ast.MustBuild(tc.tree, 0), 0)
			matched := ids(matcher.Filter(m, corpus))

			res, err := engine.SearchTree(context.Background(), tc.tree)
			require.NoError(t, err)

			assert.Equal(t, tc.want, matched, "matcher")
			assert.Equal(t, tc.want, res.EntryIDs, "index")
		})
	}
}

func TestSearch_EmptyQueryMatchesAll(t *testing.T) {
	engine := New(indexCorpus(t, testutil.Corpus()).Store())
	res, err := engine.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2", "e3", "e4", "e5", "e6"}, res.EntryIDs)

	res, err = engine.Search(context.Background(), "NOT ()")
	require.NoError(t, err)
	assert.Empty(t, res.EntryIDs)
}

func TestSearch_Wildcard(t *testing.T) {
	engine := New(indexCorpus(t, testutil.Corpus()).Store())
	res, err := engine.Search(context.Background(), "title:love*")
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e4"}, res.EntryIDs)
}

func TestSearch_MalformedQuery(t *testing.T) {
	engine := New(indexCorpus(t, testutil.Corpus()).Store())
	_, err := engine.Search(context.Background(), `title:"war`)
	var pe *iql.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 6, pe.Pos)
}

func TestSearch_Cancelled(t *testing.T) {
	engine := New(indexCorpus(t, testutil.Corpus()).Store())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Search(ctx, "love")
	assert.ErrorIs(t, err, context.Canceled)
}

type fulltextFixture struct {
	engine *Engine
	files  string
}

func newFulltextFixture(t *testing.T, flags query.Flags) fulltextFixture {
	t.Helper()
	files := t.TempDir()
	extract := testutil.NewFakeExtractor()
	clock := testutil.NewFileClock()

	clock.Touch(t, testutil.WriteFile(t, files, "papers/hemingway.pdf"))
	extract.SetPages("hemingway.pdf", "the sun also rises", "tensor calculus appendix")
	clock.Touch(t, testutil.WriteFile(t, files, "notes.pdf"))
	extract.SetPages("notes.pdf", "neural networks for citations")

	entries := testutil.Corpus()
	entries[2].Link(library.LinkedFile{Link: "papers/hemingway.pdf", FileType: "PDF"})
	entries[4].Link(library.LinkedFile{Link: "notes.pdf", FileType: "PDF"})

	ft, err := fulltext.Open(filepath.Join(t.TempDir(), "fulltext"), extract, fulltext.WithFileDirs(files))
	require.NoError(t, err)
	t.Cleanup(func() { ft.Close() })
	require.NoError(t, ft.Index(context.Background(), entries, nil))
	require.NoError(t, ft.RefreshReaders())

	engine := New(indexCorpus(t, entries).Store(), WithFulltext(ft), WithFlags(flags))
	return fulltextFixture{engine: engine, files: files}
}

func TestSearch_Content(t *testing.T) {
	f := newFulltextFixture(t, 0)
	ctx := context.Background()

	res, err := f.engine.SearchTree(ctx, syntax.Field("content", "=", syntax.Word("neural")))
	require.NoError(t, err)
	assert.Equal(t, []string{"e5"}, res.EntryIDs)
	assert.Equal(t, []fulltext.Hit{{EntryID: "e5", Page: 1, Path: filepath.Join(f.files, "notes.pdf")}}, res.Pages)

	res, err = f.engine.SearchTree(ctx, syntax.Field("content", "=", syntax.Quoted("tensor calculus")))
	require.NoError(t, err)
	assert.Equal(t, []string{"e3"}, res.EntryIDs)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, 2, res.Pages[0].Page)

	// Pages of entries excluded by the rest of the query are dropped.
	res, err = f.engine.Search(ctx, "content:*e* AND title:farewell")
	require.NoError(t, err)
	assert.Equal(t, []string{"e3"}, res.EntryIDs)
	for _, p := range res.Pages {
		assert.Equal(t, "e3", p.EntryID)
	}
}

func TestSearch_Path(t *testing.T) {
	f := newFulltextFixture(t, 0)
	res, err := f.engine.SearchTree(context.Background(), syntax.Field("path", "=", syntax.Word("Papers")))
	require.NoError(t, err)
	assert.Equal(t, []string{"e3"}, res.EntryIDs)
}

func TestSearch_UnfieldedFulltextFlag(t *testing.T) {
	ctx := context.Background()

	without := newFulltextFixture(t, 0)
	res, err := without.engine.SearchTree(ctx, syntax.Term("tensor"))
	require.NoError(t, err)
	assert.Empty(t, res.EntryIDs)

	with := newFulltextFixture(t, query.Fulltext)
	res, err = with.engine.SearchTree(ctx, syntax.Term("tensor"))
	require.NoError(t, err)
	assert.Equal(t, []string{"e3"}, res.EntryIDs)
}

// mapCache is an in-memory Cache.
type mapCache struct {
	mu     sync.Mutex
	values map[string][]byte
}

func (c *mapCache) GetOrLoad(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.values[key]; ok {
		return v, true, nil
	}
	v, err := load(ctx)
	if err != nil {
		return nil, false, err
	}
	c.values[key] = v
	return v, false, nil
}

func TestSearch_Cache(t *testing.T) {
	m := metrics.New()
	cache := &mapCache{values: map[string][]byte{}}
	var gen uint64 = 1
	engine := New(indexCorpus(t, testutil.Corpus()).Store(),
		WithCache(cache, "lib", func() uint64 { return gen }),
		WithMetrics(m))
	ctx := context.Background()

	first, err := engine.Search(ctx, "love")
	require.NoError(t, err)
	second, err := engine.Search(ctx, "love")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, cache.values, 1)

	gen = 2
	_, err = engine.Search(ctx, "love")
	require.NoError(t, err)
	assert.Len(t, cache.values, 2)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, f := range families {
		switch f.GetName() {
		case "bibsearch_search_cache_hits_total", "bibsearch_search_cache_misses_total":
			counts[f.GetName()] = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, counts["bibsearch_search_cache_hits_total"])
	assert.Equal(t, 2.0, counts["bibsearch_search_cache_misses_total"])
}

func TestSet(t *testing.T) {
	a := newSet("1", "2", "3")
	b := newSet("2", "3", "4")
	assert.Equal(t, []string{"2", "3"}, a.intersect(b).sorted())
	assert.Equal(t, []string{"1"}, a.minus(b).sorted())
	c := a.clone()
	c.addAll(b)
	assert.Equal(t, []string{"1", "2", "3", "4"}, c.sorted())
	assert.Equal(t, []string{"1", "2", "3"}, a.sorted())
	assert.Equal(t, []string{}, set{}.sorted())
}
