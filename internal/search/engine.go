// Package search executes index query strings against the structured field
// index and the full-text page index of one library.
//
// A query is parsed with iql and evaluated as set algebra over entry ids:
// AND intersects, OR unions and NOT subtracts from every indexed entry.
// Clauses on structured fields run against fields.Store; clauses on the
// content and path fields run against a full-text snapshot; unfielded
// clauses search every structured field, plus page text when the fulltext
// flag is set.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	bleveq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/roach88/bibsearch/internal/index/fields"
	"github.com/roach88/bibsearch/internal/index/fulltext"
	"github.com/roach88/bibsearch/internal/metrics"
	"github.com/roach88/bibsearch/internal/query"
	"github.com/roach88/bibsearch/internal/query/indexquery"
	"github.com/roach88/bibsearch/internal/query/syntax"
	"github.com/roach88/bibsearch/internal/search/iql"
)

// Result is the outcome of one query.
type Result struct {
	// EntryIDs are the matching entries, sorted.
	EntryIDs []string `json:"entry_ids"`
	// Pages are the page hits of content clauses that belong to a
	// matching entry, for navigation.
	Pages []fulltext.Hit `json:"pages,omitempty"`
}

// ReaderSource hands out full-text snapshots. *fulltext.Indexer
// satisfies it.
type ReaderSource interface {
	AcquireReader() (*fulltext.Reader, error)
}

// Cache stores encoded results. GetOrLoad returns the cached value for key,
// or calls load and stores its value; hit reports which happened.
type Cache interface {
	GetOrLoad(ctx context.Context, key string, load func(context.Context) ([]byte, error)) (value []byte, hit bool, err error)
}

// Engine executes queries. It is safe for concurrent use.
type Engine struct {
	store      *fields.Store
	fulltext   ReaderSource
	flags      query.Flags
	cache      Cache
	library    string
	generation func() uint64
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFulltext enables content and path clauses.
func WithFulltext(src ReaderSource) Option {
	return func(e *Engine) { e.fulltext = src }
}

// WithFlags sets the search flags used for translation and for unfielded
// clauses.
func WithFlags(f query.Flags) Option {
	return func(e *Engine) { e.flags = f }
}

// WithCache caches results per library and index generation. generation
// must change whenever either index is written.
func WithCache(c Cache, library string, generation func() uint64) Option {
	return func(e *Engine) {
		e.cache = c
		e.library = library
		e.generation = generation
	}
}

// WithMetrics records search latency and cache hits.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine over store.
func New(store *fields.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: slog.Default().With("component", "search"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Flags returns the engine's search flags.
func (e *Engine) Flags() query.Flags {
	return e.flags
}

// SearchTree translates a parse tree with the engine's flags and runs it.
func (e *Engine) SearchTree(ctx context.Context, n syntax.Node) (*Result, error) {
	return e.Search(ctx, indexquery.Translate(n, e.flags))
}

// Search parses and runs an index query string. The empty string matches
// every indexed entry.
func (e *Engine) Search(ctx context.Context, q string) (*Result, error) {
	start := time.Now()
	expr, err := iql.Parse(q)
	if err != nil {
		return nil, err
	}

	if e.cache == nil {
		res, err := e.Execute(ctx, expr)
		if err != nil {
			return nil, err
		}
		e.metrics.ObserveSearch("none", time.Since(start), len(res.EntryIDs))
		return res, nil
	}

	data, hit, err := e.cache.GetOrLoad(ctx, e.cacheKey(q), func(ctx context.Context) ([]byte, error) {
		res, err := e.Execute(ctx, expr)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)
	})
	if err != nil {
		return nil, err
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}
	status := "miss"
	if hit {
		status = "hit"
	}
	e.metrics.ObserveSearch(status, time.Since(start), len(res.EntryIDs))
	e.logger.Debug("search", "query", q, "cache", status, "results", len(res.EntryIDs))
	return &res, nil
}

func (e *Engine) cacheKey(q string) string {
	var gen uint64
	if e.generation != nil {
		gen = e.generation()
	}
	return fmt.Sprintf("bibsearch:%s:%d:%d:%s", e.library, gen, e.flags, q)
}

// Execute evaluates a parsed query.
func (e *Engine) Execute(ctx context.Context, expr iql.Expr) (*Result, error) {
	x := &execution{engine: e, ctx: ctx}
	defer x.release()

	ids, err := x.eval(expr)
	if err != nil {
		return nil, err
	}

	res := &Result{EntryIDs: ids.sorted()}
	for _, h := range x.pages {
		if ids.has(h.EntryID) {
			res.Pages = append(res.Pages, h)
		}
	}
	sortHits(res.Pages)
	res.Pages = dedupHits(res.Pages)
	return res, nil
}

// execution holds the state of one Execute call. The full-text reader is
// acquired on first use so every clause sees the same snapshot.
type execution struct {
	engine   *Engine
	ctx      context.Context
	reader   *fulltext.Reader
	universe set
	pages    []fulltext.Hit
}

func (x *execution) release() {
	if x.reader != nil {
		x.reader.Release()
	}
}

func (x *execution) eval(expr iql.Expr) (set, error) {
	if err := x.ctx.Err(); err != nil {
		return nil, err
	}
	switch n := expr.(type) {
	case iql.Empty:
		return x.all()
	case iql.Clause:
		return x.clause(n)
	case iql.Not:
		all, err := x.all()
		if err != nil {
			return nil, err
		}
		child, err := x.eval(n.Child)
		if err != nil {
			return nil, err
		}
		return all.minus(child), nil
	case iql.And:
		var acc set
		for i, c := range n.Children {
			s, err := x.eval(c)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				acc = s
			} else {
				acc = acc.intersect(s)
			}
		}
		return acc, nil
	case iql.Or:
		acc := set{}
		for _, c := range n.Children {
			s, err := x.eval(c)
			if err != nil {
				return nil, err
			}
			acc.addAll(s)
		}
		return acc, nil
	default:
		return nil, fmt.Errorf("search: unknown expression %T", expr)
	}
}

// all returns every indexed entry.
func (x *execution) all() (set, error) {
	if x.universe == nil {
		ids, err := x.engine.store.EntryIDs(x.ctx)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		x.universe = newSet(ids...)
	}
	return x.universe.clone(), nil
}

func (x *execution) clause(c iql.Clause) (set, error) {
	switch c.Field {
	case indexquery.FieldContent:
		return x.fulltext(fulltext.FieldContent, c)
	case indexquery.FieldPath:
		return x.fulltext(fulltext.FieldPath, c)
	}

	out, err := x.structured(c)
	if err != nil {
		return nil, err
	}
	if c.Field == "" && x.engine.flags.Has(query.Fulltext) {
		content, err := x.fulltext(fulltext.FieldContent, c)
		if err != nil {
			return nil, err
		}
		out.addAll(content)
	}
	return out, nil
}

func (x *execution) structured(c iql.Clause) (set, error) {
	var p fields.Predicate
	switch c.Kind {
	case iql.Term, iql.Phrase:
		p = fields.Contains(c.Value)
	case iql.Wildcard:
		p = fields.Pattern(c.Value)
	case iql.Regex:
		p = fields.Regex(c.Value)
	default:
		return nil, fmt.Errorf("search: unknown value kind %v", c.Kind)
	}
	ids, err := x.engine.store.Match(x.ctx, c.Field, p)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c, err)
	}
	return newSet(ids...), nil
}

func (x *execution) fulltext(field string, c iql.Clause) (set, error) {
	if x.engine.fulltext == nil {
		return set{}, nil
	}
	if x.reader == nil {
		r, err := x.engine.fulltext.AcquireReader()
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		x.reader = r
	}

	hits, err := x.reader.Search(x.ctx, pageQuery(field, c))
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c, err)
	}
	out := set{}
	for _, h := range hits {
		out.add(h.EntryID)
	}
	if field == fulltext.FieldContent {
		x.pages = append(x.pages, hits...)
	}
	return out, nil
}

// pageQuery builds the bleve query for a clause on a page field. Page text
// and paths are indexed lower-cased, so literal terms and wildcard
// patterns are lower-cased too. Path terms match anywhere in the path.
func pageQuery(field string, c iql.Clause) bleveq.Query {
	value := c.Value
	if c.Kind == iql.Wildcard {
		value = stripEscapes(value)
	}

	switch {
	case c.Kind == iql.Regex:
		q := bleve.NewRegexpQuery(value)
		q.SetField(field)
		return q
	case field == fulltext.FieldPath && c.Kind != iql.Wildcard:
		q := bleve.NewWildcardQuery("*" + strings.ToLower(value) + "*")
		q.SetField(field)
		return q
	case c.Kind == iql.Wildcard:
		q := bleve.NewWildcardQuery(strings.ToLower(value))
		q.SetField(field)
		return q
	default:
		q := bleve.NewMatchPhraseQuery(value)
		q.SetField(field)
		return q
	}
}

// stripEscapes drops the backslashes a wildcard pattern keeps for literal
// * ? and \. The page index has no escape syntax for them.
func stripEscapes(s string) string {
	return strings.NewReplacer(`\*`, "*", `\?`, "?", `\\`, `\`).Replace(s)
}

func sortHits(hits []fulltext.Hit) {
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.EntryID != b.EntryID {
			return a.EntryID < b.EntryID
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Page < b.Page
	})
}

func dedupHits(hits []fulltext.Hit) []fulltext.Hit {
	if len(hits) < 2 {
		return hits
	}
	out := hits[:1]
	for _, h := range hits[1:] {
		if h != out[len(out)-1] {
			out = append(out, h)
		}
	}
	return out
}
