package fulltext

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/collector"
	"github.com/blevesearch/bleve/v2/search/query"
	index "github.com/blevesearch/bleve_index_api"
)

// ErrReleased is returned by a Reader used after its last Release.
var ErrReleased = errors.New("reader released")

// Hit is one matching page.
type Hit struct {
	EntryID string
	Page    int
	Path    string
}

// Reader is a point-in-time view of the index. It is safe for concurrent
// use; every AcquireReader must be paired with one Release.
type Reader struct {
	snapshot index.IndexReader
	mapping  mapping.IndexMapping
	refs     atomic.Int32
}

func newReader(snapshot index.IndexReader, m mapping.IndexMapping) *Reader {
	r := &Reader{snapshot: snapshot, mapping: m}
	r.refs.Store(1)
	return r
}

func (r *Reader) acquire() {
	r.refs.Add(1)
}

// Release drops one reference. The snapshot is closed with the last one.
func (r *Reader) Release() error {
	switch n := r.refs.Add(-1); {
	case n == 0:
		return r.snapshot.Close()
	case n < 0:
		return ErrReleased
	}
	return nil
}

// DocCount returns the number of page documents in the snapshot.
func (r *Reader) DocCount() (uint64, error) {
	if r.refs.Load() <= 0 {
		return 0, ErrReleased
	}
	return r.snapshot.DocCount()
}

// Search returns every page matching q, ordered by document id.
func (r *Reader) Search(ctx context.Context, q query.Query) ([]Hit, error) {
	if r.refs.Load() <= 0 {
		return nil, ErrReleased
	}
	n, err := r.snapshot.DocCount()
	if err != nil {
		return nil, fmt.Errorf("doc count: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	searcher, err := q.Searcher(ctx, r.snapshot, r.mapping, search.SearcherOptions{})
	if err != nil {
		return nil, fmt.Errorf("build searcher: %w", err)
	}
	defer searcher.Close()

	coll := collector.NewTopNCollector(int(n), 0, search.SortOrder{&search.SortDocID{}})
	if err := coll.Collect(ctx, searcher, r.snapshot); err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}

	results := coll.Results()
	hits := make([]Hit, 0, len(results))
	for _, dm := range results {
		if h, ok := parseDocID(dm.ID); ok {
			hits = append(hits, h)
		}
	}
	return hits, nil
}

// PageText returns the stored text of the page h names. ok is false when
// the snapshot holds no such page.
func (r *Reader) PageText(h Hit) (text string, ok bool, err error) {
	if r.refs.Load() <= 0 {
		return "", false, ErrReleased
	}
	doc, err := r.snapshot.Document(docID(h.EntryID, h.Page, h.Path))
	if err != nil {
		return "", false, fmt.Errorf("load page %d of %s: %w", h.Page, h.Path, err)
	}
	if doc == nil {
		return "", false, nil
	}
	doc.VisitFields(func(f index.Field) {
		if f.Name() == FieldContent {
			text, ok = string(f.Value()), true
		}
	})
	return text, ok, nil
}
