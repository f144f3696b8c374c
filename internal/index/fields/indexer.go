package fields

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/bibsearch/internal/index"
	"github.com/roach88/bibsearch/internal/library"
	"github.com/roach88/bibsearch/internal/metrics"
)

const lockStripes = 64

// Indexer maintains the structured field index of one library.
//
// Every call to Index is an idempotent upsert: re-indexing an entry leaves
// exactly one row per (entry, field). Calls for different entries run
// concurrently; calls touching the same entry are serialized.
type Indexer struct {
	store      *Store
	keywordSep string
	logger     *slog.Logger
	metrics    *metrics.Metrics
	batchIDs   index.BatchIDGenerator

	stripes [lockStripes]sync.Mutex

	mu     sync.RWMutex
	closed bool
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithKeywordSeparator sets the separator used to normalize keywords.
func WithKeywordSeparator(sep string) Option {
	return func(ix *Indexer) {
		if sep != "" {
			ix.keywordSep = sep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// WithMetrics records batch metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ix *Indexer) { ix.metrics = m }
}

// WithBatchIDs overrides batch id generation.
func WithBatchIDs(g index.BatchIDGenerator) Option {
	return func(ix *Indexer) { ix.batchIDs = g }
}

// NewIndexer creates an indexer that owns store; Close closes it.
func NewIndexer(store *Store, opts ...Option) *Indexer {
	ix := &Indexer{
		store:      store,
		keywordSep: library.DefaultKeywordSeparator,
		logger:     slog.Default().With("component", "fields"),
		batchIDs:   index.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Store returns the backing store for read access.
func (ix *Indexer) Store() *Store {
	return ix.store
}

// KeywordSeparator returns the separator keywords are normalized with.
func (ix *Indexer) KeywordSeparator() string {
	return ix.keywordSep
}

// Index upserts the fields of every entry.
//
// Each entry commits in its own transaction. On failure or cancellation
// the entries before the failing one stay committed and the rest are
// untouched.
func (ix *Indexer) Index(ctx context.Context, entries []*library.Entry, progress index.Progress) error {
	const op = "fields.index"

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return index.Closed(op)
	}

	progress = index.OrNop(progress)
	batch := ix.batchIDs.Generate()
	start := time.Now()
	ix.logger.Debug("index batch started", "batch", batch, "entries", len(entries))

	total := len(entries)
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			ix.logger.Info("index batch cancelled", "batch", batch, "done", i, "total", total)
			return index.Cancelled(op, err)
		}
		if err := ix.indexEntry(ctx, e); err != nil {
			return index.StoreError(op, e.ID, err)
		}
		ix.metrics.EntryIndexed(metrics.IndexFields, 1)
		progress.Update(i+1, total, fmt.Sprintf("%d of %d entries indexed", i+1, total))
	}

	ix.metrics.ObserveBatch(metrics.IndexFields, time.Since(start))
	ix.logger.Info("index batch finished", "batch", batch, "entries", total, "duration", time.Since(start))
	return nil
}

func (ix *Indexer) indexEntry(ctx context.Context, e *library.Entry) error {
	lock := ix.stripe(e.ID)
	lock.Lock()
	defer lock.Unlock()
	return ix.store.UpsertEntry(ctx, e.ID, e.AllFieldsSep(ix.keywordSep))
}

func (ix *Indexer) stripe(entryID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(entryID))
	return &ix.stripes[h.Sum32()%lockStripes]
}

// RemoveEntries deletes the rows of the given entries.
func (ix *Indexer) RemoveEntries(ctx context.Context, entryIDs []string) error {
	const op = "fields.remove"

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return index.Closed(op)
	}
	if err := ix.store.DeleteEntries(ctx, entryIDs); err != nil {
		return index.StoreError(op, "", err)
	}
	ix.logger.Debug("entries removed", "count", len(entryIDs))
	return nil
}

// RemoveAll deletes every row.
func (ix *Indexer) RemoveAll(ctx context.Context) error {
	const op = "fields.remove_all"

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return index.Closed(op)
	}
	if err := ix.store.DeleteAll(ctx); err != nil {
		return index.StoreError(op, "", err)
	}
	ix.logger.Info("structured index cleared")
	return nil
}

// Close waits for running calls and closes the store. Calling Close again
// returns nil.
func (ix *Indexer) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	return ix.store.Close()
}
