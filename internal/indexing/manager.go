// Package indexing keeps the structured and full-text indexes of one
// library in step with the library's entries.
//
// A Manager owns both indexers and the in-memory library. Writes are
// serialized; searches go through engines built by Engine and read the
// indexes concurrently. Every write bumps the generation, which keys the
// search result cache.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/roach88/bibsearch/internal/index"
	"github.com/roach88/bibsearch/internal/index/fields"
	"github.com/roach88/bibsearch/internal/index/fulltext"
	"github.com/roach88/bibsearch/internal/library"
	"github.com/roach88/bibsearch/internal/search"
)

// Manager coordinates the indexes of one library.
type Manager struct {
	mu              sync.Mutex
	lib             *library.Library
	fields          *fields.Indexer
	fulltext        *fulltext.Indexer
	fulltextEnabled bool
	generation      atomic.Uint64
	invalidator     Invalidator
	logger          *slog.Logger
}

// Invalidator drops cached search results. *cache.RedisCache satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithFulltext attaches a full-text indexer and enables file indexing.
func WithFulltext(ft *fulltext.Indexer) Option {
	return func(m *Manager) {
		m.fulltext = ft
		m.fulltextEnabled = ft != nil
	}
}

// WithInvalidator drops cached results after every write, so caches shared
// with other processes do not serve results of an older index.
func WithInvalidator(inv Invalidator) Option {
	return func(m *Manager) { m.invalidator = inv }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager for lib. The manager owns the indexers;
// Close closes them.
func NewManager(lib *library.Library, fx *fields.Indexer, opts ...Option) *Manager {
	m := &Manager{
		lib:    lib,
		fields: fx,
		logger: slog.Default().With("component", "indexing", "library", lib.Name),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// UpdateStats counts what Update did per entry.
type UpdateStats struct {
	Added     int `json:"added"`
	Changed   int `json:"changed"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// Stats describes the indexed state.
type Stats struct {
	Library    string `json:"library"`
	Entries    int    `json:"entries"`
	Rows       int    `json:"rows"`
	Documents  uint64 `json:"documents"`
	Fulltext   bool   `json:"fulltext"`
	Generation uint64 `json:"generation"`
}

// Generation changes after every write to either index.
func (m *Manager) Generation() uint64 {
	return m.generation.Load()
}

// Name returns the library name.
func (m *Manager) Name() string {
	return m.lib.Name
}

// FileDirs returns the directories linked files are resolved against.
func (m *Manager) FileDirs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lib.FileDirs...)
}

// FulltextEnabled reports whether linked files are indexed.
func (m *Manager) FulltextEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fulltextEnabled
}

// Engine returns a search engine over both indexes.
func (m *Manager) Engine(opts ...search.Option) *search.Engine {
	if m.fulltext != nil {
		opts = append([]search.Option{search.WithFulltext(m.fulltext)}, opts...)
	}
	return search.New(m.fields.Store(), opts...)
}

// Index indexes every entry of the library in both indexes.
func (m *Manager) Index(ctx context.Context, progress index.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index(ctx, m.lib.Entries, progress)
}

// index writes entries to the structured index, then their files to the
// full-text index. Structured failures stop before any file is touched.
func (m *Manager) index(ctx context.Context, entries []*library.Entry, progress index.Progress) error {
	defer m.written(ctx)

	if err := m.fields.Index(ctx, entries, progress); err != nil {
		return err
	}
	if !m.fulltextEnabled {
		return nil
	}
	return m.fulltext.Index(ctx, entries, progress)
}

// written publishes committed writes to new readers, bumps the generation
// and drops cached results. It runs even when ctx is cancelled, since
// earlier parts of a cancelled write stay committed.
func (m *Manager) written(ctx context.Context) {
	if m.fulltext != nil {
		if err := m.fulltext.RefreshReaders(); err != nil && !index.IsClosed(err) {
			m.logger.Warn("refresh readers failed", "error", err)
		}
	}
	m.generation.Add(1)
	if m.invalidator != nil {
		if _, err := m.invalidator.Invalidate(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("cache invalidation failed", "error", err)
		}
	}
}

// Update brings the indexes in line with the library. Entries no longer in
// the library are removed, new entries and entries whose fields differ
// from the indexed rows are re-indexed. Every entry's files are passed to
// the full-text indexer, which only extracts new or modified files.
func (m *Manager) Update(ctx context.Context, progress index.Progress) (UpdateStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats UpdateStats
	store := m.fields.Store()
	indexed, err := store.EntryIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("update: %w", err)
	}
	present := make(map[string]bool, len(indexed))
	for _, id := range indexed {
		present[id] = true
	}

	sep := m.fields.KeywordSeparator()
	var dirty []*library.Entry
	inLibrary := make(map[string]bool, len(m.lib.Entries))
	for _, e := range m.lib.Entries {
		inLibrary[e.ID] = true
		if !present[e.ID] {
			stats.Added++
			dirty = append(dirty, e)
			continue
		}
		got, err := store.Fields(ctx, e.ID)
		if err != nil {
			return stats, fmt.Errorf("update: %w", err)
		}
		if maps.Equal(got, e.AllFieldsSep(sep)) {
			stats.Unchanged++
			continue
		}
		stats.Changed++
		dirty = append(dirty, e)
	}

	var gone []string
	for _, id := range indexed {
		if !inLibrary[id] {
			gone = append(gone, id)
		}
	}
	stats.Removed = len(gone)

	defer m.written(ctx)
	if err := m.remove(ctx, gone); err != nil {
		return stats, err
	}
	if err := m.fields.Index(ctx, dirty, progress); err != nil {
		return stats, err
	}
	if m.fulltextEnabled {
		if err := m.fulltext.Index(ctx, m.lib.Entries, progress); err != nil {
			return stats, err
		}
	}
	m.logger.Info("library updated",
		"added", stats.Added, "changed", stats.Changed, "removed", stats.Removed, "unchanged", stats.Unchanged)
	return stats, nil
}

// Upsert adds or replaces entries in the library and indexes them.
func (m *Manager) Upsert(ctx context.Context, entries ...*library.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.lib.Upsert(e)
	}
	return m.index(ctx, entries, nil)
}

// RemoveEntries drops entries from the library and from both indexes.
func (m *Manager) RemoveEntries(ctx context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lib.Remove(ids...)
	defer m.written(ctx)
	return m.remove(ctx, ids)
}

func (m *Manager) remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := m.fields.RemoveEntries(ctx, ids); err != nil {
		return err
	}
	if m.fulltext != nil {
		return m.fulltext.RemoveEntries(ctx, ids)
	}
	return nil
}

// Clear empties both indexes. The library is unchanged.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clear(ctx)
}

func (m *Manager) clear(ctx context.Context) error {
	defer m.written(ctx)
	if err := m.fields.RemoveAll(ctx); err != nil {
		return err
	}
	if m.fulltext != nil {
		return m.fulltext.RemoveAll(ctx)
	}
	return nil
}

// Rebuild clears both indexes and indexes the whole library again.
func (m *Manager) Rebuild(ctx context.Context, progress index.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.clear(ctx); err != nil {
		return err
	}
	return m.index(ctx, m.lib.Entries, progress)
}

// Replace swaps in a new version of the library and rebuilds.
func (m *Manager) Replace(ctx context.Context, lib *library.Library, progress index.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lib.Entries = lib.Entries
	if err := m.clear(ctx); err != nil {
		return err
	}
	return m.index(ctx, m.lib.Entries, progress)
}

// SetFulltextEnabled turns file indexing on or off. Turning it off clears
// the full-text index; turning it on indexes every entry's files.
func (m *Manager) SetFulltextEnabled(ctx context.Context, enabled bool, progress index.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fulltext == nil {
		if enabled {
			return errors.New("full-text indexing is not configured")
		}
		return nil
	}
	if enabled == m.fulltextEnabled {
		return nil
	}
	m.fulltextEnabled = enabled
	m.logger.Info("full-text indexing toggled", "enabled", enabled)

	defer m.written(ctx)
	if !enabled {
		return m.fulltext.RemoveAll(ctx)
	}
	return m.fulltext.Index(ctx, m.lib.Entries, progress)
}

// ReindexFiles re-indexes the entries linking any of the given resolved
// paths. Only files whose modification time moved are extracted again.
func (m *Manager) ReindexFiles(ctx context.Context, paths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.fulltextEnabled {
		return nil
	}
	entries := m.lib.Linking(paths...)
	if len(entries) == 0 {
		return nil
	}
	defer m.written(ctx)
	return m.fulltext.Index(ctx, entries, nil)
}

// RemoveFiles drops the pages of the given resolved paths.
func (m *Manager) RemoveFiles(ctx context.Context, paths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.fulltextEnabled {
		return nil
	}
	defer m.written(ctx)
	return m.fulltext.RemoveFiles(ctx, paths)
}

// Stats reports the indexed state.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	enabled := m.fulltextEnabled
	m.mu.Unlock()

	store := m.fields.Store()
	ids, err := store.EntryIDs(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	rows, err := store.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	st := Stats{
		Library:    m.lib.Name,
		Entries:    len(ids),
		Rows:       rows,
		Fulltext:   enabled,
		Generation: m.Generation(),
	}
	if m.fulltext != nil {
		docs, err := m.fulltext.DocCount()
		if err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
		st.Documents = docs
	}
	return st, nil
}

// Close closes both indexers.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	if m.fulltext != nil {
		errs = append(errs, m.fulltext.Close())
	}
	errs = append(errs, m.fields.Close())
	return errors.Join(errs...)
}
