package fulltext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch"
	"github.com/blevesearch/bleve/v2/mapping"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/bibsearch/internal/index"
	"github.com/roach88/bibsearch/internal/library"
	"github.com/roach88/bibsearch/internal/metrics"
)

// Skip reasons recorded in metrics.
const (
	skipIneligible = "ineligible"
	skipUnresolved = "unresolved"
	skipUnchanged  = "unchanged"
)

const removeChunk = 1000

// Indexer owns one bleve index and its current reader.
type Indexer struct {
	dir         string
	idx         bleve.Index
	mapping     mapping.IndexMapping
	extractor   Extractor
	fileDirs    []string
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	batchIDs    index.BatchIDGenerator

	writeMu  sync.Mutex
	manifest manifest // guarded by writeMu

	readerMu sync.Mutex
	current  *Reader

	closed atomic.Bool
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithFileDirs sets the directories relative links are resolved against.
func WithFileDirs(dirs ...string) Option {
	return func(ix *Indexer) { ix.fileDirs = append([]string(nil), dirs...) }
}

// WithConcurrency bounds the number of files extracted at once.
func WithConcurrency(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// WithMetrics records indexing metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ix *Indexer) { ix.metrics = m }
}

// WithBatchIDs overrides batch id generation.
func WithBatchIDs(g index.BatchIDGenerator) Option {
	return func(ix *Indexer) { ix.batchIDs = g }
}

// Open opens the index in dir, creating it if it does not exist, and
// acquires the initial reader.
func Open(dir string, extractor Extractor, opts ...Option) (*Indexer, error) {
	if extractor == nil {
		extractor = PDFExtractor{}
	}
	ix := &Indexer{
		dir:         dir,
		extractor:   extractor,
		concurrency: runtime.GOMAXPROCS(0),
		logger:      slog.Default().With("component", "fulltext"),
		batchIDs:    index.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(ix)
	}

	idx, err := bleve.Open(dir)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		m, merr := buildMapping()
		if merr != nil {
			return nil, fmt.Errorf("build mapping: %w", merr)
		}
		idx, err = bleve.NewUsing(dir, m, scorch.Name, scorch.Name, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open full-text index %s: %w", dir, err)
	}
	ix.idx = idx
	ix.mapping = idx.Mapping()

	data, err := idx.GetInternal(manifestKey)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if ix.manifest, err = decodeManifest(data); err != nil {
		idx.Close()
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	if err := ix.RefreshReaders(); err != nil {
		idx.Close()
		return nil, err
	}
	return ix, nil
}

// Dir returns the index directory.
func (ix *Indexer) Dir() string {
	return ix.dir
}

type job struct {
	entryID string
	path    string
	modTime time.Time
}

type extraction struct {
	job
	pages []string
	err   error
}

// Index indexes the eligible linked files of entries.
//
// A linked file is eligible when it is not an online link, is typed PDF
// and resolves to a local file. Unresolvable files are reported through
// progress and skipped. A file already indexed for the same entry is only
// re-extracted when its modification time is newer than the recorded one;
// its previous pages are then replaced. Recorded files an entry no longer
// links are removed.
//
// Extraction failures are reported through progress and do not stop the
// batch. Files written before a cancellation stay indexed.
func (ix *Indexer) Index(ctx context.Context, entries []*library.Entry, progress index.Progress) error {
	const op = "fulltext.index"

	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	if ix.closed.Load() {
		return index.Closed(op)
	}
	if err := ctx.Err(); err != nil {
		return index.Cancelled(op, err)
	}

	progress = index.OrNop(progress)
	batch := ix.batchIDs.Generate()
	start := time.Now()

	jobs, stale := ix.plan(entries, progress)
	ix.logger.Debug("index batch started", "batch", batch, "entries", len(entries), "files", len(jobs))

	if err := ix.prune(stale); err != nil {
		return index.StoreError(op, "", err)
	}

	total := len(jobs)
	if total == 0 {
		progress.Update(0, 0, "no files to index")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	results := ix.extract(runCtx, jobs)

	var (
		done     int
		firstErr error
	)
	for res := range results {
		if firstErr != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			firstErr = index.Cancelled(op, err)
			cancel()
			continue
		}
		if res.err != nil {
			ix.metrics.ExtractionFailed()
			ix.logger.Warn("extraction failed", "batch", batch, "entry", res.entryID, "path", res.path, "error", res.err)
			progress.Failed(res.path, index.NewError(index.ErrCodeExtraction, op, res.path, res.err))
		} else if err := ix.writeFile(res); err != nil {
			firstErr = index.StoreError(op, res.path, err)
			cancel()
			continue
		}
		done++
		progress.Update(done, total, fmt.Sprintf("%d of %d files indexed", done, total))
	}
	if firstErr == nil && done < total {
		if err := ctx.Err(); err != nil {
			firstErr = index.Cancelled(op, err)
		}
	}
	if firstErr != nil {
		ix.logger.Info("index batch stopped", "batch", batch, "done", done, "total", total, "error", firstErr)
		return firstErr
	}

	ix.metrics.ObserveBatch(metrics.IndexFulltext, time.Since(start))
	ix.logger.Info("index batch finished", "batch", batch, "files", total, "duration", time.Since(start))
	return nil
}

// plan selects the files to extract and the recorded files to drop.
func (ix *Indexer) plan(entries []*library.Entry, progress index.Progress) ([]job, map[string][]string) {
	const op = "fulltext.index"

	var jobs []job
	stale := make(map[string][]string)
	for _, e := range entries {
		linked := make(map[string]bool)
		for _, f := range e.Files {
			if f.IsOnlineLink() || !f.IsPDF() {
				ix.metrics.FileSkipped(skipIneligible)
				continue
			}
			path, info, err := f.Resolve(ix.fileDirs)
			if err != nil {
				ix.metrics.FileSkipped(skipUnresolved)
				ix.logger.Debug("linked file not found", "entry", e.ID, "link", f.Link)
				progress.Failed(f.Link, index.NewError(index.ErrCodeUnresolved, op, f.Link, err))
				continue
			}
			if linked[path] {
				continue
			}
			linked[path] = true

			if rec, ok := ix.manifest.get(e.ID, path); ok && info.ModTime().UnixNano() <= rec.ModTime {
				ix.metrics.FileSkipped(skipUnchanged)
				continue
			}
			jobs = append(jobs, job{entryID: e.ID, path: path, modTime: info.ModTime()})
		}
		for _, path := range ix.manifest.paths(e.ID) {
			if !linked[path] {
				stale[e.ID] = append(stale[e.ID], path)
			}
		}
	}
	return jobs, stale
}

// extract runs the extractor over jobs on a bounded pool. The returned
// channel is closed once every started extraction has reported.
func (ix *Indexer) extract(ctx context.Context, jobs []job) <-chan extraction {
	results := make(chan extraction)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)

	go func() {
		defer close(results)
		for _, j := range jobs {
			if gctx.Err() != nil {
				break
			}
			j := j
			g.Go(func() error {
				pages, err := ix.extractor.ExtractPages(gctx, j.path)
				select {
				case results <- extraction{job: j, pages: pages, err: err}:
				case <-gctx.Done():
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
	return results
}

// writeFile replaces the pages of one file and records it in the manifest,
// in a single bleve batch.
func (ix *Indexer) writeFile(res extraction) error {
	b := ix.idx.NewBatch()
	old, hadOld := ix.manifest.get(res.entryID, res.path)
	if hadOld {
		for p := 1; p <= old.Pages; p++ {
			b.Delete(docID(res.entryID, p, res.path))
		}
	}
	for i, text := range res.pages {
		doc := map[string]interface{}{
			FieldEntryID:  res.entryID,
			FieldPath:     res.path,
			FieldPage:     float64(i + 1),
			FieldContent:  text,
			FieldModified: res.modTime,
		}
		if err := b.Index(docID(res.entryID, i+1, res.path), doc); err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
	}

	ix.manifest.set(res.entryID, res.path, fileRecord{ModTime: res.modTime.UnixNano(), Pages: len(res.pages)})
	if err := ix.commit(b); err != nil {
		if hadOld {
			ix.manifest.set(res.entryID, res.path, old)
		} else {
			ix.manifest.remove(res.entryID, res.path)
		}
		return err
	}

	ix.metrics.EntryIndexed(metrics.IndexFulltext, 1)
	ix.metrics.DocumentsAdded(len(res.pages))
	ix.logger.Debug("file indexed", "entry", res.entryID, "path", res.path, "pages", len(res.pages))
	return nil
}

// prune deletes the pages of the given entry files.
func (ix *Indexer) prune(files map[string][]string) error {
	if len(files) == 0 {
		return nil
	}
	b := ix.idx.NewBatch()
	removed := make(map[string]map[string]fileRecord)
	for entryID, paths := range files {
		for _, path := range paths {
			rec, ok := ix.manifest.get(entryID, path)
			if !ok {
				continue
			}
			for p := 1; p <= rec.Pages; p++ {
				b.Delete(docID(entryID, p, path))
			}
			if removed[entryID] == nil {
				removed[entryID] = make(map[string]fileRecord)
			}
			removed[entryID][path] = rec
			ix.manifest.remove(entryID, path)
		}
	}
	if err := ix.commit(b); err != nil {
		for entryID, recs := range removed {
			for path, rec := range recs {
				ix.manifest.set(entryID, path, rec)
			}
		}
		return err
	}
	return nil
}

// commit adds the manifest to b and applies it.
func (ix *Indexer) commit(b *bleve.Batch) error {
	data, err := ix.manifest.encode()
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	b.SetInternal(manifestKey, data)
	return ix.idx.Batch(b)
}

// RemoveEntries deletes every page of the given entries.
func (ix *Indexer) RemoveEntries(ctx context.Context, entryIDs []string) error {
	const op = "fulltext.remove"

	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	if ix.closed.Load() {
		return index.Closed(op)
	}
	if err := ctx.Err(); err != nil {
		return index.Cancelled(op, err)
	}

	files := make(map[string][]string)
	for _, id := range entryIDs {
		if paths := ix.manifest.paths(id); len(paths) > 0 {
			files[id] = paths
		}
	}
	if err := ix.prune(files); err != nil {
		return index.StoreError(op, "", err)
	}
	ix.logger.Debug("entries removed", "count", len(entryIDs))
	return nil
}

// RemoveFiles deletes every page of the given resolved paths, whichever
// entries they belong to.
func (ix *Indexer) RemoveFiles(ctx context.Context, paths []string) error {
	const op = "fulltext.remove_files"

	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	if ix.closed.Load() {
		return index.Closed(op)
	}
	if err := ctx.Err(); err != nil {
		return index.Cancelled(op, err)
	}

	wanted := make(map[string]bool, len(paths))
	for _, p := range paths {
		wanted[p] = true
	}
	files := make(map[string][]string)
	for _, id := range ix.manifest.entries() {
		for _, p := range ix.manifest.paths(id) {
			if wanted[p] {
				files[id] = append(files[id], p)
			}
		}
	}
	if err := ix.prune(files); err != nil {
		return index.StoreError(op, "", err)
	}
	return nil
}

// RemoveAll deletes every document and the manifest.
func (ix *Indexer) RemoveAll(ctx context.Context) error {
	const op = "fulltext.remove_all"

	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	if ix.closed.Load() {
		return index.Closed(op)
	}

	for {
		if err := ctx.Err(); err != nil {
			return index.Cancelled(op, err)
		}
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), removeChunk, 0, false)
		res, err := ix.idx.SearchInContext(ctx, req)
		if err != nil {
			return index.StoreError(op, "", err)
		}
		if len(res.Hits) == 0 {
			break
		}
		b := ix.idx.NewBatch()
		for _, h := range res.Hits {
			b.Delete(h.ID)
		}
		if err := ix.idx.Batch(b); err != nil {
			return index.StoreError(op, "", err)
		}
	}

	if err := ix.idx.DeleteInternal(manifestKey); err != nil {
		return index.StoreError(op, "", err)
	}
	ix.manifest = manifest{}
	ix.logger.Info("full-text index cleared")
	return nil
}

// RefreshReaders makes writes committed so far visible to readers acquired
// from now on. Readers acquired earlier keep their snapshot.
func (ix *Indexer) RefreshReaders() error {
	if ix.closed.Load() {
		return index.Closed("fulltext.refresh")
	}
	adv, err := ix.idx.Advanced()
	if err != nil {
		return fmt.Errorf("access index: %w", err)
	}
	snapshot, err := adv.Reader()
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	next := newReader(snapshot, ix.mapping)

	ix.readerMu.Lock()
	prev := ix.current
	ix.current = next
	ix.readerMu.Unlock()

	if prev != nil {
		return prev.Release()
	}
	return nil
}

// AcquireReader returns the current snapshot. The caller must Release it.
func (ix *Indexer) AcquireReader() (*Reader, error) {
	ix.readerMu.Lock()
	defer ix.readerMu.Unlock()
	if ix.closed.Load() || ix.current == nil {
		return nil, index.Closed("fulltext.acquire")
	}
	ix.current.acquire()
	return ix.current, nil
}

// DocCount returns the number of committed page documents.
func (ix *Indexer) DocCount() (uint64, error) {
	if ix.closed.Load() {
		return 0, index.Closed("fulltext.doc_count")
	}
	return ix.idx.DocCount()
}

// IndexedFiles returns the recorded files of an entry.
func (ix *Indexer) IndexedFiles(entryID string) []string {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	return ix.manifest.paths(entryID)
}

// Close waits for the running write, releases the current reader and
// closes the index. Readers acquired by callers must be released first.
// Calling Close again returns nil.
func (ix *Indexer) Close() error {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	if !ix.closed.CompareAndSwap(false, true) {
		return nil
	}

	ix.readerMu.Lock()
	cur := ix.current
	ix.current = nil
	ix.readerMu.Unlock()

	var errs []error
	if cur != nil {
		if err := cur.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := ix.idx.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
