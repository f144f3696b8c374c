// Package fulltext maintains the page-level full-text index of a library's
// linked PDF files.
//
// Every page of every locally resolvable PDF becomes one bleve document
// whose id encodes (entry, page, path). A manifest stored in the index's
// internal key space records the modification time and page count of each
// indexed file, so re-indexing only touches new or modified files.
//
// # Concurrency
//
// One Indexer owns one bleve index. Writes (Index, RemoveEntries,
// RemoveFiles, RemoveAll) are serialized by a writer lock; text extraction
// for a batch runs on a bounded worker pool while the writes it feeds stay
// on a single goroutine.
//
// Readers are reference-counted point-in-time snapshots. A Reader obtained
// from AcquireReader never observes writes made after the last
// RefreshReaders call, and is never blocked by an in-progress write.
package fulltext
