// Package index holds what the structured and full-text indexers share:
// progress reporting, error classification and batch naming.
package index

import "log/slog"

// Progress receives coarse progress from an indexing batch.
//
// Implementations must be safe for concurrent use; the full-text indexer
// reports extraction failures from worker goroutines.
type Progress interface {
	// Update reports that done of total items are finished.
	Update(done, total int, message string)

	// Failed reports a non-fatal failure of one item. The batch continues.
	Failed(item string, err error)
}

// NopProgress discards all progress.
type NopProgress struct{}

func (NopProgress) Update(int, int, string) {}
func (NopProgress) Failed(string, error)    {}

// OrNop returns p, or NopProgress if p is nil.
func OrNop(p Progress) Progress {
	if p == nil {
		return NopProgress{}
	}
	return p
}

// LogProgress writes progress to a structured logger.
type LogProgress struct {
	Logger *slog.Logger
}

func (p LogProgress) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p LogProgress) Update(done, total int, message string) {
	p.logger().Info(message, "done", done, "total", total)
}

func (p LogProgress) Failed(item string, err error) {
	p.logger().Warn("item skipped", "item", item, "code", CodeOf(err), "error", err)
}

// MultiProgress fans progress out to several receivers.
type MultiProgress []Progress

func (m MultiProgress) Update(done, total int, message string) {
	for _, p := range m {
		p.Update(done, total, message)
	}
}

func (m MultiProgress) Failed(item string, err error) {
	for _, p := range m {
		p.Failed(item, err)
	}
}
