// Package library holds the slice of the bibliographic data model that the
// search subsystem consumes: entries, their fields and their linked files.
package library

import "sort"

// Library is a named collection of entries plus the directories linked
// files are resolved against.
type Library struct {
	Name             string
	FileDirs         []string
	KeywordSeparator string
	Entries          []*Entry
}

// Entry returns the entry with the given id, or nil.
func (l *Library) Entry(id string) *Entry {
	for _, e := range l.Entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// IDs returns the sorted entry ids.
func (l *Library) IDs() []string {
	ids := make([]string, 0, len(l.Entries))
	for _, e := range l.Entries {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)
	return ids
}

// Upsert replaces the entry with the same id or appends e.
func (l *Library) Upsert(e *Entry) {
	for i, old := range l.Entries {
		if old.ID == e.ID {
			l.Entries[i] = e
			return
		}
	}
	l.Entries = append(l.Entries, e)
}

// Remove drops the entries with the given ids and reports how many were
// present.
func (l *Library) Remove(ids ...string) int {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := l.Entries[:0]
	for _, e := range l.Entries {
		if !drop[e.ID] {
			kept = append(kept, e)
		}
	}
	removed := len(l.Entries) - len(kept)
	for i := len(kept); i < len(l.Entries); i++ {
		l.Entries[i] = nil
	}
	l.Entries = kept
	return removed
}

// Linking returns the entries with a linked file that resolves to one of
// paths.
func (l *Library) Linking(paths ...string) []*Entry {
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[p] = true
	}
	var out []*Entry
	for _, e := range l.Entries {
		for _, f := range e.Files {
			if path, _, err := f.Resolve(l.FileDirs); err == nil && want[path] {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
