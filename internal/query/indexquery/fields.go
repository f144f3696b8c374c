package indexquery

import "sort"

// Full-text document fields addressable from a query.
const (
	FieldContent = "content"
	FieldPath    = "path"
)

// structuredFields are the field names the structured index stores rows
// under and the translator accepts.
var structuredFields = []string{
	"abstract", "address", "author", "booktitle", "chapter", "citationkey",
	"comment", "doi", "edition", "editor", "entrytype", "file", "groups",
	"howpublished", "institution", "isbn", "issn", "journal", "keywords",
	"month", "note", "number", "organization", "pages", "publisher", "school",
	"series", "title", "type", "url", "volume", "year",
}

var indexable = func() map[string]bool {
	m := make(map[string]bool, len(structuredFields)+2)
	for _, f := range structuredFields {
		m[f] = true
	}
	m[FieldContent] = true
	m[FieldPath] = true
	return m
}()

// IsIndexable reports whether a normalized field name can appear in an
// index query.
func IsIndexable(field string) bool {
	return indexable[field]
}

// IsFulltextField reports whether field lives in the full-text index.
func IsFulltextField(field string) bool {
	return field == FieldContent || field == FieldPath
}

// IndexableFields returns the sorted whitelist.
func IndexableFields() []string {
	out := make([]string, 0, len(indexable))
	for f := range indexable {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
