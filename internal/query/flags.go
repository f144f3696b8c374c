// Package query holds the search flags shared by the query compilers.
package query

import "strings"

// Flags are the search-bar switches that change how a query is compiled.
type Flags uint8

const (
	// CaseSensitive makes contains, exact and regex comparisons case-sensitive.
	CaseSensitive Flags = 1 << iota

	// RegularExpression treats unfielded terms as regular expressions.
	RegularExpression

	// Fulltext lets unfielded terms also search linked-file content.
	Fulltext
)

// Has reports whether every bit of x is set.
func (f Flags) Has(x Flags) bool {
	return f&x == x
}

func (f Flags) String() string {
	var parts []string
	if f.Has(CaseSensitive) {
		parts = append(parts, "case-sensitive")
	}
	if f.Has(RegularExpression) {
		parts = append(parts, "regex")
	}
	if f.Has(Fulltext) {
		parts = append(parts, "fulltext")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
