package ast

import (
	"strings"

	"github.com/roach88/bibsearch/internal/query/syntax"
)

// NormalizeField lower-cases a field token and resolves pseudo field
// aliases. The any-field aliases normalize to "" (unfielded).
func NormalizeField(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "key":
		return "citationkey"
	case "anykeyword":
		return "keywords"
	case "any", "anyfield":
		return ""
	}
	return name
}

// Unescape returns the literal text of a search value.
//
// Quoted literals lose their surrounding quotes and the escapes on
// embedded quotes and backslashes. Bare words lose the backslash in front
// of grammar metacharacters. Any other backslash is kept so regular
// expressions survive unchanged.
func Unescape(v syntax.SearchValue) string {
	raw := v.Raw
	if v.Quoted {
		if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
			raw = raw[1 : len(raw)-1]
		}
		return unescapeWith(raw, `"\`)
	}
	return unescapeWith(raw, " \t()\"=!~:\\")
}

func unescapeWith(s, escapable string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && strings.IndexByte(escapable, s[i+1]) >= 0 {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// EscapeBackslashes doubles every backslash. Build applies it to unfielded
// literal terms.
func EscapeBackslashes(s string) string {
	return strings.ReplaceAll(s, `\`, `\\`)
}

// UnescapeBackslashes reverses EscapeBackslashes.
func UnescapeBackslashes(s string) string {
	return strings.ReplaceAll(s, `\\`, `\`)
}
