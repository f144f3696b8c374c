package indexquery

import "strings"

// specialChars are the index query syntax metacharacters escaped in bare
// terms. Whitespace is escaped too so a term never splits.
const specialChars = `\+-!():^[]"{}~*?|&/ ` + "\t"

// Escape backslash-escapes every index query metacharacter in s.
func Escape(s string) string {
	return escapeSet(s, specialChars)
}

// EscapeKeepWildcards is Escape but leaves * and ? active.
func EscapeKeepWildcards(s string) string {
	return escapeSet(s, strings.NewReplacer("*", "", "?", "").Replace(specialChars))
}

func escapeSet(s, set string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		if r < 0x80 && strings.ContainsRune(set, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapePhrase escapes the characters that would end or corrupt a quoted
// phrase.
func escapePhrase(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// escapeRegex escapes the regex delimiter. Backslash pairs are copied
// as they are, so a slash the user already escaped is not escaped twice.
func escapeRegex(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			b.WriteByte(c)
			i++
			b.WriteByte(s[i])
		case c == '/':
			b.WriteString(`\/`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// isKeyword reports whether a bare term would be read as a boolean keyword.
func isKeyword(s string) bool {
	switch s {
	case "AND", "OR", "NOT":
		return true
	}
	return false
}
