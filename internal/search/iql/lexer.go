package iql

import (
	"strings"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokField // field name; the colon is consumed
	tokPhrase
	tokRegex
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokWord:
		return "word"
	case tokField:
		return "field"
	case tokPhrase:
		return "phrase"
	case tokRegex:
		return "regex"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	case tokLParen:
		return "("
	case tokRParen:
		return ")"
	default:
		return "unknown"
	}
}

type token struct {
	kind     tokenKind
	lit      string
	wildcard bool // tokWord with an active * or ?
	pos      int
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	switch l.input[l.pos] {
	case '(':
		l.pos++
		return token{kind: tokLParen, lit: "(", pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokRParen, lit: ")", pos: start}, nil
	case '"':
		return l.scanPhrase()
	case '/':
		return l.scanRegex()
	}

	if name, ok := l.fieldPrefix(); ok {
		l.pos += len(name) + 1
		return token{kind: tokField, lit: name, pos: start}, nil
	}
	return l.scanWord()
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

// fieldPrefix reports a field name followed by a colon at the current
// position.
func (l *lexer) fieldPrefix() (string, bool) {
	end := l.pos
	for end < len(l.input) && isFieldChar(l.input[end]) {
		end++
	}
	if end == l.pos || end >= len(l.input) || l.input[end] != ':' {
		return "", false
	}
	return l.input[l.pos:end], true
}

func isFieldChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_'
}

func isWordEnd(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '"':
		return true
	}
	return false
}

func (l *lexer) scanWord() (token, error) {
	start := l.pos
	var b strings.Builder
	wildcard := false

	for l.pos < len(l.input) && !isWordEnd(l.input[l.pos]) {
		c := l.input[l.pos]
		switch c {
		case '\\':
			if l.pos+1 >= len(l.input) {
				return token{}, parseErrorf(l.pos, ErrDanglingEscape, "escape at end of input")
			}
			r, size := utf8.DecodeRuneInString(l.input[l.pos+1:])
			if r == '*' || r == '?' || r == '\\' {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
			l.pos += 1 + size
		case '*', '?':
			wildcard = true
			b.WriteByte(c)
			l.pos++
		case ':':
			return token{}, parseErrorf(l.pos, ErrUnexpectedToken, "unexpected ':' in %q", l.input[start:l.pos+1])
		default:
			b.WriteByte(c)
			l.pos++
		}
	}

	raw := l.input[start:l.pos]
	switch raw {
	case "AND":
		return token{kind: tokAnd, lit: raw, pos: start}, nil
	case "OR":
		return token{kind: tokOr, lit: raw, pos: start}, nil
	case "NOT":
		return token{kind: tokNot, lit: raw, pos: start}, nil
	}

	lit := b.String()
	if !wildcard {
		// Only wildcard patterns keep escapes.
		lit = unescapeLiteral(lit)
	}
	return token{kind: tokWord, lit: lit, wildcard: wildcard, pos: start}, nil
}

// unescapeLiteral removes the escapes scanWord keeps for *, ? and \.
func unescapeLiteral(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return strings.NewReplacer(`\*`, "*", `\?`, "?", `\\`, `\`).Replace(s)
}

func (l *lexer) scanPhrase() (token, error) {
	start := l.pos
	l.pos++ // opening quote

	var b strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch c {
		case '"':
			l.pos++
			return token{kind: tokPhrase, lit: b.String(), pos: start}, nil
		case '\\':
			if l.pos+1 >= len(l.input) {
				return token{}, parseErrorf(start, ErrUnterminatedPhrase, "unterminated phrase")
			}
			r, size := utf8.DecodeRuneInString(l.input[l.pos+1:])
			b.WriteRune(r)
			l.pos += 1 + size
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return token{}, parseErrorf(start, ErrUnterminatedPhrase, "unterminated phrase")
}

func (l *lexer) scanRegex() (token, error) {
	start := l.pos
	l.pos++ // opening slash

	var b strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == '/':
			l.pos++
			return token{kind: tokRegex, lit: b.String(), pos: start}, nil
		case c == '\\' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '/':
			b.WriteByte('/')
			l.pos += 2
		case c == '\\' && l.pos+1 < len(l.input):
			b.WriteString(l.input[l.pos : l.pos+2])
			l.pos += 2
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return token{}, parseErrorf(start, ErrUnterminatedRegex, "unterminated regex")
}
