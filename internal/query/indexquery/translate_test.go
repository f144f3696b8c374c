package indexquery

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/bibsearch/internal/query"
	"github.com/roach88/bibsearch/internal/query/ast"
	"github.com/roach88/bibsearch/internal/query/syntax"
)

var loveAndHateOrWar = syntax.Binary{
	Left: syntax.Term("love"),
	Op:   "AND",
	Right: syntax.Group(syntax.Binary{
		Left:  syntax.Term("hate"),
		Op:    "OR",
		Right: syntax.Term("war"),
	}),
}

var loveOrVerona = syntax.Binary{Left: syntax.Term("love"), Op: "OR", Right: syntax.Term("verona")}

var unknown = syntax.Field("foo", "=", syntax.Word("x"))

// translateCorpus is rendered into testdata/golden/translate_corpus.golden.
var translateCorpus = []struct {
	name  string
	tree  syntax.Node
	flags query.Flags
}{
	{"love_and_hate_or_war", loveAndHateOrWar, 0},
	{"unknown_field", unknown, 0},
	{"unknown_field_in_and", syntax.Binary{Left: unknown, Op: "AND", Right: syntax.Term("love")}, 0},
	{"both_sides_empty", syntax.Binary{Left: unknown, Op: "OR", Right: unknown}, 0},
	{"quoted_phrase", syntax.Field("title", "=", syntax.Quoted("war and peace")), 0},
	{"escaped_term", syntax.Field("title", "=", syntax.Word("c++")), 0},
	{"regex", syntax.Field("year", "=~", syntax.Word(`^18\d\d$`)), 0},
	{"regex_slash", syntax.Field("url", "=~", syntax.Word("a/b")), 0},
	{"regex_escaped_slash", syntax.Field("url", "=~", syntax.Quoted(`a\/b`)), 0},
	{"content_expand", syntax.Field("content", "=", syntax.Word("neural")), 0},
	{"content_wildcard", syntax.Field("content", "=", syntax.Word("neur*")), 0},
	{"content_exact", syntax.Field("content", "==", syntax.Word("neural")), 0},
	{"content_case_exact", syntax.Field("content", "=!", syntax.Word("neural")), 0},
	{"content_quoted", syntax.Field("content", "=", syntax.Quoted("deep learning")), 0},
	{"negated_operator", syntax.Field("title", "!=", syntax.Word("war")), 0},
	{"negated_case_regex", syntax.Field("title", "!=~!", syntax.Word("^W")), 0},
	{"not_keyword", syntax.Negated{Expr: syntax.Term("war")}, 0},
	{"not_paren", syntax.Negated{Expr: syntax.Group(syntax.Binary{Left: syntax.Term("a"), Op: "OR", Right: syntax.Term("b")})}, 0},
	{"not_empty", syntax.Negated{Expr: unknown}, 0},
	{"paren_empty", syntax.Binary{Left: syntax.Term("love"), Op: "AND", Right: syntax.Group(unknown)}, 0},
	{"implicit_and", syntax.And(syntax.Term("a"), unknown, syntax.Term("b")), 0},
	{"implicit_and_with_or", syntax.And(syntax.Term("war"), loveOrVerona), 0},
	{"right_nested_binary", syntax.Binary{Left: syntax.Term("war"), Op: "AND", Right: loveOrVerona}, 0},
	{"left_nested_binary", syntax.Binary{Left: loveOrVerona, Op: "AND", Right: syntax.Term("war")}, 0},
	{"degenerate_nested_binary", syntax.And(syntax.Term("war"), syntax.Binary{Left: unknown, Op: "OR", Right: syntax.Term("love")}), 0},
	{"pseudo_key", syntax.Field("key", "==", syntax.Word("Smith2020")), 0},
	{"anyfield", syntax.Field("anyfield", "=", syntax.Word("x")), 0},
	{"unfielded_regex_flag", syntax.Term("ne.*al"), query.RegularExpression},
	{"keyword_term", syntax.Field("title", "=", syntax.Word("OR")), 0},
	{"unfielded_backslash", syntax.Term(`a\b`), 0},
	{"escaped_space", syntax.Field("title", "=", syntax.Word(`a\ b`)), 0},
}

func TestTranslate_Golden(t *testing.T) {
	var buf bytes.Buffer
	for _, tc := range translateCorpus {
		fmt.Fprintf(&buf, "%s: [%s]\n", tc.name, Translate(tc.tree, tc.flags))
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "translate_corpus", buf.Bytes())
}

func TestTranslate_LoveAndHateOrWar(t *testing.T) {
	assert.Equal(t, "love AND (hate OR war)", Translate(loveAndHateOrWar, 0))
}

func TestTranslate_NestedBinaryKeepsGrouping(t *testing.T) {
	assert.Equal(t, "war AND (love OR verona)", Translate(syntax.And(syntax.Term("war"), loveOrVerona), 0))
	assert.Equal(t, "war AND (love OR verona)",
		Translate(syntax.Binary{Left: syntax.Term("war"), Op: "AND", Right: loveOrVerona}, 0))
	assert.Equal(t, "love OR verona", Translate(syntax.And(loveOrVerona), 0), "a lone member is not wrapped")
}

func TestTranslate_UnknownFieldIsEmpty(t *testing.T) {
	assert.Empty(t, Translate(syntax.Field("language", "=", syntax.Word("en")), 0))
	assert.Equal(t, "love", Translate(syntax.Binary{Left: syntax.Term("love"), Op: "OR", Right: unknown}, 0))
}

func TestTranslateAST_MatchesParenthesization(t *testing.T) {
	n := ast.MustBuild(loveAndHateOrWar, 0)
	assert.Equal(t, "love AND (hate OR war)", TranslateAST(n, 0))
}

func TestTranslateAST_Clauses(t *testing.T) {
	testCases := []struct {
		name string
		node ast.Node
		want string
	}{
		{"negated comparison", ast.MustBuild(syntax.Field("title", "!=", syntax.Word("war")), 0), "NOT (title:war)"},
		{"unknown field", ast.Comparison{Field: "language", Term: "en"}, ""},
		{"unfielded backslash", ast.MustBuild(syntax.Term(`a\b`), 0), `a\\b`},
		{"content expansion", ast.Comparison{Field: "content", Term: "net"}, "content:*net*"},
		{"or of and", ast.Operator{Kind: ast.Or, Children: []ast.Node{
			ast.Operator{Kind: ast.And, Children: []ast.Node{
				ast.Comparison{Term: "a"}, ast.Comparison{Term: "b"},
			}},
			ast.Comparison{Term: "c"},
		}}, "(a AND b) OR c"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TranslateAST(tc.node, 0))
		})
	}
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `a\:b`, Escape("a:b"))
	assert.Equal(t, `\(x\)`, Escape("(x)"))
	assert.Equal(t, `\*\?`, Escape("*?"))
	assert.Equal(t, `*\:?`, EscapeKeepWildcards("*:?"))
	assert.Equal(t, "über", Escape("über"))
}

func TestEscapeRegex(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"a/b", `a\/b`},
		{`a\/b`, `a\/b`},
		{`a\\/b`, `a\\\/b`},
		{`^18\d$`, `^18\d$`},
		{`trailing\`, `trailing\`},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, escapeRegex(tc.in))
		})
	}
}

func TestIndexableFields(t *testing.T) {
	fields := IndexableFields()
	assert.Contains(t, fields, "content")
	assert.Contains(t, fields, "citationkey")
	assert.True(t, IsIndexable("title"))
	assert.False(t, IsIndexable("language"))
	assert.True(t, IsFulltextField("path"))
	assert.False(t, IsFulltextField("title"))
}
