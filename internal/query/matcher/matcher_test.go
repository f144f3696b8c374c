package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bibsearch/internal/library"
	"github.com/roach88/bibsearch/internal/query"
	"github.com/roach88/bibsearch/internal/query/ast"
	"github.com/roach88/bibsearch/internal/query/syntax"
)

func compileTree(t *testing.T, tree syntax.Node, flags query.Flags) Matcher {
	t.Helper()
	n, err := ast.Build(tree, flags)
	require.NoError(t, err)
	m, err := CompileStrict(n, flags)
	require.NoError(t, err)
	return m
}

func TestEvaluate_LoveAndHateOrWar(t *testing.T) {
	tree := syntax.Binary{
		Left: syntax.Term("love"),
		Op:   "AND",
		Right: syntax.Group(syntax.Binary{
			Left:  syntax.Term("hate"),
			Op:    "OR",
			Right: syntax.Term("war"),
		}),
	}
	m := compileTree(t, tree, 0)

	testCases := []struct {
		title string
		want  bool
	}{
		{"Love and War", true},
		{"love and hate", true},
		{"Love", false},
		{"War and Peace", false},
		{"LOVE, HATE, WAR", true},
	}
	for _, tc := range testCases {
		t.Run(tc.title, func(t *testing.T) {
			e := library.NewEntry("e", "book").Set("title", tc.title)
			assert.Equal(t, tc.want, m.Evaluate(e))
		})
	}
}

func TestEvaluate_NegationIsComplement(t *testing.T) {
	entries := []*library.Entry{
		library.NewEntry("1", "article").Set("title", "war"),
		library.NewEntry("2", "article").Set("title", "peace"),
		library.NewEntry("3", "article"),
	}
	positive := compileTree(t, syntax.Field("title", "=", syntax.Word("war")), 0)
	negated := compileTree(t, syntax.Field("title", "!=", syntax.Word("war")), 0)
	notKeyword := compileTree(t, syntax.Negated{Expr: syntax.Field("title", "=", syntax.Word("war"))}, 0)

	for _, e := range entries {
		assert.Equal(t, !positive.Evaluate(e), negated.Evaluate(e), e.ID)
		assert.Equal(t, negated.Evaluate(e), notKeyword.Evaluate(e), e.ID)
	}
}

func TestEvaluate_FieldOperators(t *testing.T) {
	e := library.NewEntry("e1", "Article").
		WithKey("Tolstoy1869").
		Set("title", "War and Peace").
		Set("author", "Émile Zola").
		Set("year", "1869").
		Set("keywords", "novel, russia")

	testCases := []struct {
		name  string
		node  syntax.Node
		flags query.Flags
		want  bool
	}{
		{"contains", syntax.Field("title", "=", syntax.Word("peace")), 0, true},
		{"contains word op", syntax.Field("title", "CONTAINS", syntax.Word("and")), 0, true},
		{"case exact contains miss", syntax.Field("title", "=!", syntax.Word("peace")), 0, false},
		{"case exact contains hit", syntax.Field("title", "=!", syntax.Word("Peace")), 0, true},
		{"case flag", syntax.Field("title", "=", syntax.Word("peace")), query.CaseSensitive, false},
		{"exact hit", syntax.Field("title", "==", syntax.Quoted("war and peace")), 0, true},
		{"exact partial miss", syntax.Field("title", "==", syntax.Word("war")), 0, false},
		{"case exact exact", syntax.Field("title", "==!", syntax.Quoted("war and peace")), 0, false},
		{"matches is exact", syntax.Field("year", "matches", syntax.Word("1869")), 0, true},
		{"regex", syntax.Field("year", "=~", syntax.Word(`^18\d\d$`)), 0, true},
		{"regex insensitive", syntax.Field("title", "=~", syntax.Word("^war")), 0, true},
		{"regex case exact", syntax.Field("title", "=~!", syntax.Word("^war")), 0, false},
		{"unicode folding", syntax.Field("author", "=", syntax.Word("ÉMILE")), 0, true},
		{"key pseudo field", syntax.Field("key", "==", syntax.Word("tolstoy1869")), 0, true},
		{"anykeyword pseudo field", syntax.Field("anykeyword", "=", syntax.Word("russia")), 0, true},
		{"entrytype", syntax.Field("entrytype", "==", syntax.Word("article")), 0, true},
		{"missing field", syntax.Field("journal", "=", syntax.Word("x")), 0, false},
		{"missing field negated", syntax.Field("journal", "!=", syntax.Word("x")), 0, true},
		{"unfielded", syntax.Term("zola"), 0, true},
		{"unfielded regex flag", syntax.Term(`zol.`), query.RegularExpression, true},
		{"unfielded literal dot", syntax.Term(`zol.`), 0, false},
		{"any alias", syntax.Field("anyfield", "=", syntax.Word("1869")), 0, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := compileTree(t, tc.node, tc.flags)
			assert.Equal(t, tc.want, m.Evaluate(e))
		})
	}
}

func TestEvaluate_UnfieldedBackslash(t *testing.T) {
	e := library.NewEntry("e1", "misc").Set("file", `C:\papers\a.pdf`)
	m := compileTree(t, syntax.Term(`papers\a`), 0)
	assert.True(t, m.Evaluate(e))
}

func TestCompile_InvalidRegexNeverMatches(t *testing.T) {
	n := ast.Comparison{Field: "title", Term: "(", Operator: ast.Regex}
	e := library.NewEntry("e1", "misc").Set("title", "(")

	m := Compile(n, 0)
	assert.False(t, m.Evaluate(e))

	_, err := CompileStrict(n, 0)
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	entries := []*library.Entry{
		library.NewEntry("1", "article").Set("title", "war"),
		library.NewEntry("2", "article").Set("title", "peace"),
		library.NewEntry("3", "article").Set("title", "war again"),
	}
	m := compileTree(t, syntax.Term("war"), 0)
	got := Filter(m, entries)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}
