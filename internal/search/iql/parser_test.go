package iql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func term(field, v string) Clause { return Clause{Field: field, Kind: Term, Value: v} }

func TestParse(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  Expr
	}{
		{"empty", "", Empty{}},
		{"blank", "  \t", Empty{}},
		{"bare term", "love", term("", "love")},
		{"fielded term", "title:war", term("title", "war")},
		{"escaped term", `title:c\+\+`, term("title", "c++")},
		{"escaped space", `title:a\ b`, term("title", "a b")},
		{"escaped colon", `note:a\:b`, term("note", "a:b")},
		{"escaped backslash", `a\\b`, term("", `a\b`)},
		{"escaped star is literal", `x\*y`, term("", "x*y")},
		{"unicode", "title:Émile", term("title", "Émile")},
		{"phrase", `title:"war and peace"`, Clause{Field: "title", Kind: Phrase, Value: "war and peace"}},
		{"phrase escapes", `"say \"hi\" \\ now"`, Clause{Kind: Phrase, Value: `say "hi" \ now`}},
		{"keyword phrase", `title:"OR"`, Clause{Field: "title", Kind: Phrase, Value: "OR"}},
		{"regex", `year:/^18\d\d$/`, Clause{Field: "year", Kind: Regex, Value: `^18\d\d$`}},
		{"regex slash", `url:/a\/b/`, Clause{Field: "url", Kind: Regex, Value: "a/b"}},
		{"wildcard", "content:*neural*", Clause{Field: "content", Kind: Wildcard, Value: "*neural*"}},
		{"wildcard keeps literal escapes", `content:*a\*b*`, Clause{Field: "content", Kind: Wildcard, Value: `*a\*b*`}},
		{"wildcard unescapes others", `content:*a\ b*`, Clause{Field: "content", Kind: Wildcard, Value: "*a b*"}},
		{"lowercase keyword is a term", "and", term("", "and")},
		{"and", "a AND b", And{Children: []Expr{term("", "a"), term("", "b")}}},
		{"and chain flattens", "a AND b AND c", And{Children: []Expr{term("", "a"), term("", "b"), term("", "c")}}},
		{"or chain flattens", "a OR b OR c", Or{Children: []Expr{term("", "a"), term("", "b"), term("", "c")}}},
		{
			"equal precedence left associative",
			"a OR b AND c",
			And{Children: []Expr{Or{Children: []Expr{term("", "a"), term("", "b")}}, term("", "c")}},
		},
		{
			"parens",
			"love AND (hate OR war)",
			And{Children: []Expr{term("", "love"), Or{Children: []Expr{term("", "hate"), term("", "war")}}}},
		},
		{"not", "NOT (title:war)", Not{Child: term("title", "war")}},
		{"not empty", "NOT ()", Not{Child: Empty{}}},
		{"not binds tighter", "NOT a AND b", And{Children: []Expr{Not{Child: term("", "a")}, term("", "b")}}},
		{"double not", "NOT NOT a", Not{Child: Not{Child: term("", "a")}}},
		{"paren only", "(a)", term("", "a")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		pos   int
		err   error
	}{
		{"unterminated phrase", `title:"war`, 6, ErrUnterminatedPhrase},
		{"unterminated regex", `/abc`, 0, ErrUnterminatedRegex},
		{"dangling escape", `abc\`, 3, ErrDanglingEscape},
		{"missing value", `title:)`, 6, ErrMissingValue},
		{"adjacent clauses", `a b`, 2, ErrUnexpectedToken},
		{"unmatched open", `(a OR b`, 0, ErrUnmatchedParen},
		{"unmatched close", `a)`, 1, ErrUnmatchedParen},
		{"trailing operator", `a AND`, 5, ErrUnexpectedToken},
		{"stray colon", `a-b:c`, 3, ErrUnexpectedToken},
		{"leading operator", `OR a`, 0, ErrUnexpectedToken},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.input)
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
			assert.Equal(t, tc.pos, pe.Pos)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestString(t *testing.T) {
	testCases := map[string]string{
		"love AND (hate OR war)":     "love AND (hate OR war)",
		`title:"war and peace"`:      `title:"war and peace"`,
		"NOT ()":                     "NOT ()",
		"NOT (a OR b)":               "NOT (a OR b)",
		`url:/a\/b/`:                 `url:/a\/b/`,
		"(a AND b) OR (c AND NOT d)": "(a AND b) OR (c AND NOT (d))",
	}
	for in, want := range testCases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, MustParse(in).String())
		})
	}
}
