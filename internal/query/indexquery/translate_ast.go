package indexquery

import (
	"strings"

	"github.com/roach88/bibsearch/internal/query"
	"github.com/roach88/bibsearch/internal/query/ast"
)

// TranslateAST renders an AST as an index query string.
//
// The AST has no record of the user's parentheses, so every composite
// child of an operator is parenthesized. Clause rendering is identical to
// Translate.
func TranslateAST(n ast.Node, flags query.Flags) string {
	t := translator{flags: flags}
	return t.translateNode(n)
}

func (t translator) translateNode(n ast.Node) string {
	switch node := n.(type) {
	case ast.Comparison:
		return t.translateASTComparison(node)
	case *ast.Comparison:
		return t.translateASTComparison(*node)
	case ast.Not:
		return "NOT (" + t.translateNode(node.Child) + ")"
	case *ast.Not:
		return "NOT (" + t.translateNode(node.Child) + ")"
	case ast.Operator:
		return t.translateOperator(node)
	case *ast.Operator:
		return t.translateOperator(*node)
	default:
		return ""
	}
}

func (t translator) translateASTComparison(c ast.Comparison) string {
	if !c.Unfielded() && !IsIndexable(c.Field) {
		return ""
	}
	term := c.Term
	if c.Unfielded() && !c.Operator.IsRegex() && !t.flags.Has(query.RegularExpression) {
		term = ast.UnescapeBackslashes(term)
	}
	return t.clause(c.Field, term, c.Quoted, c.Operator)
}

func (t translator) translateOperator(op ast.Operator) string {
	parts := make([]string, 0, len(op.Children))
	for _, child := range op.Children {
		s := t.translateNode(child)
		if s == "" {
			continue
		}
		if inner, ok := child.(ast.Operator); ok && len(inner.Children) > 1 {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " "+op.Kind.String()+" ")
}
