// Package indexquery translates search queries into the index query
// syntax executed against the structured and full-text indexes.
//
// Translation runs on the parse tree rather than the AST because the
// output keeps the user's parenthesization. Every node translates to a
// possibly empty string; empty means "no constraint" and is dropped by the
// enclosing AND/OR.
package indexquery

import (
	"strings"

	"github.com/roach88/bibsearch/internal/query"
	"github.com/roach88/bibsearch/internal/query/ast"
	"github.com/roach88/bibsearch/internal/query/syntax"
)

// Translate renders a parse tree as an index query string.
//
// Comparisons on fields outside IndexableFields translate to "" and
// silently drop out of the query.
func Translate(n syntax.Node, flags query.Flags) string {
	t := translator{flags: flags}
	return t.translate(n)
}

type translator struct {
	flags query.Flags
}

func (t translator) translate(n syntax.Node) string {
	switch node := n.(type) {
	case syntax.AndExpression:
		return t.translateAnd(node)
	case *syntax.AndExpression:
		return t.translateAnd(*node)
	case syntax.Binary:
		return t.translateBinary(node)
	case *syntax.Binary:
		return t.translateBinary(*node)
	case syntax.Negated:
		return t.translateNegated(node)
	case *syntax.Negated:
		return t.translateNegated(*node)
	case syntax.Paren:
		return t.translateParen(node)
	case *syntax.Paren:
		return t.translateParen(*node)
	case syntax.Comparison:
		return t.translateComparison(node)
	case *syntax.Comparison:
		return t.translateComparison(*node)
	default:
		return ""
	}
}

// translateAnd joins the non-empty members with AND. A member that joins
// clauses at its top level is parenthesized, since the index query syntax
// groups AND and OR strictly left to right.
func (t translator) translateAnd(and syntax.AndExpression) string {
	parts := make([]string, 0, len(and.Exprs))
	compound := make([]bool, 0, len(and.Exprs))
	for _, expr := range and.Exprs {
		if s, joined := t.operand(expr); s != "" {
			parts = append(parts, s)
			compound = append(compound, joined)
		}
	}
	if len(parts) > 1 {
		for i, joined := range compound {
			if joined {
				parts[i] = "(" + parts[i] + ")"
			}
		}
	}
	return strings.Join(parts, " AND ")
}

func (t translator) translateBinary(bin syntax.Binary) string {
	s, _ := t.binary(bin)
	return s
}

// operand translates n and reports whether the result joins two clauses
// with a bare AND or OR.
func (t translator) operand(n syntax.Node) (string, bool) {
	switch node := n.(type) {
	case syntax.Binary:
		return t.binary(node)
	case *syntax.Binary:
		return t.binary(*node)
	}
	return t.translate(n), false
}

// binary joins both sides with the operator, degenerating to the non-empty
// side. Left operands need no parentheses under left-to-right grouping; a
// compound right operand does.
func (t translator) binary(bin syntax.Binary) (string, bool) {
	op := strings.ToUpper(strings.TrimSpace(bin.Op))
	if op != "AND" && op != "OR" {
		return "", false
	}
	left, leftJoined := t.operand(bin.Left)
	right, rightJoined := t.operand(bin.Right)
	switch {
	case left == "":
		return right, rightJoined
	case right == "":
		return left, leftJoined
	}
	if rightJoined {
		right = "(" + right + ")"
	}
	return left + " " + op + " " + right, true
}

// translateNegated renders NOT (child). A parenthesized child supplies the
// parentheses itself, so its inner expression is used directly.
func (t translator) translateNegated(neg syntax.Negated) string {
	var inner string
	switch child := neg.Expr.(type) {
	case syntax.Paren:
		inner = t.translateAnd(child.Expr)
	case *syntax.Paren:
		inner = t.translateAnd(child.Expr)
	default:
		inner = t.translate(neg.Expr)
	}
	return "NOT (" + inner + ")"
}

func (t translator) translateParen(p syntax.Paren) string {
	inner := t.translateAnd(p.Expr)
	if inner == "" {
		return ""
	}
	return "(" + inner + ")"
}

func (t translator) translateComparison(c syntax.Comparison) string {
	op, err := ast.ParseOperator(c.Operator)
	if err != nil {
		return ""
	}
	field := ast.NormalizeField(c.Field)
	if field != "" && !IsIndexable(field) {
		return ""
	}
	return t.clause(field, ast.Unescape(c.Value), c.Value.Quoted, op)
}

// clause renders one comparison. Negated operators wrap the positive
// clause in NOT (...).
func (t translator) clause(field, term string, quoted bool, op ast.ComparisonOp) string {
	positive := op.Positive()
	regex := positive.IsRegex() ||
		(field == "" && t.flags.Has(query.RegularExpression) && !positive.IsExact())

	var value string
	switch {
	case regex:
		value = "/" + escapeRegex(term) + "/"
	case quoted:
		value = `"` + escapePhrase(term) + `"`
	case field == FieldContent && positive == ast.Contains:
		if strings.ContainsAny(term, "*?") {
			value = EscapeKeepWildcards(term)
		} else {
			value = "*" + Escape(term) + "*"
		}
	case isKeyword(term):
		value = `"` + term + `"`
	default:
		value = Escape(term)
	}

	if field != "" {
		value = field + ":" + value
	}
	if op.Negated() {
		return "NOT (" + value + ")"
	}
	return value
}
