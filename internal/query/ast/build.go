package ast

import (
	"fmt"
	"strings"

	"github.com/roach88/bibsearch/internal/query"
	"github.com/roach88/bibsearch/internal/query/syntax"
)

// Build converts a parse tree into an AST.
//
// Build is total over the grammar's productions. It only fails on a nil
// node, an unknown node kind, or an operator token the grammar cannot
// produce.
//
// Unfielded literal terms get their backslashes doubled unless the
// regular-expression flag is set; the matcher undoes this when it compares
// literally.
func Build(n syntax.Node, flags query.Flags) (Node, error) {
	b := builder{flags: flags}
	return b.build(n)
}

// MustBuild is Build for trees known to be well formed (tests, fixtures).
func MustBuild(n syntax.Node, flags query.Flags) Node {
	node, err := Build(n, flags)
	if err != nil {
		panic(err)
	}
	return node
}

type builder struct {
	flags query.Flags
}

func (b builder) build(n syntax.Node) (Node, error) {
	if n == nil {
		return nil, fmt.Errorf("cannot build nil parse node")
	}

	switch node := n.(type) {
	case syntax.AndExpression:
		return b.buildAnd(node)
	case *syntax.AndExpression:
		return b.buildAnd(*node)
	case syntax.Binary:
		return b.buildBinary(node)
	case *syntax.Binary:
		return b.buildBinary(*node)
	case syntax.Negated:
		return b.buildNegated(node)
	case *syntax.Negated:
		return b.buildNegated(*node)
	case syntax.Paren:
		return b.buildAnd(node.Expr)
	case *syntax.Paren:
		return b.buildAnd(node.Expr)
	case syntax.Comparison:
		return b.buildComparison(node)
	case *syntax.Comparison:
		return b.buildComparison(*node)
	default:
		return nil, fmt.Errorf("unsupported parse node type: %T", n)
	}
}

// buildAnd collapses a single-child list to the child itself.
func (b builder) buildAnd(and syntax.AndExpression) (Node, error) {
	if len(and.Exprs) == 0 {
		return nil, fmt.Errorf("empty and-expression")
	}
	children := make([]Node, 0, len(and.Exprs))
	for _, expr := range and.Exprs {
		child, err := b.build(expr)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return Operator{Kind: And, Children: children}, nil
}

func (b builder) buildBinary(bin syntax.Binary) (Node, error) {
	var kind OperatorKind
	switch strings.ToUpper(strings.TrimSpace(bin.Op)) {
	case "AND":
		kind = And
	case "OR":
		kind = Or
	default:
		return nil, fmt.Errorf("unknown boolean operator %q", bin.Op)
	}

	left, err := b.build(bin.Left)
	if err != nil {
		return nil, fmt.Errorf("left operand: %w", err)
	}
	right, err := b.build(bin.Right)
	if err != nil {
		return nil, fmt.Errorf("right operand: %w", err)
	}

	var children []Node
	children = appendFlattened(children, kind, left)
	children = appendFlattened(children, kind, right)
	return Operator{Kind: kind, Children: children}, nil
}

// appendFlattened splices same-kind operators into their parent.
func appendFlattened(dst []Node, kind OperatorKind, n Node) []Node {
	if op, ok := n.(Operator); ok && op.Kind == kind {
		return append(dst, op.Children...)
	}
	return append(dst, n)
}

func (b builder) buildNegated(neg syntax.Negated) (Node, error) {
	child, err := b.build(neg.Expr)
	if err != nil {
		return nil, err
	}
	return Not{Child: child}, nil
}

func (b builder) buildComparison(c syntax.Comparison) (Node, error) {
	op, err := ParseOperator(c.Operator)
	if err != nil {
		return nil, err
	}

	field := NormalizeField(c.Field)
	term := Unescape(c.Value)
	if field == "" && !op.IsRegex() && !b.flags.Has(query.RegularExpression) {
		term = EscapeBackslashes(term)
	}

	comp := Comparison{
		Field:    field,
		Term:     term,
		Quoted:   c.Value.Quoted,
		Operator: op.Positive(),
	}
	if op.Negated() {
		return Not{Child: comp}, nil
	}
	return comp, nil
}
