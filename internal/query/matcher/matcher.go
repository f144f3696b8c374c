// Package matcher compiles a search AST into an in-memory predicate over
// library entries.
package matcher

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/bibsearch/internal/library"
	"github.com/roach88/bibsearch/internal/query"
	"github.com/roach88/bibsearch/internal/query/ast"
)

// Matcher decides whether an entry satisfies a compiled query.
//
// Matchers are immutable and safe for concurrent use.
type Matcher interface {
	Evaluate(e *library.Entry) bool
}

// Compile builds a matcher for n. An invalid regular expression compiles
// to a comparison that never matches; use CompileStrict to surface it.
func Compile(n ast.Node, flags query.Flags) Matcher {
	c := &compiler{flags: flags}
	return c.compile(n)
}

// CompileStrict is Compile but fails on invalid regular expressions.
func CompileStrict(n ast.Node, flags query.Flags) (Matcher, error) {
	c := &compiler{flags: flags}
	m := c.compile(n)
	if len(c.errs) > 0 {
		return nil, errors.Join(c.errs...)
	}
	return m, nil
}

// Filter returns the entries m accepts, in input order.
func Filter(m Matcher, entries []*library.Entry) []*library.Entry {
	var out []*library.Entry
	for _, e := range entries {
		if m.Evaluate(e) {
			out = append(out, e)
		}
	}
	return out
}

type compiler struct {
	flags query.Flags
	errs  []error
}

func (c *compiler) compile(n ast.Node) Matcher {
	switch node := n.(type) {
	case ast.Comparison:
		return c.compileComparison(node)
	case *ast.Comparison:
		return c.compileComparison(*node)
	case ast.Not:
		return notMatcher{child: c.compile(node.Child)}
	case *ast.Not:
		return notMatcher{child: c.compile(node.Child)}
	case ast.Operator:
		return c.compileOperator(node)
	case *ast.Operator:
		return c.compileOperator(*node)
	default:
		c.errs = append(c.errs, fmt.Errorf("unsupported ast node type: %T", n))
		return never{}
	}
}

func (c *compiler) compileOperator(op ast.Operator) Matcher {
	children := make([]Matcher, 0, len(op.Children))
	for _, child := range op.Children {
		children = append(children, c.compile(child))
	}
	if op.Kind == ast.Or {
		return orMatcher{children: children}
	}
	return andMatcher{children: children}
}

func (c *compiler) compileComparison(comp ast.Comparison) Matcher {
	t := c.newTest(comp)
	if comp.Unfielded() {
		return anyFieldMatcher{test: t}
	}
	return fieldMatcher{field: comp.Field, test: t}
}

// test reports whether a single field value satisfies a comparison.
type test func(value string) bool

func (c *compiler) newTest(comp ast.Comparison) test {
	op := comp.Operator.Positive()
	caseSensitive := op.CaseSensitive() || c.flags.Has(query.CaseSensitive)
	regex := op.IsRegex() || (comp.Unfielded() && c.flags.Has(query.RegularExpression) && !op.IsExact())

	term := comp.Term
	if comp.Unfielded() && !regex {
		term = ast.UnescapeBackslashes(term)
	}

	switch {
	case regex:
		pattern := term
		if !caseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			c.errs = append(c.errs, fmt.Errorf("invalid regular expression %q: %w", term, err))
			return func(string) bool { return false }
		}
		return re.MatchString
	case op.IsExact():
		if caseSensitive {
			return func(v string) bool { return v == term }
		}
		folded := fold(term)
		return func(v string) bool { return fold(v) == folded }
	default:
		if caseSensitive {
			return func(v string) bool { return strings.Contains(v, term) }
		}
		folded := fold(term)
		return func(v string) bool { return strings.Contains(fold(v), folded) }
	}
}

// fold applies Unicode case folding. A Caser is stateful, so each call
// gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

type fieldMatcher struct {
	field string
	test  test
}

func (m fieldMatcher) Evaluate(e *library.Entry) bool {
	v, ok := e.Field(m.field)
	return ok && m.test(v)
}

type anyFieldMatcher struct {
	test test
}

func (m anyFieldMatcher) Evaluate(e *library.Entry) bool {
	for _, v := range e.AllFields() {
		if m.test(v) {
			return true
		}
	}
	return false
}

type notMatcher struct {
	child Matcher
}

func (m notMatcher) Evaluate(e *library.Entry) bool {
	return !m.child.Evaluate(e)
}

type andMatcher struct {
	children []Matcher
}

func (m andMatcher) Evaluate(e *library.Entry) bool {
	for _, child := range m.children {
		if !child.Evaluate(e) {
			return false
		}
	}
	return true
}

type orMatcher struct {
	children []Matcher
}

func (m orMatcher) Evaluate(e *library.Entry) bool {
	for _, child := range m.children {
		if child.Evaluate(e) {
			return true
		}
	}
	return false
}

type never struct{}

func (never) Evaluate(*library.Entry) bool { return false }
