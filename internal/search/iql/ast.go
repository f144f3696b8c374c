// Package iql parses index query strings, the output of the index query
// translator, into an expression tree for execution.
//
// The syntax is field:value clauses, "quoted phrases", /regular
// expressions/, * and ? wildcards, backslash escapes, NOT, AND, OR and
// parentheses. AND and OR share one precedence level and associate to the
// left, like the boolean operators of the query grammar the strings are
// translated from. Adjacent clauses without an operator are rejected.
package iql

import "strings"

// Expr is a parsed index query. The marker method closes the set.
type Expr interface {
	iqlExpr()
	String() string
}

// And matches what every child matches. len(Children) >= 2.
type And struct {
	Children []Expr
}

// Or matches what any child matches. len(Children) >= 2.
type Or struct {
	Children []Expr
}

// Not matches what its child does not.
type Not struct {
	Child Expr
}

// Empty is the empty query or an empty group. It places no constraint.
type Empty struct{}

// ValueKind classifies the value of a clause.
type ValueKind int

const (
	// Term is a literal word, unescaped.
	Term ValueKind = iota
	// Wildcard is a word with active * or ? wildcards. Literal *, ? and \
	// keep their backslash escape in the value.
	Wildcard
	// Phrase is a quoted phrase, unescaped.
	Phrase
	// Regex is a regular expression with the delimiters removed.
	Regex
)

func (k ValueKind) String() string {
	switch k {
	case Term:
		return "term"
	case Wildcard:
		return "wildcard"
	case Phrase:
		return "phrase"
	case Regex:
		return "regex"
	default:
		return "unknown"
	}
}

// Clause is one field:value constraint. An empty Field means any field.
type Clause struct {
	Field string
	Kind  ValueKind
	Value string
}

func (And) iqlExpr()    {}
func (Or) iqlExpr()     {}
func (Not) iqlExpr()    {}
func (Empty) iqlExpr()  {}
func (Clause) iqlExpr() {}

func (a And) String() string { return joinExprs(a.Children, " AND ") }
func (o Or) String() string  { return joinExprs(o.Children, " OR ") }

func (n Not) String() string {
	if _, ok := n.Child.(Empty); ok {
		return "NOT ()"
	}
	return "NOT (" + n.Child.String() + ")"
}

func (Empty) String() string { return "" }

func (c Clause) String() string {
	var v string
	switch c.Kind {
	case Phrase:
		v = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(c.Value) + `"`
	case Regex:
		v = "/" + strings.ReplaceAll(c.Value, "/", `\/`) + "/"
	default:
		v = c.Value
	}
	if c.Field != "" {
		return c.Field + ":" + v
	}
	return v
}

func joinExprs(children []Expr, sep string) string {
	parts := make([]string, len(children))
	for i, c := range children {
		switch c.(type) {
		case And, Or:
			parts[i] = "(" + c.String() + ")"
		default:
			parts[i] = c.String()
		}
	}
	return strings.Join(parts, sep)
}
