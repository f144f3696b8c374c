package ast

// Node is a search AST node.
//
// This is a sealed interface - only types in this package implement it.
// Backends (matcher, index query translator) switch exhaustively over
// Comparison, Not and Operator.
type Node interface {
	astNode()
}

// Comparison tests one field, or every field, against a term.
//
// An empty Field means the term is unfielded and is searched in any field.
// Term is already unescaped; for unfielded literal terms its backslashes
// are doubled (see Build).
type Comparison struct {
	Field    string
	Term     string
	Quoted   bool
	Operator ComparisonOp
}

func (Comparison) astNode() {}

// Unfielded reports whether the comparison searches any field.
func (c Comparison) Unfielded() bool {
	return c.Field == ""
}

// Not negates its child.
type Not struct {
	Child Node
}

func (Not) astNode() {}

// OperatorKind is the boolean connective of an Operator node.
type OperatorKind int

const (
	And OperatorKind = iota
	Or
)

func (k OperatorKind) String() string {
	if k == Or {
		return "OR"
	}
	return "AND"
}

// Operator joins one or more children with AND or OR.
//
// Invariant: len(Children) >= 1. Build never produces an Operator with a
// single child for implicit AND lists; explicit binary nodes always carry
// at least two.
type Operator struct {
	Kind     OperatorKind
	Children []Node
}

func (Operator) astNode() {}
