// Package syntax defines the parse tree produced by the search grammar.
//
// The grammar front end lives outside this module. Its productions map to
// the node kinds below one to one:
//
//	start             := andExpression
//	andExpression     := expression+                  -> AndExpression
//	expression        := binary | negated | paren | comparison
//	binaryExpression  := left (AND|OR) right          -> Binary
//	negatedExpression := NOT expression               -> Negated
//	parenExpression   := '(' andExpression ')'        -> Paren
//	comparison        := [FIELD operator] searchValue -> Comparison
//
// Trees arrive either as Go values or as YAML documents (see DecodeYAML).
package syntax

// Node is a parse tree node.
//
// Sealed: only types in this package implement it.
type Node interface {
	syntaxNode()
}

// AndExpression is a juxtaposition of expressions (implicit AND).
type AndExpression struct {
	Exprs []Node
}

func (AndExpression) syntaxNode() {}

// Binary is an explicit AND/OR between two expressions.
// Op holds the operator token text as written.
type Binary struct {
	Left  Node
	Op    string
	Right Node
}

func (Binary) syntaxNode() {}

// Negated is NOT expression.
type Negated struct {
	Expr Node
}

func (Negated) syntaxNode() {}

// Paren is a parenthesized and-expression.
type Paren struct {
	Expr AndExpression
}

func (Paren) syntaxNode() {}

// Comparison is an optional field and operator followed by a search value.
// Field and Operator are empty for an unfielded term.
type Comparison struct {
	Field    string
	Operator string
	Value    SearchValue
}

func (Comparison) syntaxNode() {}

// SearchValue is the raw token of a comparison's value.
//
// For a quoted literal Raw includes the surrounding quotes and any escapes;
// for a bare word it is the word as written.
type SearchValue struct {
	Raw    string
	Quoted bool
}

// Term builds an unfielded comparison from a bare word.
func Term(word string) Comparison {
	return Comparison{Value: Word(word)}
}

// Field builds a fielded comparison.
func Field(field, op string, value SearchValue) Comparison {
	return Comparison{Field: field, Operator: op, Value: value}
}

// Word builds a bare-word search value.
func Word(s string) SearchValue {
	return SearchValue{Raw: s}
}

// Quoted builds a quoted search value from its inner text, escaping
// embedded quotes and backslashes.
func Quoted(inner string) SearchValue {
	var b []byte
	b = append(b, '"')
	for i := 0; i < len(inner); i++ {
		if inner[i] == '"' || inner[i] == '\\' {
			b = append(b, '\\')
		}
		b = append(b, inner[i])
	}
	b = append(b, '"')
	return SearchValue{Raw: string(b), Quoted: true}
}

// And builds an implicit AND of the given expressions.
func And(exprs ...Node) AndExpression {
	return AndExpression{Exprs: exprs}
}

// Group builds a parenthesized expression.
func Group(exprs ...Node) Paren {
	return Paren{Expr: AndExpression{Exprs: exprs}}
}
