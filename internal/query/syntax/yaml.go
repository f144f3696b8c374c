package syntax

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DecodeYAML decodes a parse tree document.
//
// A sequence is an implicit AND of its items. A mapping is one node:
//
//	term: love                       # unfielded bare word
//	{field: title, op: "=", term: war, quoted: true}
//	not: <node>
//	and: [<node>, <node>]            # explicit binary AND
//	or:  [<node>, <node>]
//	paren: <node or sequence>
func DecodeYAML(data []byte) (Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode parse tree: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("decode parse tree: empty document")
	}
	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		return decodeAnd(root)
	}
	return decodeNode(root)
}

func decodeAnd(n *yaml.Node) (AndExpression, error) {
	exprs := make([]Node, 0, len(n.Content))
	for _, item := range n.Content {
		child, err := decodeNode(item)
		if err != nil {
			return AndExpression{}, err
		}
		exprs = append(exprs, child)
	}
	if len(exprs) == 0 {
		return AndExpression{}, nodeError(n, "empty expression list")
	}
	return AndExpression{Exprs: exprs}, nil
}

func decodeNode(n *yaml.Node) (Node, error) {
	switch n.Kind {
	case yaml.SequenceNode:
		return decodeAnd(n)
	case yaml.ScalarNode:
		return Term(n.Value), nil
	case yaml.MappingNode:
	default:
		return nil, nodeError(n, "unexpected yaml node")
	}

	fields := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		fields[n.Content[i].Value] = n.Content[i+1]
	}

	switch {
	case fields["term"] != nil:
		return decodeComparison(n, fields)
	case fields["not"] != nil:
		child, err := decodeNode(fields["not"])
		if err != nil {
			return nil, err
		}
		return Negated{Expr: child}, nil
	case fields["and"] != nil:
		return decodeBinary(fields["and"], "AND")
	case fields["or"] != nil:
		return decodeBinary(fields["or"], "OR")
	case fields["paren"] != nil:
		inner := fields["paren"]
		if inner.Kind == yaml.SequenceNode {
			and, err := decodeAnd(inner)
			if err != nil {
				return nil, err
			}
			return Paren{Expr: and}, nil
		}
		child, err := decodeNode(inner)
		if err != nil {
			return nil, err
		}
		return Group(child), nil
	default:
		return nil, nodeError(n, "mapping needs one of term, not, and, or, paren")
	}
}

func decodeComparison(n *yaml.Node, fields map[string]*yaml.Node) (Node, error) {
	var c Comparison
	if f := fields["field"]; f != nil {
		c.Field = f.Value
	}
	if op := fields["op"]; op != nil {
		c.Operator = op.Value
	}
	if (c.Field == "") != (c.Operator == "") {
		return nil, nodeError(n, "field and op must be given together")
	}
	term := fields["term"].Value
	quoted := false
	if q := fields["quoted"]; q != nil {
		if err := q.Decode(&quoted); err != nil {
			return nil, nodeError(q, "quoted must be a boolean")
		}
	}
	if quoted {
		c.Value = Quoted(term)
	} else {
		c.Value = Word(term)
	}
	return c, nil
}

func decodeBinary(n *yaml.Node, op string) (Node, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) != 2 {
		return nil, nodeError(n, strings.ToLower(op)+" needs exactly two operands")
	}
	left, err := decodeNode(n.Content[0])
	if err != nil {
		return nil, err
	}
	right, err := decodeNode(n.Content[1])
	if err != nil {
		return nil, err
	}
	return Binary{Left: left, Op: op, Right: right}, nil
}

func nodeError(n *yaml.Node, msg string) error {
	return fmt.Errorf("decode parse tree: line %d: %s", n.Line, msg)
}
