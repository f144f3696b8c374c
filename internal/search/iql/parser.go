package iql

// Grammar:
//
//	query   = [ expr ] EOF
//	expr    = unary { ( "AND" | "OR" ) unary }
//	unary   = "NOT" unary | primary
//	primary = "(" [ expr ] ")" | clause
//	clause  = [ FIELD ":" ] ( WORD | PHRASE | REGEX )
type parser struct {
	lex lexer
	cur token
}

// Parse parses an index query string. The empty string parses to Empty.
func Parse(input string) (Expr, error) {
	p := &parser{lex: lexer{input: input}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.kind == tokEOF {
		return Empty{}, nil
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur.kind == tokRParen {
		return nil, parseErrorf(p.cur.pos, ErrUnmatchedParen, "unmatched ')'")
	}
	if p.cur.kind != tokEOF {
		return nil, parseErrorf(p.cur.pos, ErrUnexpectedToken, "expected AND or OR before %s %q", p.cur.kind, p.cur.lit)
	}
	return expr, nil
}

// MustParse is Parse for known-good input; it panics on error.
func MustParse(input string) Expr {
	e, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return e
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokAnd || p.cur.kind == tokOr {
		op := p.cur.kind
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op == tokAnd {
			left = appendAnd(left, right)
		} else {
			left = appendOr(left, right)
		}
	}
	return left, nil
}

// appendAnd extends a left-associated AND chain. Flattening a
// parenthesized left operand is safe because AND is associative.
func appendAnd(left, right Expr) Expr {
	if a, ok := left.(And); ok {
		return And{Children: append(a.Children, right)}
	}
	return And{Children: []Expr{left, right}}
}

func appendOr(left, right Expr) Expr {
	if o, ok := left.(Or); ok {
		return Or{Children: append(o.Children, right)}
	}
	return Or{Children: []Expr{left, right}}
}

func (p *parser) parseUnary() (Expr, error) {
	if p.cur.kind != tokNot {
		return p.parsePrimary()
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	child, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return Not{Child: child}, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	switch p.cur.kind {
	case tokLParen:
		open := p.cur.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind == tokRParen {
			return Empty{}, p.advance()
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, parseErrorf(open, ErrUnmatchedParen, "unmatched '('")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil
	case tokField:
		field := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		c, ok := valueClause(p.cur)
		if !ok {
			return nil, parseErrorf(p.cur.pos, ErrMissingValue, "missing value for field %q", field.lit)
		}
		c.Field = field.lit
		return c, p.advance()
	case tokEOF:
		return nil, parseErrorf(p.cur.pos, ErrUnexpectedToken, "unexpected end of query")
	}

	c, ok := valueClause(p.cur)
	if !ok {
		return nil, parseErrorf(p.cur.pos, ErrUnexpectedToken, "unexpected %s", p.cur.kind)
	}
	return c, p.advance()
}

func valueClause(tok token) (Clause, bool) {
	switch tok.kind {
	case tokWord:
		if tok.wildcard {
			return Clause{Kind: Wildcard, Value: tok.lit}, true
		}
		return Clause{Kind: Term, Value: tok.lit}, true
	case tokPhrase:
		return Clause{Kind: Phrase, Value: tok.lit}, true
	case tokRegex:
		return Clause{Kind: Regex, Value: tok.lit}, true
	}
	return Clause{}, false
}
