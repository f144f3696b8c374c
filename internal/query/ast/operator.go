package ast

import (
	"fmt"
	"strings"
)

// ComparisonOp is the equality-family operator of a comparison.
type ComparisonOp int

const (
	Contains ComparisonOp = iota
	ContainsCase
	Regex
	RegexCase
	Exact
	ExactCase
	NotContains
	NotContainsCase
	NotRegex
	NotRegexCase
	NotExact
	NotExactCase
	Matches
)

var opSymbols = map[ComparisonOp]string{
	Contains:        "=",
	ContainsCase:    "=!",
	Regex:           "=~",
	RegexCase:       "=~!",
	Exact:           "==",
	ExactCase:       "==!",
	NotContains:     "!=",
	NotContainsCase: "!=!",
	NotRegex:        "!=~",
	NotRegexCase:    "!=~!",
	NotExact:        "!==",
	NotExactCase:    "!==!",
	Matches:         "MATCHES",
}

var opTokens = map[string]ComparisonOp{
	"=":        Contains,
	"CONTAINS": Contains,
	"=!":       ContainsCase,
	"=~":       Regex,
	"=~!":      RegexCase,
	"==":       Exact,
	"==!":      ExactCase,
	"MATCHES":  Matches,
	"!=":       NotContains,
	"!=!":      NotContainsCase,
	"!=~":      NotRegex,
	"!=~!":     NotRegexCase,
	"!==":      NotExact,
	"!==!":     NotExactCase,
}

// ParseOperator maps an operator token to a ComparisonOp.
// Word operators are case-insensitive. An empty token is Contains.
func ParseOperator(token string) (ComparisonOp, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Contains, nil
	}
	if op, ok := opTokens[strings.ToUpper(token)]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("unknown comparison operator %q", token)
}

func (op ComparisonOp) String() string {
	if s, ok := opSymbols[op]; ok {
		return s
	}
	return fmt.Sprintf("ComparisonOp(%d)", int(op))
}

// Negated reports whether op is one of the six negated operators.
func (op ComparisonOp) Negated() bool {
	switch op {
	case NotContains, NotContainsCase, NotRegex, NotRegexCase, NotExact, NotExactCase:
		return true
	}
	return false
}

// Positive returns the non-negated counterpart of op. Non-negated
// operators are returned unchanged.
func (op ComparisonOp) Positive() ComparisonOp {
	switch op {
	case NotContains:
		return Contains
	case NotContainsCase:
		return ContainsCase
	case NotRegex:
		return Regex
	case NotRegexCase:
		return RegexCase
	case NotExact:
		return Exact
	case NotExactCase:
		return ExactCase
	}
	return op
}

// CaseSensitive reports whether op is a case-exact variant.
func (op ComparisonOp) CaseSensitive() bool {
	switch op.Positive() {
	case ContainsCase, RegexCase, ExactCase:
		return true
	}
	return false
}

// IsRegex reports whether op belongs to the regex family.
func (op ComparisonOp) IsRegex() bool {
	switch op.Positive() {
	case Regex, RegexCase:
		return true
	}
	return false
}

// IsExact reports whether op belongs to the exact-match family.
// Matches is treated as exact.
func (op ComparisonOp) IsExact() bool {
	switch op.Positive() {
	case Exact, ExactCase, Matches:
		return true
	}
	return false
}
