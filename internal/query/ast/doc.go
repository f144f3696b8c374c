// Package ast is the backend-neutral representation of a search query.
//
// The grammar's parse tree (package syntax) is converted once by Build and
// then handed to either backend:
//
//	[parse tree] -> [AST] -> matcher.Compile     (in-memory Evaluate)
//	                      -> indexquery.TranslateAST (index query string)
//
// Three node kinds exist: Comparison, Not and Operator. Negated comparison
// operators never reach a backend; Build rewrites them to
// Not{Comparison{positive op}} so backends only handle the positive family.
//
// Field names are normalized while building: key becomes citationkey,
// anykeyword becomes keywords, and any/anyfield make the comparison
// unfielded.
package ast
