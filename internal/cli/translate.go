package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bibsearch/internal/query/ast"
	"github.com/roach88/bibsearch/internal/query/indexquery"
	"github.com/roach88/bibsearch/internal/query/matcher"
)

// TranslateResult is the output of translate.
type TranslateResult struct {
	Query string `json:"query"`
}

func (r TranslateResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintln(w, r.Query)
	return err
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "translate <tree.yaml|->",
		Short: "Translate a parse tree into an index query string",
		Long: `Translate a parse tree document into the index query string that
"search" executes.

A parse tree is a YAML document. A sequence is an implicit AND:

  - term: love
  - field: title
    op: "="
    term: war
  - not: {term: hate}

Example:
  bibsearch translate query.yaml
  echo '{or: [{term: love}, {term: war}]}' | bibsearch translate -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, cmd)
			if err != nil {
				return err
			}
			tree, err := readTree(args[0], cmd.InOrStdin())
			if err != nil {
				return e.formatter.Fail(err)
			}
			q := indexquery.Translate(tree, flags.resolve(e.cfg.Flags()))
			return e.formatter.Success(TranslateResult{Query: q})
		},
	}
	flags.register(cmd)
	return cmd
}

// MatchResult is the output of match.
type MatchResult struct {
	EntryIDs []string `json:"entry_ids"`
}

func (r MatchResult) WriteText(w io.Writer) error {
	if len(r.EntryIDs) == 0 {
		_, err := fmt.Fprintln(w, "no matching entries")
		return err
	}
	for _, id := range r.EntryIDs {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "match <tree.yaml|->",
		Short: "Filter the library in memory with a parse tree",
		Long: `Evaluate a parse tree against every entry of the library without
touching the indexes. The output lists matching entry ids in library order.

Example:
  bibsearch match --library refs.yaml query.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, cmd)
			if err != nil {
				return err
			}
			return runMatch(e, &flags, args[0], cmd)
		},
	}
	flags.register(cmd)
	return cmd
}

func runMatch(e *env, flags *searchFlags, treePath string, cmd *cobra.Command) error {
	tree, err := readTree(treePath, cmd.InOrStdin())
	if err != nil {
		return e.formatter.Fail(err)
	}
	lib, err := e.loadLibrary()
	if err != nil {
		return e.formatter.Fail(err)
	}

	qf := flags.resolve(e.cfg.Flags())
	node, err := ast.Build(tree, qf)
	if err != nil {
		return e.formatter.Fail(WrapExitError(ExitCommandError, ErrCodeParseTree, "invalid parse tree", err))
	}
	m, err := matcher.CompileStrict(node, qf)
	if err != nil {
		return e.formatter.Fail(WrapExitError(ExitCommandError, ErrCodeParseTree, "invalid regular expression", err))
	}

	res := MatchResult{EntryIDs: []string{}}
	for _, entry := range matcher.Filter(m, lib.Entries) {
		res.EntryIDs = append(res.EntryIDs, entry.ID)
	}
	e.formatter.VerboseLog("%d of %d entries matched", len(res.EntryIDs), len(lib.Entries))
	return e.formatter.Success(res)
}

