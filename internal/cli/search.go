package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/bibsearch/internal/query/indexquery"
	"github.com/roach88/bibsearch/internal/search"
	"github.com/roach88/bibsearch/internal/search/iql"
)

// SearchResult is the output of search.
type SearchResult struct {
	Query string `json:"query"`
	*search.Result
}

func (r SearchResult) WriteText(w io.Writer) error {
	if len(r.EntryIDs) == 0 {
		_, err := fmt.Fprintln(w, "no matching entries")
		return err
	}
	pages := make(map[string][]string)
	for _, h := range r.Pages {
		pages[h.EntryID] = append(pages[h.EntryID], fmt.Sprintf("%s p.%d", filepath.Base(h.Path), h.Page))
	}
	for _, id := range r.EntryIDs {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
		for _, p := range pages[id] {
			if _, err := fmt.Fprintln(w, "  "+p); err != nil {
				return err
			}
		}
	}
	return nil
}

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Tree  string
	flags searchFlags
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the indexes",
		Long: `Run an index query string, or a parse tree given with --tree, against
the structured and full-text indexes. Content matches also list the file
and page they were found on.

Example:
  bibsearch search 'title:war AND NOT author:tolstoy'
  bibsearch search 'content:"neural networks"'
  bibsearch search --tree query.yaml --fulltext`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, cmd)
			if err != nil {
				return err
			}
			return runSearch(e, opts, args, cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.Tree, "tree", "t", "", "parse tree document to translate and run")
	opts.flags.register(cmd)
	return cmd
}

func runSearch(e *env, opts *SearchOptions, args []string, cmd *cobra.Command) error {
	qf := opts.flags.resolve(e.cfg.Flags())

	var q string
	switch {
	case opts.Tree != "" && len(args) > 0:
		return e.formatter.Fail(NewExitError(ExitCommandError, ErrCodeQuery, "give either a query or --tree, not both"))
	case opts.Tree != "":
		tree, err := readTree(opts.Tree, cmd.InOrStdin())
		if err != nil {
			return e.formatter.Fail(err)
		}
		q = indexquery.Translate(tree, qf)
		e.formatter.VerboseLog("Translated query: %s", q)
	case len(args) > 0:
		q = args[0]
	}

	svc, err := e.open(cmd.Context(), nil)
	if err != nil {
		return e.formatter.Fail(err)
	}
	defer svc.Close()

	res, err := svc.engine(qf).Search(cmd.Context(), q)
	if err != nil {
		var pe *iql.ParseError
		if errors.As(err, &pe) {
			return e.formatter.Fail(&ExitError{
				Code:    ExitCommandError,
				ErrCode: ErrCodeQuery,
				Message: "malformed query",
				Err:     err,
			})
		}
		return e.formatter.Fail(WrapExitError(ExitFailure, ErrCodeSearch, "search failed", err))
	}
	if res.EntryIDs == nil {
		res.EntryIDs = []string{}
	}
	return e.formatter.Success(SearchResult{Query: q, Result: res})
}
