package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/bibsearch/internal/index"
	"github.com/roach88/bibsearch/internal/indexing"
)

// Failure is a non-fatal per-file indexing failure.
type Failure struct {
	Item  string `json:"item"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// progressReporter logs progress in verbose mode and collects failures.
type progressReporter struct {
	formatter *OutputFormatter

	mu       sync.Mutex
	failures []Failure
}

func (p *progressReporter) Update(done, total int, message string) {
	p.formatter.VerboseLog("[%d/%d] %s", done, total, message)
}

func (p *progressReporter) Failed(item string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, Failure{Item: item, Code: string(index.CodeOf(err)), Error: err.Error()})
}

func (p *progressReporter) Failures() []Failure {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Failure(nil), p.failures...)
}

// IndexResult is the output of index.
type IndexResult struct {
	Rebuilt  bool                  `json:"rebuilt"`
	Changes  *indexing.UpdateStats `json:"changes,omitempty"`
	Stats    indexing.Stats        `json:"stats"`
	Failures []Failure             `json:"failures,omitempty"`
}

func (r IndexResult) WriteText(w io.Writer) error {
	if r.Rebuilt {
		fmt.Fprintln(w, "Index rebuilt.")
	} else if c := r.Changes; c != nil {
		fmt.Fprintf(w, "Index updated: %d added, %d changed, %d removed, %d unchanged.\n",
			c.Added, c.Changed, c.Removed, c.Unchanged)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  skipped %s (%s)\n", f.Item, f.Code)
	}
	return writeStats(w, r.Stats)
}

// StatsResult is the output of stats.
type StatsResult struct {
	indexing.Stats
}

func (r StatsResult) WriteText(w io.Writer) error {
	return writeStats(w, r.Stats)
}

func writeStats(w io.Writer, s indexing.Stats) error {
	fulltext := "disabled"
	if s.Fulltext {
		fulltext = fmt.Sprintf("%d page documents", s.Documents)
	}
	_, err := fmt.Fprintf(w, "Library %s: %d entries (%d field rows), full-text %s.\n",
		s.Library, s.Entries, s.Rows, fulltext)
	return err
}

// IndexOptions holds flags for the index command.
type IndexOptions struct {
	*RootOptions
	Rebuild bool
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Bring the indexes up to date with the library",
		Long: `Update the structured and full-text indexes from the library file.

Entries no longer in the library are removed, new and changed entries are
re-indexed, and only new or modified PDF files are extracted. With
--rebuild both indexes are cleared and everything is indexed again.

Files that cannot be found or extracted are reported and skipped.

Example:
  bibsearch index --library refs.yaml
  bibsearch index --rebuild -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, cmd)
			if err != nil {
				return err
			}
			return runIndex(e, opts, cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.Rebuild, "rebuild", false, "clear both indexes and index everything again")
	return cmd
}

func runIndex(e *env, opts *IndexOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	svc, err := e.open(ctx, nil)
	if err != nil {
		return e.formatter.Fail(err)
	}
	defer svc.Close()

	progress := &progressReporter{formatter: e.formatter}
	res := IndexResult{Rebuilt: opts.Rebuild}
	if opts.Rebuild {
		err = svc.manager.Rebuild(ctx, progress)
	} else {
		var changes indexing.UpdateStats
		changes, err = svc.manager.Update(ctx, progress)
		res.Changes = &changes
	}
	if err != nil {
		return e.formatter.Fail(WrapExitError(ExitFailure, ErrCodeIndex, "indexing failed", err))
	}

	res.Failures = progress.Failures()
	if res.Stats, err = svc.manager.Stats(ctx); err != nil {
		return e.formatter.Fail(WrapExitError(ExitFailure, ErrCodeIndex, "failed to read index stats", err))
	}
	return e.formatter.Success(res)
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry from both indexes",
		Long: `Empty the structured and full-text indexes. The library file is not
changed; run "index" to fill them again.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, cmd)
			if err != nil {
				return err
			}
			svc, err := e.open(cmd.Context(), nil)
			if err != nil {
				return e.formatter.Fail(err)
			}
			defer svc.Close()

			if err := svc.manager.Clear(cmd.Context()); err != nil {
				return e.formatter.Fail(WrapExitError(ExitFailure, ErrCodeIndex, "failed to clear indexes", err))
			}
			return e.formatter.Success("Indexes cleared.")
		},
	}
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Show what the indexes hold",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, cmd)
			if err != nil {
				return err
			}
			svc, err := e.open(cmd.Context(), nil)
			if err != nil {
				return e.formatter.Fail(err)
			}
			defer svc.Close()

			st, err := svc.manager.Stats(cmd.Context())
			if err != nil {
				return e.formatter.Fail(WrapExitError(ExitFailure, ErrCodeIndex, "failed to read index stats", err))
			}
			return e.formatter.Success(StatsResult{Stats: st})
		},
	}
}
