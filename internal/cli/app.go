package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/bibsearch/internal/cache"
	"github.com/roach88/bibsearch/internal/config"
	"github.com/roach88/bibsearch/internal/index/fields"
	"github.com/roach88/bibsearch/internal/index/fulltext"
	"github.com/roach88/bibsearch/internal/indexing"
	"github.com/roach88/bibsearch/internal/library"
	"github.com/roach88/bibsearch/internal/logging"
	"github.com/roach88/bibsearch/internal/metrics"
	"github.com/roach88/bibsearch/internal/query"
	"github.com/roach88/bibsearch/internal/query/syntax"
	"github.com/roach88/bibsearch/internal/search"
)

// env is what every command starts from: the formatter, the loaded config
// and the logger installed from it.
type env struct {
	opts      *RootOptions
	formatter *OutputFormatter
	cfg       *config.Config
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// setup loads the config and installs the logger. Logs go to stderr.
func setup(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	formatter := newFormatter(opts, cmd)
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, formatter.Fail(WrapExitError(ExitCommandError, ErrCodeConfig, "failed to load config", err))
	}
	if opts.Library != "" {
		cfg.Library.Path = opts.Library
	}

	level := cfg.Logging.Level
	if opts.Verbose {
		level = "debug"
	}
	logging.Setup(level, cfg.Logging.Format, cmd.ErrOrStderr())
	return &env{opts: opts, formatter: formatter, cfg: cfg}, nil
}

// loadLibrary reads the library file and merges the config's library
// settings into it. Config file directories are tried first.
func (e *env) loadLibrary() (*library.Library, error) {
	lib, err := library.Load(e.cfg.Library.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeLibrary, "failed to load library", err)
	}
	if lib.Name == "" {
		lib.Name = e.cfg.Library.Name
	}
	lib.FileDirs = append(append([]string(nil), e.cfg.Library.FileDirs...), lib.FileDirs...)
	if lib.KeywordSeparator == library.DefaultKeywordSeparator && e.cfg.Library.KeywordSeparator != "" {
		lib.KeywordSeparator = e.cfg.Library.KeywordSeparator
	}
	e.formatter.VerboseLog("Loaded library %q with %d entries", lib.Name, len(lib.Entries))
	return lib, nil
}

// openStore opens the configured structured index backend.
func (e *env) openStore(ctx context.Context) (*fields.Store, error) {
	var (
		store *fields.Store
		err   error
	)
	switch e.cfg.Store.Driver {
	case "postgres":
		store, err = fields.OpenPostgres(ctx, e.cfg.Store.DSN)
	default:
		store, err = fields.Open(e.cfg.Store.Path)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeStore, "failed to open structured index", err)
	}
	return store, nil
}

// openCache connects to Redis when the cache is enabled, scoped to the
// named library. It returns nil otherwise.
func (e *env) openCache(ctx context.Context, library string) (*cache.RedisCache, error) {
	if !e.cfg.Cache.Enabled {
		return nil, nil
	}
	c, err := cache.New(ctx, cache.Options{
		Library:  library,
		Addr:     e.cfg.Cache.Addr,
		Password: e.cfg.Cache.Password,
		DB:       e.cfg.Cache.DB,
		TTL:      e.cfg.CacheTTL(),
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeStore, "failed to connect to cache", err)
	}
	return c, nil
}

// services are the open indexes of one library.
type services struct {
	lib     *library.Library
	manager *indexing.Manager
	cache   *cache.RedisCache
	metrics *metrics.Metrics
}

func (s *services) Close() error {
	err := s.manager.Close()
	if s.cache != nil {
		if cerr := s.cache.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// engine returns a search engine with the given flags, cached when the
// cache is enabled.
func (s *services) engine(flags query.Flags) *search.Engine {
	opts := []search.Option{search.WithFlags(flags), search.WithMetrics(s.metrics)}
	if s.cache != nil {
		opts = append(opts, search.WithCache(s.cache, s.lib.Name, s.manager.Generation))
	}
	return s.manager.Engine(opts...)
}

// open loads the library and opens both indexes under a manager. A
// disabled full-text index is cleared.
func (e *env) open(ctx context.Context, m *metrics.Metrics) (*services, error) {
	lib, err := e.loadLibrary()
	if err != nil {
		return nil, err
	}
	store, err := e.openStore(ctx)
	if err != nil {
		return nil, err
	}
	fx := fields.NewIndexer(store,
		fields.WithKeywordSeparator(lib.KeywordSeparator),
		fields.WithMetrics(m),
	)

	ft, err := fulltext.Open(e.cfg.Fulltext.Dir, nil,
		fulltext.WithFileDirs(lib.FileDirs...),
		fulltext.WithConcurrency(e.cfg.Fulltext.Concurrency),
		fulltext.WithMetrics(m),
	)
	if err != nil {
		fx.Close()
		return nil, WrapExitError(ExitCommandError, ErrCodeStore, "failed to open full-text index", err)
	}

	c, err := e.openCache(ctx, lib.Name)
	if err != nil {
		fx.Close()
		ft.Close()
		return nil, err
	}

	opts := []indexing.Option{indexing.WithFulltext(ft)}
	if c != nil {
		opts = append(opts, indexing.WithInvalidator(c))
	}
	mgr := indexing.NewManager(lib, fx, opts...)
	svc := &services{lib: lib, manager: mgr, cache: c, metrics: m}

	if !e.cfg.Fulltext.Enabled {
		if err := mgr.SetFulltextEnabled(ctx, false, nil); err != nil {
			svc.Close()
			return nil, WrapExitError(ExitFailure, ErrCodeIndex, "failed to clear full-text index", err)
		}
	}
	return svc, nil
}

// searchFlags are the per-command overrides of the configured search
// switches.
type searchFlags struct {
	caseSensitive bool
	regex         bool
	fulltext      bool
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.caseSensitive, "case-sensitive", false, "case-sensitive comparisons")
	cmd.Flags().BoolVar(&f.regex, "regex", false, "treat unfielded terms as regular expressions")
	cmd.Flags().BoolVar(&f.fulltext, "fulltext", false, "let unfielded terms search linked-file text")
}

// resolve adds the switches set on the command line to the configured
// defaults.
func (f *searchFlags) resolve(base query.Flags) query.Flags {
	if f.caseSensitive {
		base |= query.CaseSensitive
	}
	if f.regex {
		base |= query.RegularExpression
	}
	if f.fulltext {
		base |= query.Fulltext
	}
	return base
}

// readTree decodes a parse tree document from path, or stdin for "-".
func readTree(path string, stdin io.Reader) (syntax.Node, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeParseTree, "failed to read parse tree", err)
	}
	tree, err := syntax.DecodeYAML(data)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeParseTree, "invalid parse tree", err)
	}
	return tree, nil
}
