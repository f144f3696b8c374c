package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/bibsearch/internal/events"
	"github.com/roach88/bibsearch/internal/index"
	"github.com/roach88/bibsearch/internal/metrics"
	"github.com/roach88/bibsearch/internal/watch"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep the indexes up to date in the background",
		Long: `Update the indexes once, then keep them in step with the library:

  - library change events are consumed from Kafka (events.enabled)
  - PDF files written or removed under the file directories are
    re-indexed (watch.enabled)
  - Prometheus metrics are served on /metrics (metrics.enabled)

Stops on SIGINT or SIGTERM.

Example:
  bibsearch serve --config bibsearch.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, cmd)
			if err != nil {
				return err
			}
			return runServe(e, cmd)
		},
	}
	return cmd
}

func runServe(e *env, cmd *cobra.Command) error {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	svc, err := e.open(ctx, m)
	if err != nil {
		return e.formatter.Fail(err)
	}
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			slog.Error("error closing indexes", "error", closeErr)
		}
	}()

	if e.cfg.Metrics.Enabled {
		shutdown := m.StartServer(e.cfg.Metrics.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	stats, err := svc.manager.Update(ctx, index.LogProgress{Logger: slog.Default().With("component", "serve")})
	if err != nil {
		return e.formatter.Fail(WrapExitError(ExitFailure, ErrCodeIndex, "initial update failed", err))
	}
	slog.Info("indexes up to date",
		"library", svc.lib.Name, "added", stats.Added, "changed", stats.Changed, "removed", stats.Removed)

	g, gctx := errgroup.WithContext(ctx)

	if e.cfg.Events.Enabled {
		consumer, err := events.NewConsumer(events.Config{
			Brokers: e.cfg.Events.Brokers,
			Topic:   e.cfg.Events.Topic,
			GroupID: e.cfg.Events.Group,
		}, svc.manager, events.WithMetrics(m))
		if err != nil {
			return e.formatter.Fail(WrapExitError(ExitCommandError, ErrCodeConfig, "invalid events config", err))
		}
		defer consumer.Close()
		g.Go(func() error { return consumer.Run(gctx) })
	}

	if e.cfg.Watch.Enabled {
		w := watch.New(svc.manager.FileDirs(), svc.manager, watch.WithDebounce(e.cfg.WatchDebounce()))
		g.Go(func() error { return w.Run(gctx) })
	}

	fmt.Fprintf(e.formatter.GetErrWriter(), "Serving library %q. Press Ctrl-C to stop.\n", svc.lib.Name)

	if err := g.Wait(); err != nil {
		return e.formatter.Fail(WrapExitError(ExitFailure, ErrCodeGeneric, "serve failed", err))
	}
	<-ctx.Done()
	slog.Info("serve stopped gracefully")
	return nil
}
