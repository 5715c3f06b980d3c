package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/studiowebux/execbench/internal/catalog"
	"github.com/studiowebux/execbench/internal/config"
	"github.com/studiowebux/execbench/internal/metrics"
	"github.com/studiowebux/execbench/internal/report"
	"github.com/studiowebux/execbench/internal/stresstest"
)

// Exit codes returned by Run
const (
	ExitOK       = 0
	ExitError    = 1
	ExitFailures = 2
)

// RunOptions contains the writers and identity for a load run
type RunOptions struct {
	Out       io.Writer // summary
	Log       io.Writer // structured failure records and progress
	UserAgent string
	Progress  time.Duration // interval between progress records, 0 disables them
}

// LoadCatalog returns the configured catalog narrowed to the configured languages
func LoadCatalog(cfg *config.RunConfig) (*catalog.Catalog, error) {
	cat := catalog.Default()
	if cfg.Catalog != "" {
		loaded, err := catalog.Load(cfg.Catalog)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}
	return cat.Filter(cfg.Languages...)
}

// Run executes one load run and prints its summary.
// The exit code is ExitFailures when any check failed.
func Run(ctx context.Context, cfg *config.RunConfig, opts RunOptions) (int, error) {
	if err := report.ConfigureLogging(opts.Log, cfg.LogFormat, cfg.LogLevel); err != nil {
		return ExitError, err
	}
	logger := log.Logger

	cat, err := LoadCatalog(cfg)
	if err != nil {
		return ExitError, err
	}

	var manager *stresstest.Manager
	if !cfg.NoStore {
		dbPath, err := config.ResolveDatabasePath(cfg.DB)
		if err != nil {
			return ExitError, err
		}
		manager, err = stresstest.NewManager(dbPath)
		if err != nil {
			return ExitError, fmt.Errorf("failed to open run store: %w", err)
		}
		defer manager.Close()
	}

	m := metrics.New()
	reporter := report.NewLogReporter(logger)

	executor, err := stresstest.NewExecutor(cfg.Executor(opts.UserAgent), stresstest.Deps{
		Catalog:  cat,
		Reporter: reporter,
		Manager:  manager,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		return ExitError, err
	}

	run, err := execute(ctx, executor, m, cfg.MetricsAddr, opts.Progress, logger)
	if run == nil {
		return ExitError, err
	}

	PrintSummary(opts.Out, run, reporter.Summary())

	if err != nil {
		return ExitError, err
	}
	if run.TotalFailed > 0 {
		return ExitFailures, nil
	}
	return ExitOK, nil
}

// execute runs the executor. For its lifetime it serves /metrics on addr when addr is set
// and logs a progress record every interval when interval is positive.
func execute(ctx context.Context, executor *stresstest.Executor, m *metrics.Metrics, addr string, interval time.Duration, logger zerolog.Logger) (*stresstest.Run, error) {
	if err := executor.Start(ctx); err != nil {
		return nil, err
	}

	sideCtx, stopSide := context.WithCancel(ctx)
	var g errgroup.Group
	if addr != "" {
		g.Go(func() error {
			return m.Serve(sideCtx, addr)
		})
	}
	if interval > 0 {
		g.Go(func() error {
			logProgress(sideCtx, executor, interval, logger)
			return nil
		})
	}

	run, err := executor.Wait()
	stopSide()
	if serveErr := g.Wait(); serveErr != nil {
		logger.Warn().Err(serveErr).Str("addr", addr).Msg("metrics endpoint failed")
	}
	return run, err
}

// logProgress logs the live statistics of a run until ctx is done
func logProgress(ctx context.Context, executor *stresstest.Executor, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runID := executor.GetRun().ID
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := executor.GetStats()
			logger.Info().
				Int64("run_id", runID).
				Int("checks", stats.CompletedChecks).
				Int("passed", stats.PassedCount).
				Int("failed", stats.FailedCount).
				Int("active_actors", stats.ActiveActors).
				Int64("p95_ms", stats.P95()).
				Msg("load run progress")
		}
	}
}
