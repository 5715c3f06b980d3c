package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/studiowebux/execbench/internal/catalog"
	"github.com/studiowebux/execbench/internal/cli"
	"github.com/studiowebux/execbench/internal/config"
	"github.com/studiowebux/execbench/internal/report"
	"github.com/studiowebux/execbench/internal/stresstest"
	"github.com/studiowebux/execbench/internal/stub"
	"github.com/studiowebux/execbench/internal/types"
)

var (
	version = "0.1.0"
)

const progressInterval = 10 * time.Second

// exitError carries a non-zero exit code without an error message
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "execbench",
	Short: "Load generator for code execution services",
	Long: `execbench drives virtual users against POST {BASE_URL}/execute,
checking that every submitted program prints its expected output.

Examples:
  execbench run                               # coverage preset against http://0.0.0.0:3000
  execbench run --preset random --vus 50      # one random case per iteration
  BASE_URL=http://exec:8080 execbench run -l python -l java
  execbench stub --shape single-channel       # local target for trying things out
  execbench runs list                         # stored run history`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test against the execute endpoint",
	Long: `Run N virtual users for a fixed duration.

Settings are layered: defaults, --preset, --config file, environment
(BASE_URL, EXECBENCH_*), then flags. The exit status is 2 when any
check failed and 1 on configuration or runtime errors.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags(), os.LookupEnv)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		code, err := cli.Run(ctx, cfg, cli.RunOptions{
			Out:       cmd.OutOrStdout(),
			Log:       cmd.ErrOrStderr(),
			UserAgent: "execbench/" + version,
			Progress:  progressInterval,
		})
		if err != nil {
			return err
		}
		if code != cli.ExitOK {
			return &exitError{code: code}
		}
		return nil
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and export test case catalogs",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the cases of a catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}
		return cli.PrintCatalog(cmd.OutOrStdout(), cat, flagOutput)
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one case with its program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}
		tc, ok := cat.Get(args[0])
		if !ok {
			return fmt.Errorf("no case named %q (see 'execbench catalog list')", args[0])
		}
		return cli.ShowCase(cmd.OutOrStdout(), tc, flagOutput)
	},
}

var catalogExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write a catalog to a .yaml or .json file",
	Long: `Write a catalog to a file. Starting from the built-in catalog is the
easiest way to author a new one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}
		if err := catalog.Save(cat, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d cases to %s\n", cat.Len(), args[0])
		return nil
	},
}

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Serve a conforming execute endpoint for local runs",
	Long: `Serve POST /execute answering every catalog program with its expected
output. Failures can be injected with --status, --delay and --fail-ratio.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := report.ConfigureLogging(cmd.ErrOrStderr(), "console", stubFlags.logLevel); err != nil {
			return err
		}

		cfg := stub.DefaultConfig()
		if stubFlags.config != "" {
			loaded, err := stub.LoadConfig(stubFlags.config)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		applyStubFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		cat := catalog.Default()
		if cfg.Catalog != "" {
			loaded, err := catalog.Load(cfg.Catalog)
			if err != nil {
				return err
			}
			cat = loaded
		}

		server := stub.NewServer(cfg, cat)
		if err := server.Start(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		for {
			select {
			case entry := <-server.NotifyChannel():
				log.Debug().
					Str("request_id", entry.RequestID).
					Str("language", entry.Language).
					Str("matched", entry.Matched).
					Bool("injected", entry.Injected).
					Int("status", entry.Status).
					Dur("duration", entry.Duration).
					Msg("execute")
			case <-ctx.Done():
				injected := 0
				for _, entry := range server.GetLogs() {
					if entry.Injected {
						injected++
					}
				}
				log.Info().Interface("counts", server.Counts()).Int("injected_recent", injected).Msg("stub server stopping")
				return server.Stop()
			}
		}
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Browse stored load runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(m *stresstest.Manager) error {
			runs, err := m.ListRuns(flagLimit)
			if err != nil {
				return err
			}
			return cli.PrintRuns(cmd.OutOrStdout(), runs, flagOutput)
		})
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored run with its failure breakdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRunID(args[0])
		if err != nil {
			return err
		}
		return withManager(func(m *stresstest.Manager) error {
			run, err := m.GetRun(id)
			if err != nil {
				return err
			}
			failures, err := m.FailureCounts(id)
			if err != nil {
				return err
			}
			return cli.PrintRun(cmd.OutOrStdout(), run, failures, flagOutput)
		})
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored run and its metrics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRunID(args[0])
		if err != nil {
			return err
		}
		return withManager(func(m *stresstest.Manager) error {
			if err := m.DeleteRun(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted run %d\n", id)
			return nil
		})
	},
}

// Flags shared by the catalog and runs commands
var (
	flagOutput  string
	flagCatalog string
	flagDB      string
	flagLimit   int
)

// Flags for stub
var stubFlags struct {
	config    string
	host      string
	port      int
	shape     string
	status    int
	delay     time.Duration
	failRatio float64
	seed      int64
	catalog   string
	logLevel  string
}

func init() {
	config.RegisterFlags(runCmd.Flags())

	catalogCmd.PersistentFlags().StringVar(&flagCatalog, "catalog", "", "Catalog file (.yaml/.json/.jsonc); built-in fib catalog when empty")
	catalogCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "Output format (text/json/yaml)")
	catalogCmd.AddCommand(catalogListCmd, catalogShowCmd, catalogExportCmd)

	stubCmd.Flags().StringVarP(&stubFlags.config, "config", "c", "", "Stub config file (.yaml/.json)")
	stubCmd.Flags().StringVar(&stubFlags.host, "host", "0.0.0.0", "Host to bind")
	stubCmd.Flags().IntVarP(&stubFlags.port, "port", "p", 3000, "Port to listen on")
	stubCmd.Flags().StringVar(&stubFlags.shape, "shape", string(types.ResponseDualChannel), "Response shape (dual-channel/single-channel)")
	stubCmd.Flags().IntVar(&stubFlags.status, "status", 0, "Answer every request with this HTTP status")
	stubCmd.Flags().DurationVar(&stubFlags.delay, "delay", 0, "Delay before answering /execute")
	stubCmd.Flags().Float64Var(&stubFlags.failRatio, "fail-ratio", 0, "Share of requests answered with a wrong program output (0-1)")
	stubCmd.Flags().Int64Var(&stubFlags.seed, "seed", 0, "Seed for failure injection")
	stubCmd.Flags().StringVar(&stubFlags.catalog, "catalog", "", "Catalog file; built-in fib catalog when empty")
	stubCmd.Flags().StringVar(&stubFlags.logLevel, "log-level", "info", "Log level; debug logs every request")

	runsCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database (default ~/.execbench/execbench.db)")
	runsCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "Output format (text/json/yaml)")
	runsListCmd.Flags().IntVarP(&flagLimit, "limit", "n", 20, "Maximum number of runs to list")
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsDeleteCmd)

	rootCmd.AddCommand(runCmd, catalogCmd, stubCmd, runsCmd)
}

// applyStubFlags overrides cfg with the stub flags the user set
func applyStubFlags(cmd *cobra.Command, cfg *stub.Config) {
	fs := cmd.Flags()
	if fs.Changed("host") {
		cfg.Host = stubFlags.host
	}
	if fs.Changed("port") {
		cfg.Port = stubFlags.port
	}
	if fs.Changed("shape") {
		cfg.Shape = types.ResponseShape(stubFlags.shape)
	}
	if fs.Changed("status") {
		cfg.Status = stubFlags.status
	}
	if fs.Changed("delay") {
		cfg.Delay = stubFlags.delay
	}
	if fs.Changed("fail-ratio") {
		cfg.FailRatio = stubFlags.failRatio
	}
	if fs.Changed("seed") {
		cfg.Seed = stubFlags.seed
	}
	if fs.Changed("catalog") {
		cfg.Catalog = stubFlags.catalog
	}
}

func loadCatalog() (*catalog.Catalog, error) {
	if flagCatalog == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(flagCatalog)
}

// withManager opens the run store for the duration of fn
func withManager(fn func(m *stresstest.Manager) error) error {
	path, err := config.ResolveDatabasePath(flagDB)
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	m, err := stresstest.NewManager(path)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func parseRunID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run id %q", s)
	}
	return id, nil
}
