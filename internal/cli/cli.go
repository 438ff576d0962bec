// Package cli implements the prims command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noface-00/prims/internal/analysis"
	"github.com/noface-00/prims/internal/api"
	"github.com/noface-00/prims/internal/config"
	"github.com/noface-00/prims/internal/logging"
	"github.com/noface-00/prims/internal/model"
	"github.com/noface-00/prims/internal/progress"
	"github.com/noface-00/prims/internal/report"
	"github.com/noface-00/prims/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

// CLI encapsulates the command-line interface
type CLI struct {
	rootCmd *cobra.Command

	configPath string
	logLevel   string
	pretty     bool

	cfg *config.Config
	log zerolog.Logger

	// build is swapped in tests
	build func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error)
}

func New() *CLI {
	c := &CLI{build: Build, log: zerolog.Nop()}
	c.buildCommands()
	return c
}

// Execute runs the CLI
func (c *CLI) Execute() error {
	return c.rootCmd.Execute()
}

func (c *CLI) buildCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "prims",
		Short: "Market analysis for marketplace listings",
		Long: `prims compares a listing's price with comparable listings, scores the
seller's trustworthiness and tracks the product's price trend.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	flags := c.rootCmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&c.pretty, "pretty", false, "human readable logs")

	c.rootCmd.AddCommand(
		c.analyzeCmd(),
		c.latestCmd(),
		c.statsCmd(),
		c.similarCmd(),
		c.trackCmd(),
		c.exportCmd(),
		c.watchCmd(),
		c.serveCmd(),
	)
}

func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.pretty {
		cfg.Log.Pretty = true
	}

	c.cfg = cfg
	c.log = logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: cmd.ErrOrStderr()})
	return nil
}

// withApp builds the app for one command and closes it afterwards.
func (c *CLI) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := c.build(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			c.log.Warn().Err(err).Msg("closing resources")
		}
	}()
	return fn(ctx, app)
}

func (c *CLI) analyzeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <product-id>...",
		Short: "Run a fresh analysis of one or more products",
		Example: `  prims analyze v1|256123456789|0
  prims analyze 256123456789 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *App) error {
				if len(args) == 1 {
					snap, err := app.Service.Analyze(ctx, args[0])
					if err != nil {
						return err
					}
					if asJSON {
						return writeJSON(cmd.OutOrStdout(), []*model.Snapshot{snap})
					}
					printSnapshot(cmd.OutOrStdout(), snap)
					return nil
				}

				// batches keep going past failures and report them together
				bar := progress.New(cmd.ErrOrStderr(), "Analizando", len(args))
				var (
					snaps []*model.Snapshot
					errs  []error
				)
				for _, id := range args {
					snap, err := app.Service.Analyze(ctx, id)
					bar.Step(id, err)
					if err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", id, err))
						continue
					}
					snaps = append(snaps, snap)
				}
				bar.Finish()

				if asJSON {
					if err := writeJSON(cmd.OutOrStdout(), snaps); err != nil {
						return err
					}
				} else {
					for _, snap := range snaps {
						printSnapshot(cmd.OutOrStdout(), snap)
					}
				}
				return errors.Join(errs...)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func (c *CLI) latestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest <product-id>",
		Short: "Show the stored analysis of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *App) error {
				snap, err := app.Service.Latest(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), snap)
			})
		},
	}
}

func (c *CLI) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show totals over all stored analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *App) error {
				gs, err := app.Service.GeneralStats(ctx)
				if err != nil {
					return err
				}
				printStats(cmd.OutOrStdout(), gs)
				return nil
			})
		},
	}
}

func (c *CLI) similarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "similar <product name>",
		Short: "List the cheapest and most expensive comparable listings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *App) error {
				res, err := app.Service.SimilarListings(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				printSimilar(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

func (c *CLI) trackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track <product-id>...",
		Short: "Save products, their sellers and images from the marketplace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *App) error {
				for _, id := range args {
					p, err := app.Catalog.Track(ctx, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "tracked %s  %s\n", p.ItemID, p.Name)
				}
				return nil
			})
		},
	}
}

func (c *CLI) exportCmd() *cobra.Command {
	var (
		format string
		out    string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recent analyses to CSV or XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
			}
			if format != "csv" && format != "xlsx" {
				return &model.ValidationError{Field: "format", Message: "must be csv or xlsx"}
			}

			return c.withApp(cmd, func(ctx context.Context, app *App) error {
				snaps, err := app.Recent.Recent(ctx, limit)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if out != "" && out != "-" {
					f, err := os.Create(out)
					if err != nil {
						return fmt.Errorf("creating %s: %w", out, err)
					}
					defer f.Close()
					w = f
				}

				if format == "xlsx" {
					err = report.WriteXLSX(w, snaps)
				} else {
					err = report.WriteCSV(w, snaps)
				}
				if err != nil {
					return err
				}
				c.log.Info().Int("rows", len(snaps)).Str("format", format).Str("out", out).Msg("export complete")
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "csv or xlsx, guessed from --out when empty")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, stdout when empty")
	cmd.Flags().IntVar(&limit, "limit", 100, "number of recent analyses")
	return cmd
}

func (c *CLI) watchCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch [product-id...]",
		Short: "Re-analyze products on a schedule and report changes",
		Long: `Re-analyzes the given products, plus scheduler.products from the config,
on scheduler.spec and logs price and alert changes between runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *App) error {
				w, err := newWatcher(app, args)
				if err != nil {
					return err
				}
				if once {
					printChanges(cmd.OutOrStdout(), w.RunOnce(ctx))
					return nil
				}
				if err := w.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()

				stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				w.Stop(stopCtx)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")
	return cmd
}

func (c *CLI) serveCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *App) error {
				if watch {
					w, err := newWatcher(app, nil)
					if err != nil {
						return err
					}
					if err := w.Start(ctx); err != nil {
						return err
					}
					defer func() {
						stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
						defer cancel()
						w.Stop(stopCtx)
					}()
				}

				srv := &http.Server{
					Addr:         app.Config.Server.Addr,
					Handler:      api.NewRouter(app.Service, app.Recent, app.Metrics.Handler(), app.Log),
					ReadTimeout:  app.Config.Server.ReadTimeout,
					WriteTimeout: app.Config.Server.WriteTimeout,
				}

				errCh := make(chan error, 1)
				go func() {
					app.Log.Info().Str("addr", srv.Addr).Msg("listening")
					errCh <- srv.ListenAndServe()
				}()

				select {
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return err
				case <-ctx.Done():
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				app.Log.Info().Msg("shutting down")
				return srv.Shutdown(shutdownCtx)
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "also run the watch schedule")
	return cmd
}

func newWatcher(app *App, extra []string) (*scheduler.Watcher, error) {
	sc := app.Config.Scheduler
	products := append(append([]string(nil), sc.Products...), extra...)
	if len(products) == 0 {
		return nil, &model.ValidationError{Field: "products", Message: "nothing to watch"}
	}
	return scheduler.NewWatcher(app.Service, scheduler.Config{
		Spec:         sc.Spec,
		SweepSpec:    sc.SweepSpec,
		Products:     products,
		ThresholdPct: sc.ThresholdPct,
		ThresholdUSD: sc.ThresholdUSD,
		SnapshotDir:  sc.SnapshotDir,
	}, app.Log, app.Sweepers...)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSnapshot(w io.Writer, s *model.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Producto\t%s\t%s\n", s.ProductID, s.ProductName)
	fmt.Fprintf(tw, "Precio actual\t$%.2f\t(%+.2f vs mercado)\n", s.PriceActual, s.PriceDifference)
	fmt.Fprintf(tw, "Mercado\t$%.2f\tmin $%.2f  max $%.2f  n=%d\n", s.Stats.Mean, s.Stats.Min, s.Stats.Max, s.Stats.SampleSize)
	fmt.Fprintf(tw, "Estabilidad\t%s\tconfianza %s\n", s.Stats.Stability, s.Stats.Confidence)
	fmt.Fprintf(tw, "Alerta\t%s\t%s\n", s.Alert.Alert, s.Alert.Message)
	fmt.Fprintf(tw, "Confianza vendedor\t%.1f\t%s\n", s.TrustScore, s.AccountAge)
	fmt.Fprintf(tw, "Tendencia\t%s\t%+.2f%%  volatilidad %s\n", s.Trend.Trend, s.Trend.PercentChange, s.Trend.VolatilityLabel)
	if s.Degraded {
		fmt.Fprintf(tw, "Incompleto\t%s\t\n", strings.Join(s.Failures, ", "))
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printStats(w io.Writer, gs model.GeneralStats) {
	fmt.Fprintf(w, "Total analizados: %d\n", gs.TotalAnalyzed)
	fmt.Fprintf(w, "Diferencia promedio: %.2f\n", gs.AvgPriceDifference)
	if len(gs.Daily) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FECHA\tANALISIS")
	for _, d := range gs.Daily {
		fmt.Fprintf(tw, "%s\t%d\n", d.Date, d.Count)
	}
	tw.Flush()
}

func printSimilar(w io.Writer, res *analysis.Similar) {
	section := func(title string, items []analysis.SimilarItem) {
		fmt.Fprintln(w, title)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for i, it := range items {
			fmt.Fprintf(tw, "  %d.\t$%.2f\t%s\n", i+1, it.Price, it.Title)
		}
		tw.Flush()
	}
	section("Más baratos:", res.Cheapest)
	section("Más caros:", res.Priciest)
}

func printChanges(w io.Writer, r scheduler.RunReport) {
	fmt.Fprintf(w, "analizados %d, fallidos %d, cambios %d\n", r.Analyzed, r.Failed, len(r.Changes))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, ch := range r.Changes {
		if ch.Field == "alert" {
			fmt.Fprintf(tw, "%s\t%s\t%s -> %s\t%s\n", ch.ProductID, ch.Field, ch.OldAlert, ch.NewAlert, ch.Severity)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f -> %.2f (%+.1f%%)\t%s\n", ch.ProductID, ch.Field, ch.OldValue, ch.NewValue, ch.DeltaPct, ch.Severity)
	}
	tw.Flush()
}
