package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gong-wizard-go/internal/config"
	"gong-wizard-go/internal/dataset"
	perr "gong-wizard-go/internal/errors"
	"gong-wizard-go/internal/gong"
	"gong-wizard-go/internal/logger"
	"gong-wizard-go/internal/pipeline"
	"gong-wizard-go/internal/report"
	"gong-wizard-go/internal/runlog"
	"gong-wizard-go/internal/types"
)

type runFlags struct {
	from     string
	to       string
	products []string
	input    string
	out      string
}

func main() {
	_ = godotenv.Load() // loads .env

	rootCmd := &cobra.Command{
		Use:           "gongwizard",
		Short:         "Filter Gong call transcripts by product and build reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newRunCmd(), newHistoryCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, classify and report calls for a date range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.from, "from", "", "first day, YYYY-MM-DD (inclusive)")
	cmd.Flags().StringVar(&f.to, "to", "", "last day, YYYY-MM-DD (inclusive)")
	cmd.Flags().StringSliceVarP(&f.products, "product", "p", nil, "product tag to select; repeat or comma separate")
	cmd.Flags().StringVar(&f.input, "input", "", "replay a transcript export (.json) or call workbook (.xlsx) instead of the API")
	cmd.Flags().StringVar(&f.out, "out", "", "output directory (default from config)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the run ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := runlog.Open(cfg.RunlogPath)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer store.Close()
			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(cmd, runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func runReport(ctx context.Context, f runFlags) error {
	log := logger.New()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	filter, err := cfg.BuildFilter(f.from, f.to, f.products)
	if err != nil {
		return err
	}

	var (
		fetcher pipeline.Fetcher
		source  string
	)
	if f.input != "" {
		src, err := dataset.Load(f.input, cfg.Catalog(), log)
		if err != nil {
			return err
		}
		fetcher, source = src, f.input
	} else {
		if err := cfg.RequireCredentials(); err != nil {
			return err
		}
		fetcher, source = gong.New(cfg.Gong(), cfg.Catalog(), log), "gong"
	}

	store, err := runlog.Open(cfg.RunlogPath)
	if err != nil {
		log.WithError(err).Warn("run ledger disabled")
		store = nil
	} else {
		defer store.Close()
	}

	res, runErr := pipeline.Run(ctx, pipeline.Options{
		Filter:  filter,
		Fetcher: fetcher,
		Source:  source,
		Builder: report.NewBuilder(log),
		RunLog:  store,
		Logger:  log,
		Timeout: cfg.RunTimeout(),
	})
	if res == nil || res.Report == nil {
		return runErr
	}

	outDir := f.out
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	written, err := writeReport(outDir, res.Report)
	if err != nil {
		return err
	}
	log.WithRun(res.RunID).WithField("dir", outDir).WithField("files", len(written)).Info("artifacts written")
	for _, fl := range res.Report.Failures {
		log.WithRun(res.RunID).WithError(fl.Err).WithField("artifact", fl.Artifact).Warn("artifact missing from report")
	}

	fmt.Printf("run %s: %s\n", res.RunID, res.Status)
	fmt.Printf("calls: %d/%d included (%.1f%%)\n", res.Calls.Included, res.Calls.Total, res.Calls.Percent())
	fmt.Printf("utterances: %d/%d included (%.1f%%)\n", res.Utterances.Included, res.Utterances.Total, res.Utterances.Percent())
	if runErr != nil && perr.IsCode(runErr, perr.CodePartialFetch) {
		return fmt.Errorf("incomplete run, only fetch stats were written: %w", runErr)
	}
	return runErr
}

// writeReport writes summary artifacts into dir and each product bucket into
// a sub-directory named after the product.
func writeReport(dir string, rep *report.Report) ([]string, error) {
	var written []string
	for _, a := range rep.Artifacts {
		target := dir
		if a.Group != report.SummaryGroup {
			target = filepath.Join(dir, types.Slug(a.Group))
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return written, err
		}
		path := filepath.Join(target, a.Filename)
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func printRuns(cmd *cobra.Command, runs []runlog.Run) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tRANGE\tSTATUS\tCALLS\tUTTERANCES\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s..%s\t%s\t%d/%d\t%d/%d\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04"), r.From, r.To, r.Status,
			r.IncludedCalls, r.TotalCalls, r.IncludedUtterances, r.TotalUtterances, r.Source)
	}
	_ = w.Flush()
}
