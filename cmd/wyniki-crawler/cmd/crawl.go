package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"wyniki-crawler/cmd/wyniki-crawler/globals"
	"wyniki-crawler/cmd/wyniki-crawler/utils"
	"wyniki-crawler/internal/components/chrono"
	"wyniki-crawler/internal/components/telemetry"
	"wyniki-crawler/internal/crawl"
	"wyniki-crawler/internal/manifest"
	"wyniki-crawler/internal/storage"
	"wyniki-crawler/lib/osutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const report_clean_partial = "crawl.clean-partial"

var (
	outputDir    string
	headless     bool
	skipExisting bool
	manifestPath string
)

func init() {
	crawlCmd.Flags().StringVar(&outputDir, "out", "", "output directory, overrides output_dir")
	crawlCmd.Flags().BoolVar(&headless, "headless", false, "run the browser without a window")
	crawlCmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "do not download artifacts whose file already exists")
	crawlCmd.Flags().StringVar(&manifestPath, "manifest", "", "sqlite manifest path, overrides manifest")
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Log in, list every order and download its XML, PDF and CSV files.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		value := globals.Get(cmd.Context())
		cfg := value.Config
		tel := value.Tel

		if outputDir != "" {
			cfg.OutputDir = outputDir
		}
		if headless {
			cfg.Headless = true
		}
		if skipExisting {
			cfg.ExistingFiles = crawl.POLICY_SKIP.String()
		}
		if manifestPath != "" {
			cfg.Manifest = manifestPath
		}

		stop, ctx := osutil.GracefulStop()

		otlp, err := telemetry.Setup(ctx, "wyniki-crawler", cfg.Otlp)
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := otlp.Shutdown(ctx)
			if err != nil {
				slog.Warn("failed to flush telemetry", "err", err)
			}
		}()
		if otlp.MeterProvider != nil {
			metered, err := telemetry.NewMeteredAPI(tel, otlp.MeterProvider.Meter("wyniki-crawler"))
			if err != nil {
				return fmt.Errorf("setup metrics: %w", err)
			}
			tel = metered
			telemetry.InstrumentPerfStats(ctx, 30*time.Second, tel)
		}

		store, err := storage.NewFilesystem(storage.Options{Directory: cfg.OutputDir})
		if err != nil {
			return fmt.Errorf("invalid output directory: %w", err)
		}
		removed, err := store.CleanPartial()
		if err != nil {
			tel.ReportWarning(report_clean_partial, err)
		}
		if removed > 0 {
			slog.Info("removed partial downloads of an earlier run", "count", removed)
		}

		var recorder crawl.Recorder
		if cfg.Manifest != "" {
			m, err := manifest.Open(ctx, cfg.Manifest, chrono.NewStandardTime())
			if err != nil {
				return fmt.Errorf("open manifest: %w", err)
			}
			defer m.Close()
			recorder = m
		}

		chrome, err := openSession(ctx, cfg, tel)
		if err != nil {
			return fmt.Errorf("log in: %w", err)
		}
		defer chrome.Close()

		enumerator, err := crawl.NewEnumerator(chrome, cfg.Enumerator(), tel)
		if err != nil {
			return fmt.Errorf("invalid listing configuration: %w", err)
		}
		acquirer, err := crawl.NewAcquirer(chrome, store, cfg.Acquirer(), tel)
		if err != nil {
			return fmt.Errorf("invalid acquisition configuration: %w", err)
		}

		opts := cfg.Runner()
		opts.OnItem = func(n, total int, report crawl.AcquisitionReport) {
			fmt.Println(itemLine(n, total, report))
		}
		runner := crawl.NewRunner(enumerator, acquirer, recorder, chrono.NewStandardTime(), opts, tel)

		summary, err := runner.Run(ctx, stop)
		renderSummary(summary)
		if err != nil {
			return fmt.Errorf("crawl aborted: %w", err)
		}
		if summary.EnumerationErr != nil {
			slog.Warn("the listing could not be read to its end, some orders were not visited", "err", summary.EnumerationErr)
		}
		if summary.Stopped {
			fmt.Printf("\ncrawl stopped: %d of %d orders processed\n", summary.Processed(), len(summary.Enumeration.Items))
			return nil
		}
		fmt.Printf("\ncrawl completed: %d orders, %d files saved to %s\n", summary.Processed(), summary.Saved, cfg.OutputDir)
		return nil
	},
}

func itemLine(n, total int, report crawl.AcquisitionReport) string {
	if report.Err != nil {
		return fmt.Sprintf("[%d/%d] %s failed: %s", n, total, report.Ref.Url, report.Err)
	}
	line := fmt.Sprintf(
		"[%d/%d] %s saved %d, skipped %d, failed %d",
		n, total,
		report.Identifier.Value,
		report.Saved(),
		report.Skipped(),
		report.Failed(),
	)
	if report.Identifier.Fallback {
		line += " (identifier not found on the page)"
	}
	return line
}

func renderSummary(summary crawl.RunSummary) {
	if len(summary.Reports) > 0 {
		t := utils.NewTable()
		t.AppendHeader(table.Row{"#", "Order", "Saved", "Skipped", "Failed"})
		for i, report := range summary.Reports {
			id := report.Identifier.Value
			if id == "" {
				id = report.Ref.Url
			}
			t.AppendRow(table.Row{i + 1, id, report.Saved(), report.Skipped(), report.Failed()})
		}
		t.AppendFooter(table.Row{"", "total", summary.Saved, summary.Skipped, summary.Failed})
		t.Render()
	}

	var failures []error
	for _, report := range summary.Reports {
		failures = append(failures, report.Errors()...)
	}
	if len(failures) == 0 {
		return
	}
	t := utils.NewTable()
	t.AppendHeader(table.Row{"Failure"})
	for _, err := range failures {
		t.AppendRow(table.Row{err.Error()})
	}
	t.Render()
}
