package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/korvaus-labs/korvaus-cli/internal/fetcher"
	"github.com/korvaus-labs/korvaus-cli/internal/pipeline"
	"github.com/korvaus-labs/korvaus-cli/internal/roles"
)

var (
	ingestSource      string
	ingestURL         string
	ingestFile        string
	ingestAll         bool
	ingestDelimiter   string
	ingestEncoding    string
	ingestBadLines    string
	ingestProviderCol string
	ingestYearCol     string
	ingestAmountCol   string
	ingestPreview     int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch, clean, and summarize a reimbursement feed",
	Long: `Runs the full ingestion pipeline for one feed (or all configured feeds)
and prints a summary of the cleaned result.

Examples:
  # A feed from config.yaml
  korvaus-cli ingest --source suorakorvaukset

  # Every configured feed, fetched concurrently
  korvaus-cli ingest --all

  # An ad-hoc URL with manual column mapping
  korvaus-cli ingest --url https://example.fi/feed.csv --year-col vuosi --amount-col korvaus_euroa

  # A locally uploaded file
  korvaus-cli ingest --file ./suorakorvaukset.csv --encoding latin1`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pipe, err := buildPipeline()
		if err != nil {
			return eris.Wrap(err, "ingest: build pipeline")
		}

		if ingestAll {
			return ingestAllSources(ctx, pipe)
		}

		src, opts, err := selectSource(ingestSource, ingestURL, ingestFile,
			ingestDelimiter, ingestEncoding, ingestBadLines)
		if err != nil {
			return err
		}

		res, err := pipe.Run(ctx, src, opts, roleOverrides(ingestProviderCol, ingestYearCol, ingestAmountCol))
		if err != nil {
			return reportRunError(err, res)
		}

		printSummary(res)
		return nil
	},
}

func ingestAllSources(ctx context.Context, pipe *pipeline.Pipeline) error {
	if len(cfg.Sources) == 0 {
		return eris.New("no sources configured")
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	results := make([]*pipeline.Result, len(cfg.Sources))
	for i, sc := range cfg.Sources {
		i, sc := i, sc
		g.Go(func() error {
			src, opts := pipeline.BuildSource(sc)
			res, err := pipe.Run(gCtx, src, opts, nil)
			if err != nil {
				// Report but don't abort the batch on individual feed failure.
				zap.L().Error("ingest failed", zap.String("source", sc.Name), zap.Error(err))
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, res := range results {
		if res != nil {
			printSummary(res)
		}
	}
	return nil
}

// reportRunError renders the two recoverable failure modes with enough detail
// to act on: the fetch diagnostics, or the columns available for mapping.
func reportRunError(err error, res *pipeline.Result) error {
	var ingest *fetcher.IngestError
	if errors.As(err, &ingest) {
		fmt.Fprintln(os.Stderr, "could not load the feed; every strategy failed:")
		for _, a := range ingest.Attempts {
			fmt.Fprintf(os.Stderr, "  %-12s %s\n               %s\n", a.Strategy, a.URL, a.Err)
		}
		fmt.Fprintln(os.Stderr, "retry with --file to supply a local copy")
		return err
	}

	var amb *roles.AmbiguousMappingError
	if errors.As(err, &amb) {
		fmt.Fprintf(os.Stderr, "could not identify columns for: %v\n", amb.MissingRoles)
		fmt.Fprintln(os.Stderr, "available columns:")
		for _, c := range amb.Columns {
			fmt.Fprintf(os.Stderr, "  %s\n", c)
		}
		if res != nil && len(res.Roles) > 0 {
			fmt.Fprintf(os.Stderr, "detected so far: %v\n", res.Roles)
		}
		fmt.Fprintln(os.Stderr, "rerun with --provider-col/--year-col/--amount-col")
		return err
	}

	return err
}

func printSummary(res *pipeline.Result) {
	fmt.Printf("source %s\n", res.Source.Identity())
	fmt.Printf("  roles: provider=%s year=%s amount=%s\n",
		res.Roles[roles.Provider], res.Roles[roles.Year], res.Roles[roles.Amount])
	fmt.Printf("  rows: %d cleaned, %d dropped at coercion, %d skipped at parse\n",
		len(res.Rows), res.DroppedRows, res.SkippedLines)

	if res.ByYear != nil {
		tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  year\ttotal")
		for _, e := range res.ByYear.Entries {
			fmt.Fprintf(tw, "  %d\t%.2f\n", e.Year, e.Amount)
		}
		_ = tw.Flush()
	}

	if ingestPreview > 0 {
		n := min(ingestPreview, len(res.Rows))
		for _, r := range res.Rows[:n] {
			fmt.Printf("  %d  %-40s %12.2f\n", r.Year, r.Provider, r.Amount)
		}
	}
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "configured source name")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "ad-hoc feed URL")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "local feed file")
	ingestCmd.Flags().BoolVar(&ingestAll, "all", false, "ingest every configured source")
	ingestCmd.Flags().StringVar(&ingestDelimiter, "delimiter", "", "field delimiter (default: sniffed, ';' wins ties)")
	ingestCmd.Flags().StringVar(&ingestEncoding, "encoding", "", "source encoding (latin1, windows-1252, utf-8)")
	ingestCmd.Flags().StringVar(&ingestBadLines, "bad-lines", "", "malformed row policy: skip or fail")
	ingestCmd.Flags().StringVar(&ingestProviderCol, "provider-col", "", "column holding the provider")
	ingestCmd.Flags().StringVar(&ingestYearCol, "year-col", "", "column holding the year")
	ingestCmd.Flags().StringVar(&ingestAmountCol, "amount-col", "", "column holding the amount")
	ingestCmd.Flags().IntVar(&ingestPreview, "preview", 0, "print the first N cleaned rows")
	rootCmd.AddCommand(ingestCmd)
}
