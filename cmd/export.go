package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/korvaus-labs/korvaus-cli/internal/aggregate"
	"github.com/korvaus-labs/korvaus-cli/internal/pipeline"
)

var (
	exportSource      string
	exportURL         string
	exportFile        string
	exportBy          string
	exportTop         int
	exportOtherLabel  string
	exportFormat      string
	exportOutput      string
	exportProviderCol string
	exportYearCol     string
	exportAmountCol   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an aggregate snapshot as CSV or XLSX",
	Long: `Runs the pipeline and writes the requested aggregate breakdown as a
downloadable snapshot: comma-delimited UTF-8 CSV (default, stdout unless
--output is given) or an XLSX workbook.

Examples:
  korvaus-cli export --source suorakorvaukset --by year
  korvaus-cli export --source suorakorvaukset --by provider --top 10 --other-label Muut
  korvaus-cli export --source suorakorvaukset --by year,provider --format xlsx --output totals.xlsx`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pipe, err := buildPipeline()
		if err != nil {
			return eris.Wrap(err, "export: build pipeline")
		}

		src, opts, err := selectSource(exportSource, exportURL, exportFile, "", "", "")
		if err != nil {
			return err
		}

		res, err := pipe.Run(cmd.Context(), src, opts,
			roleOverrides(exportProviderCol, exportYearCol, exportAmountCol))
		if err != nil {
			return reportRunError(err, res)
		}

		agg, err := pickAggregate(res, exportBy)
		if err != nil {
			return err
		}

		if exportTop > 0 {
			if agg.By.Year {
				return eris.New("--top applies only to the provider breakdown")
			}
			label := exportOtherLabel
			if label == "" {
				label = cfg.Export.OtherLabel
			}
			agg = aggregate.CollapseTail(agg, exportTop, label)
		}

		switch exportFormat {
		case "", "csv":
			out := os.Stdout
			if exportOutput != "" {
				f, err := os.Create(exportOutput)
				if err != nil {
					return eris.Wrapf(err, "export: create %s", exportOutput)
				}
				defer f.Close() //nolint:errcheck
				out = f
			}
			return aggregate.WriteCSV(out, agg)
		case "xlsx":
			if exportOutput == "" {
				return eris.New("--output is required for xlsx")
			}
			return aggregate.WriteXLSX(exportOutput, agg)
		default:
			return eris.Errorf("unknown format %q (csv or xlsx)", exportFormat)
		}
	},
}

func pickAggregate(res *pipeline.Result, by string) (*aggregate.Result, error) {
	switch by {
	case "", "year":
		return res.ByYear, nil
	case "provider":
		return res.ByProvider, nil
	case "year,provider", "year_provider":
		return res.ByYearProvider, nil
	default:
		return nil, eris.Errorf("unknown breakdown %q (year, provider, or year,provider)", by)
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportSource, "source", "", "configured source name")
	exportCmd.Flags().StringVar(&exportURL, "url", "", "ad-hoc feed URL")
	exportCmd.Flags().StringVar(&exportFile, "file", "", "local feed file")
	exportCmd.Flags().StringVar(&exportBy, "by", "year", "breakdown: year, provider, or year,provider")
	exportCmd.Flags().IntVar(&exportTop, "top", 0, "collapse the provider tail past the top N into one bucket")
	exportCmd.Flags().StringVar(&exportOtherLabel, "other-label", "", "label for the collapsed bucket")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv or xlsx")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output path (default stdout for csv)")
	exportCmd.Flags().StringVar(&exportProviderCol, "provider-col", "", "column holding the provider")
	exportCmd.Flags().StringVar(&exportYearCol, "year-col", "", "column holding the year")
	exportCmd.Flags().StringVar(&exportAmountCol, "amount-col", "", "column holding the amount")
	rootCmd.AddCommand(exportCmd)
}
